package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"
)

// VersionInfo is returned by GET /api/system/version.
type VersionInfo struct {
	Current         string   `json:"current"`
	Latest          string   `json:"latest"`
	UpdateAvailable bool     `json:"update_available"`
	ReleaseURL      string   `json:"release_url"`
	ReleaseNotes    string   `json:"release_notes"`
	SyncRequired    bool     `json:"sync_required"`
	SkippedFiles    []string `json:"skipped_files"`
}

// Timestamp accepts an RFC 3339 string or a Unix time number on the wire.
// Numbers below 1e11 are seconds, larger ones milliseconds. Null and the
// empty string decode to the zero time.
type Timestamp struct {
	time.Time
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			t.Time = time.Time{}
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return fmt.Errorf("parse timestamp %q: %w", s, err)
		}
		t.Time = parsed
		return nil
	}
	n, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("parse timestamp %s: %w", data, err)
	}
	if math.Abs(n) < unixSecondsLimit {
		t.Time = time.UnixMilli(int64(n * 1000))
	} else {
		t.Time = time.UnixMilli(int64(n))
	}
	return nil
}

// unixSecondsLimit separates Unix seconds from Unix milliseconds: 1e11
// seconds is past the year 5000, 1e11 milliseconds is in 1973.
const unixSecondsLimit = 1e11

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.UTC().Format(time.RFC3339Nano))
}
