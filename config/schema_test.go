package config

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateSchema(t *testing.T) {
	data, err := GenerateSchema()
	require.NoError(t, err)

	var schema map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &schema))
	assert.Equal(t, "Stratus Client Configuration", schema["title"])

	props, ok := schema["properties"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, props, "server")
	assert.Contains(t, props, "stream")
	assert.Contains(t, props, "hooks")
	assert.NotContains(t, props, "Extensions")
}

func TestSchemaValidator(t *testing.T) {
	v, err := NewSchemaValidator()
	require.NoError(t, err)

	dir := t.TempDir()

	good := filepath.Join(dir, "good.yml")
	writeFile(t, good, `
server:
  port: 41777
stream:
  reconnect_floor: 500ms
logging:
  level: debug
`)
	assert.NoError(t, v.ValidateFile(good))

	badPort := filepath.Join(dir, "port.yml")
	writeFile(t, badPort, "server:\n  port: 70000\n")
	assert.Error(t, v.ValidateFile(badPort))

	badDuration := filepath.Join(dir, "duration.toml")
	writeFile(t, badDuration, "[stream]\nkeepalive = \"soon\"\n")
	assert.Error(t, v.ValidateFile(badDuration))

	typo := filepath.Join(dir, "typo.yml")
	writeFile(t, typo, "server:\n  hots: example\n")
	assert.Error(t, v.ValidateFile(typo))
}
