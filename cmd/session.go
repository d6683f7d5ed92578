package cmd

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stratustools/core/cli"
	"github.com/stratustools/core/config"
	"github.com/stratustools/core/internal/store"
	"github.com/stratustools/core/pkg/api"
	"github.com/stratustools/core/pkg/stream"
)

// session wires the HTTP client, event stream and store for one command.
type session struct {
	cfg    *config.Loaded
	client *api.HTTPClient
	events *stream.Client
	store  *store.Store
	logger *logrus.Entry
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := cli.LoadConfig(cmd)
	if err != nil {
		return nil, err
	}

	client := api.New(cfg.Config)
	events := stream.New(stream.OptionsFromConfig(cfg.Config))
	st := store.New(client, events, store.Options{KeepAlive: cfg.KeepAlive()})

	return &session{
		cfg:    cfg,
		client: client,
		events: events,
		store:  st,
		logger: cli.GetLogger(cmd),
	}, nil
}

// start performs the initial refresh and opens the stream. The store
// registers its handlers first so the connected event is not missed.
func (s *session) start(ctx context.Context) {
	s.store.Initialize(ctx)
	s.events.Connect()
}

func (s *session) Close() {
	s.store.Close()
	if err := s.events.Close(); err != nil {
		s.logger.WithError(err).Debug("Closing event stream")
	}
}
