package main

import (
	"github.com/lox/chukrum/cmd/chukrum/shared"
	"github.com/lox/chukrum/internal/auth"
	"github.com/lox/chukrum/internal/multiplayer"
	"github.com/lox/chukrum/internal/server"
)

// ServeCmd runs the record store relay
type ServeCmd struct {
	Addr     string `help:"Server address; overrides the config file"`
	Snapshot string `type:"path" help:"Persist games to this file across restarts; overrides the config file"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, logger, done, err := g.setup()
	if err != nil {
		return err
	}
	defer done()

	addr := cfg.Multiplayer.Listen
	if c.Addr != "" {
		addr = c.Addr
	}
	snapshot := cfg.Multiplayer.Snapshot
	if c.Snapshot != "" {
		snapshot = c.Snapshot
	}

	opts := []multiplayer.MemoryStoreOption{multiplayer.WithStoreLogger(logger)}
	if snapshot != "" {
		opts = append(opts, multiplayer.WithSnapshotFile(snapshot))
	}
	store, err := multiplayer.NewMemoryStore(opts...)
	if err != nil {
		return err
	}

	var serverOpts []server.Option
	switch m := cfg.Multiplayer; {
	case m.AuthURL != "":
		logger.Info("Validating tokens", "url", m.AuthURL, "fail_open", m.AuthFailOpen)
		serverOpts = append(serverOpts, server.WithValidator(auth.NewHTTPValidator(m.AuthURL, m.AuthSecret), m.AuthFailOpen))
	case m.Token != "":
		logger.Info("Requiring shared token")
		serverOpts = append(serverOpts, server.WithValidator(auth.NewStaticValidator(m.Token), false))
	}

	logger.Info("Starting Chukrum relay", "address", addr, "snapshot", snapshot)
	ctx := shared.SetupSignalHandlerWithLogger(logger)
	return server.NewServer(addr, store, logger, serverOpts...).Run(ctx)
}
