// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/viewrepl/cmd/viewrepl/cli"
	"github.com/bureau-foundation/viewrepl/lib/config"
	"github.com/bureau-foundation/viewrepl/lib/descriptor"
	"github.com/bureau-foundation/viewrepl/lib/replicastore"
	"github.com/bureau-foundation/viewrepl/lib/viewset"
)

// setFlags are the flags shared by every command that loads a view
// set.
type setFlags struct {
	config     string
	descriptor string
}

func (f *setFlags) register(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&f.config, "config", "", "path to viewrepl.yaml (default: $VIEWREPL_CONFIG)")
	flagSet.StringVarP(&f.descriptor, "descriptor", "d", "", "descriptor path, overriding the config")
}

// loadConfig resolves the configuration: an explicit --config, then
// VIEWREPL_CONFIG, then the defaults. --descriptor replaces whatever
// descriptor the config names.
func (f *setFlags) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	switch {
	case f.config != "":
		cfg, err = config.LoadFile(f.config)
	case os.Getenv("VIEWREPL_CONFIG") != "":
		cfg, err = config.Load()
	default:
		cfg = config.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if f.descriptor != "" {
		cfg.Descriptor = f.descriptor
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// session is a loaded configuration and its graph, and the open view
// set when the command needs one.
type session struct {
	config *config.Config
	logger *slog.Logger
	graph  *viewset.Graph
	set    *viewset.ViewSet
}

// loadGraph loads the config and descriptor without opening replicas.
func (f *setFlags) loadGraph(s streams) (*session, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	level, err := cfg.LogLevel()
	if err != nil {
		return nil, err
	}
	logger, err := cli.NewCommandLogger(s.stderr, level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}

	document, err := descriptor.ReadFile(cfg.Descriptor)
	if err != nil {
		return nil, err
	}
	graph, err := descriptor.Build(document, cfg.ReplicaRootDir())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Descriptor, err)
	}
	return &session{config: cfg, logger: logger, graph: graph}, nil
}

// open loads the graph and opens its replicas. The caller closes the
// session.
func (f *setFlags) open(s streams) (*session, error) {
	sess, err := f.loadGraph(s)
	if err != nil {
		return nil, err
	}
	cfg := sess.config
	set, err := viewset.Open(sess.graph, viewset.Options{
		Store:       replicastore.FileStore{},
		Workers:     cfg.Scheduler.Workers,
		QueueDepth:  cfg.Scheduler.QueueDepth,
		ChunkSize:   int64(cfg.Scheduler.ChunkSize),
		ScratchSize: int64(cfg.Scheduler.ScratchSize),
		SyncWrites:  cfg.Replication.SyncWrites,
		Logger:      sess.logger,
	})
	if err != nil {
		return nil, err
	}
	sess.set = set
	sess.logger = sess.logger.With("view_set", set.ID())
	sess.logger.Debug("view set opened",
		"descriptor", cfg.Descriptor,
		"replicas", len(sess.graph.Replicas()),
		"views", len(sess.graph.Views()),
	)
	return sess, nil
}

// file looks up a view by name.
func (sess *session) file(name string) (*viewset.File, error) {
	f, ok := sess.set.File(name)
	if !ok {
		return nil, fmt.Errorf("no view named %q", name)
	}
	return f, nil
}

// Close drains replication and closes the replicas.
func (sess *session) Close() error {
	if sess.set == nil {
		return nil
	}
	return sess.set.Close()
}
