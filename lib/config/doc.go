// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for viewrepl.
//
// Configuration is loaded from a single file specified by either the
// VIEWREPL_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]). There are no fallbacks and no automatic file
// search.
//
// The file may carry development and production sections that
// override the scheduler, replication and logging settings when
// [Config].Environment matches. Production defaults are stricter:
// every write-through is committed to stable storage before the write
// returns.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${VIEWREPL_CONFIG_DIR} (the directory holding the config
// file) and ${VAR:-default} patterns are expanded. Sizes accept human
// units such as "64MiB" or "1 MB".
//
// Key exports:
//
//   - [Config] -- master struct with Scheduler, Replication, Logging, Mount
//   - [Default] -- returns a Config with development defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other viewrepl packages.
package config
