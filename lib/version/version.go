// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports which viewrepl build is running.
//
// Release builds stamp the variables below through -ldflags:
//
//	go build -ldflags "-X github.com/bureau-foundation/viewrepl/lib/version.GitCommit=$(git rev-parse --short HEAD)" ./cmd/viewrepl
//
// A plain "go build" or "go install" from a checkout leaves them unset;
// the commit, dirty bit and time then come from the VCS settings the Go
// toolchain embeds in the binary.
package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

var (
	GitCommit = "unknown"
	GitDirty  = "false"
	BuildTime = "unknown"

	// Version is bumped by hand when a release is cut.
	Version = "0.1.0-dev"
)

// stamp is the build identity after falling back to embedded VCS
// settings for whatever -ldflags did not set.
type stamp struct {
	commit string
	dirty  bool
	time   string
}

func current() stamp {
	st := stamp{commit: GitCommit, dirty: GitDirty == "true", time: BuildTime}
	if info, ok := debug.ReadBuildInfo(); ok {
		st = st.withSettings(info.Settings)
	}
	return st
}

// withSettings fills the fields still "unknown" from vcs.* build
// settings. Commits are shortened to the 7 characters ldflags builds use.
func (st stamp) withSettings(settings []debug.BuildSetting) stamp {
	if st.commit != "unknown" {
		return st
	}
	for _, setting := range settings {
		switch setting.Key {
		case "vcs.revision":
			st.commit = setting.Value[:min(7, len(setting.Value))]
		case "vcs.modified":
			st.dirty = setting.Value == "true"
		case "vcs.time":
			if st.time == "unknown" {
				st.time = setting.Value
			}
		}
	}
	return st
}

func (st stamp) String() string {
	commit := st.commit
	if st.dirty {
		commit += "-dirty"
	}
	return fmt.Sprintf("%s (%s, %s)", Version, commit, st.time)
}

// Info formats the build as "0.1.0-dev (abc1234-dirty, 2026-10-17T09:00:00Z)".
func Info() string { return current().String() }

// Full is Info followed by the toolchain and target platform, as
// printed by "viewrepl version".
func Full() string {
	return fmt.Sprintf("%s\n  Go: %s\n  Platform: %s/%s",
		Info(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
