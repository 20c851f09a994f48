// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package viewset

import (
	"errors"
	"fmt"
)

// Error taxonomy. Every error returned by a File or a ViewSet matches
// exactly one of these with errors.Is, usually through a *Fault that
// adds the operation and position.
var (
	// ErrMappingFault reports an element whose index transform leaves a
	// remainder or falls outside the destination, where a match was
	// required.
	ErrMappingFault = errors.New("viewset: element does not map")

	// ErrShortIO reports a replica read or write that moved fewer bytes
	// than requested.
	ErrShortIO = errors.New("viewset: short replica I/O")

	// ErrOutOfRange reports an offset outside the view.
	ErrOutOfRange = errors.New("viewset: offset out of range")

	// ErrNoProgress reports an operation that could not advance, for
	// example a chunk ceiling smaller than one destination element.
	ErrNoProgress = errors.New("viewset: no progress")

	// ErrStorageFault wraps failures reported by the replica store.
	ErrStorageFault = errors.New("viewset: storage fault")

	// ErrReadOnly is returned when writing to a readonly view.
	ErrReadOnly = errors.New("viewset: view is readonly")

	// ErrClosed is returned by operations on a closed ViewSet.
	ErrClosed = errors.New("viewset: closed")
)

// Fault carries the context of a failed engine operation. Kind is one
// of the taxonomy sentinels; Err, when set, is the underlying cause.
type Fault struct {
	Op     string
	View   string
	Block  BlockID
	Offset int64
	Kind   error
	Err    error
}

func (f *Fault) Error() string {
	message := fmt.Sprintf("%s %s", f.Op, f.View)
	if f.Block != 0 {
		message += fmt.Sprintf(" block %d", f.Block)
	}
	message += fmt.Sprintf(" at %d: %v", f.Offset, f.Kind)
	if f.Err != nil {
		message += ": " + f.Err.Error()
	}
	return message
}

// Unwrap exposes both the taxonomy sentinel and the cause to errors.Is
// and errors.As.
func (f *Fault) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}
