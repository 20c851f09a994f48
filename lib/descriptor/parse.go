// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Parse decodes a descriptor in either form: a binary frame when data
// starts with the frame magic, JSONC otherwise. Unknown JSON fields
// are rejected so that typos in hand-written descriptors surface.
func Parse(data []byte) (*Document, error) {
	if bytes.HasPrefix(data, frameMagic[:]) {
		return decodeFrame(data)
	}

	stripped := jsonc.ToJSON(data)
	decoder := json.NewDecoder(bytes.NewReader(stripped))
	decoder.DisallowUnknownFields()
	var document Document
	if err := decoder.Decode(&document); err != nil {
		return nil, fmt.Errorf("parsing descriptor: %w", err)
	}
	if decoder.More() {
		return nil, fmt.Errorf("parsing descriptor: trailing data after document")
	}
	return &document, nil
}

// ReadFile reads and parses the descriptor at path.
func ReadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	document, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return document, nil
}

// EncodeJSON renders document as indented JSON, a valid JSONC
// descriptor.
func EncodeJSON(document *Document) ([]byte, error) {
	data, err := json.MarshalIndent(document, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}
	return append(data, '\n'), nil
}
