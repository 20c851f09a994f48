// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the shared CBOR encoding configuration.
//
// Descriptors exist in two forms with a clear boundary:
//
//   - JSON (with comments) for the files people write and review.
//   - CBOR for the compact binary descriptor frame, which tools emit
//     with "viewrepl convert" and load without a text parser.
//
// Both forms share one set of Go types tagged with `json` struct tags;
// fxamacker/cbor v2 reads `json` tags when `cbor` tags are absent, so
// field names and omitempty agree between the formats.
//
// The encoder uses Core Deterministic Encoding (RFC 8949 §4.2): sorted
// map keys, smallest integer encoding, no indefinite-length items. The
// same descriptor always encodes to the same bytes, which keeps binary
// frames diffable by digest.
//
//	data, err := codec.Marshal(document)
//	err = codec.Unmarshal(data, &document)
package codec
