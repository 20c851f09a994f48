// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package descriptor reads and writes view-set descriptors: the
// serialized form of a block graph.
//
// Descriptors are authored as JSONC (JSON with // and /* */ comments
// and trailing commas) and can be converted to a compact binary frame:
//
//	"VRSD" | compression tag (1 byte) | uvarint payload length | payload
//
// The payload is the CBOR encoding of the same Document, compressed
// with LZ4 or zstd when that makes it smaller. Parse accepts both
// forms.
//
// The typical flow:
//
//  1. ReadFile or Parse: JSONC or frame bytes → Document
//  2. Build: Document → validated *viewset.Graph, with relative
//     replica paths resolved against a root directory
//  3. FromGraph and Encode (or EncodeJSON) to write a graph back out
//
// Blocks are listed with explicit IDs starting at 1, and every
// reference (array element, tuple field, destination, source,
// connector) uses those IDs. Array and tuple sizes may be omitted; they
// are derived from the element and field sizes.
package descriptor
