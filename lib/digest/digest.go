// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package digest computes content digests of views. Comparing the
// digest of a source view with the digest of a view reading the same
// elements back through a replica confirms that replication converged.
package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte keyed BLAKE3 digest.
type Hash [32]byte

// viewDomainKey separates view digests from any other BLAKE3 use of the
// same bytes. Changing it invalidates every recorded digest. The bytes
// are the ASCII domain name, zero-padded to 32 bytes.
var viewDomainKey = [32]byte{
	'v', 'i', 'e', 'w', 'r', 'e', 'p', 'l', '.', 'v', 'i', 'e', 'w', 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// PieceSize is how many bytes Sum reads per call.
const PieceSize = 1 << 20

// Sum digests the first size bytes of r.
func Sum(r io.ReaderAt, size int64) (Hash, error) {
	hasher, err := blake3.NewKeyed(viewDomainKey[:])
	if err != nil {
		panic("digest: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	piece := make([]byte, min(size, PieceSize))
	for offset := int64(0); offset < size; {
		buffer := piece[:min(size-offset, PieceSize)]
		n, err := r.ReadAt(buffer, offset)
		if n < len(buffer) {
			if err == nil || errors.Is(err, io.EOF) {
				err = io.ErrUnexpectedEOF
			}
			return Hash{}, fmt.Errorf("reading %d bytes at %d: %w", len(buffer), offset, err)
		}
		hasher.Write(buffer)
		offset += int64(n)
	}

	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash, nil
}

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex characters, enough to tell digests
// apart in command output.
func (h Hash) Short() string {
	return hex.EncodeToString(h[:6])
}

// ParseHash parses a 64-character hex string.
func ParseHash(text string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return hash, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != len(hash) {
		return hash, fmt.Errorf("digest is %d bytes, want %d", len(decoded), len(hash))
	}
	copy(hash[:], decoded)
	return hash, nil
}
