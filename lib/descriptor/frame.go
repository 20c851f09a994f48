// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package descriptor

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/bureau-foundation/viewrepl/lib/codec"
)

// frameMagic starts every binary descriptor frame.
var frameMagic = [4]byte{'V', 'R', 'S', 'D'}

// maxPayload bounds the declared payload length of a frame.
const maxPayload = 64 << 20

// CompressionTag identifies how a frame payload is compressed. The
// values are stored in frames and must not change.
type CompressionTag uint8

const (
	// CompressionNone stores the CBOR payload as is.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 is LZ4 block compression.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd is zstd at the default level. Descriptors of
	// large graphs repeat the same record shapes and compress well.
	CompressionZstd CompressionTag = 2
)

func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", tag)
	}
}

// ParseCompressionTag parses the name printed by String.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("unknown compression tag: %q", name)
	}
}

var errIncompressible = errors.New("payload is incompressible")

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("descriptor: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxPayload))
	if err != nil {
		panic("descriptor: zstd decoder initialization failed: " + err.Error())
	}
}

// Encode renders document as a binary frame. When tag does not shrink
// the payload, the frame is written uncompressed instead.
func Encode(document *Document, tag CompressionTag) ([]byte, error) {
	payload, err := codec.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("encoding descriptor: %w", err)
	}

	compressed, err := compress(payload, tag)
	switch {
	case errors.Is(err, errIncompressible):
		tag, compressed = CompressionNone, payload
	case err != nil:
		return nil, err
	}

	frame := make([]byte, 0, len(frameMagic)+1+binary.MaxVarintLen64+len(compressed))
	frame = append(frame, frameMagic[:]...)
	frame = append(frame, byte(tag))
	frame = binary.AppendUvarint(frame, uint64(len(payload)))
	return append(frame, compressed...), nil
}

// FrameCompression reports the compression tag of a binary frame.
func FrameCompression(data []byte) (CompressionTag, bool) {
	if len(data) <= len(frameMagic) || [4]byte(data[:4]) != frameMagic {
		return 0, false
	}
	return CompressionTag(data[len(frameMagic)]), true
}

func decodeFrame(data []byte) (*Document, error) {
	tag, ok := FrameCompression(data)
	if !ok {
		return nil, errors.New("descriptor frame is truncated")
	}
	rest := data[len(frameMagic)+1:]
	size, n := binary.Uvarint(rest)
	if n <= 0 {
		return nil, errors.New("descriptor frame has a malformed payload length")
	}
	if size > maxPayload {
		return nil, fmt.Errorf("descriptor frame payload of %d bytes exceeds the %d byte limit", size, maxPayload)
	}

	payload, err := decompress(rest[n:], tag, int(size))
	if err != nil {
		return nil, err
	}
	var document Document
	if err := codec.Unmarshal(payload, &document); err != nil {
		return nil, fmt.Errorf("decoding descriptor frame: %w", err)
	}
	return &document, nil
}

func compress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		destination := make([]byte, lz4.CompressBlockBound(len(data)))
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock reports incompressible input as zero bytes.
		if written == 0 || written >= len(data) {
			return nil, errIncompressible
		}
		return destination[:written], nil
	case CompressionZstd:
		compressed := zstdEncoder.EncodeAll(data, nil)
		if len(compressed) >= len(data) {
			return nil, errIncompressible
		}
		return compressed, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}

func decompress(compressed []byte, tag CompressionTag, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != size {
			return nil, fmt.Errorf("uncompressed payload: size %d does not match declared %d", len(compressed), size)
		}
		return compressed, nil
	case CompressionLZ4:
		destination := make([]byte, size)
		read, err := lz4.UncompressBlock(compressed, destination)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if read != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
		}
		return destination, nil
	case CompressionZstd:
		destination, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(destination) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(destination), size)
		}
		return destination, nil
	default:
		return nil, fmt.Errorf("unsupported compression tag: %d", tag)
	}
}
