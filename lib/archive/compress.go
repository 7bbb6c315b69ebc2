// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression applied to one archive
// entry. Tags are stored in the archive index — protocol constants.
type CompressionTag string

const (
	// CompressionNone stores the entry uncompressed. Used for
	// already-compressed content (media recordings, encrypted blobs)
	// where recompression burns CPU without shrinking anything.
	CompressionNone CompressionTag = "none"

	// CompressionLZ4 is LZ4 block compression. Fast default for
	// binary data of unknown shape.
	CompressionLZ4 CompressionTag = "lz4"

	// CompressionZstd is zstd at the default level. Better ratios
	// for text-like content (logs, JSON, transcripts).
	CompressionZstd CompressionTag = "zstd"
)

// ParseCompressionTag parses a compression tag from its string
// representation.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch CompressionTag(name) {
	case CompressionNone:
		return CompressionNone, nil
	case CompressionLZ4:
		return CompressionLZ4, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown compression tag: %q", name)
	}
}

// errIncompressible signals that compression did not shrink the
// entry; the writer falls back to storing it raw.
var errIncompressible = errors.New("archive: data is incompressible")

// textExtensions lists file-extension tags whose content is
// text-like and worth the zstd CPU cost. Everything else defaults to
// LZ4, except knownRawExtensions.
var textExtensions = map[string]struct{}{
	"txt": {}, "log": {}, "json": {}, "jsonl": {}, "csv": {},
	"xml": {}, "yaml": {}, "yml": {}, "srt": {}, "gpx": {},
}

// knownRawExtensions lists extensions whose content is already
// compressed; storing them raw avoids pointless work.
var knownRawExtensions = map[string]struct{}{
	"jpg": {}, "jpeg": {}, "png": {}, "gif": {}, "webp": {},
	"mp3": {}, "mp4": {}, "m4a": {}, "ogg": {}, "opus": {},
	"avi": {}, "mkv": {}, "webm": {}, "zip": {}, "gz": {},
	"zst": {}, "crypt": {},
}

// DefaultCompression picks a compression tag from an entry's
// file-extension tag. Callers that know better set Record.Compression
// explicitly.
func DefaultCompression(extension string) CompressionTag {
	normalized := strings.ToLower(strings.TrimPrefix(extension, "."))
	if _, ok := textExtensions[normalized]; ok {
		return CompressionZstd
	}
	if _, ok := knownRawExtensions[normalized]; ok {
		return CompressionNone
	}
	return CompressionLZ4
}

// zstdEncoder and zstdDecoder are shared across calls; both are safe
// for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("archive: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("archive: zstd decoder initialization failed: " + err.Error())
	}
}

// compress applies tag to data. Returns errIncompressible when the
// output would not be smaller than the input.
func compress(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil

	case CompressionLZ4:
		bound := lz4.CompressBlockBound(len(data))
		destination := make([]byte, bound)
		written, err := lz4.CompressBlock(data, destination, nil)
		if err != nil {
			return nil, fmt.Errorf("lz4 compress: %w", err)
		}
		// CompressBlock returns 0 for incompressible input.
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
		return nil, fmt.Errorf("unsupported compression tag: %q", tag)
	}
}

// decompress reverses compress. The size must match the original
// length exactly; a mismatch is an error, never a short read.
func decompress(compressed []byte, tag CompressionTag, size int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != size {
			return nil, fmt.Errorf("uncompressed entry: size %d does not match expected %d", len(compressed), size)
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
		result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(result) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), size)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("unsupported compression tag: %q", tag)
	}
}
