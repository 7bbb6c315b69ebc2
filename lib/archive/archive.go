// Copyright 2026 The Strongroom Authors
// SPDX-License-Identifier: Apache-2.0

package archive

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/zeebo/blake3"

	"github.com/strongroom-foundation/strongroom/lib/codec"
)

// Format constants.
const (
	// archiveVersion is the format version carried in the magic.
	archiveVersion = 1

	// headerSize is the fixed header: 8-byte magic + 4-byte index
	// length.
	headerSize = 12
)

// archiveMagic is the 8-byte archive signature: "STRONG" + version
// byte + reserved byte.
var archiveMagic = [8]byte{'S', 'T', 'R', 'O', 'N', 'G', archiveVersion, 0}

// entryChecksumKey is the BLAKE3 keyed-hash domain for entry
// checksums: the ASCII domain name zero-padded to 32 bytes. A fixed
// protocol constant.
var entryChecksumKey = [32]byte{
	's', 't', 'r', 'o', 'n', 'g', 'r', 'o', 'o', 'm', '.', 'a', 'r', 'c', 'h', 'i',
	'v', 'e', '.', 'e', 'n', 't', 'r', 'y', 0, 0, 0, 0, 0, 0, 0, 0,
}

// ErrChecksumMismatch is returned by Parse when an entry's
// decompressed bytes do not match the checksum recorded in the index.
var ErrChecksumMismatch = errors.New("archive: entry checksum mismatch")

// Entry is one named record in an archive: a discrete blob with its
// source name, file-extension tag, and the time span it covers.
type Entry struct {
	// Name is the producing source's name. Not required to be unique
	// within an archive; the index preserves order.
	Name string

	// Extension tags the content type, without a leading dot
	// ("json", "opus").
	Extension string

	// Start and End bound the time span the entry covers.
	Start time.Time
	End   time.Time

	// Data is the raw entry bytes.
	Data []byte

	// Compression selects the storage compression. Empty means
	// choose from Extension via DefaultCompression. Entries that turn
	// out incompressible are stored raw regardless.
	Compression CompressionTag
}

// indexRecord is the per-entry index row stored in the archive's CBOR
// index. Timestamps are UTC unix seconds.
type indexRecord struct {
	Name           string         `cbor:"name"`
	Extension      string         `cbor:"extension"`
	Start          int64          `cbor:"start"`
	End            int64          `cbor:"end"`
	Compression    CompressionTag `cbor:"compression"`
	CompressedSize uint32         `cbor:"compressed_size"`
	Size           uint32         `cbor:"size"`
	Checksum       []byte         `cbor:"checksum"`
}

// Build serializes entries into one archive blob:
//
//	[magic: 8 bytes] [index length: uint32 LE] [CBOR index] [entry data...]
//
// Entry data follows in index order, each entry compressed per its
// tag (or the extension default) with a keyed BLAKE3 checksum of the
// uncompressed bytes recorded in the index.
func Build(entries []Entry) ([]byte, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("archive: no entries")
	}

	index := make([]indexRecord, 0, len(entries))
	blobs := make([][]byte, 0, len(entries))

	for i, entry := range entries {
		if len(entry.Data) > math.MaxUint32 {
			return nil, fmt.Errorf("archive: entry %d (%s) is %d bytes, exceeding the format limit", i, entry.Name, len(entry.Data))
		}

		tag := entry.Compression
		if tag == "" {
			tag = DefaultCompression(entry.Extension)
		}
		compressed, err := compress(entry.Data, tag)
		if errors.Is(err, errIncompressible) {
			tag = CompressionNone
			compressed = entry.Data
		} else if err != nil {
			return nil, fmt.Errorf("archive: compressing entry %d (%s): %w", i, entry.Name, err)
		}

		index = append(index, indexRecord{
			Name:           entry.Name,
			Extension:      entry.Extension,
			Start:          entry.Start.UTC().Unix(),
			End:            entry.End.UTC().Unix(),
			Compression:    tag,
			CompressedSize: uint32(len(compressed)),
			Size:           uint32(len(entry.Data)),
			Checksum:       checksumEntry(entry.Data),
		})
		blobs = append(blobs, compressed)
	}

	indexBytes, err := codec.Marshal(index)
	if err != nil {
		return nil, fmt.Errorf("archive: encoding index: %w", err)
	}
	if len(indexBytes) > math.MaxUint32 {
		return nil, fmt.Errorf("archive: index is %d bytes, exceeding the format limit", len(indexBytes))
	}

	var out bytes.Buffer
	out.Write(archiveMagic[:])
	var indexLen [4]byte
	binary.LittleEndian.PutUint32(indexLen[:], uint32(len(indexBytes)))
	out.Write(indexLen[:])
	out.Write(indexBytes)
	for _, blob := range blobs {
		out.Write(blob)
	}
	return out.Bytes(), nil
}

// Parse reads an archive blob back into its entries, decompressing
// each and verifying its checksum. Entries come back in archive
// order with Compression set to the tag actually used for storage.
func Parse(data []byte) ([]Entry, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("archive: %d bytes is shorter than the %d-byte header", len(data), headerSize)
	}
	if !bytes.Equal(data[:8], archiveMagic[:]) {
		return nil, fmt.Errorf("archive: bad magic %x", data[:8])
	}

	indexLen := int(binary.LittleEndian.Uint32(data[8:12]))
	if headerSize+indexLen > len(data) {
		return nil, fmt.Errorf("archive: index length %d overruns the %d-byte blob", indexLen, len(data))
	}

	var index []indexRecord
	if err := codec.Unmarshal(data[headerSize:headerSize+indexLen], &index); err != nil {
		return nil, fmt.Errorf("archive: decoding index: %w", err)
	}

	entries := make([]Entry, 0, len(index))
	offset := headerSize + indexLen
	for i, record := range index {
		end := offset + int(record.CompressedSize)
		if end > len(data) {
			return nil, fmt.Errorf("archive: entry %d (%s) overruns the blob", i, record.Name)
		}

		raw, err := decompress(data[offset:end], record.Compression, int(record.Size))
		if err != nil {
			return nil, fmt.Errorf("archive: entry %d (%s): %w", i, record.Name, err)
		}
		if !bytes.Equal(checksumEntry(raw), record.Checksum) {
			return nil, fmt.Errorf("%w: entry %d (%s)", ErrChecksumMismatch, i, record.Name)
		}

		entries = append(entries, Entry{
			Name:        record.Name,
			Extension:   record.Extension,
			Start:       time.Unix(record.Start, 0).UTC(),
			End:         time.Unix(record.End, 0).UTC(),
			Data:        raw,
			Compression: record.Compression,
		})
		offset = end
	}

	if offset != len(data) {
		return nil, fmt.Errorf("archive: %d trailing bytes after the last entry", len(data)-offset)
	}
	return entries, nil
}

// checksumEntry computes the keyed BLAKE3 checksum of an entry's
// uncompressed bytes.
func checksumEntry(data []byte) []byte {
	hasher, err := blake3.NewKeyed(entryChecksumKey[:])
	if err != nil {
		panic("archive: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	return hasher.Sum(nil)
}
