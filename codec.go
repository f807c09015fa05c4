package jpostcode

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
)

// Blob layout, little-endian:
//
//	header  magic "JPCI" | version uint16 | flags uint16
//	payload (gzip when flagCompressed is set)
//	        prefecture, city, area tables: count, then len+bytes per name in ID order
//	        7-digit codes ascending: code, triple count, (pref, city, area) IDs
//	        legacy codes ascending: code, target count, 7-digit codes in insertion order
//	        crc32 (IEEE) of the preceding payload bytes, uint32
//
// Every integer inside the payload is an unsigned varint.
const (
	blobMagic         = "JPCI"
	blobVersion       = uint16(1)
	blobHeaderSize    = 8
	flagCompressed    = uint16(1)
	maxBlobNameLength = 1 << 16
)

// EncodeIndex writes idx to w in the versioned blob format. The output is
// deterministic for a given index.
func EncodeIndex(w io.Writer, idx *Index, compress bool) error {
	if idx == nil {
		return errors.New("encoding nil index")
	}

	var header [blobHeaderSize]byte
	copy(header[:4], blobMagic)
	binary.LittleEndian.PutUint16(header[4:6], blobVersion)
	var flags uint16
	if compress {
		flags |= flagCompressed
	}
	binary.LittleEndian.PutUint16(header[6:8], flags)
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	payload := encodePayload(idx)
	if !compress {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("writing payload: %w", err)
		}
		return nil
	}

	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return err
	}
	if _, err := zw.Write(payload); err != nil {
		zw.Close()
		return fmt.Errorf("compressing payload: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("compressing payload: %w", err)
	}
	return nil
}

func encodePayload(idx *Index) []byte {
	buf := make([]byte, 0, 1<<20)
	for _, names := range [][]string{idx.prefectures, idx.cities, idx.areas} {
		buf = binary.AppendUvarint(buf, uint64(len(names)))
		for _, name := range names {
			buf = binary.AppendUvarint(buf, uint64(len(name)))
			buf = append(buf, name...)
		}
	}

	codes := idx.Codes()
	buf = binary.AppendUvarint(buf, uint64(len(codes)))
	for _, code := range codes {
		triples := idx.byNewCode[code]
		buf = binary.AppendUvarint(buf, uint64(code))
		buf = binary.AppendUvarint(buf, uint64(len(triples)))
		for _, t := range triples {
			buf = binary.AppendUvarint(buf, uint64(t.Prefecture))
			buf = binary.AppendUvarint(buf, uint64(t.City))
			buf = binary.AppendUvarint(buf, uint64(t.Area))
		}
	}

	legacy := idx.LegacyCodes()
	buf = binary.AppendUvarint(buf, uint64(len(legacy)))
	for _, code := range legacy {
		targets := idx.redirects[code]
		buf = binary.AppendUvarint(buf, uint64(code))
		buf = binary.AppendUvarint(buf, uint64(len(targets)))
		for _, target := range targets {
			buf = binary.AppendUvarint(buf, uint64(target))
		}
	}

	return binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(buf))
}

// DecodeIndex reads a blob written by EncodeIndex. Blobs with a different
// format version fail with ErrUnsupportedVersion; damaged blobs fail with
// ErrCorruptIndex.
func DecodeIndex(r io.Reader) (*Index, error) {
	var header [blobHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: reading header: %v", ErrCorruptIndex, err)
	}
	if string(header[:4]) != blobMagic {
		return nil, fmt.Errorf("%w: invalid magic %q", ErrCorruptIndex, header[:4])
	}
	if v := binary.LittleEndian.Uint16(header[4:6]); v != blobVersion {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrUnsupportedVersion, v, blobVersion)
	}
	flags := binary.LittleEndian.Uint16(header[6:8])

	var payload []byte
	var err error
	if flags&flagCompressed != 0 {
		zr, zerr := gzip.NewReader(r)
		if zerr != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, zerr)
		}
		payload, err = io.ReadAll(zr)
		zr.Close()
	} else {
		payload, err = io.ReadAll(r)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading payload: %v", ErrCorruptIndex, err)
	}

	if len(payload) < 4 {
		return nil, fmt.Errorf("%w: payload too short", ErrCorruptIndex)
	}
	body, sum := payload[:len(payload)-4], binary.LittleEndian.Uint32(payload[len(payload)-4:])
	if crc32.ChecksumIEEE(body) != sum {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptIndex)
	}

	idx, err := decodePayload(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptIndex, err)
	}
	return idx, nil
}

func decodePayload(r *bytes.Reader) (*Index, error) {
	idx := &Index{}
	tables := []*[]string{&idx.prefectures, &idx.cities, &idx.areas}
	for _, table := range tables {
		names, err := readNames(r)
		if err != nil {
			return nil, err
		}
		*table = names
	}

	n, err := readCount(r, 2)
	if err != nil {
		return nil, fmt.Errorf("code count: %w", err)
	}
	idx.byNewCode = make(map[uint32][]Triple, n)
	for i := 0; i < n; i++ {
		code, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		if _, dup := idx.byNewCode[code]; dup {
			return nil, fmt.Errorf("code %07d repeated", code)
		}
		count, err := readCount(r, 3)
		if err != nil {
			return nil, err
		}
		triples := make([]Triple, count)
		for j := range triples {
			var ids [3]uint32
			for k := range ids {
				if ids[k], err = readUint32(r); err != nil {
					return nil, err
				}
			}
			t := Triple{Prefecture: NameID(ids[0]), City: NameID(ids[1]), Area: NameID(ids[2])}
			if int(t.Prefecture) >= len(idx.prefectures) || int(t.City) >= len(idx.cities) || int(t.Area) >= len(idx.areas) {
				return nil, fmt.Errorf("code %07d references unknown name id", code)
			}
			triples[j] = t
		}
		idx.byNewCode[code] = triples
	}

	n, err = readCount(r, 2)
	if err != nil {
		return nil, fmt.Errorf("legacy code count: %w", err)
	}
	idx.redirects = make(map[uint32][]uint32, n)
	for i := 0; i < n; i++ {
		legacy, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		if _, dup := idx.redirects[legacy]; dup {
			return nil, fmt.Errorf("legacy code %d repeated", legacy)
		}
		count, err := readCount(r, 1)
		if err != nil {
			return nil, err
		}
		targets := make([]uint32, count)
		for j := range targets {
			if targets[j], err = readUint32(r); err != nil {
				return nil, err
			}
		}
		idx.redirects[legacy] = targets
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes", r.Len())
	}
	return idx, nil
}

func readNames(r *bytes.Reader) ([]string, error) {
	n, err := readCount(r, 1)
	if err != nil {
		return nil, fmt.Errorf("name count: %w", err)
	}
	names := make([]string, n)
	seen := make(map[string]struct{}, n)
	for i := range names {
		size, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, err
		}
		if size > maxBlobNameLength || size > uint64(r.Len()) {
			return nil, fmt.Errorf("name length %d out of range", size)
		}
		b := make([]byte, size)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, err
		}
		names[i] = string(b)
		if _, dup := seen[names[i]]; dup {
			return nil, fmt.Errorf("name %q stored twice", names[i])
		}
		seen[names[i]] = struct{}{}
	}
	return names, nil
}

// readCount reads an element count and rejects values that could not fit in
// the remaining bytes, given each element needs at least minBytes.
func readCount(r *bytes.Reader, minBytes int) (int, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	if n > uint64(r.Len()/minBytes) {
		return 0, fmt.Errorf("count %d exceeds remaining payload", n)
	}
	return int(n), nil
}

func readUint32(r *bytes.Reader) (uint32, error) {
	v, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("value %d overflows uint32", v)
	}
	return uint32(v), nil
}
