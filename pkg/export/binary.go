package export

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pierrec/lz4/v4"
)

// Binary envelope layout, big endian:
//
//	magic "PLNG" | version u8 | codec u8 | raw length u32 | payload length u32 | payload
//
// The payload is the compact JSON document, LZ4 block-compressed unless the
// codec byte says it was stored raw.
const (
	binaryVersion = 1
	headerSize    = 4 + 1 + 1 + 4 + 4
	maxRawSize    = 64 << 20 // 64 MiB.
)

const (
	codecRaw byte = iota
	codecLZ4
)

var binaryMagic = [4]byte{'P', 'L', 'N', 'G'}

// Binary envelope errors.
var (
	ErrBadMagic           = errors.New("not a portlang binary document")
	ErrUnsupportedVersion = errors.New("unsupported binary document version")
	ErrCorrupt            = errors.New("corrupt binary document")
)

// EncodeBinary writes doc as a compressed binary envelope.
func EncodeBinary(w io.Writer, doc *Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("binary: %w", err)
	}

	codec := codecLZ4
	payload := make([]byte, lz4.CompressBlockBound(len(raw)))

	n, err := lz4.CompressBlock(raw, payload, nil)
	if err != nil {
		return fmt.Errorf("binary: compress: %w", err)
	}

	// A zero length means the input was incompressible.
	if n == 0 || n >= len(raw) {
		codec = codecRaw
		payload = raw
	} else {
		payload = payload[:n]
	}

	header := make([]byte, headerSize)
	copy(header, binaryMagic[:])
	header[4] = binaryVersion
	header[5] = codec
	binary.BigEndian.PutUint32(header[6:10], uint32(len(raw)))      //nolint:gosec // bounded by maxRawSize on read
	binary.BigEndian.PutUint32(header[10:14], uint32(len(payload))) //nolint:gosec // same bound

	_, err = w.Write(header)
	if err != nil {
		return fmt.Errorf("binary: write header: %w", err)
	}

	_, err = w.Write(payload)
	if err != nil {
		return fmt.Errorf("binary: write payload: %w", err)
	}

	return nil
}

// DecodeBinary reads a binary envelope written by EncodeBinary.
func DecodeBinary(r io.Reader) (*Document, error) {
	header := make([]byte, headerSize)

	_, err := io.ReadFull(r, header)
	if err != nil {
		return nil, fmt.Errorf("%w: header: %w", ErrCorrupt, err)
	}

	if !bytes.Equal(header[:4], binaryMagic[:]) {
		return nil, ErrBadMagic
	}

	if header[4] != binaryVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header[4])
	}

	rawLen := binary.BigEndian.Uint32(header[6:10])
	payloadLen := binary.BigEndian.Uint32(header[10:14])

	if rawLen > maxRawSize || payloadLen > maxRawSize {
		return nil, fmt.Errorf("%w: length %d exceeds limit", ErrCorrupt, max(rawLen, payloadLen))
	}

	payload := make([]byte, payloadLen)

	_, err = io.ReadFull(r, payload)
	if err != nil {
		return nil, fmt.Errorf("%w: payload: %w", ErrCorrupt, err)
	}

	raw, err := unpack(header[5], payload, int(rawLen))
	if err != nil {
		return nil, err
	}

	var doc Document

	err = json.Unmarshal(raw, &doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}

	return &doc, nil
}

func unpack(codec byte, payload []byte, rawLen int) ([]byte, error) {
	switch codec {
	case codecRaw:
		if len(payload) != rawLen {
			return nil, fmt.Errorf("%w: raw length mismatch", ErrCorrupt)
		}

		return payload, nil
	case codecLZ4:
		raw := make([]byte, rawLen)

		n, err := lz4.UncompressBlock(payload, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: decompress: %w", ErrCorrupt, err)
		}

		if n != rawLen {
			return nil, fmt.Errorf("%w: decompressed %d of %d bytes", ErrCorrupt, n, rawLen)
		}

		return raw, nil
	default:
		return nil, fmt.Errorf("%w: codec %d", ErrCorrupt, codec)
	}
}
