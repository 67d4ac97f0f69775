// Package domainmessage is the node's data model: blocks, transfer and
// page transactions, their signed envelopes, and the binary codec used
// both on disk and on the wire. Fixed-width fields are little-endian
// and written directly against io.Reader/io.Writer; repeated fields are
// varint-prefixed.
package domainmessage

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/pkg/errors"

	"github.com/dagchain/pagechain/crypto"
)

// MaxBlockPayload is the serialized-size ceiling for a block: 16 MiB.
const MaxBlockPayload = 16 * 1024 * 1024

var byteOrder = binary.LittleEndian

// ReadVarInt reads a variable-length integer, rejecting any encoding
// that isn't the canonical shortest form for its value.
func ReadVarInt(r io.Reader) (uint64, error) {
	var prefix [1]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return 0, err
	}

	switch prefix[0] {
	case 0xff:
		var b [8]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		v := byteOrder.Uint64(b[:])
		if v < 1<<32 {
			return 0, errors.Errorf("non-canonical varint encoding for value %d", v)
		}
		return v, nil
	case 0xfe:
		var b [4]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		v := uint64(byteOrder.Uint32(b[:]))
		if v < 1<<16 {
			return 0, errors.Errorf("non-canonical varint encoding for value %d", v)
		}
		return v, nil
	case 0xfd:
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		v := uint64(byteOrder.Uint16(b[:]))
		if v < 0xfd {
			return 0, errors.Errorf("non-canonical varint encoding for value %d", v)
		}
		return v, nil
	default:
		return uint64(prefix[0]), nil
	}
}

// WriteVarInt writes a variable-length integer using the fewest bytes
// that canonically represent it.
func WriteVarInt(w io.Writer, val uint64) error {
	switch {
	case val < 0xfd:
		_, err := w.Write([]byte{byte(val)})
		return err
	case val <= math.MaxUint16:
		if _, err := w.Write([]byte{0xfd}); err != nil {
			return err
		}
		var b [2]byte
		byteOrder.PutUint16(b[:], uint16(val))
		_, err := w.Write(b[:])
		return err
	case val <= math.MaxUint32:
		if _, err := w.Write([]byte{0xfe}); err != nil {
			return err
		}
		var b [4]byte
		byteOrder.PutUint32(b[:], uint32(val))
		_, err := w.Write(b[:])
		return err
	default:
		if _, err := w.Write([]byte{0xff}); err != nil {
			return err
		}
		var b [8]byte
		byteOrder.PutUint64(b[:], val)
		_, err := w.Write(b[:])
		return err
	}
}

// ReadVarBytes reads a varint-length-prefixed byte slice, rejecting
// anything beyond maxAllowed to bound memory use on malformed input.
func ReadVarBytes(r io.Reader, maxAllowed uint64, fieldName string) ([]byte, error) {
	count, err := ReadVarInt(r)
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s length", fieldName)
	}
	if count > maxAllowed {
		return nil, errors.Errorf("%s length %d exceeds max allowed %d", fieldName, count, maxAllowed)
	}
	buf := make([]byte, count)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrapf(err, "reading %s bytes", fieldName)
	}
	return buf, nil
}

// WriteVarBytes writes a varint-length-prefixed byte slice.
func WriteVarBytes(w io.Writer, b []byte) error {
	if err := WriteVarInt(w, uint64(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func writeUint32(w io.Writer, v uint32) error {
	var b [4]byte
	byteOrder.PutUint32(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint32(r io.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint32(b[:]), nil
}

func writeUint64(w io.Writer, v uint64) error {
	var b [8]byte
	byteOrder.PutUint64(b[:], v)
	_, err := w.Write(b[:])
	return err
}

func readUint64(r io.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return byteOrder.Uint64(b[:]), nil
}

// writeUint128 writes a 128-bit unsigned value (used for the
// millisecond timestamp) as two little-endian uint64 halves, low half
// first.
func writeUint128(w io.Writer, v [2]uint64) error {
	if err := writeUint64(w, v[0]); err != nil {
		return err
	}
	return writeUint64(w, v[1])
}

func readUint128(r io.Reader) ([2]uint64, error) {
	var v [2]uint64
	lo, err := readUint64(r)
	if err != nil {
		return v, err
	}
	hi, err := readUint64(r)
	if err != nil {
		return v, err
	}
	v[0], v[1] = lo, hi
	return v, nil
}

func writeHash(w io.Writer, h crypto.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader) (crypto.Hash, error) {
	var h crypto.Hash
	_, err := io.ReadFull(r, h[:])
	return h, err
}

func writeFixed(w io.Writer, b []byte) error {
	_, err := w.Write(b)
	return err
}

func readFixed(r io.Reader, n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := io.ReadFull(r, b)
	return b, err
}

// ensurePayloadLimit checks a serialized size against MaxBlockPayload,
// returning a descriptive error if it is exceeded.
func ensurePayloadLimit(size int) error {
	if size > MaxBlockPayload {
		return fmt.Errorf("serialized size %d exceeds max block payload %d", size, MaxBlockPayload)
	}
	return nil
}
