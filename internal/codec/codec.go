// Package codec encodes an ordered sequence of roster records as a single
// versioned blob.
//
// Layout:
//
//	magic     8 bytes  "ROLLBOOK"
//	version   uvarint  currently 1
//	length    uvarint  size of body in bytes
//	body      protobuf wire message, field 1 repeated Record
//	checksum  4 bytes  big-endian CRC-32 (IEEE) of body
//
// A Record message carries field 1 name (bytes), field 2 roll number
// (zig-zag varint) and field 3 grade (bytes). Unknown fields are skipped so
// later versions can add fields without breaking older readers. All three
// record fields are required; name and grade must be non-empty UTF-8.
package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"math"
	"unicode/utf8"

	"github.com/heysubinoy/rollbook/pkg/roster"
	"google.golang.org/protobuf/encoding/protowire"
)

// Version is the container version written by Marshal.
const Version = 1

const (
	fieldRecord protowire.Number = 1

	fieldName       protowire.Number = 1
	fieldRollNumber protowire.Number = 2
	fieldGrade      protowire.Number = 3
)

var magic = []byte("ROLLBOOK")

var (
	// ErrCorrupt is wrapped by every decode failure caused by malformed input.
	ErrCorrupt = errors.New("corrupt record container")

	// ErrUnsupportedVersion is returned for containers written by a newer format.
	ErrUnsupportedVersion = errors.New("unsupported container version")
)

// Marshal returns the container bytes for records.
func Marshal(records []roster.Record) []byte {
	var body []byte
	for _, r := range records {
		body = protowire.AppendTag(body, fieldRecord, protowire.BytesType)
		body = protowire.AppendBytes(body, marshalRecord(r))
	}

	out := make([]byte, 0, len(magic)+2*binary.MaxVarintLen64+len(body)+4)
	out = append(out, magic...)
	out = protowire.AppendVarint(out, Version)
	out = protowire.AppendVarint(out, uint64(len(body)))
	out = append(out, body...)
	out = binary.BigEndian.AppendUint32(out, crc32.ChecksumIEEE(body))
	return out
}

// Encode writes the container for records to w.
func Encode(w io.Writer, records []roster.Record) error {
	_, err := w.Write(Marshal(records))
	return err
}

// Decode reads one whole container from r.
func Decode(r io.Reader) ([]roster.Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Unmarshal parses container bytes produced by Marshal.
func Unmarshal(data []byte) ([]roster.Record, error) {
	if !bytes.HasPrefix(data, magic) {
		return nil, fmt.Errorf("%w: missing header", ErrCorrupt)
	}
	data = data[len(magic):]

	version, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, fmt.Errorf("%w: version: %v", ErrCorrupt, protowire.ParseError(n))
	}
	data = data[n:]
	if version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)
	}

	length, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, fmt.Errorf("%w: length: %v", ErrCorrupt, protowire.ParseError(n))
	}
	data = data[n:]
	if length > uint64(len(data)) || uint64(len(data))-length != 4 {
		return nil, fmt.Errorf("%w: header says %d body bytes, have %d", ErrCorrupt, length, len(data))
	}

	body, sum := data[:length], data[length:]
	if crc32.ChecksumIEEE(body) != binary.BigEndian.Uint32(sum) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorrupt)
	}

	records := []roster.Record{}
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		body = body[n:]

		if num == fieldRecord && typ == protowire.BytesType {
			msg, n := protowire.ConsumeBytes(body)
			if n < 0 {
				return nil, fmt.Errorf("%w: record %d: %v", ErrCorrupt, len(records), protowire.ParseError(n))
			}
			rec, err := unmarshalRecord(msg)
			if err != nil {
				return nil, fmt.Errorf("record %d: %w", len(records), err)
			}
			records = append(records, rec)
			body = body[n:]
			continue
		}

		n = protowire.ConsumeFieldValue(num, typ, body)
		if n < 0 {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		body = body[n:]
	}
	return records, nil
}

func marshalRecord(r roster.Record) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldName, protowire.BytesType)
	b = protowire.AppendString(b, r.Name())
	b = protowire.AppendTag(b, fieldRollNumber, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(r.RollNumber())))
	b = protowire.AppendTag(b, fieldGrade, protowire.BytesType)
	b = protowire.AppendString(b, r.Grade())
	return b
}

func unmarshalRecord(b []byte) (roster.Record, error) {
	var (
		name, grade                   string
		roll                          int64
		seenName, seenRoll, seenGrade bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return roster.Record{}, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldName && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return roster.Record{}, fmt.Errorf("%w: name: %v", ErrCorrupt, protowire.ParseError(n))
			}
			name, b, seenName = v, b[n:], true
		case num == fieldRollNumber && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return roster.Record{}, fmt.Errorf("%w: roll number: %v", ErrCorrupt, protowire.ParseError(n))
			}
			roll, b, seenRoll = protowire.DecodeZigZag(v), b[n:], true
		case num == fieldGrade && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return roster.Record{}, fmt.Errorf("%w: grade: %v", ErrCorrupt, protowire.ParseError(n))
			}
			grade, b, seenGrade = v, b[n:], true
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return roster.Record{}, fmt.Errorf("%w: %v", ErrCorrupt, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}

	switch {
	case !seenName || !seenRoll || !seenGrade:
		return roster.Record{}, fmt.Errorf("%w: record is missing a field", ErrCorrupt)
	case name == "" || grade == "":
		return roster.Record{}, fmt.Errorf("%w: empty name or grade", ErrCorrupt)
	case !utf8.ValidString(name) || !utf8.ValidString(grade):
		return roster.Record{}, fmt.Errorf("%w: name or grade is not valid UTF-8", ErrCorrupt)
	}
	if roll < math.MinInt || roll > math.MaxInt {
		return roster.Record{}, fmt.Errorf("%w: roll number %d out of range", ErrCorrupt, roll)
	}
	return roster.NewRecord(name, int(roll), grade), nil
}
