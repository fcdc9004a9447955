package codec

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/heysubinoy/rollbook/pkg/roster"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func sampleRecords() []roster.Record {
	return []roster.Record{
		roster.NewRecord("Alice", 1, "A"),
		roster.NewRecord("Bob", 2, "B"),
		roster.NewRecord("Zoë Ng", -7, "A+"),
	}
}

func TestRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, sampleRecords()))

	got, err := Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)
}

func TestRoundTripEmpty(t *testing.T) {
	got, err := Unmarshal(Marshal(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NotNil(t, got)
}

func TestRoundTripPreservesDuplicatesAndOrder(t *testing.T) {
	in := []roster.Record{
		roster.NewRecord("Alice", 1, "A"),
		roster.NewRecord("Alice2", 1, "C"),
		roster.NewRecord("Carl", 0, "F"),
	}
	got, err := Unmarshal(Marshal(in))
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestUnmarshalRejectsMissingHeader(t *testing.T) {
	_, err := Unmarshal([]byte("not a roster"))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestUnmarshalRejectsTruncated(t *testing.T) {
	data := Marshal(sampleRecords())
	_, err := Unmarshal(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestUnmarshalRejectsChecksumMismatch(t *testing.T) {
	data := Marshal(sampleRecords())
	data[len(magic)+5] ^= 0xff
	_, err := Unmarshal(data)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Contains(t, err.Error(), "checksum")
}

func TestUnmarshalRejectsNewerVersion(t *testing.T) {
	data := append([]byte{}, magic...)
	data = protowire.AppendVarint(data, Version+1)
	data = protowire.AppendVarint(data, 0)
	data = binary.BigEndian.AppendUint32(data, crc32.ChecksumIEEE(nil))

	_, err := Unmarshal(data)
	assert.ErrorIs(t, err, ErrUnsupportedVersion)
}

func TestUnmarshalSkipsUnknownFields(t *testing.T) {
	var rec []byte
	rec = protowire.AppendTag(rec, fieldName, protowire.BytesType)
	rec = protowire.AppendString(rec, "Dana")
	rec = protowire.AppendTag(rec, 9, protowire.VarintType)
	rec = protowire.AppendVarint(rec, 42)
	rec = protowire.AppendTag(rec, fieldRollNumber, protowire.VarintType)
	rec = protowire.AppendVarint(rec, protowire.EncodeZigZag(12))
	rec = protowire.AppendTag(rec, fieldGrade, protowire.BytesType)
	rec = protowire.AppendString(rec, "B")

	var body []byte
	body = protowire.AppendTag(body, 5, protowire.BytesType)
	body = protowire.AppendString(body, "section notes")
	body = protowire.AppendTag(body, fieldRecord, protowire.BytesType)
	body = protowire.AppendBytes(body, rec)

	data := append([]byte{}, magic...)
	data = protowire.AppendVarint(data, Version)
	data = protowire.AppendVarint(data, uint64(len(body)))
	data = append(data, body...)
	data = binary.BigEndian.AppendUint32(data, crc32.ChecksumIEEE(body))

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, []roster.Record{roster.NewRecord("Dana", 12, "B")}, got)
}

// container wraps raw record messages in a valid header and checksum.
func container(records ...[]byte) []byte {
	var body []byte
	for _, rec := range records {
		body = protowire.AppendTag(body, fieldRecord, protowire.BytesType)
		body = protowire.AppendBytes(body, rec)
	}
	data := append([]byte{}, magic...)
	data = protowire.AppendVarint(data, Version)
	data = protowire.AppendVarint(data, uint64(len(body)))
	data = append(data, body...)
	return binary.BigEndian.AppendUint32(data, crc32.ChecksumIEEE(body))
}

func recordMessage(name *string, roll *int64, grade *string) []byte {
	var b []byte
	if name != nil {
		b = protowire.AppendTag(b, fieldName, protowire.BytesType)
		b = protowire.AppendString(b, *name)
	}
	if roll != nil {
		b = protowire.AppendTag(b, fieldRollNumber, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(*roll))
	}
	if grade != nil {
		b = protowire.AppendTag(b, fieldGrade, protowire.BytesType)
		b = protowire.AppendString(b, *grade)
	}
	return b
}

func TestUnmarshalRejectsMalformedRecords(t *testing.T) {
	name, grade, empty, badUTF8 := "Alice", "A", "", "\xff\xfe"
	roll := int64(1)

	tests := map[string][]byte{
		"missing name":       recordMessage(nil, &roll, &grade),
		"missing roll":       recordMessage(&name, nil, &grade),
		"missing grade":      recordMessage(&name, &roll, nil),
		"empty name":         recordMessage(&empty, &roll, &grade),
		"empty grade":        recordMessage(&name, &roll, &empty),
		"invalid utf8 name":  recordMessage(&badUTF8, &roll, &grade),
		"invalid utf8 grade": recordMessage(&name, &roll, &badUTF8),
		"empty message":      {},
	}
	for desc, rec := range tests {
		t.Run(desc, func(t *testing.T) {
			_, err := Unmarshal(container(recordMessage(&name, &roll, &grade), rec))
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}
}

func TestUnmarshalRejectsEmptyRecordFromMarshal(t *testing.T) {
	_, err := Unmarshal(Marshal([]roster.Record{roster.NewRecord("", 0, "")}))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestUnmarshalAcceptsZeroRollNumber(t *testing.T) {
	got, err := Unmarshal(Marshal([]roster.Record{roster.NewRecord("Zed", 0, "C")}))
	require.NoError(t, err)
	assert.Equal(t, []roster.Record{roster.NewRecord("Zed", 0, "C")}, got)
}
