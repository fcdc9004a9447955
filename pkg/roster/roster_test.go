package roster

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordAccessors(t *testing.T) {
	r := NewRecord("Alice", 1, "A")
	assert.Equal(t, "Alice", r.Name())
	assert.Equal(t, 1, r.RollNumber())
	assert.Equal(t, "A", r.Grade())
	assert.Equal(t, "Alice, Roll Number: 1, Grade: A", r.String())
}

func TestRecordStoresFieldsVerbatim(t *testing.T) {
	r := NewRecord("", -3, "  ")
	assert.Equal(t, "", r.Name())
	assert.Equal(t, -3, r.RollNumber())
	assert.Equal(t, "  ", r.Grade())
}

func TestErrorClassification(t *testing.T) {
	ve := &ValidationError{Field: "name", Reason: "cannot be empty"}
	ioe := &IOError{Op: "load", Path: "x.rbk", Err: fs.ErrNotExist}
	de := &DecodeError{Path: "x.rbk", Err: errors.New("bad header")}

	assert.True(t, IsValidation(fmt.Errorf("wrapped: %w", ve)))
	assert.False(t, IsValidation(ioe))

	assert.True(t, IsIO(ioe))
	assert.ErrorIs(t, ioe, fs.ErrNotExist)
	assert.False(t, IsIO(de))

	assert.True(t, IsDecode(de))
	assert.False(t, IsDecode(ErrNotFound))

	assert.Equal(t, "invalid name: cannot be empty", ve.Error())
	assert.Equal(t, "load x.rbk: file does not exist", ioe.Error())
	assert.Equal(t, "decode x.rbk: bad header", de.Error())
}
