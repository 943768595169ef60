package pbf

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestWriterReaderFields(t *testing.T) {
	sub := NewWriter(16)
	sub.String(1, "roads")
	sub.Varint(5, 4096)

	w := NewWriter(64)
	w.Message(3, sub)
	w.Sint(6, -7)
	w.Bool(7, true)
	w.Fixed32(2, 0x3f800000)
	w.Fixed64(3, 42)
	w.PackedUint32(4, []uint32{9, 1, 300})
	w.PackedUint32(8, nil)

	m := NewMessage(w.Bytes())
	require.True(t, m.Next())
	assert.EqualValues(t, 3, m.Tag)
	inner := NewMessage(m.Bytes())
	require.True(t, inner.Next())
	assert.Equal(t, "roads", inner.Text())
	require.True(t, inner.Next())
	assert.EqualValues(t, 4096, inner.Varint())
	assert.False(t, inner.Next())
	require.NoError(t, inner.Err())

	require.True(t, m.Next())
	assert.EqualValues(t, -7, protowire.DecodeZigZag(m.Varint()))
	require.True(t, m.Next())
	assert.EqualValues(t, 1, m.Varint())
	require.True(t, m.Next())
	assert.EqualValues(t, 0x3f800000, m.Fixed32())
	require.True(t, m.Next())
	assert.EqualValues(t, 42, m.Fixed64())
	require.True(t, m.Next())
	assert.Equal(t, []uint32{9, 1, 300}, m.Uint32s(nil))
	assert.False(t, m.Next())
	require.NoError(t, m.Err())
	assert.Equal(t, w.Len(), m.Pos())
}

func TestUint32sUnpacked(t *testing.T) {
	w := NewWriter(16)
	w.Varint(2, 5)
	w.Varint(2, 6)
	m := NewMessage(w.Bytes())
	var got []uint32
	for m.Next() {
		got = m.Uint32s(got)
	}
	require.NoError(t, m.Err())
	assert.Equal(t, []uint32{5, 6}, got)
}

func TestSkipUnknown(t *testing.T) {
	w := NewWriter(16)
	w.String(9, "ignored")
	w.Fixed64(10, 1)
	w.Varint(1, 3)
	m := NewMessage(w.Bytes())
	var v uint64
	for m.Next() {
		if m.Tag == 1 {
			v = m.Varint()
			continue
		}
		m.Skip()
	}
	require.NoError(t, m.Err())
	assert.EqualValues(t, 3, v)
}

func TestMalformed(t *testing.T) {
	//长度超出剩余数据
	m := NewMessage([]byte{0x1a, 0x05, 0x01})
	require.True(t, m.Next())
	assert.Nil(t, m.Bytes())
	assert.False(t, m.Next())
	assert.Error(t, m.Err())

	m = NewMessage([]byte{0x08, 0x01})
	require.True(t, m.Next())
	m.Text()
	assert.Error(t, m.Err())

	w := NewWriter(4)
	w.Varint(1, 1)
	w.Reset()
	assert.Equal(t, 0, w.Len())
}
