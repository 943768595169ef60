package vtile

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Fast-VTiler/pbf"
)

func sampleStore() *Store {
	return &Store{Layers: []*Layer{
		{
			Name:    "roads",
			Version: 2,
			Extent:  4096,
			Features: []*Feature{
				{ID: 7, HasID: true, Type: GeomLineString, Geometry: []uint32{9, 0, 0, 10, 20, 0}, Tags: []uint32{0, 0, 1, 1}},
				{Type: GeomPoint, Geometry: []uint32{9, 50, 34}},
			},
			Keys:   []string{"name", "lanes"},
			Values: []Value{StringValue("Main St"), UintValue(2)},
		},
		{
			Name:     "image",
			Version:  1,
			Extent:   256,
			Features: []*Feature{{Raster: []byte{0x89, 'P', 'N', 'G'}}},
		},
		{
			Name:    "values",
			Version: 2,
			Extent:  4096,
			Keys:    []string{"a"},
			Values: []Value{
				FloatValue(1.5), DoubleValue(-2.25), IntValue(-3),
				SintValue(-4), BoolValue(true), StringValue(""),
			},
		},
	}}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	s := sampleStore()
	data := Encode(s)
	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, s, got)
	assert.Equal(t, data, Encode(got))
}

func TestDecodeUnpackedAndUnknownFields(t *testing.T) {
	fw := pbf.NewWriter(32)
	fw.Varint(featureTags, 0)
	fw.Varint(featureTags, 0)
	fw.Varint(featureType, uint64(GeomPoint))
	fw.Varint(featureGeometry, 9)
	fw.Varint(featureGeometry, 2)
	fw.Varint(featureGeometry, 4)
	fw.String(99, "ignored")

	vw := pbf.NewWriter(8)
	vw.String(valueString, "x")

	lw := pbf.NewWriter(64)
	lw.String(layerName, "pts")
	lw.Message(layerFeatures, fw)
	lw.String(layerKeys, "k")
	lw.Message(layerValues, vw)
	lw.Fixed32(42, 1)

	tw := pbf.NewWriter(64)
	tw.Message(tileLayers, lw)
	tw.Varint(7, 1)

	s, err := Decode(tw.Bytes())
	require.NoError(t, err)
	require.Len(t, s.Layers, 1)
	l := s.Layers[0]
	assert.Equal(t, "pts", l.Name)
	assert.EqualValues(t, 1, l.Version)
	assert.EqualValues(t, DefaultExtent, l.Extent)
	require.Len(t, l.Features, 1)
	assert.Equal(t, []uint32{0, 0}, l.Features[0].Tags)
	assert.Equal(t, []uint32{9, 2, 4}, l.Features[0].Geometry)
	assert.Equal(t, []Property{{Key: "k", Value: StringValue("x")}}, l.Properties(l.Features[0]))
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated varint", []byte{0xff}},
		{"short layer", []byte{0x1a, 0x05, 0x0a}},
		{"bad layer body", []byte{0x1a, 0x02, 0x0a, 0x05}},
		{"wrong wire type", []byte{0x18, 0x01}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.data)
			var de *DecodeError
			require.Error(t, err)
			assert.True(t, errors.As(err, &de))
		})
	}
}

func TestPropertiesSkipOutOfRange(t *testing.T) {
	l := &Layer{
		Name:   "l",
		Keys:   []string{"name"},
		Values: []Value{StringValue("Main St")},
	}
	f := &Feature{Tags: []uint32{0, 0, 3, 0, 0, 9, 0}}
	assert.Equal(t, []Property{{Key: "name", Value: StringValue("Main St")}}, l.Properties(f))
}

func TestValueAppendJSON(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{StringValue(`a"b`), `"a\"b"`},
		{FloatValue(2), `2.0`},
		{FloatValue(2.5), `2.5`},
		{DoubleValue(1), `1.0`},
		{DoubleValue(1e21), `1e+21`},
		{IntValue(-5), `-5`},
		{UintValue(5), `5`},
		{SintValue(-6), `-6`},
		{BoolValue(false), `false`},
	}
	for _, tt := range tests {
		t.Run(tt.v.Type.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, string(tt.v.AppendJSON(nil)))
		})
	}
}

func TestValueOf(t *testing.T) {
	v, ok := ValueOf(3.0)
	require.True(t, ok)
	assert.Equal(t, UintValue(3), v)
	v, _ = ValueOf(-3.0)
	assert.Equal(t, SintValue(-3), v)
	v, _ = ValueOf(3.25)
	assert.Equal(t, DoubleValue(3.25), v)
	v, _ = ValueOf("s")
	assert.Equal(t, StringValue("s"), v)
	_, ok = ValueOf([]int{1})
	assert.False(t, ok)
}

func TestEmptyRasterRoundTrip(t *testing.T) {
	s := &Store{Layers: []*Layer{{
		Name:     "image",
		Version:  1,
		Extent:   4096,
		Features: []*Feature{{Raster: []byte{}}, {Type: GeomPoint, Geometry: []uint32{9, 2, 2}}},
	}}}
	got, err := Decode(Encode(s))
	require.NoError(t, err)
	require.Len(t, got.Layers[0].Features, 2)
	assert.NotNil(t, got.Layers[0].Features[0].Raster)
	assert.Empty(t, got.Layers[0].Features[0].Raster)
	assert.Nil(t, got.Layers[0].Features[1].Raster)
	assert.Equal(t, s, got)
}
