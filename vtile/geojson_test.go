package vtile

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func mainStreetTile(t *testing.T) *Tile {
	l := &Layer{
		Name:    "roads",
		Version: 2,
		Extent:  4096,
		Features: []*Feature{{
			ID:       7,
			HasID:    true,
			Type:     GeomLineString,
			Geometry: []uint32{9, 4096, 4096, 10, 20, 0},
			Tags:     []uint32{0, 0},
		}},
		Keys:   []string{"name"},
		Values: []Value{StringValue("Main St")},
	}
	return tileFrom(t, 0, 0, 0, l)
}

func TestToGeoJSONProperties(t *testing.T) {
	tile := mainStreetTile(t)
	out, err := NewSerializer(nil).ToGeoJSON(tile, ByName("roads"))
	require.NoError(t, err)
	require.True(t, gjson.ValidBytes(out))

	doc := gjson.ParseBytes(out)
	assert.Equal(t, "FeatureCollection", doc.Get("type").String())
	assert.Equal(t, "roads", doc.Get("name").String())
	assert.EqualValues(t, 1, doc.Get("features.#").Int())
	f := doc.Get("features.0")
	assert.Equal(t, "Feature", f.Get("type").String())
	assert.EqualValues(t, 7, f.Get("id").Int())
	assert.Equal(t, `{"name":"Main St"}`, f.Get("properties").Raw)
	assert.Equal(t, "LineString", f.Get("geometry.type").String())
	assert.InDelta(t, 0, f.Get("geometry.coordinates.0.0").Float(), 1e-9)
	assert.InDelta(t, 0, f.Get("geometry.coordinates.0.1").Float(), 1e-9)
	assert.Greater(t, f.Get("geometry.coordinates.1.0").Float(), 0.0)
}

func TestToGeoJSONTypedValues(t *testing.T) {
	b := NewLayerBuilder("typed", DefaultExtent)
	b.AddGeometry(0, false, orb.Point{2048, 2048}, []Property{
		{Key: "d", Value: DoubleValue(1)},
		{Key: "f", Value: FloatValue(2.5)},
		{Key: "u", Value: UintValue(3)},
		{Key: "s", Value: SintValue(-4)},
		{Key: "b", Value: BoolValue(true)},
	})
	tile := tileFrom(t, 0, 0, 0, b.Layer())
	out, err := NewSerializer(nil).ToGeoJSON(tile, ByIndex(0))
	require.NoError(t, err)
	doc := gjson.ParseBytes(out)
	assert.Equal(t, `{"d":1.0,"f":2.5,"u":3,"s":-4,"b":true}`, doc.Get("features.0.properties").Raw)
	assert.False(t, doc.Get("features.0.id").Exists())
	assert.Equal(t, "Point", doc.Get("features.0.geometry.type").String())
}

func TestToGeoJSONSelectors(t *testing.T) {
	tile := tileFrom(t, 0, 0, 0,
		buildLayer("a", []orb.Geometry{orb.Point{10, 10}, orb.Point{20, 20}}),
		buildLayer("b", []orb.Geometry{orb.Point{30, 30}}),
	)
	s := NewSerializer(nil)

	out, err := s.ToGeoJSON(tile, ParseSelector(SelectAll))
	require.NoError(t, err)
	doc := gjson.ParseBytes(out)
	assert.False(t, doc.Get("name").Exists())
	assert.EqualValues(t, 3, doc.Get("features.#").Int())

	out, err = s.ToGeoJSON(tile, ParseSelector(SelectArray))
	require.NoError(t, err)
	doc = gjson.ParseBytes(out)
	require.True(t, doc.IsArray())
	assert.Equal(t, []string{"a", "b"}, []string{doc.Get("0.name").String(), doc.Get("1.name").String()})
	assert.EqualValues(t, 2, doc.Get("0.features.#").Int())

	out, err = s.ToGeoJSON(tile, ByIndex(1))
	require.NoError(t, err)
	assert.Equal(t, "b", gjson.GetBytes(out, "name").String())
}

func TestToGeoJSONEmptyArray(t *testing.T) {
	out, err := NewSerializer(nil).ToGeoJSON(MustTile(0, 0, 0), LayerArray())
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))

	out, err = NewSerializer(nil).ToGeoJSON(MustTile(0, 0, 0), AllLayers())
	require.NoError(t, err)
	assert.Equal(t, `{"type":"FeatureCollection","features":[]}`, string(out))
}

func TestToGeoJSONErrors(t *testing.T) {
	tile := mainStreetTile(t)
	s := NewSerializer(nil)

	_, err := s.ToGeoJSON(tile, ByName("water"))
	var lnf *LayerNotFoundError
	require.True(t, errors.As(err, &lnf))
	assert.Contains(t, err.Error(), "'water'")

	_, err = s.ToGeoJSON(tile, ByIndex(3))
	var ioe *IndexOutOfRangeError
	require.True(t, errors.As(err, &ioe))
	assert.Equal(t, 1, ioe.Count)
	assert.Contains(t, err.Error(), "only '1' layers")

	_, err = s.ToGeoJSON(MustTile(0, 0, 0), ByIndex(0))
	require.True(t, errors.As(err, &ioe))
	assert.Contains(t, err.Error(), "no layers")

	_, err = s.ToGeoJSON(tile, ByIndex(-1))
	assert.True(t, errors.As(err, &ioe))
}

type failingProjection struct{}

func (failingProjection) Forward(x, y, z float64) (float64, float64, float64, error) {
	return 0, 0, 0, errors.New("nope")
}

func TestToGeoJSONSerializationError(t *testing.T) {
	_, err := NewSerializer(failingProjection{}).ToGeoJSON(mainStreetTile(t), AllLayers())
	var se *SerializationError
	require.True(t, errors.As(err, &se))
}

func TestToGeoJSONBrokenGeometry(t *testing.T) {
	l := &Layer{
		Name:    "roads",
		Version: 2,
		Extent:  4096,
		Features: []*Feature{{
			ID:       7,
			HasID:    true,
			Type:     GeomLineString,
			Geometry: []uint32{9, 4096, 4096, 18, 20, 0},
			Tags:     []uint32{0, 0},
		}},
		Keys:   []string{"name"},
		Values: []Value{StringValue("Main St")},
	}
	tile := tileFrom(t, 0, 0, 0, l)
	for _, sel := range []LayerSelector{ByName("roads"), AllLayers(), LayerArray()} {
		out, err := NewSerializer(nil).ToGeoJSON(tile, sel)
		var se *SerializationError
		require.True(t, errors.As(err, &se), sel.String())
		assert.Contains(t, err.Error(), "roads")
		assert.Nil(t, out)
	}

	res, err := NewQuerier(identity{}).Query(tile, 0, 0, QueryOptions{Tolerance: MaxExtent})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestToGeoJSONRasterNullGeometry(t *testing.T) {
	tile := MustTile(0, 0, 0)
	require.NoError(t, tile.AddImage([]byte{1, 2, 3}, "img"))
	out, err := NewSerializer(nil).ToGeoJSON(tile, ByName("img"))
	require.NoError(t, err)
	assert.Equal(t, "null", gjson.GetBytes(out, "features.0.geometry").Raw)
}

func TestNumericLayerName(t *testing.T) {
	tile := tileFrom(t, 0, 0, 0,
		buildLayer("a", []orb.Geometry{orb.Point{10, 10}}),
		buildLayer("0", []orb.Geometry{orb.Point{20, 20}, orb.Point{30, 30}}),
	)
	s := NewSerializer(nil)
	out, err := s.ToGeoJSON(tile, ParseSelector("0"))
	require.NoError(t, err)
	assert.Equal(t, "0", gjson.GetBytes(out, "name").String())
	assert.EqualValues(t, 2, gjson.GetBytes(out, "features.#").Int())

	out, err = s.ToGeoJSON(tile, ByIndex(0))
	require.NoError(t, err)
	assert.Equal(t, "a", gjson.GetBytes(out, "name").String())
}

func TestParseSelector(t *testing.T) {
	assert.Equal(t, AllLayers(), ParseSelector("__all__"))
	assert.Equal(t, LayerArray(), ParseSelector("__array__"))
	assert.Equal(t, ByName("2"), ParseSelector("2"))
	assert.Equal(t, ByName("roads"), ParseSelector("roads"))
	assert.Equal(t, "roads", ParseSelector("roads").String())
}
