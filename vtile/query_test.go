package vtile

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	tests := []struct {
		name string
		g    orb.Geometry
		pt   orb.Point
		want float64
	}{
		{"segment", orb.LineString{{0, 0}, {10, 0}}, orb.Point{5, 5}, 5},
		{"segment end", orb.LineString{{0, 0}, {10, 0}}, orb.Point{13, 4}, 5},
		{"multiline", orb.MultiLineString{{{0, 0}, {10, 0}}, {{0, 4}, {10, 4}}}, orb.Point{5, 5}, 1},
		{"nearest vertex", orb.MultiPoint{{0, 0}, {3, 4}}, orb.Point{6, 8}, 5},
		{"point", orb.Point{3, 4}, orb.Point{0, 0}, 5},
		{"inside polygon", square, orb.Point{5, 5}, 0},
		{"outside polygon", square, orb.Point{15, 5}, -1},
		{"inside hole", orb.Polygon{square[0], {{2, 2}, {2, 8}, {8, 8}, {8, 2}, {2, 2}}}, orb.Point{5, 5}, -1},
		{"second polygon", orb.MultiPolygon{square, {{{20, 0}, {30, 0}, {30, 10}, {20, 0}}}}, orb.Point{28, 2}, 0},
		{"empty line", orb.LineString{}, orb.Point{0, 0}, -1},
		{"empty polygon", orb.Polygon{}, orb.Point{0, 0}, -1},
		{"nil", nil, orb.Point{0, 0}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.g, tt.pt), 1e-9)
		})
	}
}

func TestPolygonVertexConsistent(t *testing.T) {
	square := orb.Polygon{{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}}
	first := Distance(square, orb.Point{10, 10})
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Distance(square, orb.Point{10, 10}))
	}
}

func TestQueryLineScenario(t *testing.T) {
	roads := buildLayer("roads", []orb.Geometry{orb.LineString{{2048, 2048}, {2058, 2048}}})
	tile := tileFrom(t, 0, 0, 0, roads)
	q := NewQuerier(identity{})

	res, err := q.Query(tile, 5*unit, 5*unit, QueryOptions{Tolerance: 10 * unit})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "roads", res[0].Layer)
	assert.InDelta(t, 5*unit, res[0].Distance, 1e-6)
	assert.EqualValues(t, 1, res[0].Feature.ID)
	assert.Equal(t, GeomLineString, res[0].Feature.Type)
}

func TestQuerySortedAndFiltered(t *testing.T) {
	square := orb.Polygon{{{1000, 1000}, {3000, 1000}, {3000, 3000}, {1000, 3000}, {1000, 1000}}}
	tile := tileFrom(t, 0, 0, 0,
		buildLayer("lines", []orb.Geometry{
			orb.LineString{{2048, 2148}, {2148, 2148}},
			orb.LineString{{2048, 2058}, {2148, 2058}},
		}),
		buildLayer("areas", []orb.Geometry{square}),
		buildLayer("points", []orb.Geometry{orb.Point{2050, 2048}, orb.Point{2048, 2048}}),
	)
	q := NewQuerier(identity{})

	res, err := q.Query(tile, 0, 0, QueryOptions{Tolerance: 200 * unit})
	require.NoError(t, err)
	require.Len(t, res, 5)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
	}
	for _, r := range res {
		assert.GreaterOrEqual(t, r.Distance, 0.0)
	}
	// equal distances keep layer order
	assert.Equal(t, "areas", res[0].Layer)
	assert.Equal(t, "points", res[1].Layer)
	assert.EqualValues(t, 2, res[1].Feature.ID)

	res, err = q.Query(tile, 0, 0, QueryOptions{Tolerance: 200 * unit, Layer: "lines"})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.EqualValues(t, 2, res[0].Feature.ID)

	res, err = q.Query(tile, 0, 0, QueryOptions{Tolerance: 200 * unit, Layer: "missing"})
	require.NoError(t, err)
	assert.Empty(t, res)

	res, err = q.Query(tile, 3500*unit-MaxExtent, 0, QueryOptions{Tolerance: 1000 * unit, Layer: "areas"})
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestQueryProjectionError(t *testing.T) {
	tile := tileFrom(t, 0, 0, 0, buildLayer("pts", []orb.Geometry{orb.Point{1, 1}}))
	_, err := NewQuerier(nil).Query(tile, 200, 0, QueryOptions{Tolerance: 10})
	var pe *ProjectionError
	require.True(t, errors.As(err, &pe))
	assert.Contains(t, pe.Error(), "could not reproject")
}

func TestQueryMany(t *testing.T) {
	tile := tileFrom(t, 0, 0, 0,
		buildLayer("lines", []orb.Geometry{
			orb.LineString{{1000, 1000}, {1000, 1010}},
			orb.LineString{{2048, 2050}, {2148, 2050}},
			orb.LineString{{2048, 2049}, {2148, 2049}},
		}, []Property{{Key: "name", Value: StringValue("far")}},
			[]Property{{Key: "name", Value: StringValue("two")}, {Key: "lanes", Value: UintValue(2)}},
			[]Property{{Key: "name", Value: StringValue("one")}}),
	)
	q := NewQuerier(identity{})
	points := []orb.Point{{0, 0}, {100 * unit, 0}, {-1500 * unit, -1500 * unit}}

	res, err := q.QueryMany(tile, points, QueryManyOptions{Tolerance: 10 * unit, Layer: "lines"})
	require.NoError(t, err)

	require.Len(t, res.Features, 2)
	ids := map[int]bool{}
	for p, hits := range res.Hits {
		assert.True(t, p >= 0 && p < len(points))
		for i := 1; i < len(hits); i++ {
			assert.LessOrEqual(t, hits[i-1].Distance, hits[i].Distance)
		}
		for _, h := range hits {
			ids[h.FeatureID] = true
		}
	}
	for id := range res.Features {
		assert.True(t, ids[id])
	}
	assert.Len(t, ids, len(res.Features))

	// indices follow first hit order, hits are sorted per point
	v, ok := res.Features[0].Property("name")
	require.True(t, ok)
	assert.Equal(t, "two", v.Str)
	require.Len(t, res.Hits[0], 2)
	assert.Equal(t, 1, res.Hits[0][0].FeatureID)
	assert.Equal(t, 0, res.Hits[0][1].FeatureID)

	res, err = q.QueryMany(tile, points[:1], QueryManyOptions{Tolerance: 10 * unit, Layer: "lines", Fields: []string{"lanes"}})
	require.NoError(t, err)
	for _, f := range res.Features {
		for _, p := range f.Properties {
			assert.Equal(t, "lanes", p.Key)
		}
	}
}

func TestQueryManyPolygonMiss(t *testing.T) {
	square := orb.Polygon{{{1000, 1000}, {3000, 1000}, {3000, 3000}, {1000, 3000}, {1000, 1000}}}
	tile := tileFrom(t, 0, 0, 0, buildLayer("areas", []orb.Geometry{square}))
	points := []orb.Point{{0, 0}, {-1500 * unit, -1500 * unit}}

	res, err := NewQuerier(identity{}).QueryMany(tile, points, QueryManyOptions{Tolerance: unit, Layer: "areas"})
	require.NoError(t, err)
	require.Len(t, res.Features, 1)
	assert.Equal(t, []QueryHit{{FeatureID: 0, Distance: 0}}, res.Hits[0])
	assert.NotContains(t, res.Hits, 1)
}

func TestQueryManyLayerErrors(t *testing.T) {
	tile := tileFrom(t, 0, 0, 0, buildLayer("pts", []orb.Geometry{orb.Point{1, 1}}))
	q := NewQuerier(identity{})
	var lnf *LayerNotFoundError

	_, err := q.QueryMany(tile, []orb.Point{{0, 0}}, QueryManyOptions{Tolerance: 1})
	require.True(t, errors.As(err, &lnf))

	_, err = q.QueryMany(tile, []orb.Point{{0, 0}}, QueryManyOptions{Tolerance: 1, Layer: "nope"})
	require.True(t, errors.As(err, &lnf))
	assert.Equal(t, "nope", lnf.Name)
}
