package task

import (
	"testing"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
)

func collect(b LngLatBbox, zoom int) []maptile.Tile {
	ch := make(chan maptile.Tile)
	go GenerateTiles(&GenerateTilesOptions{Bounds: &b, Zoom: zoom, Consumer: ch})
	var out []maptile.Tile
	for t := range ch {
		out = append(out, t)
	}
	return out
}

func TestGetTile(t *testing.T) {
	x, y := GetTile(0, 0, 1)
	assert.Equal(t, 1, x)
	assert.Equal(t, 1, y)
	x, y = GetTile(-180, 85, 2)
	assert.Equal(t, 0, x)
	assert.Equal(t, 0, y)
}

func TestGenerateTiles(t *testing.T) {
	cases := []struct {
		name  string
		box   LngLatBbox
		zoom  int
		count int
	}{
		{"world z0", World, 0, 1},
		{"world z2", World, 2, 16},
		{"small box", LngLatBbox{West: -10, East: 10, North: 10, South: -10}, 1, 4},
		{"one quadrant", LngLatBbox{West: 10, East: 20, North: 20, South: 10}, 3, 1},
		{"dateline", LngLatBbox{West: 170, East: -170, North: 10, South: -10}, 1, 4},
		{"empty", LngLatBbox{West: 10, East: 20, North: 10, South: 20}, 3, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tiles := collect(c.box, c.zoom)
			assert.Len(t, tiles, c.count)
			assert.Equal(t, c.count, GetTileCount(&c.box, c.zoom))
			for _, tile := range tiles {
				assert.EqualValues(t, c.zoom, tile.Z)
				assert.Less(t, tile.X, uint32(1)<<c.zoom)
				assert.Less(t, tile.Y, uint32(1)<<c.zoom)
			}
		})
	}
}

func TestGenerateTilesColumnOrder(t *testing.T) {
	tiles := collect(World, 1)
	assert.Equal(t, []maptile.Tile{
		maptile.New(0, 0, 1), maptile.New(0, 1, 1),
		maptile.New(1, 0, 1), maptile.New(1, 1, 1),
	}, tiles)
}

func TestGenerateTilesStop(t *testing.T) {
	ch := make(chan maptile.Tile)
	stop := make(chan struct{})
	go GenerateTiles(&GenerateTilesOptions{Bounds: &World, Zoom: 8, Consumer: ch, Stop: stop})
	<-ch
	close(stop)
	n := 0
	for range ch {
		n++
	}
	assert.LessOrEqual(t, n, 1)
}

func TestPyramid(t *testing.T) {
	tile := maptile.New(5, 6, 3)
	assert.Equal(t, maptile.New(2, 3, 2), Parent(tile))
	assert.Equal(t, maptile.New(0, 0, 0), Parent(maptile.New(0, 0, 0)))
	assert.Equal(t, maptile.New(1, 1, 1), Ancestor(tile, 1))
	assert.Equal(t, tile, Ancestor(tile, 5))
	for _, c := range Children(tile) {
		assert.Equal(t, tile, Parent(c))
	}
	assert.Equal(t, "{3/5/6}", ToString(tile))
}

func TestBboxBound(t *testing.T) {
	b := LngLatBbox{West: -10, East: 20, North: 30, South: -40}
	assert.Equal(t, -10.0, b.Bound().Min[0])
	assert.Equal(t, 30.0, b.Bound().Max[1])
	wrap := LngLatBbox{West: 170, East: -170, North: 1, South: -1}
	assert.Equal(t, -180.0, wrap.Bound().Min[0])
	assert.True(t, b.Intersects(&LngLatBbox{West: 0, East: 1, North: 1, South: 0}))
	assert.False(t, b.Intersects(&LngLatBbox{West: 50, East: 60, North: 1, South: 0}))
}
