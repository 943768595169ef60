package vtile

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/require"
)

type identity struct{}

func (identity) Forward(x, y, z float64) (float64, float64, float64, error) {
	return x, y, z, nil
}

//unit z0瓦片中一个瓦片坐标单位对应的米数
var unit = 2 * MaxExtent / DefaultExtent

func buildLayer(name string, geoms []orb.Geometry, props ...[]Property) *Layer {
	b := NewLayerBuilder(name, DefaultExtent)
	for i, g := range geoms {
		var p []Property
		if i < len(props) {
			p = props[i]
		}
		b.AddGeometry(uint64(i+1), true, g, p)
	}
	return b.Layer()
}

func tileFrom(t *testing.T, z, x, y uint32, layers ...*Layer) *Tile {
	t.Helper()
	tile, err := NewTile(z, x, y, 0, 0)
	require.NoError(t, err)
	if len(layers) > 0 {
		require.NoError(t, tile.SetData(Encode(&Store{Layers: layers})))
	}
	return tile
}
