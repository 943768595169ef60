package task

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const threeSixty float64 = 360.0
const oneEighty float64 = 180.0
const webMercatorLatLimit float64 = 85.05112877980659

//LngLatBbox 经纬度范围,West大于East时跨越180度经线
type LngLatBbox struct {
	West  float64 `json:"west" mapstructure:"west"`
	East  float64 `json:"east" mapstructure:"east"`
	North float64 `json:"north" mapstructure:"north"`
	South float64 `json:"south" mapstructure:"south"`
}

//World 全球范围
var World = LngLatBbox{West: -180, East: 180, North: webMercatorLatLimit, South: -webMercatorLatLimit}

//Bound 转为orb范围,跨180度经线时按东西两侧合并
func (b LngLatBbox) Bound() orb.Bound {
	if b.West > b.East {
		return orb.Bound{Min: orb.Point{-180, b.South}, Max: orb.Point{180, b.North}}
	}
	return orb.Bound{Min: orb.Point{b.West, b.South}, Max: orb.Point{b.East, b.North}}
}

// Intersects returns true if this bounding box intersects with the other bounding box.
func (b *LngLatBbox) Intersects(o *LngLatBbox) bool {
	latOverlaps := (o.North > b.South) && (o.South < b.North)
	lngOverlaps := (o.East > b.West) && (o.West < b.East)
	return latOverlaps && lngOverlaps
}

func (b *LngLatBbox) split() []*LngLatBbox {
	if b.West > b.East {
		return []*LngLatBbox{
			{West: -180.0, South: b.South, East: b.East, North: b.North},
			{West: b.West, South: b.South, East: 180.0, North: b.North},
		}
	}
	return []*LngLatBbox{b}
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / oneEighty)
}

// GetTile returns the column and row containing a longitude latitude at the zoom level
func GetTile(lng float64, lat float64, zoom int) (int, int) {
	latRad := deg2rad(lat)
	n := math.Pow(2.0, float64(zoom))
	x := int(math.Floor((lng + oneEighty) / threeSixty * n))
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+(1.0/math.Cos(latRad)))/math.Pi) / 2.0 * n))
	return x, y
}

//tileRange 闭区间的列号与行号范围,空范围时ok为false
func tileRange(box *LngLatBbox, zoom int) (minX, minY, maxX, maxY int, ok bool) {
	clamped := &LngLatBbox{
		West:  math.Max(-180.0, box.West),
		South: math.Max(-webMercatorLatLimit, box.South),
		East:  math.Min(180.0, box.East),
		North: math.Min(webMercatorLatLimit, box.North),
	}
	if clamped.West > clamped.East || clamped.South > clamped.North {
		return 0, 0, 0, 0, false
	}
	last := 1<<zoom - 1
	llx, lly := GetTile(clamped.West, clamped.South, zoom)
	urx, ury := GetTile(clamped.East, clamped.North, zoom)
	minX, maxX = max(llx, 0), min(urx, last)
	minY, maxY = max(ury, 0), min(lly, last)
	return minX, minY, maxX, maxY, minX <= maxX && minY <= maxY
}

//GetTileCount 范围内的瓦片数
func GetTileCount(bounds *LngLatBbox, zoom int) int {
	var count int
	for _, box := range bounds.split() {
		minX, minY, maxX, maxY, ok := tileRange(box, zoom)
		if !ok {
			continue
		}
		count += (maxX - minX + 1) * (maxY - minY + 1)
	}
	return count
}

//GenerateTilesOptions 瓦片枚举参数
type GenerateTilesOptions struct {
	Bounds   *LngLatBbox
	Zoom     int
	Consumer chan<- maptile.Tile
	Stop     <-chan struct{}
}

//GenerateTiles 按列优先顺序输出范围内的瓦片,结束或Stop关闭时关闭Consumer
func GenerateTiles(opts *GenerateTilesOptions) {
	defer close(opts.Consumer)
	z := maptile.Zoom(opts.Zoom)
	for _, box := range opts.Bounds.split() {
		minX, minY, maxX, maxY, ok := tileRange(box, opts.Zoom)
		if !ok {
			continue
		}
		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				select {
				case <-opts.Stop:
					return
				default:
				}
				select {
				case opts.Consumer <- maptile.New(uint32(x), uint32(y), z):
				case <-opts.Stop:
					return
				}
			}
		}
	}
}

//Ancestor 返回zoom层级的祖先瓦片,zoom不小于t.Z时返回t
func Ancestor(t maptile.Tile, zoom maptile.Zoom) maptile.Tile {
	if zoom >= t.Z {
		return t
	}
	d := uint32(t.Z - zoom)
	return maptile.New(t.X>>d, t.Y>>d, zoom)
}

//Parent 上一级瓦片,0级返回自身
func Parent(t maptile.Tile) maptile.Tile {
	if t.Z == 0 {
		return t
	}
	return Ancestor(t, t.Z-1)
}

//Children 下一级的四个瓦片
func Children(t maptile.Tile) []maptile.Tile {
	z := t.Z + 1
	return []maptile.Tile{
		maptile.New(t.X*2, t.Y*2, z),
		maptile.New(t.X*2+1, t.Y*2, z),
		maptile.New(t.X*2+1, t.Y*2+1, z),
		maptile.New(t.X*2, t.Y*2+1, z),
	}
}

// ToString returns a string representation of the tile.
func ToString(t maptile.Tile) string {
	return fmt.Sprintf("{%d/%d/%d}", t.Z, t.X, t.Y)
}
