package vtile

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

const (
	earthRadius = 6378137.0
	//MaxExtent 墨卡托坐标范围的一半
	MaxExtent = math.Pi * earthRadius
)

//Frame 瓦片坐标(0..extent,y向下)与墨卡托坐标之间的换算
type Frame struct {
	MinX   float64
	MaxY   float64
	Size   float64 //瓦片边长,米
	Extent float64
}

//NewFrame 按瓦片行列号与图层extent建立坐标系
func NewFrame(t maptile.Tile, extent uint32) Frame {
	size := 2 * MaxExtent / float64(uint64(1)<<uint(t.Z))
	if extent == 0 {
		extent = DefaultExtent
	}
	return Frame{
		MinX:   -MaxExtent + float64(t.X)*size,
		MaxY:   MaxExtent - float64(t.Y)*size,
		Size:   size,
		Extent: float64(extent),
	}
}

//ToMercator 瓦片坐标转墨卡托
func (f Frame) ToMercator(p orb.Point) orb.Point {
	return orb.Point{
		f.MinX + p[0]/f.Extent*f.Size,
		f.MaxY - p[1]/f.Extent*f.Size,
	}
}

//ToTile 墨卡托转瓦片坐标,不取整
func (f Frame) ToTile(p orb.Point) orb.Point {
	return orb.Point{
		(p[0] - f.MinX) / f.Size * f.Extent,
		(f.MaxY - p[1]) / f.Size * f.Extent,
	}
}

//Bound 瓦片的墨卡托范围
func (f Frame) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{f.MinX, f.MaxY - f.Size},
		Max: orb.Point{f.MinX + f.Size, f.MaxY},
	}
}

//MercatorBound 瓦片的墨卡托范围,按像素宽度外扩buffer个像素
func MercatorBound(t maptile.Tile, width uint32, buffer float64) orb.Bound {
	b := NewFrame(t, DefaultExtent).Bound()
	if buffer == 0 || width == 0 {
		return b
	}
	pad := buffer * (b.Max[0] - b.Min[0]) / float64(width)
	return b.Pad(pad)
}
