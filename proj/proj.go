package proj

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"
)

const (
	//MaxLatitude 墨卡托可表示的最大纬度
	MaxLatitude = 85.0511287798
	//MaxExtent 墨卡托坐标范围
	MaxExtent = 20037508.342789244
)

//ErrOutOfRange 坐标超出投影的定义域
var ErrOutOfRange = errors.New("coordinate out of projection range")

//WGS84ToMercator 经纬度转web墨卡托
type WGS84ToMercator struct{}

func (WGS84ToMercator) Forward(x, y, z float64) (float64, float64, float64, error) {
	if !(x >= -180 && x <= 180 && y >= -90 && y <= 90) {
		return 0, 0, 0, fmt.Errorf("lon/lat %g,%g: %w", x, y, ErrOutOfRange)
	}
	if y > MaxLatitude {
		y = MaxLatitude
	} else if y < -MaxLatitude {
		y = -MaxLatitude
	}
	p := project.WGS84.ToMercator(orb.Point{x, y})
	return p[0], p[1], z, nil
}

//MercatorToWGS84 web墨卡托转经纬度,瓦片缓冲区内超出范围的坐标照常换算
type MercatorToWGS84 struct{}

func (MercatorToWGS84) Forward(x, y, z float64) (float64, float64, float64, error) {
	if math.IsNaN(x) || math.IsNaN(y) || math.IsInf(x, 0) || math.IsInf(y, 0) {
		return 0, 0, 0, fmt.Errorf("mercator %g,%g: %w", x, y, ErrOutOfRange)
	}
	p := project.Mercator.ToWGS84(orb.Point{x, y})
	return p[0], p[1], z, nil
}

//Transformer 投影服务接口
type Transformer interface {
	Forward(x, y, z float64) (float64, float64, float64, error)
}

//Geometry 对几何逐点投影,几何被原地修改,返回遇到的第一个错误
func Geometry(g orb.Geometry, t Transformer) (orb.Geometry, error) {
	var first error
	g = project.Geometry(g, func(p orb.Point) orb.Point {
		x, y, _, err := t.Forward(p[0], p[1], 0)
		if err != nil {
			if first == nil {
				first = err
			}
			return p
		}
		return orb.Point{x, y}
	})
	return g, first
}
