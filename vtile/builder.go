package vtile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/clip"
	"github.com/paulmach/orb/project"
	"github.com/paulmach/orb/simplify"
)

//LayerBuilder 构建图层并对key/value去重
type LayerBuilder struct {
	layer  *Layer
	keys   map[string]uint32
	values map[Value]uint32
}

//NewLayerBuilder 创建图层构建器
func NewLayerBuilder(name string, extent uint32) *LayerBuilder {
	return &LayerBuilder{
		layer:  NewLayer(name, extent),
		keys:   make(map[string]uint32),
		values: make(map[Value]uint32),
	}
}

func (b *LayerBuilder) tags(props []Property) []uint32 {
	if len(props) == 0 {
		return nil
	}
	tags := make([]uint32, 0, 2*len(props))
	for _, p := range props {
		k, ok := b.keys[p.Key]
		if !ok {
			k = uint32(len(b.layer.Keys))
			b.keys[p.Key] = k
			b.layer.Keys = append(b.layer.Keys, p.Key)
		}
		v, ok := b.values[p.Value]
		if !ok {
			v = uint32(len(b.layer.Values))
			b.values[p.Value] = v
			b.layer.Values = append(b.layer.Values, p.Value)
		}
		tags = append(tags, k, v)
	}
	return tags
}

//AddGeometry 添加瓦片坐标下的几何,编码后为空则忽略并返回false
func (b *LayerBuilder) AddGeometry(id uint64, hasID bool, g orb.Geometry, props []Property) bool {
	typ, cmds := EncodeGeometry(g)
	if len(cmds) == 0 {
		return false
	}
	b.layer.Features = append(b.layer.Features, &Feature{
		ID:       id,
		HasID:    hasID,
		Type:     typ,
		Geometry: cmds,
		Tags:     b.tags(props),
	})
	return true
}

//AddRaster 添加栅格要素
func (b *LayerBuilder) AddRaster(id uint64, hasID bool, raster []byte, props []Property) bool {
	if len(raster) == 0 {
		return false
	}
	b.layer.Features = append(b.layer.Features, &Feature{
		ID:     id,
		HasID:  hasID,
		Raster: append([]byte(nil), raster...),
		Tags:   b.tags(props),
	})
	return true
}

//Len 已添加要素数
func (b *LayerBuilder) Len() int {
	return len(b.layer.Features)
}

//Layer 构建结果
func (b *LayerBuilder) Layer() *Layer {
	return b.layer
}

//Pipeline 墨卡托几何裁剪、转换到目标瓦片坐标并简化
type Pipeline struct {
	Clip          orb.Bound //墨卡托裁剪范围
	Frame         Frame
	OffsetX       float64 //瓦片坐标单位
	OffsetY       float64
	Tolerance     float64 //简化容差,瓦片坐标单位
	AreaThreshold float64 //面积小于该值的多边形被丢弃,瓦片坐标单位
}

//Process 输入为墨卡托坐标几何,会被原地修改;结果为空返回nil
func (p *Pipeline) Process(g orb.Geometry) orb.Geometry {
	if g == nil {
		return nil
	}
	if !p.Clip.IsZero() {
		if !p.Clip.Intersects(g.Bound()) {
			return nil
		}
		g = clip.Geometry(p.Clip, g)
		if g == nil {
			return nil
		}
	}
	g = project.Geometry(g, func(pt orb.Point) orb.Point {
		t := p.Frame.ToTile(pt)
		return orb.Point{t[0] + p.OffsetX, t[1] + p.OffsetY}
	})
	if p.Tolerance > 0 {
		g = simplify.DouglasPeucker(p.Tolerance).Simplify(g)
	}
	if p.AreaThreshold > 0 {
		g = dropSmallPolygons(g, p.AreaThreshold)
	}
	return g
}

func dropSmallPolygons(g orb.Geometry, threshold float64) orb.Geometry {
	switch t := g.(type) {
	case orb.Polygon:
		if len(t) == 0 || ringArea(t[0]) < threshold {
			return nil
		}
	case orb.MultiPolygon:
		kept := t[:0]
		for _, poly := range t {
			if len(poly) > 0 && ringArea(poly[0]) >= threshold {
				kept = append(kept, poly)
			}
		}
		if len(kept) == 0 {
			return nil
		}
		return kept
	}
	return g
}

func ringArea(r orb.Ring) float64 {
	area := 0.0
	for i := 0; i+1 < len(r); i++ {
		area += r[i][0]*r[i+1][1] - r[i+1][0]*r[i][1]
	}
	if area < 0 {
		area = -area
	}
	return area / 2
}
