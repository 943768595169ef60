package vtile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
	log "github.com/sirupsen/logrus"
)

//MapFeature 墨卡托坐标下的要素
type MapFeature struct {
	ID         uint64
	HasID      bool
	Type       GeomType
	Geometry   orb.Geometry
	Properties []Property
	Raster     []byte
}

//Property 按key查找属性
func (f *MapFeature) Property(key string) (Value, bool) {
	for _, p := range f.Properties {
		if p.Key == key {
			return p.Value, true
		}
	}
	return Value{}, false
}

//Datasource 基于单个已解码图层的要素源,以所在瓦片的行列号建立坐标系
type Datasource struct {
	layer *Layer
	coord maptile.Tile
	width uint32
	frame Frame
	env   orb.Bound
}

//NewDatasource 创建要素源
func NewDatasource(l *Layer, coord maptile.Tile, width uint32) *Datasource {
	f := NewFrame(coord, l.Extent)
	return &Datasource{
		layer: l,
		coord: coord,
		width: width,
		frame: f,
		env:   f.Bound(),
	}
}

func (d *Datasource) Layer() *Layer       { return d.layer }
func (d *Datasource) Name() string        { return d.layer.Name }
func (d *Datasource) Coord() maptile.Tile { return d.coord }
func (d *Datasource) Width() uint32       { return d.width }
func (d *Datasource) Frame() Frame        { return d.frame }

//Envelope 墨卡托范围
func (d *Datasource) Envelope() orb.Bound {
	return d.env
}

//SetEnvelope 修改范围,用于带缓冲区的查询
func (d *Datasource) SetEnvelope(b orb.Bound) {
	d.env = b
}

//Fields 图层字典中的全部key
func (d *Datasource) Fields() []string {
	return append([]string(nil), d.layer.Keys...)
}

//Features 与bbox相交的要素,fields为nil时返回全部属性
func (d *Datasource) Features(bbox orb.Bound, fields []string) *Featureset {
	fs := &Featureset{ds: d, bbox: bbox}
	if fields != nil {
		fs.fields = make(map[string]struct{}, len(fields))
		for _, f := range fields {
			fs.fields[f] = struct{}{}
		}
	}
	return fs
}

//FeaturesAt 距离pt在tol范围内的要素候选集(按外包框过滤)
func (d *Datasource) FeaturesAt(pt orb.Point, tol float64) *Featureset {
	return d.Features(orb.Bound{Min: pt, Max: pt}.Pad(tol), nil)
}

//Featureset 要素迭代器
type Featureset struct {
	ds     *Datasource
	bbox   orb.Bound
	fields map[string]struct{}
	next   int
	err    error
}

//Err 遍历中第一个几何解码错误,出错的要素不会被返回
func (fs *Featureset) Err() error {
	return fs.err
}

//Next 返回下一个要素,结束时返回nil
func (fs *Featureset) Next() *MapFeature {
	l := fs.ds.layer
	for fs.next < len(l.Features) {
		f := l.Features[fs.next]
		fs.next++
		mf := &MapFeature{ID: f.ID, HasID: f.HasID, Type: f.Type}
		if len(f.Raster) > 0 {
			if !fs.bbox.Intersects(fs.ds.env) {
				continue
			}
			mf.Raster = f.Raster
		} else {
			g, err := DecodeGeometry(f.Type, f.Geometry)
			if err != nil {
				log.Debugf("layer %s: skip feature %d, %s", l.Name, f.ID, err)
				if fs.err == nil {
					fs.err = err
				}
				continue
			}
			if g != nil {
				g = project.Geometry(g, fs.ds.frame.ToMercator)
				if !fs.bbox.Intersects(g.Bound()) {
					continue
				}
			}
			mf.Geometry = g
		}
		mf.Properties = fs.properties(f)
		return mf
	}
	return nil
}

func (fs *Featureset) properties(f *Feature) []Property {
	props := fs.ds.layer.Properties(f)
	if fs.fields == nil {
		return props
	}
	kept := props[:0]
	for _, p := range props {
		if _, ok := fs.fields[p.Key]; ok {
			kept = append(kept, p)
		}
	}
	return kept
}
