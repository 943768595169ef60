package vtile

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	log "github.com/sirupsen/logrus"
)

//GeoJSONOptions 导入GeoJSON的参数
type GeoJSONOptions struct {
	Extent           uint32  //默认4096
	BufferSize       float64 //像素
	SimplifyDistance float64 //瓦片坐标单位,0表示不简化
	AreaThreshold    float64 //瓦片坐标单位
}

//DefaultGeoJSONOptions 默认导入参数
func DefaultGeoJSONOptions() GeoJSONOptions {
	return GeoJSONOptions{Extent: DefaultExtent, BufferSize: 8, AreaThreshold: 0.1}
}

func parseGeoJSON(data []byte) (*geojson.FeatureCollection, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err == nil && (len(fc.Features) > 0 || fc.Type == "FeatureCollection") {
		return fc, nil
	}
	f, ferr := geojson.UnmarshalFeature(data)
	if ferr != nil {
		if err != nil {
			return nil, err
		}
		return nil, ferr
	}
	fc = geojson.NewFeatureCollection()
	fc.Append(f)
	return fc, nil
}

func geoJSONFeatureID(id interface{}) (uint64, bool) {
	switch v := id.(type) {
	case float64:
		if v >= 0 && v == float64(uint64(v)) {
			return uint64(v), true
		}
	case int:
		if v >= 0 {
			return uint64(v), true
		}
	case uint64:
		return v, true
	}
	return 0, false
}

//AddGeoJSON 将经纬度GeoJSON裁剪、投影到瓦片坐标后作为新图层添加
func (t *Tile) AddGeoJSON(data []byte, name string, opts GeoJSONOptions) error {
	if name == "" {
		return NewDecodeError("layer name must not be empty", nil)
	}
	fc, err := parseGeoJSON(data)
	if err != nil {
		return NewDecodeError("invalid geojson", err)
	}
	if opts.Extent == 0 {
		opts.Extent = DefaultExtent
	}
	p := &Pipeline{
		Clip:          MercatorBound(t.coord, t.width, opts.BufferSize),
		Frame:         NewFrame(t.coord, opts.Extent),
		Tolerance:     opts.SimplifyDistance,
		AreaThreshold: opts.AreaThreshold,
	}
	b := NewLayerBuilder(name, opts.Extent)
	for _, f := range fc.Features {
		if f.Geometry == nil {
			continue
		}
		g := project.Geometry(orb.Clone(f.Geometry), project.WGS84.ToMercator)
		g = p.Process(g)
		if g == nil {
			continue
		}
		id, hasID := geoJSONFeatureID(f.ID)
		if !b.AddGeometry(id, hasID, g, geoJSONProperties(f.Properties)) {
			log.Debugf("add geojson %s: feature %v dropped after clipping", name, f.ID)
		}
	}
	if b.Len() == 0 {
		log.Debugf("add geojson %s: no features inside tile %s", name, t)
		return nil
	}
	return t.AddLayer(b.Layer())
}

func geoJSONProperties(props geojson.Properties) []Property {
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Property, 0, len(keys))
	for _, k := range keys {
		v, ok := ValueOf(props[k])
		if !ok {
			continue
		}
		out = append(out, Property{Key: k, Value: v})
	}
	return out
}
