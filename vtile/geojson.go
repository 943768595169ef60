package vtile

import (
	"encoding/json"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"Fast-VTiler/proj"
)

const (
	//SelectAll 所有图层的要素合并为一个FeatureCollection
	SelectAll = "__all__"
	//SelectArray 每个图层一个FeatureCollection,输出为数组
	SelectArray = "__array__"
)

type selectorKind uint8

const (
	selectName selectorKind = iota
	selectIndex
	selectAll
	selectArray
)

//LayerSelector 图层选择器
type LayerSelector struct {
	kind  selectorKind
	name  string
	index int
}

func ByName(name string) LayerSelector { return LayerSelector{kind: selectName, name: name} }
func ByIndex(i int) LayerSelector      { return LayerSelector{kind: selectIndex, index: i} }
func AllLayers() LayerSelector         { return LayerSelector{kind: selectAll} }
func LayerArray() LayerSelector        { return LayerSelector{kind: selectArray} }

//ParseSelector 解析字符串形式的选择器,字符串总是按图层名处理,序号用ByIndex
func ParseSelector(s string) LayerSelector {
	switch s {
	case SelectAll:
		return AllLayers()
	case SelectArray:
		return LayerArray()
	}
	return ByName(s)
}

func (s LayerSelector) String() string {
	switch s.kind {
	case selectIndex:
		return strconv.Itoa(s.index)
	case selectAll:
		return SelectAll
	case selectArray:
		return SelectArray
	}
	return s.name
}

//Serializer GeoJSON输出
type Serializer struct {
	Projection Projection
}

//NewSerializer p为nil时使用墨卡托到经纬度的投影
func NewSerializer(p Projection) *Serializer {
	if p == nil {
		p = proj.MercatorToWGS84{}
	}
	return &Serializer{Projection: p}
}

//ToGeoJSON 按选择器输出GeoJSON文本
func (s *Serializer) ToGeoJSON(t *Tile, sel LayerSelector) ([]byte, error) {
	store, err := t.view()
	if err != nil {
		return nil, err
	}
	var buf []byte
	switch sel.kind {
	case selectName:
		l := store.Layer(sel.name)
		if l == nil {
			return nil, NewLayerNotFoundError(sel.name)
		}
		return s.appendCollection(buf, t, []*Layer{l}, true)
	case selectIndex:
		if sel.index < 0 || sel.index >= len(store.Layers) {
			return nil, NewIndexOutOfRangeError(sel.index, len(store.Layers))
		}
		return s.appendCollection(buf, t, store.Layers[sel.index:sel.index+1], true)
	case selectAll:
		return s.appendCollection(buf, t, store.Layers, false)
	}
	buf = append(buf, '[')
	for i, l := range store.Layers {
		if i > 0 {
			buf = append(buf, ',')
		}
		buf, err = s.appendCollection(buf, t, []*Layer{l}, true)
		if err != nil {
			return nil, err
		}
	}
	return append(buf, ']'), nil
}

func (s *Serializer) appendCollection(buf []byte, t *Tile, layers []*Layer, named bool) ([]byte, error) {
	buf = append(buf, `{"type":"FeatureCollection"`...)
	if named && len(layers) == 1 {
		name, _ := json.Marshal(layers[0].Name)
		buf = append(buf, `,"name":`...)
		buf = append(buf, name...)
	}
	buf = append(buf, `,"features":[`...)
	first := true
	for _, l := range layers {
		ds := NewDatasource(l, t.coord, t.width)
		fs := ds.Features(ds.Envelope().Pad(ds.Frame().Size), nil)
		for f := fs.Next(); f != nil; f = fs.Next() {
			if !first {
				buf = append(buf, ',')
			}
			first = false
			var err error
			buf, err = s.appendFeature(buf, f)
			if err != nil {
				return nil, err
			}
		}
		if err := fs.Err(); err != nil {
			return nil, NewSerializationError("could not decode geometry of layer "+l.Name, err)
		}
	}
	return append(buf, "]}"...), nil
}

func (s *Serializer) appendFeature(buf []byte, f *MapFeature) ([]byte, error) {
	buf = append(buf, `{"type":"Feature"`...)
	if f.HasID {
		buf = append(buf, `,"id":`...)
		buf = strconv.AppendUint(buf, f.ID, 10)
	}
	buf = append(buf, `,"geometry":`...)
	if f.Geometry == nil {
		buf = append(buf, "null"...)
	} else {
		g, err := proj.Geometry(f.Geometry, s.projection())
		if err != nil {
			return nil, NewSerializationError("could not reproject geometry", err)
		}
		text, err := json.Marshal(geojson.NewGeometry(g))
		if err != nil {
			return nil, NewSerializationError("could not encode geometry", err)
		}
		buf = append(buf, text...)
	}
	buf = append(buf, `,"properties":{`...)
	for i, p := range f.Properties {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, err := json.Marshal(p.Key)
		if err != nil {
			return nil, NewSerializationError("could not encode property name", err)
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = p.Value.AppendJSON(buf)
	}
	return append(buf, "}}"...), nil
}

func (s *Serializer) projection() Projection {
	if s.Projection == nil {
		return proj.MercatorToWGS84{}
	}
	return s.Projection
}
