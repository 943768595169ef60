package vtile

import (
	log "github.com/sirupsen/logrus"
)

const (
	//DefaultExtent 图层默认坐标范围
	DefaultExtent = 4096
	//DefaultVersion 编码时写入的图层版本
	DefaultVersion = 2
)

//GeomType 要素几何类型
type GeomType uint8

const (
	GeomUnknown GeomType = iota
	GeomPoint
	GeomLineString
	GeomPolygon
)

func (g GeomType) String() string {
	switch g {
	case GeomPoint:
		return "Point"
	case GeomLineString:
		return "LineString"
	case GeomPolygon:
		return "Polygon"
	}
	return "Unknown"
}

//Feature 要素,Tags为key/value序号对,引用所在图层的字典
type Feature struct {
	ID       uint64
	HasID    bool
	Type     GeomType
	Geometry []uint32
	Raster   []byte
	Tags     []uint32
}

//Property 解析后的属性
type Property struct {
	Key   string
	Value Value
}

//Layer 图层
type Layer struct {
	Name     string
	Version  uint32
	Extent   uint32
	Features []*Feature
	Keys     []string
	Values   []Value
}

//NewLayer 创建空图层
func NewLayer(name string, extent uint32) *Layer {
	if extent == 0 {
		extent = DefaultExtent
	}
	return &Layer{Name: name, Version: DefaultVersion, Extent: extent}
}

//Properties 按tag顺序解析要素属性,越界的序号对被跳过
func (l *Layer) Properties(f *Feature) []Property {
	if len(f.Tags) < 2 {
		return nil
	}
	props := make([]Property, 0, len(f.Tags)/2)
	for i := 0; i+1 < len(f.Tags); i += 2 {
		k, v := f.Tags[i], f.Tags[i+1]
		if int(k) >= len(l.Keys) || int(v) >= len(l.Values) {
			log.Debugf("layer %s: skip out of range tag pair %d/%d", l.Name, k, v)
			continue
		}
		props = append(props, Property{Key: l.Keys[k], Value: l.Values[v]})
	}
	return props
}

//Empty 图层无要素
func (l *Layer) Empty() bool {
	return len(l.Features) == 0
}

//Store 解码后的瓦片结构,图层顺序即合并顺序
type Store struct {
	Layers []*Layer
}

//Names 图层名列表,允许重名
func (s *Store) Names() []string {
	names := make([]string, 0, len(s.Layers))
	for _, l := range s.Layers {
		names = append(names, l.Name)
	}
	return names
}

//Empty 没有图层或所有图层都没有要素
func (s *Store) Empty() bool {
	for _, l := range s.Layers {
		if !l.Empty() {
			return false
		}
	}
	return true
}

//Layer 返回第一个同名图层
func (s *Store) Layer(name string) *Layer {
	for _, l := range s.Layers {
		if l.Name == name {
			return l
		}
	}
	return nil
}
