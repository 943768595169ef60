package vtile

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"Fast-VTiler/pbf"
)

//vector_tile.proto字段号
const (
	tileLayers protowire.Number = 3

	layerName     protowire.Number = 1
	layerFeatures protowire.Number = 2
	layerKeys     protowire.Number = 3
	layerValues   protowire.Number = 4
	layerExtent   protowire.Number = 5
	layerVersion  protowire.Number = 15

	featureID       protowire.Number = 1
	featureTags     protowire.Number = 2
	featureType     protowire.Number = 3
	featureGeometry protowire.Number = 4
	featureRaster   protowire.Number = 5

	valueString protowire.Number = 1
	valueFloat  protowire.Number = 2
	valueDouble protowire.Number = 3
	valueInt    protowire.Number = 4
	valueUint   protowire.Number = 5
	valueSint   protowire.Number = 6
	valueBool   protowire.Number = 7
)

//Decode 解析完整的瓦片数据,未知字段被忽略
func Decode(data []byte) (*Store, error) {
	s := &Store{}
	msg := pbf.NewMessage(data)
	for msg.Next() {
		if msg.Tag != tileLayers {
			msg.Skip()
			continue
		}
		raw := msg.Bytes()
		if msg.Err() != nil {
			break
		}
		l, err := decodeLayer(raw)
		if err != nil {
			return nil, NewDecodeError("invalid layer", err)
		}
		s.Layers = append(s.Layers, l)
	}
	if err := msg.Err(); err != nil {
		return nil, NewDecodeError("invalid tile", err)
	}
	return s, nil
}

func decodeLayer(data []byte) (*Layer, error) {
	l := &Layer{Version: 1, Extent: DefaultExtent}
	msg := pbf.NewMessage(data)
	for msg.Next() {
		switch msg.Tag {
		case layerName:
			l.Name = msg.Text()
		case layerFeatures:
			raw := msg.Bytes()
			if msg.Err() != nil {
				break
			}
			f, err := decodeFeature(raw)
			if err != nil {
				return nil, err
			}
			l.Features = append(l.Features, f)
		case layerKeys:
			l.Keys = append(l.Keys, msg.Text())
		case layerValues:
			raw := msg.Bytes()
			if msg.Err() != nil {
				break
			}
			v, err := decodeValue(raw)
			if err != nil {
				return nil, err
			}
			l.Values = append(l.Values, v)
		case layerExtent:
			l.Extent = uint32(msg.Varint())
		case layerVersion:
			l.Version = uint32(msg.Varint())
		default:
			msg.Skip()
		}
	}
	return l, msg.Err()
}

func decodeFeature(data []byte) (*Feature, error) {
	f := &Feature{}
	msg := pbf.NewMessage(data)
	for msg.Next() {
		switch msg.Tag {
		case featureID:
			f.ID = msg.Varint()
			f.HasID = true
		case featureTags:
			f.Tags = msg.Uint32s(f.Tags)
		case featureType:
			f.Type = GeomType(msg.Varint())
		case featureGeometry:
			f.Geometry = msg.Uint32s(f.Geometry)
		case featureRaster:
			raw := msg.Bytes()
			if msg.Err() == nil {
				f.Raster = append(make([]byte, 0, len(raw)), raw...)
			}
		default:
			msg.Skip()
		}
	}
	return f, msg.Err()
}

func decodeValue(data []byte) (Value, error) {
	var v Value
	msg := pbf.NewMessage(data)
	for msg.Next() {
		switch msg.Tag {
		case valueString:
			v = StringValue(msg.Text())
		case valueFloat:
			v = FloatValue(math.Float32frombits(msg.Fixed32()))
		case valueDouble:
			v = DoubleValue(math.Float64frombits(msg.Fixed64()))
		case valueInt:
			v = IntValue(int64(msg.Varint()))
		case valueUint:
			v = UintValue(msg.Varint())
		case valueSint:
			v = SintValue(protowire.DecodeZigZag(msg.Varint()))
		case valueBool:
			v = BoolValue(msg.Varint() != 0)
		default:
			msg.Skip()
		}
	}
	return v, msg.Err()
}

//Encode 序列化为vector tile二进制
func Encode(s *Store) []byte {
	w := pbf.NewWriter(1024)
	lw := pbf.NewWriter(1024)
	for _, l := range s.Layers {
		lw.Reset()
		encodeLayer(lw, l)
		w.Message(tileLayers, lw)
	}
	return w.Bytes()
}

//EncodeLayer 序列化单个图层为完整的瓦片消息
func EncodeLayer(l *Layer) []byte {
	return Encode(&Store{Layers: []*Layer{l}})
}

func encodeLayer(w *pbf.Writer, l *Layer) {
	w.Varint(layerVersion, uint64(l.Version))
	w.String(layerName, l.Name)
	fw := pbf.NewWriter(64)
	for _, f := range l.Features {
		fw.Reset()
		encodeFeature(fw, f)
		w.Message(layerFeatures, fw)
	}
	for _, k := range l.Keys {
		w.String(layerKeys, k)
	}
	vw := pbf.NewWriter(16)
	for _, v := range l.Values {
		vw.Reset()
		encodeValue(vw, v)
		w.Message(layerValues, vw)
	}
	w.Varint(layerExtent, uint64(l.Extent))
}

func encodeFeature(w *pbf.Writer, f *Feature) {
	if f.HasID {
		w.Varint(featureID, f.ID)
	}
	w.PackedUint32(featureTags, f.Tags)
	if f.Type != GeomUnknown {
		w.Varint(featureType, uint64(f.Type))
	}
	w.PackedUint32(featureGeometry, f.Geometry)
	if f.Raster != nil {
		w.BytesField(featureRaster, f.Raster)
	}
}

func encodeValue(w *pbf.Writer, v Value) {
	switch v.Type {
	case ValueString:
		w.String(valueString, v.Str)
	case ValueFloat:
		w.Fixed32(valueFloat, math.Float32bits(float32(v.Num)))
	case ValueDouble:
		w.Fixed64(valueDouble, math.Float64bits(v.Num))
	case ValueInt:
		w.Varint(valueInt, uint64(v.Int))
	case ValueUint:
		w.Varint(valueUint, v.Uint)
	case ValueSint:
		w.Sint(valueSint, v.Int)
	case ValueBool:
		w.Bool(valueBool, v.Bool)
	}
}
