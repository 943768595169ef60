package vtile

import (
	"google.golang.org/protobuf/encoding/protowire"

	"Fast-VTiler/pbf"
)

//wireKind 扫描时字段的读取方式,与完整解码保持一致
type wireKind uint8

const (
	kindSkip wireKind = iota
	kindVarint
	kindBytes
	kindFixed32
	kindFixed64
	kindPacked
)

var (
	featureKinds = map[protowire.Number]wireKind{
		featureID:       kindVarint,
		featureTags:     kindPacked,
		featureType:     kindVarint,
		featureGeometry: kindPacked,
		featureRaster:   kindBytes,
	}
	valueKinds = map[protowire.Number]wireKind{
		valueString: kindBytes,
		valueFloat:  kindFixed32,
		valueDouble: kindFixed64,
		valueInt:    kindVarint,
		valueUint:   kindVarint,
		valueSint:   kindVarint,
		valueBool:   kindVarint,
	}
)

//checkMessage 只校验消息结构,不构造对象
func checkMessage(data []byte, kinds map[protowire.Number]wireKind, scratch []uint32) ([]uint32, error) {
	msg := pbf.NewMessage(data)
	for msg.Next() {
		switch kinds[msg.Tag] {
		case kindVarint:
			msg.Varint()
		case kindBytes:
			msg.Bytes()
		case kindFixed32:
			msg.Fixed32()
		case kindFixed64:
			msg.Fixed64()
		case kindPacked:
			scratch = msg.Uint32s(scratch[:0])
		default:
			msg.Skip()
		}
	}
	return scratch, msg.Err()
}

//scanLayers 不做完整解码,流式扫描图层名和是否包含要素,出错条件与Decode相同
func scanLayers(data []byte, fn func(name string, hasFeatures bool)) error {
	var scratch []uint32
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
		var name string
		features := false
		lm := pbf.NewMessage(raw)
		var err error
		for err == nil && lm.Next() {
			switch lm.Tag {
			case layerName:
				name = lm.Text()
			case layerFeatures:
				features = true
				if b := lm.Bytes(); lm.Err() == nil {
					scratch, err = checkMessage(b, featureKinds, scratch)
				}
			case layerValues:
				if b := lm.Bytes(); lm.Err() == nil {
					scratch, err = checkMessage(b, valueKinds, scratch)
				}
			case layerKeys:
				lm.Bytes()
			case layerExtent, layerVersion:
				lm.Varint()
			default:
				lm.Skip()
			}
		}
		if err == nil {
			err = lm.Err()
		}
		if err != nil {
			return NewDecodeError("invalid layer", err)
		}
		fn(name, features)
	}
	if err := msg.Err(); err != nil {
		return NewDecodeError("invalid tile", err)
	}
	return nil
}

func scanNames(data []byte) ([]string, error) {
	names := []string{}
	err := scanLayers(data, func(name string, _ bool) {
		names = append(names, name)
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

func scanEmpty(data []byte) (bool, error) {
	empty := true
	err := scanLayers(data, func(_ string, hasFeatures bool) {
		if hasFeatures {
			empty = false
		}
	})
	if err != nil {
		return false, err
	}
	return empty, nil
}
