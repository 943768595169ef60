package pbf

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

//Message 流式protobuf消息读取器,只解析tag/length,不做整体反序列化
type Message struct {
	data []byte
	pos  int
	val  int //当前字段值的起始位置
	Tag  protowire.Number
	Type protowire.Type
	err  error
}

//NewMessage 创建读取器
func NewMessage(data []byte) *Message {
	return &Message{data: data}
}

//Next 读取下一个字段的tag,到达末尾或出错返回false
func (m *Message) Next() bool {
	if m.err != nil || m.pos >= len(m.data) {
		return false
	}
	num, typ, n := protowire.ConsumeTag(m.data[m.pos:])
	if n < 0 {
		m.err = fmt.Errorf("pbf: bad tag at offset %d: %w", m.pos, protowire.ParseError(n))
		return false
	}
	m.pos += n
	m.val = m.pos
	m.Tag = num
	m.Type = typ
	return true
}

//Err 返回读取过程中的错误
func (m *Message) Err() error {
	return m.err
}

//Pos 当前偏移量
func (m *Message) Pos() int {
	return m.pos
}

func (m *Message) fail(n int, what string) {
	if m.err == nil {
		m.err = fmt.Errorf("pbf: bad %s for field %d at offset %d: %w", what, m.Tag, m.val, protowire.ParseError(n))
	}
	m.pos = len(m.data)
}

func (m *Message) expect(typ protowire.Type) bool {
	if m.Type == typ {
		return true
	}
	if m.err == nil {
		m.err = fmt.Errorf("pbf: field %d has wire type %d, want %d", m.Tag, m.Type, typ)
	}
	m.pos = len(m.data)
	return false
}

//Varint 读取varint字段
func (m *Message) Varint() uint64 {
	if !m.expect(protowire.VarintType) {
		return 0
	}
	v, n := protowire.ConsumeVarint(m.data[m.pos:])
	if n < 0 {
		m.fail(n, "varint")
		return 0
	}
	m.pos += n
	return v
}

//Bytes 读取length-delimited字段,返回的切片与底层数据共享内存
func (m *Message) Bytes() []byte {
	if !m.expect(protowire.BytesType) {
		return nil
	}
	v, n := protowire.ConsumeBytes(m.data[m.pos:])
	if n < 0 {
		m.fail(n, "length")
		return nil
	}
	m.pos += n
	return v
}

//Text 读取字符串字段
func (m *Message) Text() string {
	return string(m.Bytes())
}

//Fixed32 读取fixed32字段
func (m *Message) Fixed32() uint32 {
	if !m.expect(protowire.Fixed32Type) {
		return 0
	}
	v, n := protowire.ConsumeFixed32(m.data[m.pos:])
	if n < 0 {
		m.fail(n, "fixed32")
		return 0
	}
	m.pos += n
	return v
}

//Fixed64 读取fixed64字段
func (m *Message) Fixed64() uint64 {
	if !m.expect(protowire.Fixed64Type) {
		return 0
	}
	v, n := protowire.ConsumeFixed64(m.data[m.pos:])
	if n < 0 {
		m.fail(n, "fixed64")
		return 0
	}
	m.pos += n
	return v
}

//Uint32s 读取repeated uint32,同时兼容packed与非packed两种编码
func (m *Message) Uint32s(dst []uint32) []uint32 {
	switch m.Type {
	case protowire.VarintType:
		return append(dst, uint32(m.Varint()))
	case protowire.BytesType:
		packed := m.Bytes()
		for len(packed) > 0 {
			v, n := protowire.ConsumeVarint(packed)
			if n < 0 {
				m.fail(n, "packed varint")
				return dst
			}
			dst = append(dst, uint32(v))
			packed = packed[n:]
		}
		return dst
	default:
		m.expect(protowire.BytesType)
		return dst
	}
}

//Skip 跳过当前字段
func (m *Message) Skip() {
	n := protowire.ConsumeFieldValue(m.Tag, m.Type, m.data[m.pos:])
	if n < 0 {
		m.fail(n, "value")
		return
	}
	m.pos += n
}
