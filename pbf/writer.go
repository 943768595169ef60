package pbf

import (
	"google.golang.org/protobuf/encoding/protowire"
)

//Writer protobuf编码器,嵌套消息先编码到独立Writer再以bytes字段写入
type Writer struct {
	buf []byte
}

//NewWriter 创建编码器
func NewWriter(capacity int) *Writer {
	return &Writer{buf: make([]byte, 0, capacity)}
}

//Bytes 已编码数据
func (w *Writer) Bytes() []byte {
	return w.buf
}

//Len 已编码长度
func (w *Writer) Len() int {
	return len(w.buf)
}

//Reset 清空
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

//Varint 写varint字段
func (w *Writer) Varint(num protowire.Number, v uint64) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.VarintType)
	w.buf = protowire.AppendVarint(w.buf, v)
}

//Sint 写zigzag编码的sint64字段
func (w *Writer) Sint(num protowire.Number, v int64) {
	w.Varint(num, protowire.EncodeZigZag(v))
}

//Bool 写bool字段
func (w *Writer) Bool(num protowire.Number, v bool) {
	w.Varint(num, protowire.EncodeBool(v))
}

//Fixed32 写fixed32字段
func (w *Writer) Fixed32(num protowire.Number, v uint32) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.Fixed32Type)
	w.buf = protowire.AppendFixed32(w.buf, v)
}

//Fixed64 写fixed64字段
func (w *Writer) Fixed64(num protowire.Number, v uint64) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.Fixed64Type)
	w.buf = protowire.AppendFixed64(w.buf, v)
}

//BytesField 写length-delimited字段
func (w *Writer) BytesField(num protowire.Number, v []byte) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendBytes(w.buf, v)
}

//String 写字符串字段
func (w *Writer) String(num protowire.Number, s string) {
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendString(w.buf, s)
}

//PackedUint32 写packed repeated uint32,空切片不输出
func (w *Writer) PackedUint32(num protowire.Number, vs []uint32) {
	if len(vs) == 0 {
		return
	}
	size := 0
	for _, v := range vs {
		size += protowire.SizeVarint(uint64(v))
	}
	w.buf = protowire.AppendTag(w.buf, num, protowire.BytesType)
	w.buf = protowire.AppendVarint(w.buf, uint64(size))
	for _, v := range vs {
		w.buf = protowire.AppendVarint(w.buf, uint64(v))
	}
}

//Message 写嵌套消息
func (w *Writer) Message(num protowire.Number, sub *Writer) {
	w.BytesField(num, sub.buf)
}
