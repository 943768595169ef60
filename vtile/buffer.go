package vtile

import (
	log "github.com/sirupsen/logrus"
)

//State 缓冲区解码状态
type State uint8

const (
	//StateEmpty 从未赋值,等价于已解码的空瓦片
	StateEmpty State = iota
	//StatePendingReplace 数据整体替换,下次访问结构时完整解析
	StatePendingReplace
	//StatePendingAppend 已解码结构之后追加了数据,只解析偏移量之后的部分
	StatePendingAppend
	//StateDecoded 结构为准,data只是缓存的序列化结果
	StateDecoded
)

func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StatePendingReplace:
		return "pending-replace"
	case StatePendingAppend:
		return "pending-append"
	case StateDecoded:
		return "decoded"
	}
	return "invalid"
}

//Buffer 原始字节与解码结构,按需延迟解码
type Buffer struct {
	data   []byte
	state  State
	store  *Store
	offset int  //已合并进store的字节长度
	stale  bool //结构被直接修改过,data不再是其序列化结果
}

//State 当前状态
func (b *Buffer) State() State {
	return b.state
}

//Len 当前原始字节长度
func (b *Buffer) Len() int {
	return len(b.data)
}

//SetBytes 整体替换
func (b *Buffer) SetBytes(data []byte) {
	b.data = append(b.data[:0:0], data...)
	b.state = StatePendingReplace
	b.store = nil
	b.offset = 0
	b.stale = false
}

//AppendBytes 追加,空数据不改变状态
func (b *Buffer) AppendBytes(data []byte) {
	if len(data) == 0 {
		return
	}
	switch b.state {
	case StateEmpty:
		b.store = &Store{}
		b.data = nil
		b.offset = 0
		b.state = StatePendingAppend
	case StateDecoded:
		if b.stale {
			b.data = Encode(b.store)
			b.stale = false
		}
		b.offset = len(b.data)
		b.state = StatePendingAppend
	}
	b.data = append(b.data, data...)
}

//EnsureDecoded 按状态解码,失败时状态不变
func (b *Buffer) EnsureDecoded() error {
	switch b.state {
	case StatePendingReplace:
		if len(b.data) == 0 {
			return NewDecodeError("cannot parse zero length buffer", nil)
		}
		s, err := Decode(b.data)
		if err != nil {
			return err
		}
		b.store = s
	case StatePendingAppend:
		s, err := Decode(b.data[b.offset:])
		if err != nil {
			return err
		}
		log.Debugf("merge %d layers from %d appended bytes", len(s.Layers), len(b.data)-b.offset)
		b.store.Layers = append(b.store.Layers, s.Layers...)
	default:
		return nil
	}
	b.offset = len(b.data)
	b.state = StateDecoded
	b.stale = false
	return nil
}

//Store 返回解码结构,空缓冲区返回空结构
func (b *Buffer) Store() (*Store, error) {
	if err := b.EnsureDecoded(); err != nil {
		return nil, err
	}
	if b.store == nil {
		b.store = &Store{}
	}
	return b.store, nil
}

//view 已解码后的只读结构,不修改缓冲区
func (b *Buffer) view() *Store {
	if b.store == nil {
		return &Store{}
	}
	return b.store
}

//Modified 结构被直接修改后调用
func (b *Buffer) Modified() {
	if b.store == nil {
		b.store = &Store{}
	}
	b.state = StateDecoded
	b.stale = true
}

//rawValid 原始字节是否完整表示了当前内容
func (b *Buffer) rawValid() bool {
	return b.state != StateEmpty && !b.stale
}

//Bytes 序列化后的数据,结构被修改过时重新编码并缓存
func (b *Buffer) Bytes() []byte {
	switch {
	case b.state == StateEmpty:
		return nil
	case b.stale:
		b.data = Encode(b.store)
		b.offset = len(b.data)
		b.stale = false
	}
	return b.data
}

//LayerNames 图层名,原始字节有效时不做完整解码
func (b *Buffer) LayerNames() ([]string, error) {
	if b.rawValid() {
		return scanNames(b.data)
	}
	if b.store == nil {
		return []string{}, nil
	}
	return b.store.Names(), nil
}

//IsEmpty 没有图层或图层都没有要素
func (b *Buffer) IsEmpty() (bool, error) {
	if b.rawValid() {
		return scanEmpty(b.data)
	}
	if b.store == nil {
		return true, nil
	}
	return b.store.Empty(), nil
}

//Reset 清空
func (b *Buffer) Reset() {
	*b = Buffer{}
}
