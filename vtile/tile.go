package vtile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
)

//DefaultTileSize 默认瓦片像素大小
const DefaultTileSize = 256

//Tile 按z/x/y定位的矢量瓦片,同一时刻只允许一个写入方
type Tile struct {
	coord   maptile.Tile
	width   uint32
	height  uint32
	buf     Buffer
	painted bool
}

//NewTile 创建空瓦片,width/height为0时取默认值
func NewTile(z, x, y, width, height uint32) (*Tile, error) {
	if z > 32 {
		return nil, fmt.Errorf("zoom %d out of range", z)
	}
	n := uint64(1) << z
	if uint64(x) >= n {
		return nil, fmt.Errorf("x %d out of range for zoom %d", x, z)
	}
	if uint64(y) >= n {
		return nil, fmt.Errorf("y %d out of range for zoom %d", y, z)
	}
	if width == 0 {
		width = DefaultTileSize
	}
	if height == 0 {
		height = DefaultTileSize
	}
	return &Tile{
		coord:  maptile.New(x, y, maptile.Zoom(z)),
		width:  width,
		height: height,
	}, nil
}

//MustTile 参数非法时panic
func MustTile(z, x, y uint32) *Tile {
	t, err := NewTile(z, x, y, 0, 0)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Tile) Coord() maptile.Tile { return t.coord }
func (t *Tile) Z() uint32           { return uint32(t.coord.Z) }
func (t *Tile) X() uint32           { return t.coord.X }
func (t *Tile) Y() uint32           { return t.coord.Y }
func (t *Tile) Width() uint32       { return t.width }
func (t *Tile) Height() uint32      { return t.height }
func (t *Tile) State() State        { return t.buf.State() }
func (t *Tile) Painted() bool       { return t.painted }

//Extent 瓦片墨卡托范围
func (t *Tile) Extent() orb.Bound {
	return NewFrame(t.coord, DefaultExtent).Bound()
}

func (t *Tile) String() string {
	return fmt.Sprintf("%d/%d/%d", t.coord.Z, t.coord.X, t.coord.Y)
}

func isGzip(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}

func inflate(data []byte) ([]byte, error) {
	if !isGzip(data) {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, NewDecodeError("invalid gzip data", err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, NewDecodeError("invalid gzip data", err)
	}
	return out, nil
}

//SetData 替换瓦片数据,gzip压缩的数据先解压
func (t *Tile) SetData(data []byte) error {
	if len(data) == 0 {
		return NewDecodeError("cannot accept empty buffer as protobuf", nil)
	}
	raw, err := inflate(data)
	if err != nil {
		return err
	}
	t.buf.SetBytes(raw)
	t.painted = false
	return nil
}

//AddData 追加瓦片数据
func (t *Tile) AddData(data []byte) error {
	if len(data) == 0 {
		return NewDecodeError("cannot accept empty buffer as protobuf", nil)
	}
	raw, err := inflate(data)
	if err != nil {
		return err
	}
	t.buf.AppendBytes(raw)
	return nil
}

//GetData 返回序列化数据
func (t *Tile) GetData() []byte {
	return t.buf.Bytes()
}

//GetDataCompressed 返回gzip压缩的序列化数据
func (t *Tile) GetDataCompressed(level int) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err = zw.Write(t.buf.Bytes()); err != nil {
		return nil, err
	}
	if err = zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

//Parse 确保已解码,已解码时不修改瓦片
func (t *Tile) Parse() error {
	switch t.buf.State() {
	case StatePendingReplace, StatePendingAppend:
	default:
		return nil
	}
	if err := t.buf.EnsureDecoded(); err != nil {
		return err
	}
	if t.buf.store != nil && !t.buf.store.Empty() {
		t.painted = true
	}
	return nil
}

//Store 已解码结构,必要时触发解码,返回的结构可直接修改
func (t *Tile) Store() (*Store, error) {
	if err := t.Parse(); err != nil {
		return nil, err
	}
	return t.buf.Store()
}

//view 只读访问已解码结构,解码完成后可并发调用
func (t *Tile) view() (*Store, error) {
	if err := t.Parse(); err != nil {
		return nil, err
	}
	return t.buf.view(), nil
}

//Clear 清空瓦片
func (t *Tile) Clear() {
	t.buf.Reset()
	t.painted = false
}

//Names 图层名
func (t *Tile) Names() ([]string, error) {
	return t.buf.LayerNames()
}

//Empty 是否为空瓦片
func (t *Tile) Empty() (bool, error) {
	return t.buf.IsEmpty()
}

//AddLayer 追加图层
func (t *Tile) AddLayer(l *Layer) error {
	if l == nil {
		return errors.New("nil layer")
	}
	s, err := t.Store()
	if err != nil {
		return err
	}
	s.Layers = append(s.Layers, l)
	t.buf.Modified()
	if !l.Empty() {
		t.painted = true
	}
	return nil
}

//AddImage 以单个栅格要素的图层形式添加图片
func (t *Tile) AddImage(image []byte, name string) error {
	if len(image) == 0 {
		return errors.New("cannot add empty image buffer")
	}
	if name == "" {
		return errors.New("layer name must not be empty")
	}
	b := NewLayerBuilder(name, DefaultExtent)
	b.AddRaster(0, false, image, nil)
	l := b.Layer()
	l.Version = 1
	return t.AddLayer(l)
}

//IsSolid 所有图层的要素都是覆盖整个extent的多边形时返回true和由图层名组成的key
func (t *Tile) IsSolid() (bool, string, error) {
	s, err := t.view()
	if err != nil {
		return false, "", err
	}
	var names []string
	for _, l := range s.Layers {
		if l.Empty() {
			continue
		}
		full := orb.Bound{Max: orb.Point{float64(l.Extent), float64(l.Extent)}}
		for _, f := range l.Features {
			if f.Type != GeomPolygon {
				return false, "", nil
			}
			g, err := DecodeGeometry(f.Type, f.Geometry)
			if err != nil || g == nil {
				return false, "", nil
			}
			b := g.Bound()
			if !b.Contains(full.Min) || !b.Contains(full.Max) {
				return false, "", nil
			}
		}
		names = append(names, l.Name)
	}
	if len(names) == 0 {
		return false, "", nil
	}
	log.Debugf("tile %s is solid", t)
	return true, strings.Join(names, "-"), nil
}
