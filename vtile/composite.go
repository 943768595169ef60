package vtile

import (
	"errors"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
)

//CompositeOptions 合并参数
type CompositeOptions struct {
	PathMultiplier   uint32  //输出extent = 像素宽度 * PathMultiplier
	BufferSize       int     //像素
	ScaleFactor      float64 //放大缓冲区与容差
	OffsetX          float64 //像素
	OffsetY          float64
	Tolerance        float64 //简化容差,输出瓦片坐标单位
	ScaleDenominator float64
}

//DefaultCompositeOptions 默认合并参数
func DefaultCompositeOptions() CompositeOptions {
	return CompositeOptions{
		PathMultiplier: 16,
		BufferSize:     1,
		ScaleFactor:    1,
		Tolerance:      8,
	}
}

func (o CompositeOptions) normalized() CompositeOptions {
	if o.PathMultiplier == 0 {
		o.PathMultiplier = 16
	}
	if o.ScaleFactor <= 0 {
		o.ScaleFactor = 1
	}
	if o.BufferSize < 0 {
		o.BufferSize = 0
	}
	return o
}

//RenderRequest 交给渲染管线的参数,Layers的坐标系各自对应源瓦片
type RenderRequest struct {
	Coord   maptile.Tile
	Width   uint32
	Height  uint32
	Extent  orb.Bound //目标瓦片墨卡托范围,已按缓冲区外扩
	Layers  []*Datasource
	Options CompositeOptions
}

//Renderer 渲染管线,把若干图层重新裁剪编码到目标瓦片
type Renderer interface {
	Render(req *RenderRequest) ([]byte, error)
}

//Compositor 瓦片合并
type Compositor struct {
	Renderer Renderer
}

func NewCompositor(r Renderer) *Compositor {
	return &Compositor{Renderer: r}
}

//peek 返回源瓦片的解码结构,不修改源瓦片状态
func (b *Buffer) peek() (*Store, error) {
	switch b.state {
	case StateEmpty:
		return &Store{}, nil
	case StateDecoded:
		return b.store, nil
	case StatePendingReplace:
		if len(b.data) == 0 {
			return nil, NewDecodeError("cannot parse zero length buffer", nil)
		}
		return Decode(b.data)
	}
	s, err := Decode(b.data[b.offset:])
	if err != nil {
		return nil, err
	}
	merged := &Store{Layers: make([]*Layer, 0, len(b.store.Layers)+len(s.Layers))}
	merged.Layers = append(merged.Layers, b.store.Layers...)
	merged.Layers = append(merged.Layers, s.Layers...)
	return merged, nil
}

//Composite 合并源瓦片到目标瓦片。同坐标的源直接拼接字节,
//其它源的图层通过渲染管线一次性重投影到目标瓦片。失败时目标瓦片不变
func (c *Compositor) Composite(target *Tile, sources []*Tile, opts CompositeOptions) error {
	opts = opts.normalized()
	var out []byte
	var foreign []*Datasource
	for _, src := range sources {
		if src == nil {
			continue
		}
		if src.coord == target.coord {
			data := src.buf.Bytes()
			if len(data) == 0 {
				continue
			}
			out = append(out, data...)
			continue
		}
		s, err := src.buf.peek()
		if err != nil {
			return err
		}
		for _, l := range s.Layers {
			if l.Empty() {
				continue
			}
			foreign = append(foreign, NewDatasource(l, src.coord, src.width))
		}
	}
	if len(foreign) > 0 {
		if c.Renderer == nil {
			return NewRenderPipelineError(errors.New("no renderer configured"))
		}
		req := &RenderRequest{
			Coord:   target.coord,
			Width:   target.width,
			Height:  target.height,
			Extent:  MercatorBound(target.coord, target.width, float64(opts.BufferSize)*opts.ScaleFactor),
			Layers:  foreign,
			Options: opts,
		}
		data, err := c.Renderer.Render(req)
		if err != nil {
			return NewRenderPipelineError(err)
		}
		log.Debugf("rendered %d foreign layers into %s, %d bytes", len(foreign), target, len(data))
		out = append(out, data...)
	}
	if len(out) == 0 {
		return nil
	}
	target.buf.AppendBytes(out)
	target.painted = true
	return nil
}
