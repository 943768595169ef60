package render

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"Fast-VTiler/vtile"
)

//Renderer 默认渲染管线:按目标瓦片范围裁剪、重投影、简化并重新编码
type Renderer struct {
	Workers       int     //并行处理的图层数
	AreaThreshold float64 //输出瓦片坐标单位
}

//New 创建渲染管线
func New(workers int) *Renderer {
	if workers <= 0 {
		workers = 4
	}
	return &Renderer{Workers: workers, AreaThreshold: 0.1}
}

//Render 每个输入图层输出一个同名图层,无要素的图层不输出
func (r *Renderer) Render(req *vtile.RenderRequest) ([]byte, error) {
	if req.Width == 0 {
		return nil, errors.New("render: zero tile width")
	}
	opts := req.Options
	if opts.PathMultiplier == 0 {
		return nil, errors.New("render: zero path multiplier")
	}
	extent := req.Width * opts.PathMultiplier
	pixel := float64(opts.PathMultiplier)
	p := &vtile.Pipeline{
		Clip:          req.Extent,
		Frame:         vtile.NewFrame(req.Coord, extent),
		OffsetX:       opts.OffsetX * pixel,
		OffsetY:       opts.OffsetY * pixel,
		Tolerance:     opts.Tolerance,
		AreaThreshold: r.AreaThreshold,
	}
	if opts.ScaleDenominator > 0 {
		log.Debugf("render %d/%d/%d at scale denominator %f", req.Coord.Z, req.Coord.X, req.Coord.Y, opts.ScaleDenominator)
	}

	layers := make([]*vtile.Layer, len(req.Layers))
	var g errgroup.Group
	workers := r.Workers
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)
	for i, ds := range req.Layers {
		i, ds := i, ds
		g.Go(func() error {
			l, err := r.renderLayer(ds, p, extent, req)
			if err != nil {
				return fmt.Errorf("layer %s: %w", ds.Name(), err)
			}
			layers[i] = l
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &vtile.Store{}
	for _, l := range layers {
		if l != nil {
			out.Layers = append(out.Layers, l)
		}
	}
	if len(out.Layers) == 0 {
		return nil, nil
	}
	return vtile.Encode(out), nil
}

func (r *Renderer) renderLayer(ds *vtile.Datasource, p *vtile.Pipeline, extent uint32, req *vtile.RenderRequest) (*vtile.Layer, error) {
	b := vtile.NewLayerBuilder(ds.Name(), extent)
	fs := ds.Features(req.Extent, nil)
	dropped := 0
	for f := fs.Next(); f != nil; f = fs.Next() {
		if f.Raster != nil {
			dropped++
			continue
		}
		g := p.Process(f.Geometry)
		if g == nil {
			continue
		}
		b.AddGeometry(f.ID, f.HasID, g, f.Properties)
	}
	if dropped > 0 {
		log.Debugf("layer %s: %d raster features cannot be reprojected, dropped", ds.Name(), dropped)
	}
	if b.Len() == 0 {
		return nil, nil
	}
	return b.Layer(), nil
}
