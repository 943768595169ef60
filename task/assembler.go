package task

import (
	"context"
	"fmt"

	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"Fast-VTiler/mbtiles"
	"Fast-VTiler/vtile"
)

//TileReader 源瓦片读取,数据不存在时返回nil
type TileReader interface {
	ReadTile(z, x, y uint32) ([]byte, error)
}

//Source 合并源,高于MaxZoom的层级使用MaxZoom的祖先瓦片
type Source struct {
	Name    string
	Reader  TileReader
	MinZoom maptile.Zoom
	MaxZoom maptile.Zoom
}

//Cover 返回为t提供数据的源瓦片
func (s Source) Cover(t maptile.Tile) (maptile.Tile, bool) {
	if t.Z < s.MinZoom {
		return t, false
	}
	return Ancestor(t, s.MaxZoom), true
}

//OpenSources 按配置打开mbtiles源
func OpenSources(cfgs []SourceConfig) ([]Source, func(), error) {
	var dbs []*mbtiles.DB
	closeAll := func() {
		for _, db := range dbs {
			_ = db.Close()
		}
	}
	sources := make([]Source, 0, len(cfgs))
	for _, c := range cfgs {
		format := c.Driver
		if format == "" {
			format = mbtiles.FormatMBTiles
		}
		db, err := mbtiles.Open(format, c.File)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("open source %s: %w", c.File, err)
		}
		dbs = append(dbs, db)
		name := c.Name
		if name == "" {
			name = c.File
		}
		sources = append(sources, Source{
			Name:    name,
			Reader:  db,
			MinZoom: maptile.Zoom(c.MinZoom),
			MaxZoom: maptile.Zoom(c.MaxZoom),
		})
	}
	return sources, closeAll, nil
}

//SourceConfig 源配置
type SourceConfig struct {
	Name    string
	File    string
	Driver  string
	MinZoom int
	MaxZoom int
}

//Assembler 读取各源瓦片并合并为一个瓦片
type Assembler struct {
	Sources    []Source
	Compositor *vtile.Compositor
	Options    vtile.CompositeOptions
	Width      uint32
}

//NewAssembler 创建合并器
func NewAssembler(sources []Source, renderer vtile.Renderer, opts vtile.CompositeOptions, width uint32) *Assembler {
	if width == 0 {
		width = vtile.DefaultTileSize
	}
	return &Assembler{
		Sources:    sources,
		Compositor: vtile.NewCompositor(renderer),
		Options:    opts,
		Width:      width,
	}
}

//Assemble 并行读取源瓦片,按源顺序合并到t
func (a *Assembler) Assemble(ctx context.Context, t maptile.Tile) (*vtile.Tile, error) {
	tiles := make([]*vtile.Tile, len(a.Sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, src := range a.Sources {
		i, src := i, src
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			st, ok := src.Cover(t)
			if !ok {
				return nil
			}
			data, err := src.Reader.ReadTile(uint32(st.Z), st.X, st.Y)
			if err != nil {
				return fmt.Errorf("source %s read %s: %w", src.Name, ToString(st), err)
			}
			if len(data) == 0 {
				return nil
			}
			vt, err := vtile.NewTile(uint32(st.Z), st.X, st.Y, a.Width, a.Width)
			if err != nil {
				return err
			}
			if err := vt.SetData(data); err != nil {
				return fmt.Errorf("source %s tile %s: %w", src.Name, ToString(st), err)
			}
			tiles[i] = vt
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	target, err := vtile.NewTile(uint32(t.Z), t.X, t.Y, a.Width, a.Width)
	if err != nil {
		return nil, err
	}
	if err := a.Compositor.Composite(target, tiles, a.Options); err != nil {
		return nil, err
	}
	log.Debugf("assembled %s, %d bytes", target, len(target.GetData()))
	return target, nil
}
