package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/pretty"

	"Fast-VTiler/mbtiles"
	"Fast-VTiler/vtile"
)

var (
	mode    string
	in      string
	out     string
	coord   string
	layer   string
	layers  string
	index   int
	zoom    int
	workers int
	color   bool
)

func init() {
	flag.StringVar(&mode, "m", "inspect", "`mode`: inspect, geojson, copy")
	flag.StringVar(&in, "in", "", "source mbtiles `file`")
	flag.StringVar(&out, "out", "", "target mbtiles `file` for copy")
	flag.StringVar(&coord, "t", "0/0/0", "tile `z/x/y`")
	flag.StringVar(&layer, "layer", vtile.SelectAll, "geojson layer name, __all__ or __array__")
	flag.IntVar(&index, "index", -1, "geojson layer index, overrides -layer when >= 0")
	flag.StringVar(&layers, "layers", "", "comma separated layers kept by copy, empty keeps all")
	flag.IntVar(&zoom, "z", 0, "zoom level for copy")
	flag.IntVar(&workers, "w", 8, "copy workers")
	flag.BoolVar(&color, "color", false, "colorize json output")
}

func main() {
	flag.Parse()
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	file, err := os.OpenFile("export.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	writers := []io.Writer{os.Stderr}
	if err == nil {
		writers = append(writers, file)
	}
	log.SetOutput(io.MultiWriter(writers...))
	log.SetLevel(log.DebugLevel)

	switch mode {
	case "inspect", "geojson":
		err = inspect(mode == "geojson")
	case "copy":
		err = copyZoom()
	default:
		err = fmt.Errorf("unknown mode %q", mode)
	}
	if err != nil {
		log.Fatal(err)
	}
}

func parseCoord(s string) (uint32, uint32, uint32, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expect z/x/y, got %q", s)
	}
	var v [3]uint32
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return 0, 0, 0, err
		}
		v[i] = uint32(n)
	}
	return v[0], v[1], v[2], nil
}

func printJSON(data []byte) {
	data = pretty.Pretty(data)
	if color {
		data = pretty.Color(data, nil)
	}
	os.Stdout.Write(data)
}

//inspect 输出瓦片的属性树或GeoJSON
func inspect(asGeoJSON bool) error {
	z, x, y, err := parseCoord(coord)
	if err != nil {
		return err
	}
	db, err := mbtiles.Open(mbtiles.FormatMBTiles, in)
	if err != nil {
		return err
	}
	defer db.Close()
	data, err := db.ReadTile(z, x, y)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("tile %s not found in %s", coord, in)
	}
	t, err := vtile.NewTile(z, x, y, 0, 0)
	if err != nil {
		return err
	}
	if err := t.SetData(data); err != nil {
		return err
	}
	if asGeoJSON {
		sel := vtile.ParseSelector(layer)
		if index >= 0 {
			sel = vtile.ByIndex(index)
		}
		text, err := vtile.NewSerializer(nil).ToGeoJSON(t, sel)
		if err != nil {
			return err
		}
		printJSON(text)
		return nil
	}
	solid, key, err := t.IsSolid()
	if err != nil {
		return err
	}
	info, err := t.ToJSON()
	if err != nil {
		return err
	}
	var sb strings.Builder
	sb.WriteString(`{"tile":"` + t.String() + `","bytes":` + strconv.Itoa(len(data)))
	sb.WriteString(`,"solid":` + strconv.FormatBool(solid))
	if solid {
		sb.WriteString(`,"solid_key":` + strconv.Quote(key))
	}
	sb.WriteString(`,"layers":[`)
	for i, l := range info {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `{"name":%q,"version":%d,"extent":%d,"features":%d}`, l.Name, l.Version, l.Extent, len(l.Features))
	}
	sb.WriteString("]}")
	printJSON([]byte(sb.String()))
	return nil
}

//filterLayers 只保留keep中的图层,keep为空时原样返回
func filterLayers(data []byte, keep map[string]bool) ([]byte, error) {
	if len(keep) == 0 {
		return data, nil
	}
	raw, err := mbtiles.Gunzip(data)
	if err != nil {
		return nil, err
	}
	s, err := vtile.Decode(raw)
	if err != nil {
		return nil, err
	}
	kept := &vtile.Store{}
	for _, l := range s.Layers {
		if keep[l.Name] {
			kept.Layers = append(kept.Layers, l)
		}
	}
	if len(kept.Layers) == 0 {
		return nil, nil
	}
	enc := vtile.Encode(kept)
	if mbtiles.IsGzip(data) {
		return mbtiles.Gzip(enc)
	}
	return enc, nil
}

//copyZoom 按列并行复制一个层级的瓦片
func copyZoom() error {
	keep := map[string]bool{}
	for _, name := range strings.Split(layers, ",") {
		if name = strings.TrimSpace(name); name != "" {
			keep[name] = true
		}
	}
	src, err := mbtiles.Open(mbtiles.FormatMBTiles, in)
	if err != nil {
		return err
	}
	defer src.Close()
	meta, err := src.Metadata()
	if err != nil {
		return err
	}
	minz, _ := strconv.Atoi(meta["minzoom"])
	maxz, _ := strconv.Atoi(meta["maxzoom"])
	dst, err := mbtiles.Create(mbtiles.FormatMBTiles, out, "", mbtiles.Meta{
		Name:        meta["name"],
		Description: meta["description"],
		Format:      meta["format"],
		MinZoom:     minz,
		MaxZoom:     maxz,
		JSON:        meta["json"],
	}, false)
	if err != nil {
		return err
	}
	defer dst.Close()
	maxCol, err := src.MaxColumn(uint32(zoom))
	if err != nil {
		return err
	}

	start := time.Now()
	sem := make(chan struct{}, workers)
	savingpipe := make(chan []mbtiles.Tile, 16)
	var wg sync.WaitGroup
	done := make(chan int)
	go func() {
		count := 0
		for batch := range savingpipe {
			if err := dst.SaveTiles(batch); err != nil {
				log.Errorf("save column %d error ~ %s", batch[0].X, err)
				continue
			}
			count += len(batch)
		}
		done <- count
	}()
	for col := 0; col <= maxCol; col++ {
		sem <- struct{}{}
		wg.Add(1)
		go func(col int) {
			defer func() {
				wg.Done()
				<-sem
			}()
			tiles, err := src.Column(uint32(zoom), col)
			if err != nil {
				log.Errorf("read column %d error ~ %s", col, err)
				return
			}
			batch := tiles[:0]
			for _, t := range tiles {
				data, err := filterLayers(t.Data, keep)
				if err != nil {
					log.Warnf("skip %d/%d/%d ~ %s", t.Z, t.X, t.Y, err)
					continue
				}
				if data == nil {
					continue
				}
				t.Data = data
				batch = append(batch, t)
			}
			if len(batch) > 0 {
				savingpipe <- batch
			}
		}(col)
	}
	wg.Wait()
	close(savingpipe)
	count := <-done
	log.Infof("zoom %d copied %d tiles, cost %s", zoom, count, time.Since(start))
	return nil
}
