package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"Fast-VTiler/render"
	"Fast-VTiler/server"
	"Fast-VTiler/task"
	"Fast-VTiler/tracker"
	"Fast-VTiler/vtile"
)

//flag
var (
	hf   bool
	cf   string
	mode string
	id   string
	lf   string
)

func init() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&cf, "c", "conf.toml", "set config `file`")
	flag.StringVar(&mode, "m", "serve", "run `mode`: serve, composite, retry, import, export")
	flag.StringVar(&id, "id", "", "task `id` to resume, retry, import or export")
	flag.StringVar(&lf, "f", "", "z/x/y list `file` for import")
	flag.Usage = usage
}

func usage() {
	fmt.Fprintf(os.Stderr, `Fast-VTiler version: Fast-VTiler/1.0
Usage: Fast-VTiler [-h] [-c filename] [-m mode] [-id task] [-f file]
`)
	flag.PrintDefaults()
}

//initLog 初始化日志,同时写文件和屏幕
func initLog() {
	log.SetFormatter(&nested.Formatter{
		HideKeys:        true,
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
	writers := []io.Writer{os.Stdout}
	file, err := os.OpenFile(viper.GetString("log.file"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err == nil {
		writers = append(writers, file)
	}
	log.SetOutput(io.MultiWriter(writers...))
	if err != nil {
		log.Info("failed to log to file.")
	}
	level, err := log.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		level = log.InfoLevel
	}
	log.SetLevel(level)
}

//initConf 初始化配置
func initConf(cfgFile string) {
	viper.SetDefault("app.version", "v 0.1.0")
	viper.SetDefault("app.title", "MapCloud VTiler")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.file", "vtiler.log")
	viper.SetDefault("tile.width", vtile.DefaultTileSize)
	viper.SetDefault("composite.path_multiplier", 16)
	viper.SetDefault("composite.buffer_size", 1)
	viper.SetDefault("composite.scale_factor", 1.0)
	viper.SetDefault("composite.offset_x", 0.0)
	viper.SetDefault("composite.offset_y", 0.0)
	viper.SetDefault("composite.tolerance", 8.0)
	viper.SetDefault("composite.scale_denominator", 0.0)
	viper.SetDefault("composite.workers", 4)
	viper.SetDefault("output.format", "mbtiles")
	viper.SetDefault("output.directory", "output")
	viper.SetDefault("output.gzip", true)
	viper.SetDefault("task.name", "composite")
	viper.SetDefault("task.minzoom", 0)
	viper.SetDefault("task.maxzoom", 14)
	viper.SetDefault("task.workers", 4)
	viper.SetDefault("task.savepipe", 8)
	viper.SetDefault("server.addr", ":8080")
	viper.SetDefault("server.cache_size", 1024)
	viper.SetDefault("server.cache_ttl", "10m")
	viper.SetDefault("server.maxzoom", 22)

	viper.SetConfigType("toml")
	viper.SetConfigFile(cfgFile)
	viper.AutomaticEnv()
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		log.Warnf("config file(%s) not exist", cfgFile)
		return
	}
	if err := viper.ReadInConfig(); err != nil {
		log.Warnf("read config file(%s) error, details: %s", viper.ConfigFileUsed(), err)
	}
}

func compositeOptions() vtile.CompositeOptions {
	return vtile.CompositeOptions{
		PathMultiplier:   viper.GetUint32("composite.path_multiplier"),
		BufferSize:       viper.GetInt("composite.buffer_size"),
		ScaleFactor:      viper.GetFloat64("composite.scale_factor"),
		OffsetX:          viper.GetFloat64("composite.offset_x"),
		OffsetY:          viper.GetFloat64("composite.offset_y"),
		Tolerance:        viper.GetFloat64("composite.tolerance"),
		ScaleDenominator: viper.GetFloat64("composite.scale_denominator"),
	}
}

func newTracker() tracker.Tracker {
	if addr := viper.GetString("redis.addr"); addr != "" {
		return tracker.NewRedis(addr)
	}
	log.Warnf("redis.addr not set, task cursor and failed tiles kept in memory")
	return tracker.NewMemory()
}

func newTask(a *task.Assembler, tr tracker.Tracker) (*task.Task, error) {
	bounds := task.World
	if viper.IsSet("task.bounds") {
		if err := viper.UnmarshalKey("task.bounds", &bounds); err != nil {
			return nil, fmt.Errorf("task.bounds配置错误: %w", err)
		}
	}
	return task.NewTask(task.Options{
		Name:        viper.GetString("task.name"),
		Description: viper.GetString("task.description"),
		Bounds:      bounds,
		MinZoom:     viper.GetInt("task.minzoom"),
		MaxZoom:     viper.GetInt("task.maxzoom"),
		Workers:     viper.GetInt("task.workers"),
		SavePipe:    viper.GetInt("task.savepipe"),
		Format:      viper.GetString("output.format"),
		Directory:   viper.GetString("output.directory"),
		Conn:        viper.GetString("output.conn"),
		Gzip:        viper.GetBool("output.gzip"),
		Progress:    os.Stderr,
	}, a, tr, id)
}

func run(ctx context.Context) error {
	tr := newTracker()
	defer tr.Close()
	switch mode {
	case "import":
		f, err := os.Open(lf)
		if err != nil {
			return err
		}
		defer f.Close()
		n, err := tracker.ImportFailed(tr, id, f, tracker.ReasonSave)
		log.Infof("imported %d tiles into task %s", n, id)
		return err
	case "export":
		_, err := tracker.ExportFailed(tr, id, os.Stdout)
		return err
	}

	var cfgs []task.SourceConfig
	if err := viper.UnmarshalKey("sources", &cfgs); err != nil {
		return fmt.Errorf("sources配置错误: %w", err)
	}
	sources, closeSources, err := task.OpenSources(cfgs)
	if err != nil {
		return err
	}
	defer closeSources()
	a := task.NewAssembler(sources, render.New(viper.GetInt("composite.workers")), compositeOptions(), viper.GetUint32("tile.width"))

	switch mode {
	case "serve":
		s := server.New(a, server.Options{
			CacheSize: viper.GetInt64("server.cache_size"),
			CacheTTL:  viper.GetDuration("server.cache_ttl"),
			MaxZoom:   viper.GetInt("server.maxzoom"),
		})
		defer s.Stop()
		return s.Run(ctx, viper.GetString("server.addr"))
	case "composite", "retry":
		if mode == "retry" && id == "" {
			return fmt.Errorf("retry needs -id")
		}
		t, err := newTask(a, tr)
		if err != nil {
			return err
		}
		defer t.Close()
		log.Infof("task %s: %d tiles in zoom %d-%d", t.ID, t.Total, t.MinZoom, t.MaxZoom)
		if mode == "retry" {
			return t.Retry(ctx)
		}
		return t.Run(ctx)
	}
	return fmt.Errorf("unknown mode %q", mode)
}

func main() {
	flag.Parse()
	if hf {
		flag.Usage()
		return
	}
	if cf == "" {
		cf = "conf.toml"
	}
	initConf(cf)
	initLog()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	start := time.Now()
	if err := run(ctx); err != nil {
		log.Errorf("%s failed ~ %s", mode, err)
		stop()
		os.Exit(1)
	}
	secs := time.Since(start).Seconds()
	fmt.Printf("\n%.3fs finished...\n", secs)
}
