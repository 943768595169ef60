package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/karlseguin/ccache/v3"
	"github.com/paulmach/orb/maptile"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"Fast-VTiler/task"
	"Fast-VTiler/vtile"
)

//Options 服务参数
type Options struct {
	CacheSize int64
	CacheTTL  time.Duration
	MaxZoom   int
}

//Server 瓦片服务,按需合并瓦片并缓存合并结果
type Server struct {
	assembler  *task.Assembler
	tiles      *ccache.Cache[[]byte]
	inflight   singleflight.Group
	ttl        time.Duration
	maxZoom    int
	querier    *vtile.Querier
	serializer *vtile.Serializer
	engine     *gin.Engine
}

//New 创建服务
func New(a *task.Assembler, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 1024
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 10 * time.Minute
	}
	if opts.MaxZoom <= 0 || opts.MaxZoom > 32 {
		opts.MaxZoom = 22
	}
	s := &Server{
		assembler:  a,
		tiles:      ccache.New(ccache.Configure[[]byte]().MaxSize(opts.CacheSize)),
		ttl:        opts.CacheTTL,
		maxZoom:    opts.MaxZoom,
		querier:    vtile.NewQuerier(nil),
		serializer: vtile.NewSerializer(nil),
	}
	s.engine = s.routes()
	return s
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), accessLog())
	r.GET("/tiles/:z/:x/:y", s.getTile)
	r.GET("/tiles/:z/:x/:y/geojson", s.getGeoJSON)
	r.GET("/tiles/:z/:x/:y/json", s.getJSON)
	r.GET("/tiles/:z/:x/:y/names", s.getNames)
	r.POST("/tiles/:z/:x/:y/query", s.postQueryMany)
	r.GET("/query", s.getQuery)
	return r
}

//Handler http处理器
func (s *Server) Handler() http.Handler {
	return s.engine
}

//Run 启动服务,ctx取消时关闭
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.engine}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdown)
	}()
	log.Infof("tile server listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

//Stop 关闭缓存
func (s *Server) Stop() {
	s.tiles.Stop()
}

func accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Infof("%s %s %d %s", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
	}
}

//load 读取合并后的瓦片字节,同一瓦片并发请求只合并一次
func (s *Server) load(ctx context.Context, t maptile.Tile) ([]byte, error) {
	key := fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
	item := s.tiles.Get(key)
	if item != nil && !item.Expired() {
		return item.Value(), nil
	}
	v, err, _ := s.inflight.Do(key, func() (interface{}, error) {
		vt, err := s.assembler.Assemble(context.WithoutCancel(ctx), t)
		if err != nil {
			return nil, err
		}
		data := vt.GetData()
		s.tiles.Set(key, data, s.ttl)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (s *Server) coord(c *gin.Context) (maptile.Tile, error) {
	parse := func(name string) (uint32, error) {
		v := strings.TrimSuffix(c.Param(name), ".pbf")
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("invalid %s %q", name, c.Param(name))
		}
		return uint32(n), nil
	}
	z, err := parse("z")
	if err != nil {
		return maptile.Tile{}, err
	}
	x, err := parse("x")
	if err != nil {
		return maptile.Tile{}, err
	}
	y, err := parse("y")
	if err != nil {
		return maptile.Tile{}, err
	}
	if int(z) > s.maxZoom || x >= 1<<z || y >= 1<<z {
		return maptile.Tile{}, fmt.Errorf("tile %d/%d/%d out of range", z, x, y)
	}
	return maptile.New(x, y, maptile.Zoom(z)), nil
}

//tile 解析请求坐标并读取瓦片,失败时已写出响应
func (s *Server) tile(c *gin.Context) (*vtile.Tile, bool) {
	t, err := s.coord(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return nil, false
	}
	return s.tileAt(c, t)
}

func (s *Server) tileAt(c *gin.Context, t maptile.Tile) (*vtile.Tile, bool) {
	data, err := s.load(c.Request.Context(), t)
	if err != nil {
		abort(c, err)
		return nil, false
	}
	vt, err := vtile.NewTile(uint32(t.Z), t.X, t.Y, s.assembler.Width, s.assembler.Width)
	if err != nil {
		abort(c, err)
		return nil, false
	}
	if len(data) > 0 {
		if err := vt.SetData(data); err != nil {
			abort(c, err)
			return nil, false
		}
	}
	return vt, true
}

//abort 按错误类型写出状态码
func abort(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var (
		lnf *vtile.LayerNotFoundError
		ioe *vtile.IndexOutOfRangeError
		pe  *vtile.ProjectionError
	)
	switch {
	case errors.As(err, &lnf):
		status = http.StatusNotFound
	case errors.As(err, &ioe), errors.As(err, &pe):
		status = http.StatusBadRequest
	}
	if status == http.StatusInternalServerError {
		log.Errorf("%s %s error ~ %s", c.Request.Method, c.Request.URL.Path, err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
