package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"

	"Fast-VTiler/proj"
	"Fast-VTiler/task"
	"Fast-VTiler/vtile"
)

func (s *Server) getTile(c *gin.Context) {
	vt, ok := s.tile(c)
	if !ok {
		return
	}
	data := vt.GetData()
	if len(data) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(http.StatusOK, "application/x-protobuf", data)
}

//getGeoJSON layer按图层名或__all__/__array__选择,index按序号选择
func (s *Server) getGeoJSON(c *gin.Context) {
	vt, ok := s.tile(c)
	if !ok {
		return
	}
	sel := vtile.ParseSelector(c.DefaultQuery("layer", vtile.SelectAll))
	if v, ok := c.GetQuery("index"); ok {
		i, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid index " + strconv.Quote(v)})
			return
		}
		sel = vtile.ByIndex(i)
	}
	out, err := s.serializer.ToGeoJSON(vt, sel)
	if err != nil {
		abort(c, err)
		return
	}
	c.Data(http.StatusOK, "application/geo+json", out)
}

func (s *Server) getJSON(c *gin.Context) {
	vt, ok := s.tile(c)
	if !ok {
		return
	}
	info, err := vt.ToJSON()
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) getNames(c *gin.Context) {
	vt, ok := s.tile(c)
	if !ok {
		return
	}
	names, err := vt.Names()
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, names)
}

//featureJSON 查询结果中的要素,几何为经纬度
type featureJSON struct {
	ID         *uint64                `json:"id,omitempty"`
	Type       string                 `json:"type"`
	Geometry   *geojson.Geometry      `json:"geometry"`
	Properties map[string]interface{} `json:"properties"`
}

func toFeatureJSON(f *vtile.MapFeature) (featureJSON, error) {
	out := featureJSON{
		Type:       f.Type.String(),
		Properties: make(map[string]interface{}, len(f.Properties)),
	}
	if f.HasID {
		id := f.ID
		out.ID = &id
	}
	for _, p := range f.Properties {
		out.Properties[p.Key] = p.Value.Interface()
	}
	if f.Geometry != nil {
		g, err := proj.Geometry(orb.Clone(f.Geometry), proj.MercatorToWGS84{})
		if err != nil {
			return out, err
		}
		out.Geometry = geojson.NewGeometry(g)
	}
	return out, nil
}

type queryResultJSON struct {
	Layer    string      `json:"layer"`
	Distance float64     `json:"distance"`
	Feature  featureJSON `json:"feature"`
}

//getQuery 查询经纬度所在瓦片中的最近要素
func (s *Server) getQuery(c *gin.Context) {
	var req struct {
		Lon       *float64 `form:"lon" binding:"required"`
		Lat       *float64 `form:"lat" binding:"required"`
		Z         int      `form:"z"`
		Tolerance float64  `form:"tolerance"`
		Layer     string   `form:"layer"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Z < 0 || req.Z > s.maxZoom {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid zoom " + strconv.Itoa(req.Z)})
		return
	}
	if _, _, _, err := (proj.WGS84ToMercator{}).Forward(*req.Lon, *req.Lat, 0); err != nil {
		abort(c, vtile.NewProjectionError(*req.Lon, *req.Lat, err))
		return
	}
	x, y := task.GetTile(*req.Lon, *req.Lat, req.Z)
	last := 1<<req.Z - 1
	x, y = min(max(x, 0), last), min(max(y, 0), last)
	vt, ok := s.tileAt(c, maptile.New(uint32(x), uint32(y), maptile.Zoom(req.Z)))
	if !ok {
		return
	}
	results, err := s.querier.Query(vt, *req.Lon, *req.Lat, vtile.QueryOptions{Tolerance: req.Tolerance, Layer: req.Layer})
	if err != nil {
		abort(c, err)
		return
	}
	out := make([]queryResultJSON, 0, len(results))
	for _, r := range results {
		f, err := toFeatureJSON(r.Feature)
		if err != nil {
			abort(c, err)
			return
		}
		out = append(out, queryResultJSON{Layer: r.Layer, Distance: r.Distance, Feature: f})
	}
	c.JSON(http.StatusOK, gin.H{"tile": vt.String(), "results": out})
}

type queryManyRequest struct {
	Points    [][2]float64 `json:"points" binding:"required"`
	Tolerance float64      `json:"tolerance"`
	Layer     string       `json:"layer"`
	Fields    []string     `json:"fields"`
}

type hitJSON struct {
	Feature  int     `json:"feature"`
	Distance float64 `json:"distance"`
}

//postQueryMany 批量查询,hits按点序号给出命中的要素序号
func (s *Server) postQueryMany(c *gin.Context) {
	var req queryManyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	vt, ok := s.tile(c)
	if !ok {
		return
	}
	points := make([]orb.Point, len(req.Points))
	for i, p := range req.Points {
		points[i] = orb.Point(p)
	}
	res, err := s.querier.QueryMany(vt, points, vtile.QueryManyOptions{
		Tolerance: req.Tolerance,
		Layer:     req.Layer,
		Fields:    req.Fields,
	})
	if err != nil {
		abort(c, err)
		return
	}
	features := make(map[string]featureJSON, len(res.Features))
	for id, f := range res.Features {
		fj, err := toFeatureJSON(f)
		if err != nil {
			abort(c, err)
			return
		}
		features[strconv.Itoa(id)] = fj
	}
	hits := make(map[string][]hitJSON, len(res.Hits))
	for i, list := range res.Hits {
		out := make([]hitJSON, len(list))
		for j, h := range list {
			out[j] = hitJSON{Feature: h.FeatureID, Distance: h.Distance}
		}
		hits[strconv.Itoa(i)] = out
	}
	c.JSON(http.StatusOK, gin.H{"features": features, "hits": hits})
}
