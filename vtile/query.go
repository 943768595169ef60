package vtile

import (
	"sort"

	"github.com/paulmach/orb"
	log "github.com/sirupsen/logrus"

	"Fast-VTiler/proj"
)

//Projection 投影服务,不可投影时返回错误
type Projection interface {
	Forward(x, y, z float64) (float64, float64, float64, error)
}

//QueryOptions 单点查询参数
type QueryOptions struct {
	Tolerance float64 //米
	Layer     string  //为空时查询全部图层
}

//QueryResult 单点查询结果
type QueryResult struct {
	Layer    string
	Distance float64
	Feature  *MapFeature
}

//QueryManyOptions 批量查询参数
type QueryManyOptions struct {
	Tolerance float64
	Layer     string   //必填
	Fields    []string //为空时返回图层字典中的全部字段
}

//QueryHit 批量查询中某个点命中的要素
type QueryHit struct {
	FeatureID int
	Distance  float64
}

//QueryManyResult 批量查询结果,Hits按点序号索引
type QueryManyResult struct {
	Features map[int]*MapFeature
	Hits     map[int][]QueryHit
}

//Querier 空间查询
type Querier struct {
	Projection Projection
}

//NewQuerier p为nil时使用经纬度到墨卡托的投影
func NewQuerier(p Projection) *Querier {
	if p == nil {
		p = proj.WGS84ToMercator{}
	}
	return &Querier{Projection: p}
}

func (q *Querier) forward(lon, lat float64) (orb.Point, error) {
	p := q.Projection
	if p == nil {
		p = proj.WGS84ToMercator{}
	}
	x, y, _, err := p.Forward(lon, lat, 0)
	if err != nil {
		return orb.Point{}, NewProjectionError(lon, lat, err)
	}
	return orb.Point{x, y}, nil
}

//Query 查询经纬度点附近的要素,按距离升序,距离相同保持遍历顺序
func (q *Querier) Query(t *Tile, lon, lat float64, opts QueryOptions) ([]QueryResult, error) {
	pt, err := q.forward(lon, lat)
	if err != nil {
		return nil, err
	}
	s, err := t.view()
	if err != nil {
		return nil, err
	}
	var layers []*Layer
	if opts.Layer != "" {
		if l := s.Layer(opts.Layer); l != nil {
			layers = append(layers, l)
		}
	} else {
		layers = s.Layers
	}
	results := []QueryResult{}
	for _, l := range layers {
		fs := NewDatasource(l, t.coord, t.width).FeaturesAt(pt, opts.Tolerance)
		for f := fs.Next(); f != nil; f = fs.Next() {
			d := Distance(f.Geometry, pt)
			if d < 0 {
				continue
			}
			results = append(results, QueryResult{Layer: l.Name, Distance: d, Feature: f})
		}
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	log.Debugf("query %s at %f,%f: %d results", t, lon, lat, len(results))
	return results, nil
}

//QueryMany 在单个图层上批量查询多个点,要素序号按首次命中顺序分配
func (q *Querier) QueryMany(t *Tile, points []orb.Point, opts QueryManyOptions) (*QueryManyResult, error) {
	if opts.Layer == "" {
		return nil, NewLayerNotFoundError("")
	}
	s, err := t.view()
	if err != nil {
		return nil, err
	}
	l := s.Layer(opts.Layer)
	if l == nil {
		return nil, NewLayerNotFoundError(opts.Layer)
	}
	res := &QueryManyResult{
		Features: make(map[int]*MapFeature),
		Hits:     make(map[int][]QueryHit),
	}
	if len(points) == 0 {
		return res, nil
	}
	pts := make([]orb.Point, len(points))
	for i, p := range points {
		pts[i], err = q.forward(p[0], p[1])
		if err != nil {
			return nil, err
		}
	}
	bbox := orb.Bound{Min: pts[0], Max: pts[0]}
	for _, p := range pts[1:] {
		bbox = bbox.Extend(p)
	}
	bbox = bbox.Pad(opts.Tolerance)
	fields := opts.Fields
	if len(fields) == 0 {
		fields = l.Keys
	}
	ds := NewDatasource(l, t.coord, t.width)
	fs := ds.Features(bbox, fields)
	idx := 0
	for f := fs.Next(); f != nil; f = fs.Next() {
		hit := false
		for i, p := range pts {
			d := Distance(f.Geometry, p)
			if d < 0 {
				continue
			}
			res.Hits[i] = append(res.Hits[i], QueryHit{FeatureID: idx, Distance: d})
			hit = true
		}
		if hit {
			res.Features[idx] = f
			idx++
		}
	}
	for i := range res.Hits {
		hits := res.Hits[i]
		sort.SliceStable(hits, func(a, b int) bool {
			return hits[a].Distance < hits[b].Distance
		})
	}
	return res, nil
}
