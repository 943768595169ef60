package vtile

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"google.golang.org/protobuf/encoding/protowire"
)

const (
	cmdMoveTo    = 1
	cmdLineTo    = 2
	cmdClosePath = 7
)

var errLineToFirst = errors.New("lineto before moveto")

func command(id, count uint32) uint32 {
	return (id & 0x7) | (count << 3)
}

type path struct {
	points []orb.Point
	closed bool
}

func decodePaths(cmds []uint32) ([]path, error) {
	var x, y int64
	var paths []path
	for i := 0; i < len(cmds); {
		id, count := cmds[i]&0x7, int(cmds[i]>>3)
		i++
		switch id {
		case cmdMoveTo, cmdLineTo:
			if i+2*count > len(cmds) {
				return nil, fmt.Errorf("command %d with count %d overruns geometry", id, count)
			}
			for j := 0; j < count; j++ {
				x += protowire.DecodeZigZag(uint64(cmds[i]))
				y += protowire.DecodeZigZag(uint64(cmds[i+1]))
				i += 2
				p := orb.Point{float64(x), float64(y)}
				if id == cmdMoveTo {
					paths = append(paths, path{points: []orb.Point{p}})
					continue
				}
				if len(paths) == 0 {
					return nil, errLineToFirst
				}
				last := &paths[len(paths)-1]
				last.points = append(last.points, p)
			}
		case cmdClosePath:
			if len(paths) == 0 {
				return nil, errors.New("closepath before moveto")
			}
			paths[len(paths)-1].closed = true
		default:
			return nil, fmt.Errorf("unknown geometry command %d", id)
		}
	}
	return paths, nil
}

//DecodeGeometry 解析命令流为瓦片坐标下的几何,无有效顶点时返回nil
func DecodeGeometry(typ GeomType, cmds []uint32) (orb.Geometry, error) {
	if typ == GeomUnknown || len(cmds) == 0 {
		return nil, nil
	}
	paths, err := decodePaths(cmds)
	if err != nil {
		return nil, err
	}
	switch typ {
	case GeomPoint:
		var mp orb.MultiPoint
		for _, p := range paths {
			mp = append(mp, p.points...)
		}
		switch len(mp) {
		case 0:
			return nil, nil
		case 1:
			return mp[0], nil
		}
		return mp, nil
	case GeomLineString:
		var mls orb.MultiLineString
		for _, p := range paths {
			if len(p.points) < 2 {
				continue
			}
			mls = append(mls, orb.LineString(p.points))
		}
		switch len(mls) {
		case 0:
			return nil, nil
		case 1:
			return mls[0], nil
		}
		return mls, nil
	case GeomPolygon:
		return decodePolygons(paths), nil
	}
	return nil, fmt.Errorf("unknown geometry type %d", typ)
}

//decodePolygons 以第一个环的方向为外环方向,反向的环作为洞
func decodePolygons(paths []path) orb.Geometry {
	var mp orb.MultiPolygon
	var outer orb.Orientation
	for _, p := range paths {
		if len(p.points) < 3 {
			continue
		}
		ring := make(orb.Ring, 0, len(p.points)+1)
		ring = append(ring, p.points...)
		if ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		o := ring.Orientation()
		if o == 0 {
			continue
		}
		if outer == 0 {
			outer = o
		}
		if o == outer || len(mp) == 0 {
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		last := len(mp) - 1
		mp[last] = append(mp[last], ring)
	}
	switch len(mp) {
	case 0:
		return nil
	case 1:
		return mp[0]
	}
	return mp
}

type encoder struct {
	cmds []uint32
	x, y int64
}

func (e *encoder) delta(p orb.Point) {
	px, py := int64(math.Round(p[0])), int64(math.Round(p[1]))
	e.cmds = append(e.cmds,
		uint32(protowire.EncodeZigZag(px-e.x)),
		uint32(protowire.EncodeZigZag(py-e.y)))
	e.x, e.y = px, py
}

func (e *encoder) points(pts []orb.Point) {
	if len(pts) == 0 {
		return
	}
	e.cmds = append(e.cmds, command(cmdMoveTo, uint32(len(pts))))
	for _, p := range pts {
		e.delta(p)
	}
}

func (e *encoder) line(pts []orb.Point, closed bool) {
	e.cmds = append(e.cmds, command(cmdMoveTo, 1))
	e.delta(pts[0])
	e.cmds = append(e.cmds, command(cmdLineTo, uint32(len(pts)-1)))
	for _, p := range pts[1:] {
		e.delta(p)
	}
	if closed {
		e.cmds = append(e.cmds, command(cmdClosePath, 1))
	}
}

func round(p orb.Point) orb.Point {
	return orb.Point{math.Round(p[0]), math.Round(p[1])}
}

//dedupe 取整后去掉连续重复点
func dedupe(pts []orb.Point) []orb.Point {
	out := make([]orb.Point, 0, len(pts))
	for _, p := range pts {
		p = round(p)
		if len(out) > 0 && out[len(out)-1] == p {
			continue
		}
		out = append(out, p)
	}
	return out
}

func (e *encoder) lineString(ls orb.LineString) {
	pts := dedupe(ls)
	if len(pts) < 2 {
		return
	}
	e.line(pts, false)
}

//ring 外环按瓦片坐标(y向下)面积为正输出,内环相反
func (e *encoder) ring(r orb.Ring, exterior bool) bool {
	pts := dedupe(r)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	if len(pts) < 3 {
		return false
	}
	o := orb.Ring(pts).Orientation()
	if o == 0 {
		return false
	}
	want := orb.CCW
	if !exterior {
		want = orb.CW
	}
	if o != want {
		for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
			pts[i], pts[j] = pts[j], pts[i]
		}
	}
	e.line(pts, true)
	return true
}

func (e *encoder) polygon(p orb.Polygon) {
	for i, r := range p {
		ok := e.ring(r, i == 0)
		if i == 0 && !ok {
			return
		}
	}
}

//EncodeGeometry 瓦片坐标几何编码为命令流,坐标四舍五入取整
func EncodeGeometry(g orb.Geometry) (GeomType, []uint32) {
	e := &encoder{}
	var typ GeomType
	switch g := g.(type) {
	case orb.Point:
		typ = GeomPoint
		e.points([]orb.Point{g})
	case orb.MultiPoint:
		typ = GeomPoint
		e.points(g)
	case orb.LineString:
		typ = GeomLineString
		e.lineString(g)
	case orb.MultiLineString:
		typ = GeomLineString
		for _, ls := range g {
			e.lineString(ls)
		}
	case orb.Ring:
		typ = GeomPolygon
		e.polygon(orb.Polygon{g})
	case orb.Polygon:
		typ = GeomPolygon
		e.polygon(g)
	case orb.MultiPolygon:
		typ = GeomPolygon
		for _, p := range g {
			e.polygon(p)
		}
	case orb.Bound:
		typ = GeomPolygon
		e.polygon(g.ToPolygon())
	default:
		return GeomUnknown, nil
	}
	if len(e.cmds) == 0 {
		return GeomUnknown, nil
	}
	return typ, e.cmds
}
