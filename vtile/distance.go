package vtile

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

//Distance 点到几何的最小距离,不匹配时返回-1。
//点取最近顶点,线取最近线段,多边形只判断是否包含(包含为0)
func Distance(g orb.Geometry, pt orb.Point) float64 {
	switch g := g.(type) {
	case orb.Point:
		return planar.Distance(g, pt)
	case orb.MultiPoint:
		return pointsDistance(g, pt)
	case orb.LineString:
		return lineDistance(g, pt)
	case orb.MultiLineString:
		d := -1.0
		for _, ls := range g {
			d = nearer(d, lineDistance(ls, pt))
		}
		return d
	case orb.Ring:
		return polygonDistance(orb.Polygon{g}, pt)
	case orb.Polygon:
		return polygonDistance(g, pt)
	case orb.MultiPolygon:
		d := -1.0
		for _, p := range g {
			d = nearer(d, polygonDistance(p, pt))
		}
		return d
	case orb.Collection:
		d := -1.0
		for _, c := range g {
			d = nearer(d, Distance(c, pt))
		}
		return d
	}
	return -1
}

func nearer(a, b float64) float64 {
	if b < 0 {
		return a
	}
	if a < 0 || b < a {
		return b
	}
	return a
}

func pointsDistance(pts []orb.Point, pt orb.Point) float64 {
	d := -1.0
	for _, p := range pts {
		d = nearer(d, planar.Distance(p, pt))
	}
	return d
}

func lineDistance(ls orb.LineString, pt orb.Point) float64 {
	d := -1.0
	for i := 1; i < len(ls); i++ {
		d = nearer(d, planar.DistanceFromSegment(ls[i-1], ls[i], pt))
	}
	return d
}

//polygonDistance 奇偶射线法,对所有环统一计数,y0==y1的水平边不计入
func polygonDistance(p orb.Polygon, pt orb.Point) float64 {
	x, y := pt[0], pt[1]
	inside := false
	vertices := 0
	for _, r := range p {
		n := len(r)
		if n == 0 {
			continue
		}
		vertices += n
		x0, y0 := r[n-1][0], r[n-1][1]
		for _, v := range r {
			x1, y1 := v[0], v[1]
			if ((y1 <= y && y < y0) || (y0 <= y && y < y1)) &&
				x < (x0-x1)*(y-y1)/(y0-y1)+x1 {
				inside = !inside
			}
			x0, y0 = x1, y1
		}
	}
	if vertices == 0 || !inside {
		return -1
	}
	return 0
}
