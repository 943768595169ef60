package vtile

import (
	"context"

	"github.com/paulmach/orb"
)

//Future 异步操作结果,只完成一次
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

//Go 在新的goroutine中执行fn
func Go[T any](fn func() (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn()
	}()
	return f
}

//Done 完成后关闭
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

//Wait 等待结果,ctx取消只影响等待,不中断操作本身
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

//Then 完成后回调一次
func (f *Future[T]) Then(cb func(T, error)) {
	go func() {
		<-f.done
		cb(f.val, f.err)
	}()
}

//ParseAsync 异步解码
func (t *Tile) ParseAsync() *Future[struct{}] {
	return Go(func() (struct{}, error) {
		return struct{}{}, t.Parse()
	})
}

//SetDataAsync 异步替换数据并解码
func (t *Tile) SetDataAsync(data []byte) *Future[struct{}] {
	return Go(func() (struct{}, error) {
		if err := t.SetData(data); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, t.Parse()
	})
}

//AddDataAsync 异步追加数据并解码
func (t *Tile) AddDataAsync(data []byte) *Future[struct{}] {
	return Go(func() (struct{}, error) {
		if err := t.AddData(data); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, t.Parse()
	})
}

//ClearAsync 异步清空
func (t *Tile) ClearAsync() *Future[struct{}] {
	return Go(func() (struct{}, error) {
		t.Clear()
		return struct{}{}, nil
	})
}

//ToJSONAsync 异步输出属性树
func (t *Tile) ToJSONAsync() *Future[[]LayerInfo] {
	return Go(t.ToJSON)
}

//CompositeAsync 异步合并
func (c *Compositor) CompositeAsync(target *Tile, sources []*Tile, opts CompositeOptions) *Future[*Tile] {
	return Go(func() (*Tile, error) {
		if err := c.Composite(target, sources, opts); err != nil {
			return nil, err
		}
		return target, nil
	})
}

//QueryAsync 异步单点查询
func (q *Querier) QueryAsync(t *Tile, lon, lat float64, opts QueryOptions) *Future[[]QueryResult] {
	return Go(func() ([]QueryResult, error) {
		return q.Query(t, lon, lat, opts)
	})
}

//QueryManyAsync 异步批量查询
func (q *Querier) QueryManyAsync(t *Tile, points []orb.Point, opts QueryManyOptions) *Future[*QueryManyResult] {
	return Go(func() (*QueryManyResult, error) {
		return q.QueryMany(t, points, opts)
	})
}

//ToGeoJSONAsync 异步输出GeoJSON
func (s *Serializer) ToGeoJSONAsync(t *Tile, sel LayerSelector) *Future[[]byte] {
	return Go(func() ([]byte, error) {
		return s.ToGeoJSON(t, sel)
	})
}
