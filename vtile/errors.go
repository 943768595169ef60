package vtile

import (
	"fmt"
)

//DecodeError 瓦片数据无法解析
type DecodeError struct {
	Msg string
	Err error
}

func NewDecodeError(msg string, err error) *DecodeError {
	return &DecodeError{Msg: msg, Err: err}
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("vector tile decode error: %s: %s", e.Msg, e.Err)
	}
	return fmt.Sprintf("vector tile decode error: %s", e.Msg)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

//ProjectionError 坐标无法投影
type ProjectionError struct {
	X, Y float64
	Err  error
}

func NewProjectionError(x, y float64, err error) *ProjectionError {
	return &ProjectionError{X: x, Y: y, Err: err}
}

func (e *ProjectionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not reproject lon/lat (%g,%g) to mercator: %s", e.X, e.Y, e.Err)
	}
	return fmt.Sprintf("could not reproject lon/lat (%g,%g) to mercator", e.X, e.Y)
}

func (e *ProjectionError) Unwrap() error {
	return e.Err
}

//LayerNotFoundError 图层不存在,Name为空表示调用方未指定图层
type LayerNotFoundError struct {
	Name string
}

func NewLayerNotFoundError(name string) *LayerNotFoundError {
	return &LayerNotFoundError{Name: name}
}

func (e *LayerNotFoundError) Error() string {
	if e.Name == "" {
		return "could not find layer in vector tile"
	}
	return fmt.Sprintf("layer name '%s' not found", e.Name)
}

//IndexOutOfRangeError 图层序号越界
type IndexOutOfRangeError struct {
	Index int
	Count int
}

func NewIndexOutOfRangeError(index, count int) *IndexOutOfRangeError {
	return &IndexOutOfRangeError{Index: index, Count: count}
}

func (e *IndexOutOfRangeError) Error() string {
	if e.Count == 0 {
		return fmt.Sprintf("zero-based layer index '%d' not valid, no layers found in tile", e.Index)
	}
	return fmt.Sprintf("zero-based layer index '%d' not valid, only '%d' layers exist in tile", e.Index, e.Count)
}

//SerializationError GeoJSON等文本输出失败
type SerializationError struct {
	Msg string
	Err error
}

func NewSerializationError(msg string, err error) *SerializationError {
	return &SerializationError{Msg: msg, Err: err}
}

func (e *SerializationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("serialization error: %s: %s", e.Msg, e.Err)
	}
	return fmt.Sprintf("serialization error: %s", e.Msg)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

//RenderPipelineError 渲染管线返回的错误
type RenderPipelineError struct {
	Err error
}

func NewRenderPipelineError(err error) *RenderPipelineError {
	return &RenderPipelineError{Err: err}
}

func (e *RenderPipelineError) Error() string {
	return fmt.Sprintf("render pipeline error: %s", e.Err)
}

func (e *RenderPipelineError) Unwrap() error {
	return e.Err
}
