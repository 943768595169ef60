package vtile

import (
	"encoding/json"
	"math"
	"strconv"
)

//ValueType 属性值的类型
type ValueType uint8

const (
	ValueString ValueType = iota + 1
	ValueFloat
	ValueDouble
	ValueInt
	ValueUint
	ValueSint
	ValueBool
)

func (t ValueType) String() string {
	switch t {
	case ValueString:
		return "string"
	case ValueFloat:
		return "float"
	case ValueDouble:
		return "double"
	case ValueInt:
		return "int"
	case ValueUint:
		return "uint"
	case ValueSint:
		return "sint"
	case ValueBool:
		return "bool"
	}
	return "unknown"
}

//Value 图层字典中的属性值,可比较,用作去重的key
type Value struct {
	Type ValueType
	Str  string
	Num  float64
	Int  int64
	Uint uint64
	Bool bool
}

func StringValue(s string) Value  { return Value{Type: ValueString, Str: s} }
func FloatValue(f float32) Value  { return Value{Type: ValueFloat, Num: float64(f)} }
func DoubleValue(f float64) Value { return Value{Type: ValueDouble, Num: f} }
func IntValue(i int64) Value      { return Value{Type: ValueInt, Int: i} }
func UintValue(u uint64) Value    { return Value{Type: ValueUint, Uint: u} }
func SintValue(i int64) Value     { return Value{Type: ValueSint, Int: i} }
func BoolValue(b bool) Value      { return Value{Type: ValueBool, Bool: b} }

//Interface 返回对应的Go值,保留类型区分
func (v Value) Interface() interface{} {
	switch v.Type {
	case ValueString:
		return v.Str
	case ValueFloat:
		return float32(v.Num)
	case ValueDouble:
		return v.Num
	case ValueInt, ValueSint:
		return v.Int
	case ValueUint:
		return v.Uint
	case ValueBool:
		return v.Bool
	}
	return nil
}

//IsNumeric 是否数值类型
func (v Value) IsNumeric() bool {
	switch v.Type {
	case ValueFloat, ValueDouble, ValueInt, ValueUint, ValueSint:
		return true
	}
	return false
}

//AppendJSON 按JSON格式追加,浮点数总是带小数部分
func (v Value) AppendJSON(dst []byte) []byte {
	switch v.Type {
	case ValueString:
		b, _ := json.Marshal(v.Str)
		return append(dst, b...)
	case ValueFloat:
		return appendJSONFloat(dst, v.Num, 32)
	case ValueDouble:
		return appendJSONFloat(dst, v.Num, 64)
	case ValueInt, ValueSint:
		return strconv.AppendInt(dst, v.Int, 10)
	case ValueUint:
		return strconv.AppendUint(dst, v.Uint, 10)
	case ValueBool:
		return strconv.AppendBool(dst, v.Bool)
	}
	return append(dst, "null"...)
}

func appendJSONFloat(dst []byte, f float64, bits int) []byte {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return append(dst, "null"...)
	}
	start := len(dst)
	dst = strconv.AppendFloat(dst, f, 'g', -1, bits)
	for _, c := range dst[start:] {
		if c == '.' || c == 'e' || c == 'E' {
			return dst
		}
	}
	return append(dst, ".0"...)
}

//ValueOf 将GeoJSON属性转换为字典值,不支持的类型返回false
func ValueOf(i interface{}) (Value, bool) {
	switch t := i.(type) {
	case string:
		return StringValue(t), true
	case bool:
		return BoolValue(t), true
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1<<53 {
			if t < 0 {
				return SintValue(int64(t)), true
			}
			return UintValue(uint64(t)), true
		}
		return DoubleValue(t), true
	case float32:
		return FloatValue(t), true
	case int:
		if t < 0 {
			return SintValue(int64(t)), true
		}
		return UintValue(uint64(t)), true
	case int64:
		if t < 0 {
			return SintValue(t), true
		}
		return UintValue(uint64(t)), true
	case uint64:
		return UintValue(t), true
	}
	return Value{}, false
}
