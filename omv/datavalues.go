/*
   This file handles the element types of pixel data and routines that
   extract values from a slice of bytes.
*/

package omv

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DataType is a unique ID for each numeric element type of a plane, e.g., a uint8 or a float32.
type DataType uint8

const (
	T_uint8 DataType = iota
	T_int8
	T_uint16
	T_int16
	T_uint32
	T_int32
	T_uint64
	T_int64
	T_float32
	T_float64
)

var typeBytes = map[DataType]int{
	T_uint8:   1,
	T_int8:    1,
	T_uint16:  2,
	T_int16:   2,
	T_uint32:  4,
	T_int32:   4,
	T_uint64:  8,
	T_int64:   8,
	T_float32: 4,
	T_float64: 8,
}

var typeNames = map[DataType]string{
	T_uint8:   "uint8",
	T_int8:    "int8",
	T_uint16:  "uint16",
	T_int16:   "int16",
	T_uint32:  "uint32",
	T_int32:   "int32",
	T_uint64:  "uint64",
	T_int64:   "int64",
	T_float32: "float32",
	T_float64: "float64",
}

// DataTypeBytes returns the # of bytes for a given type.  No error checking is
// performed to make sure the type is valid.
func DataTypeBytes(t DataType) int {
	return typeBytes[t]
}

// Bytes returns the number of bytes of one element.
func (t DataType) Bytes() int {
	return typeBytes[t]
}

func (t DataType) String() string {
	if name, found := typeNames[t]; found {
		return name
	}
	return fmt.Sprintf("unknown data type %d", uint8(t))
}

// ParseDataType returns the DataType for a name like "uint16".
func ParseDataType(name string) (DataType, error) {
	for t, n := range typeNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown data type %q", name)
}

// ValueAt decodes the little-endian element i of data as a float64.
func (t DataType) ValueAt(data []byte, i int) float64 {
	off := i * typeBytes[t]
	switch t {
	case T_uint8:
		return float64(data[off])
	case T_int8:
		return float64(int8(data[off]))
	case T_uint16:
		return float64(binary.LittleEndian.Uint16(data[off:]))
	case T_int16:
		return float64(int16(binary.LittleEndian.Uint16(data[off:])))
	case T_uint32:
		return float64(binary.LittleEndian.Uint32(data[off:]))
	case T_int32:
		return float64(int32(binary.LittleEndian.Uint32(data[off:])))
	case T_uint64:
		return float64(binary.LittleEndian.Uint64(data[off:]))
	case T_int64:
		return float64(int64(binary.LittleEndian.Uint64(data[off:])))
	case T_float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(data[off:])))
	case T_float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data[off:]))
	}
	return 0
}

// SwapEndian reverses the byte order of every element in data in place.
// Used to bring big-endian server or store data into native little-endian order.
func SwapEndian(t DataType, data []byte) {
	n := typeBytes[t]
	if n <= 1 {
		return
	}
	for off := 0; off+n <= len(data); off += n {
		for i, j := off, off+n-1; i < j; i, j = i+1, j-1 {
			data[i], data[j] = data[j], data[i]
		}
	}
}

// PutValueAt stores v as the little-endian element i of data, converting to t.
func (t DataType) PutValueAt(data []byte, i int, v float64) {
	off := i * typeBytes[t]
	switch t {
	case T_uint8:
		data[off] = uint8(v)
	case T_int8:
		data[off] = byte(int8(v))
	case T_uint16:
		binary.LittleEndian.PutUint16(data[off:], uint16(v))
	case T_int16:
		binary.LittleEndian.PutUint16(data[off:], uint16(int16(v)))
	case T_uint32:
		binary.LittleEndian.PutUint32(data[off:], uint32(v))
	case T_int32:
		binary.LittleEndian.PutUint32(data[off:], uint32(int32(v)))
	case T_uint64:
		binary.LittleEndian.PutUint64(data[off:], uint64(v))
	case T_int64:
		binary.LittleEndian.PutUint64(data[off:], uint64(int64(v)))
	case T_float32:
		binary.LittleEndian.PutUint32(data[off:], math.Float32bits(float32(v)))
	case T_float64:
		binary.LittleEndian.PutUint64(data[off:], math.Float64bits(v))
	}
}
