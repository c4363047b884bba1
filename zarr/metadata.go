/*
Package zarr reads chunked arrays stored in zarr v2 layout on object storage,
including multi-resolution image pyramids described by OME multiscales
metadata.  Only reading is supported.
*/
package zarr

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/janelia-flyem/omeview/omv"
)

// Metadata represents the zarr v2 .zarray metadata.
type Metadata struct {
	ZarrFormat         int               `json:"zarr_format"`
	Shape              []int             `json:"shape"`
	Chunks             []int             `json:"chunks"`
	DType              string            `json:"dtype"`
	Compressor         *CompressorConfig `json:"compressor"`
	FillValue          json.RawMessage   `json:"fill_value"`
	Order              string            `json:"order"`
	Filters            []json.RawMessage `json:"filters"`
	DimensionSeparator string            `json:"dimension_separator"`
}

// CompressorConfig is a numcodecs codec configuration.
type CompressorConfig struct {
	ID      string `json:"id"`
	CName   string `json:"cname,omitempty"`
	CLevel  int    `json:"clevel,omitempty"`
	Shuffle int    `json:"shuffle,omitempty"`
	Level   int    `json:"level,omitempty"`
}

// Validate checks that the array can be read.
func (m *Metadata) Validate() error {
	if m.ZarrFormat != 2 {
		return fmt.Errorf("unsupported zarr_format %d", m.ZarrFormat)
	}
	if len(m.Shape) < 2 {
		return fmt.Errorf("array of shape %v has fewer than 2 dimensions", m.Shape)
	}
	if len(m.Chunks) != len(m.Shape) {
		return fmt.Errorf("chunks %v do not match shape %v", m.Chunks, m.Shape)
	}
	for i, c := range m.Chunks {
		if c <= 0 {
			return fmt.Errorf("bad chunk extent %d on axis %d", c, i)
		}
	}
	if m.Order != "" && m.Order != "C" {
		return fmt.Errorf("unsupported order %q, only C order is read", m.Order)
	}
	if len(m.Filters) != 0 {
		return fmt.Errorf("filters are not supported")
	}
	switch m.DimensionSeparator {
	case "", ".", "/":
	default:
		return fmt.Errorf("bad dimension_separator %q", m.DimensionSeparator)
	}
	if _, _, err := ParseDType(m.DType); err != nil {
		return err
	}
	return nil
}

// Separator returns the chunk key separator.
func (m *Metadata) Separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}

// Fill returns the fill value as a float64.  A null fill value reads as zero.
func (m *Metadata) Fill() (float64, error) {
	raw := strings.TrimSpace(string(m.FillValue))
	if raw == "" || raw == "null" {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(m.FillValue, &s); err == nil {
		switch s {
		case "NaN":
			return math.NaN(), nil
		case "Infinity":
			return math.Inf(1), nil
		case "-Infinity":
			return math.Inf(-1), nil
		}
		return 0, fmt.Errorf("unsupported fill_value %q", s)
	}
	var v float64
	if err := json.Unmarshal(m.FillValue, &v); err != nil {
		return 0, fmt.Errorf("bad fill_value %s: %v", raw, err)
	}
	return v, nil
}

var dtypes = map[string]omv.DataType{
	"i1": omv.T_int8,
	"u1": omv.T_uint8,
	"i2": omv.T_int16,
	"u2": omv.T_uint16,
	"i4": omv.T_int32,
	"u4": omv.T_uint32,
	"i8": omv.T_int64,
	"u8": omv.T_uint64,
	"f4": omv.T_float32,
	"f8": omv.T_float64,
}

// ParseDType parses a numpy type string such as "<u2" or "|u1" and reports
// whether the stored order is big-endian.
func ParseDType(dtype string) (t omv.DataType, bigEndian bool, err error) {
	if len(dtype) != 3 {
		return 0, false, fmt.Errorf("unsupported or unknown dtype: %s", dtype)
	}
	t, found := dtypes[dtype[1:]]
	if !found {
		return 0, false, fmt.Errorf("unsupported or unknown dtype: %s", dtype)
	}
	switch dtype[0] {
	case '<', '|':
	case '>':
		bigEndian = true
	default:
		return 0, false, fmt.Errorf("bad byte order in dtype: %s", dtype)
	}
	return t, bigEndian, nil
}
