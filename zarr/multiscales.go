package zarr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/blang/semver"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/storage"
)

// ErrBadResolution is returned for a malformed resolution selector.
var ErrBadResolution = errors.New("bad resolution selector")

// supportedMultiscales is the range of OME multiscales versions understood.
var supportedMultiscales = semver.MustParseRange(">=0.1.0 <0.5.0")

// Attrs is the content of a group's .zattrs.
type Attrs struct {
	Multiscales []Multiscales `json:"multiscales"`
	Omero       *OmeroAttrs   `json:"omero"`
}

// Multiscales lists the resolution levels of an image, highest first.
type Multiscales struct {
	Version  string `json:"version"`
	Name     string `json:"name"`
	Datasets []struct {
		Path string `json:"path"`
	} `json:"datasets"`
}

// Paths returns the dataset paths in order.
func (m *Multiscales) Paths() []string {
	paths := make([]string, len(m.Datasets))
	for i, d := range m.Datasets {
		paths[i] = d.Path
	}
	return paths
}

// OmeroAttrs is the optional rendering block written alongside the pyramid.
type OmeroAttrs struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Channels []struct {
		Label  string `json:"label"`
		Color  string `json:"color"`
		Active bool   `json:"active"`
		Window struct {
			Min   float64 `json:"min"`
			Max   float64 `json:"max"`
			Start float64 `json:"start"`
			End   float64 `json:"end"`
		} `json:"window"`
	} `json:"channels"`
	Rdefs struct {
		DefaultZ int `json:"defaultZ"`
		DefaultT int `json:"defaultT"`
	} `json:"rdefs"`
}

// ReadAttrs reads <group>/.zattrs.  A missing .zattrs returns empty attributes.
func ReadAttrs(ctx context.Context, store storage.Store, group string) (*Attrs, error) {
	data, err := store.Get(ctx, path.Join(strings.Trim(group, "/"), ".zattrs"))
	if errors.Is(err, storage.ErrNotFound) {
		return &Attrs{}, nil
	}
	if err != nil {
		return nil, err
	}
	var attrs Attrs
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("bad .zattrs in %q: %v", group, err)
	}
	if ms := attrs.First(); ms != nil && ms.Version != "" {
		v, err := semver.ParseTolerant(ms.Version)
		if err != nil {
			omv.Warningf("Unparsable multiscales version %q in %q\n", ms.Version, group)
		} else if !supportedMultiscales(v) {
			omv.Warningf("Multiscales version %s in %q may not be read correctly\n", v, group)
		}
	}
	return &attrs, nil
}

// First returns the first multiscales entry, or nil.
func (a *Attrs) First() *Multiscales {
	if a == nil || len(a.Multiscales) == 0 {
		return nil
	}
	return &a.Multiscales[0]
}

func badResolution(sel string, err error) error {
	err = fmt.Errorf("%w %q: %v", ErrBadResolution, sel, err)
	omv.Errorf("%v\n", err)
	return err
}

// ParseResolutions expands a resolution selector into dataset paths.  The
// selector is an index ("3"), a comma list ("1,2") or an inclusive dash range
// ("0-2").  An empty selector selects every level in ms, or "0" if ms is nil.
func ParseResolutions(sel string, ms *Multiscales) ([]string, error) {
	sel = strings.TrimSpace(sel)
	if sel == "" {
		if ms != nil && len(ms.Datasets) > 0 {
			return ms.Paths(), nil
		}
		return []string{"0"}, nil
	}
	var levels []int
	if strings.Contains(sel, "-") {
		ranges := strings.Split(sel, "-")
		if len(ranges) != 2 {
			return nil, badResolution(sel, fmt.Errorf("invalid range"))
		}
		start, err := strconv.Atoi(strings.TrimSpace(ranges[0]))
		if err != nil {
			return nil, badResolution(sel, err)
		}
		end, err := strconv.Atoi(strings.TrimSpace(ranges[1]))
		if err != nil {
			return nil, badResolution(sel, err)
		}
		if start > end {
			return nil, badResolution(sel, fmt.Errorf("start of range %d is greater than end %d", start, end))
		}
		for i := start; i <= end; i++ {
			levels = append(levels, i)
		}
	} else {
		for _, part := range strings.Split(sel, ",") {
			level, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return nil, badResolution(sel, err)
			}
			levels = append(levels, level)
		}
	}
	paths := make([]string, len(levels))
	for i, level := range levels {
		if level < 0 {
			return nil, badResolution(sel, fmt.Errorf("negative level %d", level))
		}
		paths[i] = strconv.Itoa(level)
	}
	return paths, nil
}
