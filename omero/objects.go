package omero

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/janelia-flyem/omeview/omv"
)

// ObjectRef is a typed object reference such as "Image:1".
type ObjectRef struct {
	Type string
	ID   int64
}

func (r ObjectRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ID)
}

// ParseObjectRef parses "Type:ID".  Only types listed in allowed are accepted.
func ParseObjectRef(s string, allowed ...string) (ObjectRef, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return ObjectRef{}, fmt.Errorf("bad object reference %q, expected Type:ID", s)
	}
	ref := ObjectRef{Type: parts[0]}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id < 0 {
		return ObjectRef{}, fmt.Errorf("bad object id in %q", s)
	}
	ref.ID = id
	if len(allowed) == 0 {
		return ref, nil
	}
	for _, t := range allowed {
		if t == ref.Type {
			return ref, nil
		}
	}
	return ObjectRef{}, fmt.Errorf("object type %q not supported, expected one of %v", ref.Type, allowed)
}

// Window is a channel's contrast window.  Min and Max bound the pixel range,
// Start and End are the current display limits.
type Window struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Channel is the rendering metadata of one channel, read once at load time.
type Channel struct {
	Index  int
	Label  string
	Color  [3]uint8
	Window Window
	Active bool
}

// RGB returns the channel colour scaled to [0,1].
func (ch Channel) RGB() [3]float64 {
	return [3]float64{
		float64(ch.Color[0]) / 255,
		float64(ch.Color[1]) / 255,
		float64(ch.Color[2]) / 255,
	}
}

// Image is a read-only snapshot of a remote image.
type Image struct {
	ID         int64
	Name       string
	SizeX      int
	SizeY      int
	SizeZ      int
	SizeC      int
	SizeT      int
	PixelsType string
	Channels   []Channel
	DefaultZ   int
	DefaultT   int
}

func (img *Image) String() string {
	return fmt.Sprintf("Image:%d %q (%d x %d x %d, C=%d, T=%d, %s)", img.ID, img.Name,
		img.SizeX, img.SizeY, img.SizeZ, img.SizeC, img.SizeT, img.PixelsType)
}

// DataType returns the local element type of the image's pixels.
func (img *Image) DataType() (omv.DataType, error) {
	t, ok := PixelsType(img.PixelsType)
	if !ok {
		return 0, fmt.Errorf("image %d has unsupported pixels type %q", img.ID, img.PixelsType)
	}
	return t, nil
}

type imageResponse struct {
	Data struct {
		ID     int64  `json:"@id"`
		Name   string `json:"Name"`
		Pixels struct {
			SizeX int `json:"SizeX"`
			SizeY int `json:"SizeY"`
			SizeZ int `json:"SizeZ"`
			SizeC int `json:"SizeC"`
			SizeT int `json:"SizeT"`
			Type  struct {
				Value string `json:"value"`
			} `json:"Type"`
		} `json:"Pixels"`
	} `json:"data"`
}

type imgDataResponse struct {
	Channels []struct {
		Label  string `json:"label"`
		Color  string `json:"color"`
		Active bool   `json:"active"`
		Window Window `json:"window"`
	} `json:"channels"`
	Rdefs struct {
		DefaultZ int `json:"defaultZ"`
		DefaultT int `json:"defaultT"`
	} `json:"rdefs"`
}

// GetImage looks up an image with its channels.  A missing or invisible image
// returns an error wrapping ErrNotFound.
func (c *Client) GetImage(ctx context.Context, id int64) (*Image, error) {
	if c.base() == "" {
		return nil, ErrNotLoggedIn
	}
	var ir imageResponse
	err := c.getJSON(ctx, fmt.Sprintf("%sm/images/%d/", c.base(), id), c.query(true), &ir)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("Image:%d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("lookup of Image:%d failed: %w", id, err)
	}
	px := ir.Data.Pixels
	img := &Image{
		ID:         id,
		Name:       ir.Data.Name,
		SizeX:      px.SizeX,
		SizeY:      px.SizeY,
		SizeZ:      px.SizeZ,
		SizeC:      px.SizeC,
		SizeT:      px.SizeT,
		PixelsType: px.Type.Value,
	}

	var rd imgDataResponse
	err = c.getJSON(ctx, fmt.Sprintf("%s/webgateway/imgData/%d/", c.host, id), c.query(true), &rd)
	if errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("Image:%d rendering settings: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("rendering settings of Image:%d: %w", id, err)
	}
	for i, ch := range rd.Channels {
		color, err := parseColor(ch.Color)
		if err != nil {
			return nil, fmt.Errorf("channel %d of Image:%d: %v", i, id, err)
		}
		img.Channels = append(img.Channels, Channel{
			Index:  i,
			Label:  ch.Label,
			Color:  color,
			Window: ch.Window,
			Active: ch.Active,
		})
	}
	img.DefaultZ = rd.Rdefs.DefaultZ
	img.DefaultT = rd.Rdefs.DefaultT
	omv.Debugf("Looked up %s\n", img)
	return img, nil
}

// parseColor decodes "RRGGBB" (with or without a leading '#').
func parseColor(s string) ([3]uint8, error) {
	var rgb [3]uint8
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return rgb, fmt.Errorf("bad channel colour %q", s)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return rgb, fmt.Errorf("bad channel colour %q: %v", s, err)
	}
	copy(rgb[:], b)
	return rgb, nil
}
