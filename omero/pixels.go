package omero

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"

	"github.com/janelia-flyem/omeview/omv"
)

var pixelsTypes = map[string]omv.DataType{
	"int8":   omv.T_int8,
	"uint8":  omv.T_uint8,
	"int16":  omv.T_int16,
	"uint16": omv.T_uint16,
	"int32":  omv.T_int32,
	"uint32": omv.T_uint32,
	"float":  omv.T_float32,
	"double": omv.T_float64,
}

// PixelsType maps a server pixels type value to the local element type.
// Unknown values like "bit" or "complex" return false.
func PixelsType(value string) (omv.DataType, bool) {
	t, found := pixelsTypes[value]
	return t, found
}

// RawPixelsStore is a handle for reading the raw planes of one image.  A
// handle must not be shared between concurrent fetches; open one per read.
type RawPixelsStore struct {
	client  *Client
	imageID int64
	sizeX   int
	sizeY   int
	dtype   omv.DataType

	mu     sync.Mutex
	closed bool
}

// OpenPixels returns a fresh pixels handle for the image.
func (c *Client) OpenPixels(ctx context.Context, img *Image) (*RawPixelsStore, error) {
	dtype, err := img.DataType()
	if err != nil {
		return nil, err
	}
	return &RawPixelsStore{
		client:  c,
		imageID: img.ID,
		sizeX:   img.SizeX,
		sizeY:   img.SizeY,
		dtype:   dtype,
	}, nil
}

// GetPlane reads the full (Y, X) plane at (z, c, t).
func (s *RawPixelsStore) GetPlane(ctx context.Context, z, c, t int) (*omv.Plane, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	q := s.client.query(false)
	q.Set("x", "0")
	q.Set("y", "0")
	q.Set("w", strconv.Itoa(s.sizeX))
	q.Set("h", strconv.Itoa(s.sizeY))
	u := fmt.Sprintf("%s/tile/%d/%d/%d/%d", s.client.pixelService, s.imageID, z, c, t)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, withQuery(u, q), nil)
	if err != nil {
		return nil, err
	}
	s.client.setHeaders(req, false)
	req.Header.Set("Accept", "application/octet-stream")

	timedLog := omv.NewTimeLog()
	data, err := s.client.do(req)
	if err != nil {
		return nil, fmt.Errorf("read of plane z=%d c=%d t=%d of Image:%d: %w", z, c, t, s.imageID, err)
	}
	omv.SwapEndian(s.dtype, data)
	plane, err := omv.PlaneFromBytes(s.dtype, s.sizeX, s.sizeY, data)
	if err != nil {
		return nil, fmt.Errorf("plane z=%d c=%d t=%d of Image:%d: %v", z, c, t, s.imageID, err)
	}
	timedLog.Debugf("Read plane %d,%d,%d of Image:%d (%s)", z, c, t, s.imageID, omv.ByteString(int64(len(data))))
	return plane, nil
}

// Close ends the handle.  Closing twice is harmless.
func (s *RawPixelsStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
