/*
Package omerotest provides an in-process fake OMERO.web server for tests.  It
serves the JSON API, rendering settings and raw planes for a fixed set of
images, counts plane reads and records saved ROIs.
*/
package omerotest

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/janelia-flyem/omeview/omv"
)

const (
	Username = "demo"
	Password = "secret"
	Token    = "csrf-token-for-tests"
	Session  = "session-uuid-for-tests"
)

// Channel is the rendering setting served for one channel.
type Channel struct {
	Label  string
	Color  string
	Active bool
	Min    float64
	Max    float64
	Start  float64
	End    float64
}

// Image is a fake image.  Pixel values are given by Value.
type Image struct {
	ID         int64
	Name       string
	SizeX      int
	SizeY      int
	SizeZ      int
	SizeT      int
	PixelsType string
	Channels   []Channel
	DefaultZ   int
	DefaultT   int
}

// Value is the pixel value served at (x, y) of plane (z, c, t).
func Value(x, y, z, c, t int) float64 {
	return float64(x + 2*y + 10*z + 50*c + 100*t)
}

// Server is the fake.  Fields are guarded by the embedded mutex.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	images     map[int64]Image
	planeReads map[omv.PlaneCoord]int
	groups     []string
	saved      []map[string]interface{}
	nextROI    int64
	failSaveAt int
	saveCalls  int
}

// NewServer starts a fake serving the given images.
func NewServer(images ...Image) *Server {
	s := &Server{
		images:     make(map[int64]Image),
		planeReads: make(map[omv.PlaneCoord]int),
		nextROI:    100,
	}
	for _, img := range images {
		s.images[img.ID] = img
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/", s.handleVersions)
	mux.HandleFunc("GET /api/v0/token/", s.handleToken)
	mux.HandleFunc("POST /api/v0/login/", s.handleLogin)
	mux.HandleFunc("GET /api/v0/m/images/{id}/", s.handleImage)
	mux.HandleFunc("POST /api/v0/m/save/", s.handleSave)
	mux.HandleFunc("GET /webgateway/imgData/{id}/", s.handleImgData)
	mux.HandleFunc("GET /tile/{id}/{z}/{c}/{t}", s.handleTile)
	s.Server = httptest.NewServer(mux)
	return s
}

// PlaneReads returns the total number of raw plane reads served.
func (s *Server) PlaneReads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int
	for _, count := range s.planeReads {
		n += count
	}
	return n
}

// PlaneReadsOf returns the number of reads of one plane.
func (s *Server) PlaneReadsOf(coord omv.PlaneCoord) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.planeReads[coord]
}

// Groups returns the group parameter of every image lookup.
func (s *Server) Groups() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.groups...)
}

// SavedROIs returns the decoded JSON of every saved ROI, in order.
func (s *Server) SavedROIs() []map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]interface{}(nil), s.saved...)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) authorized(r *http.Request) bool {
	if r.URL.Query().Get("bsession") == Session {
		return true
	}
	c, err := r.Cookie("sessionid")
	return err == nil && c.Value == Session
}

func (s *Server) handleVersions(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/" {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": []map[string]string{
			{"version": "0", "url:base": s.URL + "/api/v0/"},
		},
	})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: Token, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]string{"data": Token})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-CSRFToken") != Token {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "CSRF verification failed"})
		return
	}
	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	if r.PostForm.Get("username") != Username || r.PostForm.Get("password") != Password {
		writeJSON(w, http.StatusForbidden, map[string]interface{}{
			"success": false, "message": "Connection not available, please check your user name and password.",
		})
		return
	}
	http.SetCookie(w, &http.Cookie{Name: "sessionid", Value: Session, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"eventContext": map[string]interface{}{
			"userId": 2, "userName": Username, "groupId": 3, "groupName": "lab", "sessionUuid": Session,
		},
	})
}

func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (Image, bool) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "not logged in"})
		return Image{}, false
	}
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.NotFound(w, r)
		return Image{}, false
	}
	s.mu.Lock()
	img, found := s.images[id]
	s.mu.Unlock()
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("Image %d not found", id)})
		return Image{}, false
	}
	return img, true
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.groups = append(s.groups, r.URL.Query().Get("group"))
	s.mu.Unlock()
	img, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"data": map[string]interface{}{
			"@id":  img.ID,
			"Name": img.Name,
			"Pixels": map[string]interface{}{
				"SizeX": img.SizeX, "SizeY": img.SizeY, "SizeZ": img.SizeZ,
				"SizeC": len(img.Channels), "SizeT": img.SizeT,
				"Type": map[string]string{"value": img.PixelsType},
			},
		},
	})
}

func (s *Server) handleImgData(w http.ResponseWriter, r *http.Request) {
	img, ok := s.lookup(w, r)
	if !ok {
		return
	}
	channels := make([]map[string]interface{}, len(img.Channels))
	for i, ch := range img.Channels {
		channels[i] = map[string]interface{}{
			"label":  ch.Label,
			"color":  ch.Color,
			"active": ch.Active,
			"window": map[string]float64{"min": ch.Min, "max": ch.Max, "start": ch.Start, "end": ch.End},
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":       img.ID,
		"channels": channels,
		"rdefs":    map[string]int{"defaultZ": img.DefaultZ, "defaultT": img.DefaultT},
	})
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	img, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var coord [3]int
	for i, name := range []string{"z", "c", "t"} {
		v, err := strconv.Atoi(r.PathValue(name))
		if err != nil {
			http.Error(w, "bad plane index", http.StatusBadRequest)
			return
		}
		coord[i] = v
	}
	z, c, t := coord[0], coord[1], coord[2]
	if z >= img.SizeZ || c >= len(img.Channels) || t >= img.SizeT {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no such plane"})
		return
	}
	data, err := bigEndianPlane(img, z, c, t)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.mu.Lock()
	s.planeReads[omv.PlaneCoord{Z: z, C: c, T: t}]++
	s.mu.Unlock()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func bigEndianPlane(img Image, z, c, t int) ([]byte, error) {
	var nbytes int
	switch img.PixelsType {
	case "int8", "uint8":
		nbytes = 1
	case "int16", "uint16":
		nbytes = 2
	case "int32", "uint32", "float":
		nbytes = 4
	case "double":
		nbytes = 8
	default:
		return nil, fmt.Errorf("unsupported pixels type %q", img.PixelsType)
	}
	data := make([]byte, img.SizeX*img.SizeY*nbytes)
	for y := 0; y < img.SizeY; y++ {
		for x := 0; x < img.SizeX; x++ {
			v := Value(x, y, z, c, t)
			off := (y*img.SizeX + x) * nbytes
			switch img.PixelsType {
			case "int8", "uint8":
				data[off] = byte(int(v))
			case "int16", "uint16":
				binary.BigEndian.PutUint16(data[off:], uint16(int(v)))
			case "int32", "uint32":
				binary.BigEndian.PutUint32(data[off:], uint32(int(v)))
			case "float":
				binary.BigEndian.PutUint32(data[off:], math.Float32bits(float32(v)))
			case "double":
				binary.BigEndian.PutUint64(data[off:], math.Float64bits(v))
			}
		}
	}
	return data, nil
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "not logged in"})
		return
	}
	if r.Header.Get("X-CSRFToken") != Token {
		writeJSON(w, http.StatusForbidden, map[string]string{"message": "CSRF verification failed"})
		return
	}
	var obj map[string]interface{}
	if err := json.NewDecoder(r.Body).Decode(&obj); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	s.mu.Lock()
	s.saveCalls++
	if s.failSaveAt > 0 && s.saveCalls == s.failSaveAt {
		s.mu.Unlock()
		writeJSON(w, http.StatusInternalServerError, map[string]string{"message": "update service unavailable"})
		return
	}
	s.nextROI++
	id := s.nextROI
	obj["@id"] = id
	s.saved = append(s.saved, obj)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]interface{}{"data": obj})
}

// SetFailSaveAt makes the n-th save call (1-based) fail.
func (s *Server) SetFailSaveAt(n int) {
	s.mu.Lock()
	s.failSaveAt = n
	s.mu.Unlock()
}
