/*
	Package tui is a terminal front end for the viewer model.  It draws the
	additive composite of the visible image layers at the current dims point,
	two pixels per cell, and loads planes in the background.
*/
package tui

import (
	"context"
	"fmt"

	textinput "github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/janelia-flyem/omeview/array"
	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/session"
	"github.com/janelia-flyem/omeview/viewer"
)

// DefaultAnnotationsFile is written by the "w" key when no file was given.
const DefaultAnnotationsFile = "annotations.json"

// Options configure the front end.
type Options struct {
	Title           string
	AnnotationsFile string
	SaveAction      string
}

type Model struct {
	ctx    context.Context
	viewer *viewer.Viewer
	opts   Options

	width  int
	height int

	helpVisible bool
	status      string
	statusErr   bool

	// Cursor and viewport in full resolution pixels.  scale is full
	// resolution pixels per screen pixel.
	cursorX int
	cursorY int
	originX float64
	originY float64
	scale   float64

	// last rendered map size in cells
	mapW int
	mapH int

	planes  map[string]*omv.Plane
	pending map[string]bool

	consoleMode bool
	input       textinput.Model
}

// planeLoadedMsg carries a plane read in the background.
type planeLoadedMsg struct {
	key   string
	plane *omv.Plane
	err   error
}

// New returns a model over v.  Planes are read with ctx.
func New(ctx context.Context, v *viewer.Viewer, opts Options) Model {
	if opts.AnnotationsFile == "" {
		opts.AnnotationsFile = DefaultAnnotationsFile
	}
	if opts.Title == "" {
		opts.Title = "omeview"
	}
	if opts.SaveAction == "" {
		opts.SaveAction = session.SaveROIsAction
	}
	m := Model{
		ctx:         ctx,
		viewer:      v,
		opts:        opts,
		helpVisible: true,
		status:      "omeview ready",
		planes:      make(map[string]*omv.Plane),
		pending:     make(map[string]bool),
	}
	m.input = textinput.New()
	m.input.Prompt = ">>> "
	m.input.Placeholder = "name or name.Field"
	m.input.CharLimit = 256
	if names := v.ConsoleNames(); len(names) > 0 {
		m.status = fmt.Sprintf("console names: %v", names)
	}
	return m
}

// Run starts the terminal viewer and blocks until it quits.
func Run(ctx context.Context, v *viewer.Viewer, opts Options) error {
	p := tea.NewProgram(New(ctx, v, opts), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

func (m Model) Init() tea.Cmd { return nil }

// imageSize returns the full resolution (height, width) of the first image
// layer.
func (m Model) imageSize() (height, width int) {
	layers := m.viewer.ImageLayers()
	if len(layers) == 0 {
		return 0, 0
	}
	shape := layers[0].Shape()
	if len(shape) < 2 {
		return 0, 0
	}
	return shape[len(shape)-2], shape[len(shape)-1]
}

// planeIndex returns the index of the displayed plane of an array of the
// given rank, taken from the trailing leading-axis slider positions.
func planeIndex(leading []int, rank int) []int {
	n := rank - 2
	if n <= 0 {
		return nil
	}
	idx := make([]int, n)
	if len(leading) >= n {
		copy(idx, leading[len(leading)-n:])
	} else {
		copy(idx[n-len(leading):], leading)
	}
	return idx
}

func planeKey(layer, level int, idx []int) string {
	return fmt.Sprintf("%d/%d/%v", layer, level, idx)
}

// layerPlane is the displayed plane of one layer.
type layerPlane struct {
	layer *viewer.ImageLayer
	level int
	idx   []int
	key   string
	data  array.Array
}

// displayed lists the planes needed to draw the visible layers.
func (m Model) displayed() []layerPlane {
	leading := m.viewer.Dims.Leading()
	h, w := m.imageSize()
	var needed []layerPlane
	for i, l := range m.viewer.ImageLayers() {
		if !l.Visible || len(l.Data) == 0 {
			continue
		}
		level := 0
		if m.scale > 0 {
			level = l.LevelFor(int(float64(h)/m.scale), int(float64(w)/m.scale))
		}
		a := l.Data[level]
		idx := planeIndex(leading, len(a.Shape()))
		needed = append(needed, layerPlane{
			layer: l,
			level: level,
			idx:   idx,
			key:   planeKey(i, level, idx),
			data:  a,
		})
	}
	return needed
}

func loadPlane(ctx context.Context, key string, a array.Array, idx []int) tea.Cmd {
	return func() tea.Msg {
		p, err := a.Plane(ctx, idx...)
		return planeLoadedMsg{key: key, plane: p, err: err}
	}
}

// requestPlanes issues background reads for displayed planes not yet loaded.
func (m Model) requestPlanes() tea.Cmd {
	var cmds []tea.Cmd
	for _, lp := range m.displayed() {
		if m.planes[lp.key] != nil || m.pending[lp.key] {
			continue
		}
		m.pending[lp.key] = true
		cmds = append(cmds, loadPlane(m.ctx, lp.key, lp.data, lp.idx))
	}
	if len(cmds) == 0 {
		return nil
	}
	return tea.Batch(cmds...)
}
