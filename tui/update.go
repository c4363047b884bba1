package tui

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/janelia-flyem/omeview/omv"
	"github.com/janelia-flyem/omeview/viewer"
)

const (
	headerHeight = 1
	footerHeight = 2
)

func (m *Model) setStatus(format string, args ...interface{}) {
	m.status = fmt.Sprintf(format, args...)
	m.statusErr = false
}

func (m *Model) setError(err error) {
	m.status = err.Error()
	m.statusErr = true
	omv.Errorf("%v\n", err)
}

// fit sizes the viewport and, the first time, zooms to show the whole image.
func (m *Model) fit() {
	m.mapW = max(8, m.width)
	m.mapH = max(4, m.height-headerHeight-footerHeight)
	if m.scale > 0 {
		return
	}
	h, w := m.imageSize()
	if h == 0 || w == 0 {
		return
	}
	m.scale = math.Max(float64(w)/float64(m.mapW), float64(h)/float64(2*m.mapH))
	m.cursorX, m.cursorY = w/2, h/2
}

// follow moves the viewport so the cursor stays visible.
func (m *Model) follow() {
	viewW := float64(m.mapW) * m.scale
	viewH := float64(2*m.mapH) * m.scale
	x, y := float64(m.cursorX), float64(m.cursorY)
	if x < m.originX {
		m.originX = x
	} else if x >= m.originX+viewW {
		m.originX = x - viewW + 1
	}
	if y < m.originY {
		m.originY = y
	} else if y >= m.originY+viewH {
		m.originY = y - viewH + 1
	}
}

func (m *Model) moveCursor(dx, dy int) {
	h, w := m.imageSize()
	step := max(1, int(m.scale))
	m.cursorX = min(max(0, m.cursorX+dx*step), max(0, w-1))
	m.cursorY = min(max(0, m.cursorY+dy*step), max(0, h-1))
	m.follow()
}

func (m *Model) zoom(factor float64) {
	if m.scale <= 0 {
		return
	}
	m.scale *= factor
	m.scale = math.Min(math.Max(m.scale, 1.0/16), 1024)
	// keep the cursor at the centre of the viewport
	m.originX = float64(m.cursorX) - float64(m.mapW)*m.scale/2
	m.originY = float64(m.cursorY) - float64(2*m.mapH)*m.scale/2
	m.setStatus("zoom: %.3g px/cell", m.scale)
}

// stepAxis moves the slider of the labelled axis.
func (m *Model) stepAxis(label string, delta int) {
	axis := m.viewer.Dims.AxisOf(label)
	if axis < 0 {
		m.setStatus("no %s axis", label)
		return
	}
	if err := m.viewer.Dims.Step(axis, delta); err != nil {
		m.setError(err)
		return
	}
	m.setStatus("%s: %d", label, m.viewer.Dims.Point()[axis])
}

// addPoint adds the cursor position on the current plane to the points layer.
func (m *Model) addPoint() {
	coord := make([]float64, 0, m.viewer.Dims.NDim())
	for _, p := range m.viewer.Dims.Leading() {
		coord = append(coord, float64(p))
	}
	coord = append(coord, float64(m.cursorY), float64(m.cursorX))
	if l, found := m.viewer.Layer("Points"); found {
		if points, ok := l.(*viewer.PointsLayer); ok {
			points.Data = append(points.Data, coord)
			m.setStatus("point %v added (%d in layer)", coord, len(points.Data))
			return
		}
	}
	m.viewer.AddPoints("Points", [][]float64{coord})
	m.setStatus("point %v added to new Points layer", coord)
}

func (m *Model) toggleChannel(n int) {
	layers := m.viewer.ImageLayers()
	if n < 1 || n > len(layers) {
		m.setStatus("no channel %d", n)
		return
	}
	l := layers[n-1]
	l.Visible = !l.Visible
	m.setStatus("%s: visible %t", l.Name, l.Visible)
}

// runAction runs a dock action on the UI goroutine; layers are not edited
// while it runs.
func (m *Model) runAction(name string) {
	if err := m.viewer.RunAction(m.ctx, name); err != nil {
		m.setError(fmt.Errorf("%s: %w", name, err))
		return
	}
	m.setStatus("%s: done", name)
}

func (m *Model) writeAnnotations() {
	filename := m.opts.AnnotationsFile
	if err := m.viewer.SaveAnnotations(m.ctx, filename); err != nil {
		m.setError(fmt.Errorf("write %s: %w", filename, err))
		return
	}
	m.setStatus("wrote %s", filename)
}

func (m Model) updateConsole(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.consoleMode = false
		m.input.Blur()
		m.setStatus("view mode")
		return m, nil
	case "enter":
		expr := strings.TrimSpace(m.input.Value())
		m.input.SetValue("")
		if expr == "" {
			return m, nil
		}
		out, err := m.viewer.Eval(expr)
		if err != nil {
			m.setError(err)
		} else {
			m.setStatus("%s = %s", expr, out)
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.fit()
		m.follow()

	case planeLoadedMsg:
		delete(m.pending, msg.key)
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		m.planes[msg.key] = msg.plane
		return m, nil

	case tea.KeyMsg:
		if m.consoleMode {
			return m.updateConsole(msg)
		}
		switch key := msg.String(); key {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "?":
			m.helpVisible = !m.helpVisible
		case "up", "k":
			m.moveCursor(0, -1)
		case "down", "j":
			m.moveCursor(0, 1)
		case "left", "h":
			m.moveCursor(-1, 0)
		case "right", "l":
			m.moveCursor(1, 0)
		case "+", "=":
			m.zoom(0.5)
		case "-", "_":
			m.zoom(2)
		case "[":
			m.stepAxis("T", -1)
		case "]":
			m.stepAxis("T", 1)
		case "{", ",":
			m.stepAxis("Z", -1)
		case "}", ".":
			m.stepAxis("Z", 1)
		case "p":
			m.addPoint()
		case "s":
			m.runAction(m.opts.SaveAction)
		case "w":
			m.writeAnnotations()
		case ":":
			m.consoleMode = true
			m.setStatus("console: %s", strings.Join(m.viewer.ConsoleNames(), ", "))
			cmd := m.input.Focus()
			return m, cmd
		case "1", "2", "3", "4", "5", "6", "7", "8", "9":
			n, _ := strconv.Atoi(key)
			m.toggleChannel(n)
		}
	}
	return m, m.requestPlanes()
}
