package tui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/janelia-flyem/omeview/viewer"
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	contentWidth := max(10, m.width)

	// Header
	title := fmt.Sprintf(" %s ─ %s ", m.opts.Title, m.position())
	header := lipgloss.NewStyle().Width(contentWidth).Render(titleStyle.Render(title))

	// Image canvas
	body := lipgloss.NewStyle().Width(contentWidth).Height(m.mapH).Render(m.renderPlanes(m.mapW, m.mapH))

	// Footer: console line or status, then help
	var statusLine string
	switch {
	case m.consoleMode:
		statusLine = m.input.View()
	case m.statusErr:
		statusLine = errorStyle.Render(" " + m.status + " ")
	default:
		statusLine = dimStyle.Render(" " + m.status + " ")
	}
	if n := len(m.pending); n > 0 && !m.consoleMode {
		statusLine += dimStyle.Render(fmt.Sprintf(" loading %d planes", n))
	}
	footer := lipgloss.JoinVertical(lipgloss.Left,
		lipgloss.NewStyle().Width(contentWidth).Render(statusLine),
		lipgloss.NewStyle().Width(contentWidth).Render(m.renderHelp()),
	)

	ui := lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
	return appStyle.Width(contentWidth).Height(m.height).Render(ui)
}

// position describes the slider and cursor positions.
func (m Model) position() string {
	labels := m.viewer.Dims.AxisLabels()
	point := m.viewer.Dims.Point()
	extent := m.viewer.Dims.Extent()
	var parts []string
	for i := 0; i < len(labels)-2; i++ {
		parts = append(parts, fmt.Sprintf("%s %d/%d", labels[i], point[i], extent[i]))
	}
	parts = append(parts, fmt.Sprintf("y=%d x=%d", m.cursorY, m.cursorX))
	for _, lp := range m.displayed() {
		p := m.planes[lp.key]
		if p == nil {
			continue
		}
		x, y := m.sample(lp, float64(m.cursorX), float64(m.cursorY))
		if x >= 0 {
			parts = append(parts, fmt.Sprintf("%s=%g", lp.layer.Name, p.Value(x, y)))
		}
	}
	return strings.Join(parts, "  ")
}

// sample maps a full resolution position to a pixel of the layer's displayed
// level.  x is -1 when the position falls outside the plane.
func (m Model) sample(lp layerPlane, x, y float64) (int, int) {
	p := m.planes[lp.key]
	full := lp.layer.Shape()
	if p == nil || len(full) < 2 || x < 0 || y < 0 {
		return -1, -1
	}
	fy := float64(p.Height) / float64(full[len(full)-2])
	fx := float64(p.Width) / float64(full[len(full)-1])
	px, py := int(x*fx), int(y*fy)
	if px >= p.Width || py >= p.Height {
		return -1, -1
	}
	return px, py
}

// composite returns the additive blend of the visible layers at a full
// resolution position.  ok is false outside the image.
func (m Model) composite(planes []layerPlane, x, y float64) (rgb [3]float64, ok bool) {
	for _, lp := range planes {
		px, py := m.sample(lp, x, y)
		if px < 0 {
			continue
		}
		ok = true
		c := lp.layer.Colormap.Map(lp.layer.Normalize(m.planes[lp.key].Value(px, py)))
		for i := range rgb {
			rgb[i] = math.Min(1, rgb[i]+c[i])
		}
	}
	return rgb, ok
}

func hexColor(rgb [3]float64) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02X%02X%02X",
		uint8(math.Round(rgb[0]*255)), uint8(math.Round(rgb[1]*255)), uint8(math.Round(rgb[2]*255))))
}

// overlay maps cells to the markers drawn over the image.
func (m Model) overlay() map[[2]int]string {
	marks := make(map[[2]int]string)
	if m.scale <= 0 {
		return marks
	}
	cell := func(x, y float64) [2]int {
		return [2]int{int(math.Floor((x - m.originX) / m.scale)), int(math.Floor((y - m.originY) / (2 * m.scale)))}
	}
	leading := m.viewer.Dims.Leading()
	for _, l := range m.viewer.Layers() {
		points, ok := l.(*viewer.PointsLayer)
		if !ok || !points.Visible {
			continue
		}
		for _, coord := range points.Data {
			if len(coord) < 2 || !onPlane(coord[:len(coord)-2], leading) {
				continue
			}
			marks[cell(coord[len(coord)-1], coord[len(coord)-2])] = pointStyle.Render("●")
		}
	}
	marks[cell(float64(m.cursorX), float64(m.cursorY))] = cursorStyle.Render("+")
	return marks
}

// onPlane reports whether the leading coordinates of a point match the
// slider positions, aligned on the trailing axes.
func onPlane(coord []float64, leading []int) bool {
	for i := 1; i <= len(coord) && i <= len(leading); i++ {
		if int(math.Round(coord[len(coord)-i])) != leading[len(leading)-i] {
			return false
		}
	}
	return true
}

// renderPlanes draws the composite two pixels per cell using upper half
// blocks: the foreground is the top pixel and the background the bottom one.
func (m Model) renderPlanes(w, h int) string {
	if m.scale <= 0 {
		return dimStyle.Render("no image")
	}
	planes := m.displayed()
	marks := m.overlay()
	var b strings.Builder
	for cy := 0; cy < h; cy++ {
		for cx := 0; cx < w; cx++ {
			if mark, found := marks[[2]int{cx, cy}]; found {
				b.WriteString(mark)
				continue
			}
			x := m.originX + float64(cx)*m.scale
			top, topOK := m.composite(planes, x, m.originY+float64(2*cy)*m.scale)
			bottom, bottomOK := m.composite(planes, x, m.originY+float64(2*cy+1)*m.scale)
			if !topOK && !bottomOK {
				b.WriteByte(' ')
				continue
			}
			style := lipgloss.NewStyle().Foreground(hexColor(top)).Background(hexColor(bottom))
			b.WriteString(style.Render("▀"))
		}
		if cy < h-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func (m Model) renderHelp() string {
	if !m.helpVisible {
		return ""
	}
	keys := []string{
		"↑↓←→ move",
		"+/- zoom",
		"[/] T",
		"{/} Z",
		"p point",
		"1-9 channels",
		"s save ROIs",
		"w write",
		": console",
		"? help",
		"q quit",
	}
	return dimStyle.Render("  " + strings.Join(keys, "  "))
}
