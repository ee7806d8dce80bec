package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/BewareOfTheRocks/rockviz/core"
	"github.com/BewareOfTheRocks/rockviz/internal/scene"
	"github.com/BewareOfTheRocks/rockviz/model"
)

// bodyMark tracks a drawn body's cell for label rendering.
type bodyMark struct {
	x, y int
	name string
}

// buildCanvas renders a top-down view of the scene to a string canvas. The
// camera target sits at the screen center and the camera radius sets the
// visible span, so locking and zooming both read directly off the screen.
func (m Model) buildCanvas() string {
	// Reserve lines for the title, status bar and help footer.
	canvasH := m.height - 6
	if canvasH < 5 {
		canvasH = 5
	}
	canvasW := m.width
	if canvasW < 20 {
		canvasW = 20
	}

	grid := make([][]rune, canvasH)
	for y := range grid {
		grid[y] = make([]rune, canvasW)
		for x := range grid[y] {
			grid[y][x] = ' '
		}
	}

	cx := canvasW / 2
	cy := canvasH / 2

	viewRadius := m.snap.CameraRadius
	if viewRadius <= 0 {
		viewRadius = 1
	}
	maxDisplayR := float64(min(cx, cy*2)) * 0.9
	displayScale := maxDisplayR / viewRadius

	center := m.snap.CameraTarget

	m.drawTrail(grid, cx, cy, center, displayScale)

	focusName := m.snap.Camera.TargetName
	var marks []bodyMark
	var sun *scene.BodyView

	for i := range m.snap.Bodies {
		b := &m.snap.Bodies[i]
		if b.Kind == model.KindSun {
			sun = b
			continue
		}
		sx, sy, ok := project(b.Pos, center, cx, cy, displayScale, canvasW, canvasH)
		if !ok {
			continue
		}
		focused := b.Name == focusName
		grid[sy][sx] = bodyGlyph(b.Kind, focused)
		if focused {
			marks = append(marks, bodyMark{x: sx, y: sy, name: b.Name})
		}
	}

	// Draw the sun last so nothing covers it.
	if sun != nil {
		if sx, sy, ok := project(sun.Pos, center, cx, cy, displayScale, canvasW, canvasH); ok {
			grid[sy][sx] = '☉'
			if sun.Name == focusName {
				marks = append(marks, bodyMark{x: sx, y: sy, name: sun.Name})
			}
		}
	}

	m.drawLabels(grid, canvasW, canvasH, marks)

	return renderGrid(grid)
}

// project maps a world position onto the canvas, looking down the Y axis.
// The vertical axis is halved because terminal cells are taller than they
// are wide.
func project(pos, center model.Vec3, cx, cy int, scale float64, w, h int) (int, int, bool) {
	sx := cx + int((pos.X-center.X)*scale)
	sy := cy - int((pos.Z-center.Z)*scale*0.5)
	if sx < 0 || sx >= w || sy < 0 || sy >= h {
		return 0, 0, false
	}
	return sx, sy, true
}

// drawTrail dots the locked body's recent path onto empty cells.
func (m Model) drawTrail(grid [][]rune, cx, cy int, center model.Vec3, scale float64) {
	h := len(grid)
	w := len(grid[0])

	for _, p := range m.snap.LockedTrail {
		sx, sy, ok := project(p, center, cx, cy, scale, w, h)
		if !ok {
			continue
		}
		if grid[sy][sx] == ' ' {
			grid[sy][sx] = '·'
		}
	}
}

// drawLabels writes the focused body's name next to its glyph.
func (m Model) drawLabels(grid [][]rune, w, h int, marks []bodyMark) {
	for _, mk := range marks {
		if mk.y < 0 || mk.y >= h {
			continue
		}
		label := "◄ " + mk.name
		for i, r := range []rune(label) {
			x := mk.x + 2 + i
			if x >= w {
				break
			}
			if grid[mk.y][x] == ' ' || grid[mk.y][x] == '·' {
				grid[mk.y][x] = r
			}
		}
	}
}

// bodyGlyph selects the canvas glyph for a body. The sun is handled
// separately so it always renders as ☉.
func bodyGlyph(kind model.BodyKind, focused bool) rune {
	if focused {
		return '◉'
	}
	switch kind {
	case model.KindEarth:
		return '⊕'
	case model.KindComet:
		return '○'
	case model.KindSatellite:
		return '◇'
	case model.KindMeteor:
		return '∙'
	default:
		return '?'
	}
}

func renderGrid(grid [][]rune) string {
	var b strings.Builder

	trailStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	sunStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	earthStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	cometStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("45"))
	satStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	rockStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	focusStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Bold(true)
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("249"))

	for _, row := range grid {
		for _, ch := range row {
			var style lipgloss.Style

			switch ch {
			case ' ':
				b.WriteRune(ch)
				continue
			case '·':
				style = trailStyle
			case '☉':
				style = sunStyle
			case '⊕':
				style = earthStyle
			case '○':
				style = cometStyle
			case '◇':
				style = satStyle
			case '∙':
				style = rockStyle
			case '◉', '◄':
				style = focusStyle
			default:
				// Label text characters.
				style = labelStyle
			}

			b.WriteString(style.Render(string(ch)))
		}
		b.WriteRune('\n')
	}

	return b.String()
}

// renderStatusBar builds the two status lines under the canvas: the sim
// digest, and a trail sparkline when a body is locked.
func (m Model) renderStatusBar() string {
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	accentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	snap := m.snap
	var b strings.Builder

	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Time:"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.1f", snap.SimTime)))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Rate:"))
	if snap.Paused {
		b.WriteString(accentStyle.Render("paused"))
	} else {
		b.WriteString(valueStyle.Render(fmt.Sprintf("%gx", snap.Rate)))
	}
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Bodies:"))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d", len(snap.Bodies))))
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Lock:"))
	b.WriteString(m.renderLockStatus(accentStyle, dimStyle))

	if snap.Populating {
		b.WriteString("  ")
		b.WriteString(accentStyle.Render(fmt.Sprintf("populating %d/%d", snap.PopProcessed, snap.PopTotal)))
	}
	if snap.AutoRotate {
		b.WriteString("  ")
		b.WriteString(dimStyle.Render("spin"))
	}
	if m.statusMsg != "" {
		b.WriteString("  ")
		b.WriteString(warnStyle.Render(m.statusMsg))
	}

	if line := m.renderTrailLine(labelStyle, valueStyle, dimStyle); line != "" {
		b.WriteString("\n")
		b.WriteString(line)
	}

	return b.String()
}

func (m Model) renderLockStatus(accentStyle, dimStyle lipgloss.Style) string {
	lock := m.snap.Camera

	switch {
	case lock.Transitioning:
		return accentStyle.Render("→ " + lock.TargetName)
	case lock.Mode == core.LockFree:
		return dimStyle.Render("free")
	case lock.Mode == core.LockMeteor:
		return accentStyle.Render(fmt.Sprintf("%s (%d/%d)", lock.TargetName, lock.MeteorIndex+1, lock.MeteorCount))
	default:
		return accentStyle.Render(lock.TargetName)
	}
}

// renderTrailLine shows the locked body's orbital radius history as a
// sparkline. Empty when nothing is locked or no trail has accumulated.
func (m Model) renderTrailLine(labelStyle, valueStyle, dimStyle lipgloss.Style) string {
	trail := m.snap.LockedTrail
	if len(trail) < 2 {
		return ""
	}

	radii := make([]float64, len(trail))
	lo, hi := trail[0].Norm(), trail[0].Norm()
	for i, p := range trail {
		r := p.Norm()
		radii[i] = r
		if r < lo {
			lo = r
		}
		if r > hi {
			hi = r
		}
	}

	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(labelStyle.Render("Trail:"))
	b.WriteString(valueStyle.Render(sparkline(radii, 32)))
	b.WriteString(dimStyle.Render(fmt.Sprintf(" r %.1f..%.1f", lo, hi)))
	return b.String()
}

// sparkRunes are the eight block heights a sparkline cell can take.
var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline compresses vals into at most width block glyphs scaled between
// the series minimum and maximum. A flat series renders at half height.
func sparkline(vals []float64, width int) string {
	if len(vals) == 0 || width <= 0 {
		return ""
	}
	if len(vals) > width {
		sampled := make([]float64, width)
		for i := range sampled {
			sampled[i] = vals[i*len(vals)/width]
		}
		vals = sampled
	}

	lo, hi := vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	var b strings.Builder
	for _, v := range vals {
		idx := len(sparkRunes) / 2
		if hi > lo {
			idx = int((v-lo)/(hi-lo)*float64(len(sparkRunes)-1) + 0.5)
		}
		if idx < 0 {
			idx = 0
		}
		if idx > len(sparkRunes)-1 {
			idx = len(sparkRunes) - 1
		}
		b.WriteRune(sparkRunes[idx])
	}
	return b.String()
}
