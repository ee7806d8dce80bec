// Package ui provides the terminal front end using Bubble Tea.
//
// The model owns the frame loop: every FrameMsg advances the time
// controller by one frame interval, which drives the scene's tick
// listener, and then takes a fresh snapshot for rendering. Key handling
// translates directly into scene commands, so the model itself carries no
// simulation state beyond the latest snapshot.
package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/BewareOfTheRocks/rockviz/internal/scene"
	"github.com/BewareOfTheRocks/rockviz/timectrl"
)

const (
	// rotateStep is radians of camera orbit per arrow keypress.
	rotateStep = 0.1

	// zoomStep is world units of camera travel per zoom keypress.
	zoomStep = 10.0

	// defaultFrameInterval paces the frame loop when the host does not
	// choose a rate.
	defaultFrameInterval = time.Second / 30
)

// FrameMsg triggers one frame: step the clock, snapshot the scene, redraw.
type FrameMsg time.Time

// Model is the root Bubble Tea model.
type Model struct {
	scene *scene.SceneState
	tc    *timectrl.TimeController

	frameInterval time.Duration

	width  int
	height int
	ready  bool

	// statusMsg surfaces the last command error, cleared by the next
	// successful lock or a view reset.
	statusMsg string

	snap *scene.SceneSnapshot
}

// New creates the root UI model. The scene must already be bound to the
// time controller; the model only steps the clock and renders snapshots.
func New(sc *scene.SceneState, tc *timectrl.TimeController, frameInterval time.Duration) Model {
	if frameInterval <= 0 {
		frameInterval = defaultFrameInterval
	}
	return Model{
		scene:         sc,
		tc:            tc,
		frameInterval: frameInterval,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return frameCmd(m.frameInterval)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

	case FrameMsg:
		m.tc.Step(m.frameInterval)
		m.snap = m.scene.Snapshot()
		return m, frameCmd(m.frameInterval)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctx := context.Background()

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	// Arrow keys orbit the camera around its target.
	case "up":
		m.scene.Rotate(0, -rotateStep)
	case "down":
		m.scene.Rotate(0, rotateStep)
	case "left":
		m.scene.Rotate(-rotateStep, 0)
	case "right":
		m.scene.Rotate(rotateStep, 0)

	// Zoom moves along the view ray; a positive camera delta is outward.
	case "+", "=":
		m.scene.ZoomBy(-zoomStep)
	case "-":
		m.scene.ZoomBy(zoomStep)

	case "s":
		if err := m.scene.LockSun(ctx); err != nil {
			m.statusMsg = err.Error()
		} else {
			m.statusMsg = ""
		}
	case "e":
		if err := m.scene.LockEarth(ctx); err != nil {
			m.statusMsg = err.Error()
		} else {
			m.statusMsg = ""
		}

	case "f":
		m.scene.FirstMeteor(ctx)
	case "n":
		m.scene.NextMeteor(ctx)
	case "p":
		m.scene.PrevMeteor(ctx)

	case "u":
		m.scene.Unlock(ctx)
	case "r":
		m.scene.ResetCamera(ctx)
		m.statusMsg = ""
	case "a":
		m.scene.ToggleAutoRotate(ctx)

	case " ":
		m.scene.TogglePause()
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready || m.snap == nil {
		return "Initializing..."
	}

	return m.renderTitle() + "\n" + m.buildCanvas() + m.renderStatusBar() + "\n" + m.renderHelp()
}

func (m Model) renderTitle() string {
	titleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	return "  " + titleStyle.Render("rockviz") + dimStyle.Render(" · beware of the rocks")
}

func (m Model) renderHelp() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("60"))

	return "  " + dimStyle.Render("arrows: orbit | +/-: zoom | s/e: sun/earth | f/n/p: rocks | u: unlock | r: reset | a: spin | space: pause | q: quit")
}

func frameCmd(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return FrameMsg(t)
	})
}
