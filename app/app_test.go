package app_test

import (
	"image"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vimo-ai/eterm"
	"github.com/vimo-ai/eterm/app"
)

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh on this system")
	}

	cfg := app.DefaultConfig()
	cfg.Shell = "/bin/sh"
	cfg.WindowWidth = 640
	cfg.WindowHeight = 480

	a, err := app.New(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	return a
}

// waitFor polls until cond holds or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestCreateWriteAndReadBack(t *testing.T) {
	a := newTestApp(t)

	id, err := a.CreateTerminal(80, 24, "", "")
	require.NoError(t, err)

	term, ok := a.Terminal(id)
	require.True(t, ok)

	require.NoError(t, a.Write(id, []byte("echo marker-123\n")))

	ok = waitFor(t, 10*time.Second, func() bool {
		return strings.Contains(term.Emulator().String(), "marker-123")
	})
	assert.True(t, ok, "child output never reached the grid: %q", term.Emulator().String())
}

func TestUnknownTerminalID(t *testing.T) {
	a := newTestApp(t)

	assert.ErrorIs(t, a.Write(9999, []byte("x")), app.ErrNotFound)
	assert.ErrorIs(t, a.Resize(9999, 80, 24), app.ErrNotFound)
	assert.ErrorIs(t, a.Scroll(9999, 1), app.ErrNotFound)
	assert.False(t, a.CloseTerminal(9999))
}

func TestExitEventAndClosedSemantics(t *testing.T) {
	a := newTestApp(t)

	id, err := a.CreateTerminal(80, 24, "", "")
	require.NoError(t, err)
	term, _ := a.Terminal(id)

	require.NoError(t, a.Write(id, []byte("exit 3\n")))

	require.True(t, waitFor(t, 10*time.Second, term.Exited), "child never exited")
	assert.Equal(t, 3, term.ExitCode())

	// Commands fail closed; queries still serve last-known state.
	assert.ErrorIs(t, term.Write([]byte("x")), app.ErrClosed)
	assert.ErrorIs(t, term.Resize(100, 30), app.ErrClosed)
	assert.NotNil(t, term.Snapshot())

	events := a.Tick()
	var sawExit bool
	for _, ev := range events {
		if ev.Type == app.EventExit && ev.Terminal == id {
			sawExit = true
			assert.Equal(t, 3, ev.ExitCode)
		}
	}
	assert.True(t, sawExit, "no Exit event in %v", events)

	// The terminal stays renderable until the host closes it.
	_, err = a.Render([]app.Layout{{ID: id, Rect: imageRect(0, 0, 320, 240)}})
	assert.NoError(t, err)

	assert.True(t, a.CloseTerminal(id))
	_, ok := a.Terminal(id)
	assert.False(t, ok)
}

func TestDamageEventsAndBackgroundMode(t *testing.T) {
	a := newTestApp(t)

	id, err := a.CreateTerminal(80, 24, "", "")
	require.NoError(t, err)
	term, _ := a.Terminal(id)

	require.NoError(t, a.Write(id, []byte("echo visible\n")))
	require.True(t, waitFor(t, 10*time.Second, func() bool {
		for _, ev := range a.Tick() {
			if ev.Type == app.EventDamaged && ev.Terminal == id {
				return true
			}
		}
		return false
	}), "no damage event in active mode")

	// Background: grid still mutates, but no damage events surface.
	term.SetMode(app.ModeBackground)
	a.Tick() // drain

	require.NoError(t, a.Write(id, []byte("echo hidden-ABC\n")))
	require.True(t, waitFor(t, 10*time.Second, func() bool {
		return strings.Contains(term.Emulator().String(), "hidden-ABC")
	}), "background terminal stopped parsing")

	for _, ev := range a.Tick() {
		assert.NotEqual(t, app.EventDamaged, ev.Type, "damage event from background terminal")
	}

	// Returning to active raises damage immediately.
	term.SetMode(app.ModeActive)
	var sawDamage bool
	for _, ev := range a.Tick() {
		if ev.Type == app.EventDamaged && ev.Terminal == id {
			sawDamage = true
		}
	}
	assert.True(t, sawDamage, "no damage on background->active switch")
}

func TestRenderProducesSurface(t *testing.T) {
	a := newTestApp(t)

	id1, err := a.CreateTerminal(40, 10, "", "")
	require.NoError(t, err)
	id2, err := a.CreateTerminal(40, 10, "", "")
	require.NoError(t, err)

	surface, err := a.Render([]app.Layout{
		{ID: id1, Rect: imageRect(0, 0, 320, 240)},
		{ID: id2, Rect: imageRect(320, 0, 640, 240), Glow: true},
	})
	require.NoError(t, err)
	assert.Equal(t, 640, surface.Bounds().Dx())
	assert.Equal(t, 480, surface.Bounds().Dy())

	_, err = a.Render([]app.Layout{{ID: 9999, Rect: imageRect(0, 0, 10, 10)}})
	assert.ErrorIs(t, err, app.ErrNotFound)
}

func TestFontSizeRoundTripRestoresMetrics(t *testing.T) {
	a := newTestApp(t)

	before := a.FontMetrics()
	a.ChangeFontSize(app.FontSizeIncrease)
	a.ChangeFontSize(app.FontSizeDecrease)
	after := a.FontMetrics()

	assert.Equal(t, before, after)
}

func TestEventCallbackWakeup(t *testing.T) {
	a := newTestApp(t)

	wakeups := make(chan app.Event, 64)
	a.SetEventCallback(func(ev app.Event) {
		select {
		case wakeups <- ev:
		default:
		}
	})

	id, err := a.CreateTerminal(80, 24, "", "")
	require.NoError(t, err)
	require.NoError(t, a.Write(id, []byte("echo wake\n")))

	// The scheduler coalesces damage into Wakeup events on its tick.
	deadline := time.After(10 * time.Second)
	for {
		select {
		case ev := <-wakeups:
			if ev.Type == app.EventWakeup {
				return
			}
		case <-deadline:
			t.Fatal("no wakeup delivered")
		}
	}
}

func TestTerminalQueries(t *testing.T) {
	a := newTestApp(t)

	id, err := a.CreateTerminal(80, 24, "", "")
	require.NoError(t, err)
	term, _ := a.Terminal(id)

	require.NoError(t, a.Write(id, []byte("echo q\n")))
	waitFor(t, 5*time.Second, func() bool {
		return strings.Contains(term.Emulator().String(), "q")
	})

	_, row := term.Cursor()
	assert.GreaterOrEqual(t, row, 0)
	assert.False(t, term.IsBracketedPasteEnabled())
	assert.False(t, term.IsKittyKeyboardEnabled())
	assert.GreaterOrEqual(t, term.InputRow(), 0)

	term.StartSelection(eterm.Point{Line: 0, Col: 0}, eterm.SelectionLines)
	term.UpdateSelection(eterm.Point{Line: 0, Col: 0})
	assert.NotEmpty(t, term.SelectionText())
	term.ClearSelection()
}

func TestConfigDefaults(t *testing.T) {
	// Zero config fills defaults and is valid.
	a, err := app.New(app.Config{})
	require.NoError(t, err)
	a.Close()
}

func imageRect(x0, y0, x1, y1 int) image.Rectangle {
	return image.Rect(x0, y0, x1, y1)
}
