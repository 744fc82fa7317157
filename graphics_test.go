package eterm

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"testing"
)

func TestImageManagerStoreAndDedup(t *testing.T) {
	m := NewImageManager()

	data := bytes.Repeat([]byte{1, 2, 3, 4}, 16)
	id1 := m.Store(4, 4, data)
	id2 := m.Store(4, 4, data)

	if id1 != id2 {
		t.Errorf("identical images got distinct ids %d, %d", id1, id2)
	}
	if m.ImageCount() != 1 {
		t.Errorf("image count %d, want 1", m.ImageCount())
	}
	if m.UsedMemory() != int64(len(data)) {
		t.Errorf("used memory %d", m.UsedMemory())
	}
}

func TestImageManagerBudgetPrunesUnreferenced(t *testing.T) {
	m := NewImageManager()
	m.SetMaxMemory(256)

	var last uint32
	for i := 0; i < 8; i++ {
		data := bytes.Repeat([]byte{byte(i)}, 64)
		last = m.Store(4, 4, data)
	}

	if m.UsedMemory() > 256 {
		t.Errorf("memory %d over budget", m.UsedMemory())
	}
	if m.Image(last) == nil {
		t.Error("most recent image pruned")
	}
}

func TestImageManagerPlacementLifecycle(t *testing.T) {
	m := NewImageManager()
	id := m.Store(2, 2, make([]byte, 16))

	pid := m.Place(&ImagePlacement{ImageID: id, Row: 1, Col: 2, Rows: 2, Cols: 2})
	if m.PlacementCount() != 1 {
		t.Fatal("placement not registered")
	}

	m.DeletePlacementsByPosition(2, 3)
	if m.PlacementCount() != 0 {
		t.Error("position delete missed placement")
	}

	m.Place(&ImagePlacement{ImageID: id, Row: 0, Col: 0, Rows: 1, Cols: 1})
	m.DeleteImage(id)
	if m.PlacementCount() != 0 || m.ImageCount() != 0 {
		t.Error("image delete left placements or data")
	}
	_ = pid
}

func TestParseKittyGraphicsCommand(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte{255, 0, 0, 255})
	cmd, err := ParseKittyGraphics([]byte("Ga=T,f=32,s=1,v=1,i=7;" + payload))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cmd.Action != KittyActionTransmitDisplay {
		t.Errorf("action %c", cmd.Action)
	}
	if cmd.Format != KittyFormatRGBA || cmd.Width != 1 || cmd.Height != 1 {
		t.Errorf("format %d size %dx%d", cmd.Format, cmd.Width, cmd.Height)
	}
	if cmd.ImageID != 7 {
		t.Errorf("image id %d", cmd.ImageID)
	}

	rgba, w, h, err := cmd.DecodeImageData()
	if err != nil || w != 1 || h != 1 {
		t.Fatalf("decode: %v %dx%d", err, w, h)
	}
	if rgba[0] != 255 || rgba[3] != 255 {
		t.Errorf("pixel %v", rgba)
	}
}

func TestKittyTransmitViaTerminal(t *testing.T) {
	term := New(WithSize(24, 80))

	pixel := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{0, 255, 0, 255}, 4))
	term.WriteString(fmt.Sprintf("\x1b_Ga=T,f=32,s=2,v=2,i=3;%s\x1b\\", pixel))

	if term.ImageCount() != 1 {
		t.Fatalf("image count %d", term.ImageCount())
	}
	if term.ImagePlacementCount() != 1 {
		t.Fatalf("placement count %d", term.ImagePlacementCount())
	}

	img := term.Image(3)
	if img == nil || img.Width != 2 || img.Height != 2 {
		t.Fatalf("stored image %+v", img)
	}

	if cell := term.Cell(0, 0); cell == nil || !cell.HasImage() {
		t.Error("no image reference on covered cell")
	}
}

func TestKittyQueryResponds(t *testing.T) {
	var buf bytes.Buffer
	term := New(WithResponse(&buf))

	term.WriteString("\x1b_Ga=q,i=5;\x1b\\")

	if !bytes.Contains(buf.Bytes(), []byte("i=5;OK")) {
		t.Errorf("query response %q", buf.String())
	}
}

func TestKittyDisabled(t *testing.T) {
	term := New(WithKitty(false))

	pixel := base64.StdEncoding.EncodeToString([]byte{0, 0, 0, 255})
	term.WriteString(fmt.Sprintf("\x1b_Ga=T,f=32,s=1,v=1;%s\x1b\\", pixel))

	if term.ImageCount() != 0 {
		t.Error("kitty image stored while protocol disabled")
	}
}

func TestParseSixelBasic(t *testing.T) {
	// Color 1 selected, one full sixel column (6 pixels).
	img, err := ParseSixel(nil, []byte("#1~"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if img.Width != 1 || img.Height != 6 {
		t.Fatalf("size %dx%d", img.Width, img.Height)
	}
	// All six pixels carry palette color 1 (blue in the VGA default).
	for y := 0; y < 6; y++ {
		off := y * 4
		if img.Data[off+2] != 205 || img.Data[off+3] != 255 {
			t.Errorf("pixel %d = %v", y, img.Data[off:off+4])
		}
	}
}

func TestParseSixelRepeatAndNewline(t *testing.T) {
	img, err := ParseSixel(nil, []byte("#1!4~-#2~"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if img.Width != 4 {
		t.Errorf("width %d, want 4", img.Width)
	}
	if img.Height != 12 {
		t.Errorf("height %d, want 12", img.Height)
	}
}

func TestParseSixelColorDefinition(t *testing.T) {
	// Define color 10 as 100% red, then draw with it.
	img, err := ParseSixel(nil, []byte("#10;2;100;0;0#10@"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if img.Width != 1 || img.Height < 1 {
		t.Fatalf("size %dx%d", img.Width, img.Height)
	}
	if img.Data[0] != 255 || img.Data[1] != 0 {
		t.Errorf("pixel %v, want red", img.Data[:4])
	}
}

func TestSixelEmptyInput(t *testing.T) {
	img, err := ParseSixel(nil, nil)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if img.Width != 0 || img.Height != 0 {
		t.Error("empty input produced pixels")
	}
}

func TestSixelViaTerminalPlacesImage(t *testing.T) {
	term := New(WithSize(24, 80))

	term.WriteString("\x1bPq#1!12~!12~\x1b\\")

	if term.ImageCount() != 1 {
		t.Fatalf("image count %d", term.ImageCount())
	}
	if term.ImagePlacementCount() != 1 {
		t.Fatalf("placement count %d", term.ImagePlacementCount())
	}
}
