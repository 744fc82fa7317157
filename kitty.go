package eterm

import (
	"bytes"
	"compress/zlib"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"io"
	"strconv"
	"strings"
)

// KittyAction represents the action of a Kitty graphics command.
type KittyAction byte

const (
	KittyActionTransmit        KittyAction = 't' // transmit image data
	KittyActionTransmitDisplay KittyAction = 'T' // transmit and display
	KittyActionQuery           KittyAction = 'q' // query terminal support
	KittyActionDisplay         KittyAction = 'p' // display (put) a transmitted image
	KittyActionDelete          KittyAction = 'd' // delete image(s)
)

// KittyFormat represents the transmitted pixel format.
type KittyFormat uint32

const (
	KittyFormatRGB  KittyFormat = 24
	KittyFormatRGBA KittyFormat = 32
	KittyFormatPNG  KittyFormat = 100
)

// KittyDelete selects what a delete command removes. Uppercase
// variants also drop the image data.
type KittyDelete byte

const (
	KittyDeleteAll          KittyDelete = 'a'
	KittyDeleteAllWithData  KittyDelete = 'A'
	KittyDeleteByID         KittyDelete = 'i'
	KittyDeleteByIDWithData KittyDelete = 'I'
	KittyDeleteAtCursor     KittyDelete = 'c'
	KittyDeleteAtCursorData KittyDelete = 'C'
	KittyDeleteByCol        KittyDelete = 'x'
	KittyDeleteByColData    KittyDelete = 'X'
	KittyDeleteByRow        KittyDelete = 'y'
	KittyDeleteByRowData    KittyDelete = 'Y'
	KittyDeleteByZIndex     KittyDelete = 'z'
	KittyDeleteByZIndexData KittyDelete = 'Z'
)

// KittyCommand is a parsed Kitty graphics command (APC G).
type KittyCommand struct {
	Action      KittyAction
	Format      KittyFormat
	Compression byte // 'z' for zlib

	ImageID     uint32 // i=
	PlacementID uint32 // p=

	Width  uint32 // s= (source width in pixels)
	Height uint32 // v= (source height in pixels)
	More   bool   // m= (more data chunks coming)

	SrcX, SrcY      uint32 // x=, y=
	SrcW, SrcH      uint32 // w=, h=
	Cols, Rows      uint32 // c=, r= (target size in cells)
	CellOffsetX     uint32 // X=
	CellOffsetY     uint32 // Y=
	ZIndex          int32  // z=
	DoNotMoveCursor bool   // C=1

	Delete KittyDelete // d=
	Quiet  uint32      // q= (0=normal, 1=suppress OK, 2=suppress all)

	Payload []byte // base64-decoded
}

// ParseKittyGraphics parses the payload of a Kitty graphics APC
// sequence ("G" prefix optional, ST terminator already stripped).
func ParseKittyGraphics(data []byte) (*KittyCommand, error) {
	cmd := &KittyCommand{
		Action: KittyActionTransmitDisplay,
		Format: KittyFormatRGBA,
	}

	if len(data) > 0 && data[0] == 'G' {
		data = data[1:]
	}

	controlData := data
	var payload []byte
	if sepIdx := bytes.IndexByte(data, ';'); sepIdx >= 0 {
		controlData = data[:sepIdx]
		payload = data[sepIdx+1:]
	}

	for _, pair := range bytes.Split(controlData, []byte(",")) {
		eqIdx := bytes.IndexByte(pair, '=')
		if eqIdx <= 0 {
			continue
		}
		key := pair[0]
		value := pair[eqIdx+1:]

		switch key {
		case 'a':
			if len(value) > 0 {
				cmd.Action = KittyAction(value[0])
			}
		case 'f':
			cmd.Format = KittyFormat(parseUint32(value))
		case 'o':
			if len(value) > 0 {
				cmd.Compression = value[0]
			}
		case 'i':
			cmd.ImageID = parseUint32(value)
		case 'p':
			cmd.PlacementID = parseUint32(value)
		case 's':
			cmd.Width = parseUint32(value)
		case 'v':
			cmd.Height = parseUint32(value)
		case 'm':
			cmd.More = parseUint32(value) == 1
		case 'x':
			cmd.SrcX = parseUint32(value)
		case 'y':
			cmd.SrcY = parseUint32(value)
		case 'w':
			cmd.SrcW = parseUint32(value)
		case 'h':
			cmd.SrcH = parseUint32(value)
		case 'c':
			cmd.Cols = parseUint32(value)
		case 'r':
			cmd.Rows = parseUint32(value)
		case 'X':
			cmd.CellOffsetX = parseUint32(value)
		case 'Y':
			cmd.CellOffsetY = parseUint32(value)
		case 'z':
			cmd.ZIndex = parseInt32(value)
		case 'C':
			cmd.DoNotMoveCursor = parseUint32(value) == 1
		case 'd':
			if len(value) > 0 {
				cmd.Delete = KittyDelete(value[0])
			}
		case 'q':
			cmd.Quiet = parseUint32(value)
		}
	}

	if len(payload) > 0 {
		decoded, err := base64.StdEncoding.DecodeString(string(payload))
		if err != nil {
			decoded, err = base64.RawStdEncoding.DecodeString(string(payload))
			if err != nil {
				return nil, fmt.Errorf("decode base64 payload: %w", err)
			}
		}
		cmd.Payload = decoded
	}

	return cmd, nil
}

// DecodeImageData decodes the image payload based on format and
// compression. Returns RGBA pixel data, width, and height.
func (cmd *KittyCommand) DecodeImageData() ([]byte, uint32, uint32, error) {
	data := cmd.Payload

	if cmd.Compression == 'z' && len(data) > 0 {
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("zlib reader: %w", err)
		}
		defer r.Close()

		decompressed, err := io.ReadAll(r)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("decompress payload: %w", err)
		}
		data = decompressed
	}

	switch cmd.Format {
	case KittyFormatPNG:
		return decodePNG(data)

	case KittyFormatRGB:
		if cmd.Width == 0 || cmd.Height == 0 {
			return nil, 0, 0, fmt.Errorf("RGB format requires width and height")
		}
		expected := int(cmd.Width * cmd.Height * 3)
		if len(data) < expected {
			return nil, 0, 0, fmt.Errorf("insufficient RGB data: got %d, expected %d", len(data), expected)
		}
		rgba := make([]byte, cmd.Width*cmd.Height*4)
		for i := uint32(0); i < cmd.Width*cmd.Height; i++ {
			rgba[i*4+0] = data[i*3+0]
			rgba[i*4+1] = data[i*3+1]
			rgba[i*4+2] = data[i*3+2]
			rgba[i*4+3] = 255
		}
		return rgba, cmd.Width, cmd.Height, nil

	case KittyFormatRGBA:
		if cmd.Width == 0 || cmd.Height == 0 {
			return nil, 0, 0, fmt.Errorf("RGBA format requires width and height")
		}
		expected := int(cmd.Width * cmd.Height * 4)
		if len(data) < expected {
			return nil, 0, 0, fmt.Errorf("insufficient RGBA data: got %d, expected %d", len(data), expected)
		}
		return data[:expected], cmd.Width, cmd.Height, nil

	default:
		return nil, 0, 0, fmt.Errorf("unsupported format: %d", cmd.Format)
	}
}

// decodePNG decodes PNG data to RGBA pixels.
func decodePNG(data []byte) ([]byte, uint32, uint32, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, 0, 0, fmt.Errorf("decode PNG: %w", err)
		}
	}

	bounds := img.Bounds()
	width := uint32(bounds.Dx())
	height := uint32(bounds.Dy())

	rgba := make([]byte, width*height*4)
	for y := 0; y < int(height); y++ {
		for x := 0; x < int(width); x++ {
			r, g, b, a := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			offset := (uint32(y)*width + uint32(x)) * 4
			rgba[offset+0] = uint8(r >> 8)
			rgba[offset+1] = uint8(g >> 8)
			rgba[offset+2] = uint8(b >> 8)
			rgba[offset+3] = uint8(a >> 8)
		}
	}

	return rgba, width, height, nil
}

func parseUint32(b []byte) uint32 {
	n, _ := strconv.ParseUint(string(b), 10, 32)
	return uint32(n)
}

func parseInt32(b []byte) int32 {
	n, _ := strconv.ParseInt(string(b), 10, 32)
	return int32(n)
}

// FormatKittyResponse formats a Kitty graphics response APC.
func FormatKittyResponse(imageID uint32, message string, isError bool) string {
	var sb strings.Builder
	sb.WriteString("\x1b_G")
	if imageID > 0 {
		fmt.Fprintf(&sb, "i=%d", imageID)
	}
	sb.WriteString(";")
	if isError {
		sb.WriteString(message)
	} else {
		sb.WriteString("OK")
	}
	sb.WriteString("\x1b\\")
	return sb.String()
}

// handleKittyGraphics processes a parsed Kitty graphics command.
func (t *Terminal) handleKittyGraphics(data []byte) {
	cmd, err := ParseKittyGraphics(data)
	if err != nil {
		return
	}

	switch cmd.Action {
	case KittyActionQuery:
		if cmd.Quiet < 2 {
			t.writeResponseString(FormatKittyResponse(cmd.ImageID, "", false))
		}

	case KittyActionTransmit:
		t.kittyTransmit(cmd)

	case KittyActionTransmitDisplay:
		t.kittyTransmit(cmd)
		if !cmd.More {
			t.kittyDisplay(cmd)
		}

	case KittyActionDisplay:
		t.kittyDisplay(cmd)

	case KittyActionDelete:
		t.kittyDelete(cmd)
	}
}

// kittyTransmit stores transmitted image data, assembling chunked
// transfers first.
func (t *Terminal) kittyTransmit(cmd *KittyCommand) {
	payload, done := t.images.appendChunk(cmd.ImageID, cmd.Payload, cmd.More)
	if !done {
		return
	}
	cmd.Payload = payload

	rgba, width, height, err := cmd.DecodeImageData()
	if err != nil || width == 0 || height == 0 {
		if cmd.Quiet < 2 {
			t.writeResponseString(FormatKittyResponse(cmd.ImageID, "ENODATA", true))
		}
		return
	}

	if cmd.ImageID > 0 {
		t.images.StoreWithID(cmd.ImageID, width, height, rgba)
	} else {
		cmd.ImageID = t.images.Store(width, height, rgba)
	}

	if cmd.Quiet < 1 {
		t.writeResponseString(FormatKittyResponse(cmd.ImageID, "", false))
	}
}

// kittyDisplay places an already transmitted image at the cursor.
func (t *Terminal) kittyDisplay(cmd *KittyCommand) {
	img := t.images.Image(cmd.ImageID)
	if img == nil {
		if cmd.Quiet < 2 {
			t.writeResponseString(FormatKittyResponse(cmd.ImageID, "ENOENT", true))
		}
		return
	}

	cellW, cellH := t.getCellSizePixels()

	srcW := cmd.SrcW
	srcH := cmd.SrcH
	if srcW == 0 {
		srcW = img.Width - cmd.SrcX
	}
	if srcH == 0 {
		srcH = img.Height - cmd.SrcY
	}

	cols := int(cmd.Cols)
	rows := int(cmd.Rows)
	if cols == 0 {
		cols = int((srcW + uint32(cellW) - 1) / uint32(cellW))
	}
	if rows == 0 {
		rows = int((srcH + uint32(cellH) - 1) / uint32(cellH))
	}

	t.mu.Lock()
	curRow := t.cursor.Row
	curCol := t.cursor.Col
	t.mu.Unlock()

	placement := &ImagePlacement{
		ImageID: cmd.ImageID,
		Row:     curRow,
		Col:     curCol,
		Cols:    cols,
		Rows:    rows,
		SrcX:    cmd.SrcX,
		SrcY:    cmd.SrcY,
		SrcW:    srcW,
		SrcH:    srcH,
		ZIndex:  cmd.ZIndex,
		OffsetX: cmd.CellOffsetX,
		OffsetY: cmd.CellOffsetY,
	}

	placementID := t.images.Place(placement)
	t.assignImageToCells(cmd.ImageID, placementID, placement, img.Width, img.Height, cellW, cellH)

	if !cmd.DoNotMoveCursor {
		t.mu.Lock()
		t.cursor.Col += cols
		if t.cursor.Col >= t.cols {
			t.cursor.Col = 0
			t.cursor.Row++
			if t.cursor.Row >= t.rows {
				t.cursor.Row = t.rows - 1
			}
		}
		t.mu.Unlock()
	}

	if cmd.Quiet < 1 {
		t.writeResponseString(FormatKittyResponse(cmd.ImageID, "", false))
	}
}

// kittyDelete removes placements (and optionally image data).
func (t *Terminal) kittyDelete(cmd *KittyCommand) {
	t.mu.Lock()
	curRow := t.cursor.Row
	curCol := t.cursor.Col
	t.mu.Unlock()

	switch cmd.Delete {
	case KittyDeleteAll, KittyDeleteAllWithData:
		t.images.Clear()

	case KittyDeleteByID, KittyDeleteByIDWithData:
		t.images.RemovePlacementsForImage(cmd.ImageID)
		if cmd.Delete == KittyDeleteByIDWithData {
			t.images.DeleteImage(cmd.ImageID)
		}

	case KittyDeleteAtCursor, KittyDeleteAtCursorData:
		t.images.DeletePlacementsByPosition(curRow, curCol)

	case KittyDeleteByCol, KittyDeleteByColData:
		t.images.DeletePlacementsInColumn(curCol)

	case KittyDeleteByRow, KittyDeleteByRowData:
		t.images.DeletePlacementsInRow(curRow)

	case KittyDeleteByZIndex, KittyDeleteByZIndexData:
		t.images.DeletePlacementsByZIndex(cmd.ZIndex)
	}

	t.mu.Lock()
	t.activeBuffer.MarkFullDamage()
	t.mu.Unlock()
}

// assignImageToCells stamps cell-level image references (with UV
// coordinates) onto the cells covered by a placement, marking their
// rows damaged.
func (t *Terminal) assignImageToCells(imageID, placementID uint32, p *ImagePlacement, imgW, imgH uint32, cellW, cellH int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for row := 0; row < p.Rows; row++ {
		for col := 0; col < p.Cols; col++ {
			cellRow := p.Row + row
			cellCol := p.Col + col

			if cellRow < 0 || cellRow >= t.rows || cellCol < 0 || cellCol >= t.cols {
				continue
			}

			u0 := float32(col*cellW) / float32(imgW)
			v0 := float32(row*cellH) / float32(imgH)
			u1 := float32((col+1)*cellW) / float32(imgW)
			v1 := float32((row+1)*cellH) / float32(imgH)
			if u1 > 1.0 {
				u1 = 1.0
			}
			if v1 > 1.0 {
				v1 = 1.0
			}

			cell := t.activeBuffer.CellForWrite(cellRow, cellCol)
			if cell != nil {
				cell.Image = &CellImage{
					PlacementID: placementID,
					ImageID:     imageID,
					U0:          u0,
					V0:          v0,
					U1:          u1,
					V1:          v1,
					ZIndex:      p.ZIndex,
				}
			}
		}
	}
}
