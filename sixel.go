package eterm

import (
	"image/color"
)

// SixelImage is a decoded Sixel image.
type SixelImage struct {
	Width       uint32
	Height      uint32
	Data        []byte // RGBA pixel data
	Transparent bool
}

// sixelDecoder walks a Sixel byte stream, accumulating pixels into a
// growing RGBA raster.
type sixelDecoder struct {
	palette     [256]color.RGBA
	colorIndex  int
	x, y        int
	maxX, maxY  int
	raster      []byte // RGBA rows of width stride/4
	stride      int    // bytes per raster row
	rasterRows  int
	transparent bool
}

// ParseSixel parses Sixel data and returns an RGBA image.
// params are the DCS parameters (P1;P2;P3); data is the raw Sixel
// bytes after 'q'. Never fails: malformed input produces whatever
// pixels were decoded before it.
func ParseSixel(params []int64, data []byte) (*SixelImage, error) {
	d := &sixelDecoder{maxX: -1, maxY: -1}
	d.initDefaultPalette()

	// P2=1 selects a transparent background; P1/P3 (aspect, grid) are
	// accepted and ignored.
	if len(params) >= 2 && params[1] == 1 {
		d.transparent = true
	}

	d.parse(data)
	return d.toImage(), nil
}

// initDefaultPalette sets up the default VGA 16-color palette, with a
// grayscale ramp for the remaining entries.
func (d *sixelDecoder) initDefaultPalette() {
	vga := []color.RGBA{
		{0, 0, 0, 255},
		{0, 0, 205, 255},
		{205, 0, 0, 255},
		{205, 0, 205, 255},
		{0, 205, 0, 255},
		{0, 205, 205, 255},
		{205, 205, 0, 255},
		{205, 205, 205, 255},
		{0, 0, 0, 255},
		{0, 0, 255, 255},
		{255, 0, 0, 255},
		{255, 0, 255, 255},
		{0, 255, 0, 255},
		{0, 255, 255, 255},
		{255, 255, 0, 255},
		{255, 255, 255, 255},
	}
	copy(d.palette[:], vga)

	for i := 16; i < 256; i++ {
		gray := uint8((i - 16) * 255 / 239)
		d.palette[i] = color.RGBA{gray, gray, gray, 255}
	}
}

// parse processes the sixel byte stream.
func (d *sixelDecoder) parse(data []byte) {
	i := 0
	for i < len(data) {
		b := data[i]
		i++

		switch {
		case b == '$':
			// Graphics carriage return
			d.x = 0

		case b == '-':
			// Graphics new line: down 6 pixels, back to column 0
			d.x = 0
			d.y += 6

		case b == '!':
			// Repeat introducer: !<count><sixel>
			count, newI := parseSixelNumber(data, i)
			i = newI
			if i < len(data) {
				sixel := data[i]
				i++
				if sixel >= '?' && sixel <= '~' {
					d.draw(sixel, int(count))
				}
			}

		case b == '#':
			// Color introducer: #<index> or #<index>;<type>;<v1>;<v2>;<v3>
			colorNum, newI := parseSixelNumber(data, i)
			i = newI

			if i < len(data) && data[i] == ';' {
				var vals [4]int64
				n := 0
				for n < 4 && i < len(data) && data[i] == ';' {
					i++
					vals[n], i = parseSixelNumber(data, i)
					n++
				}
				if n == 4 && colorNum >= 0 && colorNum < 256 {
					if vals[0] == 1 {
						d.palette[colorNum] = hlsToRGB(int(vals[1]), int(vals[2]), int(vals[3]))
					} else {
						// RGB percentages 0-100
						d.palette[colorNum] = color.RGBA{
							R: uint8(vals[1] * 255 / 100),
							G: uint8(vals[2] * 255 / 100),
							B: uint8(vals[3] * 255 / 100),
							A: 255,
						}
					}
				}
			}

			if colorNum >= 0 && colorNum < 256 {
				d.colorIndex = int(colorNum)
			}

		case b >= '?' && b <= '~':
			d.draw(b, 1)

		case b == '"':
			// Raster attributes "<Pan>;<Pad>;<Ph>;<Pv> - parsed and ignored
			for i < len(data) && (data[i] == ';' || (data[i] >= '0' && data[i] <= '9')) {
				i++
			}
		}
	}
}

// parseSixelNumber parses a decimal number from data starting at index i.
func parseSixelNumber(data []byte, i int) (int64, int) {
	var n int64
	for i < len(data) && data[i] >= '0' && data[i] <= '9' {
		n = n*10 + int64(data[i]-'0')
		i++
	}
	return n, i
}

// growTo ensures the raster covers pixel (x, y).
func (d *sixelDecoder) growTo(x, y int) {
	needW := (x + 1) * 4
	needRows := y + 1

	if needW > d.stride {
		// Widen: re-stride existing rows.
		newStride := needW
		if newStride < d.stride*2 {
			newStride = d.stride * 2
		}
		newRaster := make([]byte, newStride*d.rasterRows)
		for row := 0; row < d.rasterRows; row++ {
			copy(newRaster[row*newStride:], d.raster[row*d.stride:(row+1)*d.stride])
		}
		d.raster = newRaster
		d.stride = newStride
	}
	if needRows > d.rasterRows {
		newRows := needRows
		if newRows < d.rasterRows*2 {
			newRows = d.rasterRows * 2
		}
		grown := make([]byte, d.stride*newRows)
		copy(grown, d.raster)
		d.raster = grown
		d.rasterRows = newRows
	}
}

// draw renders one sixel character (6 vertical pixels) count times.
func (d *sixelDecoder) draw(b byte, count int) {
	if count <= 0 {
		count = 1
	}

	bits := b - '?'
	c := d.palette[d.colorIndex]

	d.growTo(d.x+count-1, d.y+5)

	for r := 0; r < count; r++ {
		for bit := 0; bit < 6; bit++ {
			if bits&(1<<bit) == 0 {
				continue
			}
			px := d.x
			py := d.y + bit
			off := py*d.stride + px*4
			d.raster[off+0] = c.R
			d.raster[off+1] = c.G
			d.raster[off+2] = c.B
			d.raster[off+3] = c.A
			if px > d.maxX {
				d.maxX = px
			}
			if py > d.maxY {
				d.maxY = py
			}
		}
		d.x++
	}
}

// toImage packs the decoded pixels into a tight RGBA buffer.
func (d *sixelDecoder) toImage() *SixelImage {
	if d.maxX < 0 || d.maxY < 0 {
		return &SixelImage{}
	}

	width := uint32(d.maxX + 1)
	height := uint32(d.maxY + 1)
	out := make([]byte, width*height*4)

	if !d.transparent {
		bg := d.palette[0]
		for i := uint32(0); i < width*height; i++ {
			out[i*4+0] = bg.R
			out[i*4+1] = bg.G
			out[i*4+2] = bg.B
			out[i*4+3] = bg.A
		}
	}

	for y := 0; y < int(height); y++ {
		src := d.raster[y*d.stride : y*d.stride+int(width)*4]
		dst := out[y*int(width)*4 : (y+1)*int(width)*4]
		for x := 0; x < int(width); x++ {
			if src[x*4+3] != 0 {
				copy(dst[x*4:x*4+4], src[x*4:x*4+4])
			}
		}
	}

	return &SixelImage{
		Width:       width,
		Height:      height,
		Data:        out,
		Transparent: d.transparent,
	}
}

// hlsToRGB converts Sixel HLS (blue at hue 0) to RGB.
func hlsToRGB(h, l, s int) color.RGBA {
	if s == 0 {
		v := uint8(l * 255 / 100)
		return color.RGBA{v, v, v, 255}
	}

	hNorm := float64(h) / 360.0
	lNorm := float64(l) / 100.0
	sNorm := float64(s) / 100.0

	// Sixel's hue wheel puts blue at 0 (red at 120, green at 240), so
	// shift by 240 degrees onto the standard wheel.
	hNorm += 2.0 / 3.0
	if hNorm >= 1.0 {
		hNorm -= 1.0
	}

	var q float64
	if lNorm < 0.5 {
		q = lNorm * (1 + sNorm)
	} else {
		q = lNorm + sNorm - lNorm*sNorm
	}
	p := 2*lNorm - q

	r := hueToRGB(p, q, hNorm+1.0/3.0)
	g := hueToRGB(p, q, hNorm)
	b := hueToRGB(p, q, hNorm-1.0/3.0)

	return color.RGBA{
		R: uint8(r * 255),
		G: uint8(g * 255),
		B: uint8(b * 255),
		A: 255,
	}
}

func hueToRGB(p, q, t float64) float64 {
	if t < 0 {
		t += 1
	}
	if t > 1 {
		t -= 1
	}
	switch {
	case t < 1.0/6.0:
		return p + (q-p)*6*t
	case t < 1.0/2.0:
		return q
	case t < 2.0/3.0:
		return p + (q-p)*(2.0/3.0-t)*6
	default:
		return p
	}
}

// SixelReceived handles an incoming Sixel DCS sequence, storing the
// decoded image and placing it at the cursor.
func (t *Terminal) SixelReceived(params [][]uint16, data []byte) {
	if !t.sixelEnabled {
		return
	}

	var p []int64
	for _, param := range params {
		if len(param) > 0 {
			p = append(p, int64(param[0]))
		}
	}

	img, err := ParseSixel(p, data)
	if err != nil || img.Width == 0 || img.Height == 0 {
		return
	}

	imageID := t.images.Store(img.Width, img.Height, img.Data)

	cellWidth, cellHeight := t.getCellSizePixels()
	cols := int((img.Width + uint32(cellWidth) - 1) / uint32(cellWidth))
	rows := int((img.Height + uint32(cellHeight) - 1) / uint32(cellHeight))

	t.mu.Lock()
	curRow := t.cursor.Row
	curCol := t.cursor.Col
	t.mu.Unlock()

	placement := &ImagePlacement{
		ImageID: imageID,
		Row:     curRow,
		Col:     curCol,
		Cols:    cols,
		Rows:    rows,
		SrcW:    img.Width,
		SrcH:    img.Height,
	}

	placementID := t.images.Place(placement)
	t.assignImageToCells(imageID, placementID, placement, img.Width, img.Height, cellWidth, cellHeight)

	// Sixel leaves the cursor below the image.
	t.mu.Lock()
	t.cursor.Row += rows
	if t.cursor.Row >= t.rows {
		t.cursor.Row = t.rows - 1
	}
	t.mu.Unlock()
}
