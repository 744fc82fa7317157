package eterm

import (
	"encoding/binary"
	"image/color"
)

// CellFlags is a bitmask of cell rendering attributes.
type CellFlags uint16

const (
	CellFlagBold CellFlags = 1 << iota
	CellFlagDim
	CellFlagItalic
	CellFlagUnderline
	CellFlagDoubleUnderline
	CellFlagCurlyUnderline
	CellFlagDottedUnderline
	CellFlagBlinkSlow
	CellFlagBlinkFast
	CellFlagReverse
	CellFlagHidden
	CellFlagStrike
	CellFlagWideChar
	CellFlagWideCharSpacer
)

// underlineFlags covers every underline variant.
const underlineFlags = CellFlagUnderline | CellFlagDoubleUnderline | CellFlagCurlyUnderline | CellFlagDottedUnderline

// Cell stores the character, colors, and formatting attributes for one grid position.
// Wide characters (2 columns) use a spacer cell in the second position.
// Equality of two cells is decidable from the fields alone; damage is
// tracked per row by the Buffer, not per cell.
type Cell struct {
	Char           rune
	Fg             color.Color
	Bg             color.Color
	UnderlineColor color.Color
	Flags          CellFlags
	Hyperlink      *Hyperlink
	Image          *CellImage
}

// Hyperlink associates a cell with a clickable link (OSC 8).
type Hyperlink struct {
	ID  string
	URI string
}

// NewCell creates a cell initialized with space character and default colors.
func NewCell() Cell {
	return Cell{
		Char: ' ',
		Fg:   &NamedColor{Name: NamedColorForeground},
		Bg:   &NamedColor{Name: NamedColorBackground},
	}
}

// Reset clears all attributes and sets the cell to default state (space character, default colors).
func (c *Cell) Reset() {
	c.Char = ' '
	c.Fg = &NamedColor{Name: NamedColorForeground}
	c.Bg = &NamedColor{Name: NamedColorBackground}
	c.UnderlineColor = nil
	c.Flags = 0
	c.Hyperlink = nil
	c.Image = nil
}

// HasFlag returns true if the specified flag is set.
func (c *Cell) HasFlag(flag CellFlags) bool {
	return c.Flags&flag != 0
}

// SetFlag enables the specified flag without affecting others.
func (c *Cell) SetFlag(flag CellFlags) {
	c.Flags |= flag
}

// ClearFlag disables the specified flag without affecting others.
func (c *Cell) ClearFlag(flag CellFlags) {
	c.Flags &^= flag
}

// IsWide returns true if this cell contains a wide character (CJK, emoji, etc.) that occupies 2 columns.
func (c *Cell) IsWide() bool {
	return c.HasFlag(CellFlagWideChar)
}

// IsWideSpacer returns true if this is the second cell of a wide character (should be skipped during rendering).
func (c *Cell) IsWideSpacer() bool {
	return c.HasFlag(CellFlagWideCharSpacer)
}

// IsUnderlined returns true if any underline variant is set.
func (c *Cell) IsUnderlined() bool {
	return c.Flags&underlineFlags != 0
}

// Rune returns the cell's character, mapping the zero rune to a space.
func (c *Cell) Rune() rune {
	if c.Char == 0 {
		return ' '
	}
	return c.Char
}

// HasImage returns true if this cell has an image reference.
func (c *Cell) HasImage() bool {
	return c.Image != nil
}

// appendHash serializes every raster-relevant attribute of the cell
// into buf for row content hashing. The encoding only needs to be
// stable and injective per field, not portable.
func (c *Cell) appendHash(buf []byte) []byte {
	var tmp [6]byte
	binary.LittleEndian.PutUint32(tmp[:4], uint32(c.Char))
	binary.LittleEndian.PutUint16(tmp[4:6], uint16(c.Flags))
	buf = append(buf, tmp[:6]...)
	buf = appendColorHash(buf, c.Fg)
	buf = appendColorHash(buf, c.Bg)
	buf = appendColorHash(buf, c.UnderlineColor)
	if c.Hyperlink != nil {
		buf = append(buf, 1)
		buf = append(buf, c.Hyperlink.URI...)
		buf = append(buf, 0)
	} else {
		buf = append(buf, 0)
	}
	if c.Image != nil {
		var id [4]byte
		binary.LittleEndian.PutUint32(id[:], c.Image.PlacementID)
		buf = append(buf, 2)
		buf = append(buf, id[:]...)
	}
	return buf
}

// appendColorHash encodes a cell color with a type tag so that e.g.
// indexed 15 and the equivalent RGB never collide.
func appendColorHash(buf []byte, c color.Color) []byte {
	switch v := c.(type) {
	case nil:
		return append(buf, 0)
	case *NamedColor:
		return append(buf, 1, byte(v.Name), byte(v.Name>>8))
	case *IndexedColor:
		return append(buf, 2, byte(v.Index))
	case color.RGBA:
		return append(buf, 3, v.R, v.G, v.B, v.A)
	default:
		r, g, b, a := c.RGBA()
		return append(buf, 4, byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8))
	}
}
