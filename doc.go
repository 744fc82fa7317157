// Package eterm implements a VT500-family terminal emulator designed to
// sit between a PTY and a renderer.
//
// The Terminal consumes a raw byte stream (implementing io.Writer),
// decodes VT/ANSI escape sequences, and maintains a grid of cells with
// scrollback, cursor state, selection, search, and DEC private modes.
// It has no display of its own: rendering consumes immutable snapshots.
//
// # Basic usage
//
//	term := eterm.New(eterm.WithSize(24, 80))
//	term.WriteString("Hello, \x1b[1;31mWorld\x1b[0m!\r\n")
//	fmt.Println(term.String())
//
// # Snapshots
//
// Snapshot returns a TerminalState: an immutable, cheap-to-clone view
// of the grid. Rows are shared by reference and frozen; the live grid
// copies a row before its first mutation after a snapshot, so a
// snapshot taken at time t renders identically no matter what is
// written afterwards. One snapshot is the sole input to rendering one
// frame (see the render package).
//
// # Damage
//
// Every grid mutation marks its row damaged and invalidates the row's
// content hash. TakeDamage drains the damage set; structural events
// (resize, screen swap, reset) raise full damage. Schedulers use this
// to coalesce redraws.
//
// # Providers
//
// Side effects leave the emulator through small provider interfaces:
// bell, title, OSC 7 working directory, clipboard (OSC 52), shell
// integration marks (OSC 133), and terminal responses written back to
// the PTY. All default to no-ops.
//
// # Graphics
//
// Sixel DCS sequences and the Kitty graphics protocol (APC G) are
// decoded into an ImageManager holding RGBA images and cell placements
// under a memory budget. Renderers draw placements from snapshots.
package eterm
