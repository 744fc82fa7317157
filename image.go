package eterm

import (
	"crypto/sha256"
	"sort"
	"sync"
	"time"
)

// ImageData stores decoded image pixels and metadata. Pixel data is
// always RGBA and immutable once stored, so renderers may hold the
// slice across frames.
type ImageData struct {
	ID         uint32
	Width      uint32
	Height     uint32
	Data       []byte   // RGBA, 4 bytes per pixel
	Hash       [32]byte // for deduplication
	AccessedAt time.Time
}

// ImagePlacement represents a displayed instance of an image.
type ImagePlacement struct {
	ID      uint32
	ImageID uint32

	// Position and size in cell coordinates
	Row, Col   int
	Cols, Rows int

	// Source region (crop from the original image), in pixels
	SrcX, SrcY uint32
	SrcW, SrcH uint32

	// Z-index for layering (-1 = behind text, 0+ = in front)
	ZIndex int32

	// Sub-cell offset in pixels
	OffsetX, OffsetY uint32
}

// CellImage is a lightweight reference stored in a Cell, carrying the
// normalized texture coordinates of the image slice covering that cell.
type CellImage struct {
	PlacementID uint32
	ImageID     uint32
	U0, V0      float32
	U1, V1      float32
	ZIndex      int32
}

// kittyAccumulator collects chunked Kitty transfers (m=1) until the
// final chunk arrives.
type kittyAccumulator struct {
	data    []byte
	imageID uint32
	active  bool
}

// ImageManager handles storage, placement, and lifecycle of terminal
// images under a byte budget. Unreferenced images are pruned oldest
// first when the budget is exceeded.
type ImageManager struct {
	mu sync.RWMutex

	images     map[uint32]*ImageData
	placements map[uint32]*ImagePlacement
	hashToID   map[[32]byte]uint32

	nextImageID     uint32
	nextPlacementID uint32

	maxMemory  int64
	usedMemory int64

	chunks kittyAccumulator
}

// DefaultImageMemoryBudget bounds decoded image pixels per terminal.
const DefaultImageMemoryBudget = 320 * 1024 * 1024

// NewImageManager creates an ImageManager with the default budget.
func NewImageManager() *ImageManager {
	return &ImageManager{
		images:     make(map[uint32]*ImageData),
		placements: make(map[uint32]*ImagePlacement),
		hashToID:   make(map[[32]byte]uint32),
		maxMemory:  DefaultImageMemoryBudget,
	}
}

// SetMaxMemory sets the maximum memory budget for images.
func (m *ImageManager) SetMaxMemory(bytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.maxMemory = bytes
	m.pruneLocked()
}

// Store adds image data and returns its ID. An identical image (same
// hash) returns the existing ID instead of storing a second copy.
func (m *ImageManager) Store(width, height uint32, data []byte) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	hash := sha256.Sum256(data)
	if existingID, ok := m.hashToID[hash]; ok {
		if img, ok := m.images[existingID]; ok {
			img.AccessedAt = time.Now()
			return existingID
		}
	}

	m.nextImageID++
	id := m.nextImageID
	m.storeLocked(id, width, height, data, hash)
	return id
}

// StoreWithID adds image data under a caller-chosen ID (Kitty i= key),
// replacing any previous image with that ID.
func (m *ImageManager) StoreWithID(id, width, height uint32, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.images[id]; ok {
		m.usedMemory -= int64(len(old.Data))
		delete(m.hashToID, old.Hash)
	}
	if id >= m.nextImageID {
		m.nextImageID = id + 1
	}
	m.storeLocked(id, width, height, data, sha256.Sum256(data))
}

func (m *ImageManager) storeLocked(id, width, height uint32, data []byte, hash [32]byte) {
	m.images[id] = &ImageData{
		ID:         id,
		Width:      width,
		Height:     height,
		Data:       data,
		Hash:       hash,
		AccessedAt: time.Now(),
	}
	m.hashToID[hash] = id
	m.usedMemory += int64(len(data))
	if m.usedMemory > m.maxMemory {
		m.pruneLocked()
	}
}

// Image returns the image data for the given ID, or nil if not found.
func (m *ImageManager) Image(id uint32) *ImageData {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if img, ok := m.images[id]; ok {
		img.AccessedAt = time.Now()
		return img
	}
	return nil
}

// Place registers a placement and returns its ID.
func (m *ImageManager) Place(p *ImagePlacement) uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPlacementID++
	p.ID = m.nextPlacementID
	m.placements[p.ID] = p
	return p.ID
}

// Placement returns the placement for the given ID, or nil if not found.
func (m *ImageManager) Placement(id uint32) *ImagePlacement {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.placements[id]
}

// Placements returns all current placements, ordered by z-index then
// placement id so composition is deterministic.
func (m *ImageManager) Placements() []*ImagePlacement {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*ImagePlacement, 0, len(m.placements))
	for _, p := range m.placements {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].ZIndex != result[j].ZIndex {
			return result[i].ZIndex < result[j].ZIndex
		}
		return result[i].ID < result[j].ID
	})
	return result
}

// RemovePlacement removes a placement by ID.
func (m *ImageManager) RemovePlacement(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.placements, id)
}

// RemovePlacementsForImage removes all placements for a given image ID.
func (m *ImageManager) RemovePlacementsForImage(imageID uint32) {
	m.removePlacements(func(p *ImagePlacement) bool { return p.ImageID == imageID })
}

// DeletePlacementsByPosition removes placements covering a given cell.
func (m *ImageManager) DeletePlacementsByPosition(row, col int) {
	m.removePlacements(func(p *ImagePlacement) bool {
		return row >= p.Row && row < p.Row+p.Rows && col >= p.Col && col < p.Col+p.Cols
	})
}

// DeletePlacementsByZIndex removes placements with a specific z-index.
func (m *ImageManager) DeletePlacementsByZIndex(z int32) {
	m.removePlacements(func(p *ImagePlacement) bool { return p.ZIndex == z })
}

// DeletePlacementsInRow removes all placements intersecting a given row.
func (m *ImageManager) DeletePlacementsInRow(row int) {
	m.removePlacements(func(p *ImagePlacement) bool { return row >= p.Row && row < p.Row+p.Rows })
}

// DeletePlacementsInColumn removes all placements intersecting a given column.
func (m *ImageManager) DeletePlacementsInColumn(col int) {
	m.removePlacements(func(p *ImagePlacement) bool { return col >= p.Col && col < p.Col+p.Cols })
}

func (m *ImageManager) removePlacements(match func(*ImagePlacement) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, p := range m.placements {
		if match(p) {
			delete(m.placements, id)
		}
	}
}

// DeleteImage removes an image and all its placements.
func (m *ImageManager) DeleteImage(id uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if img, ok := m.images[id]; ok {
		m.usedMemory -= int64(len(img.Data))
		delete(m.hashToID, img.Hash)
		delete(m.images, id)
	}
	for pid, p := range m.placements {
		if p.ImageID == id {
			delete(m.placements, pid)
		}
	}
}

// Clear removes all images, placements and any in-flight chunked transfer.
func (m *ImageManager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.images = make(map[uint32]*ImageData)
	m.placements = make(map[uint32]*ImagePlacement)
	m.hashToID = make(map[[32]byte]uint32)
	m.usedMemory = 0
	m.chunks = kittyAccumulator{}
}

// UsedMemory returns the current memory usage in bytes.
func (m *ImageManager) UsedMemory() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usedMemory
}

// ImageCount returns the number of stored images.
func (m *ImageManager) ImageCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.images)
}

// PlacementCount returns the number of active placements.
func (m *ImageManager) PlacementCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.placements)
}

// pruneLocked removes least recently used unreferenced images until
// under budget. Caller must hold m.mu.
func (m *ImageManager) pruneLocked() {
	if m.usedMemory <= m.maxMemory {
		return
	}

	referenced := make(map[uint32]bool, len(m.placements))
	for _, p := range m.placements {
		referenced[p.ImageID] = true
	}

	candidates := make([]*ImageData, 0, len(m.images))
	for id, img := range m.images {
		if !referenced[id] {
			candidates = append(candidates, img)
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].AccessedAt.Before(candidates[j].AccessedAt)
	})

	for _, img := range candidates {
		if m.usedMemory <= m.maxMemory {
			break
		}
		delete(m.hashToID, img.Hash)
		delete(m.images, img.ID)
		m.usedMemory -= int64(len(img.Data))
	}
}

// appendChunk adds a chunk to the in-flight transfer and reports
// whether more chunks are expected. Returns the accumulated payload
// when the transfer completes.
func (m *ImageManager) appendChunk(imageID uint32, payload []byte, more bool) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if more {
		m.chunks.data = append(m.chunks.data, payload...)
		m.chunks.imageID = imageID
		m.chunks.active = true
		return nil, false
	}

	if m.chunks.active {
		data := append(m.chunks.data, payload...)
		m.chunks = kittyAccumulator{}
		return data, true
	}
	return payload, true
}
