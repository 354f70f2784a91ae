package storage

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/disintegration/imaging"
)

// DefaultQuality is the JPEG quality used when none is configured.
const DefaultQuality = 95

var (
	// ErrInvalidQuality indicates a JPEG quality outside 1..100.
	ErrInvalidQuality = errors.New("jpeg quality must be between 1 and 100")
	// ErrNotFound is returned when no composition has been stored yet.
	ErrNotFound = errors.New("no composition stored")
)

// Storage persists composed canvases.
type Storage interface {
	Save(name string, img image.Image) error
}

// Encode writes img to w as a JPEG at the given quality.
func Encode(w io.Writer, img image.Image, quality int) error {
	if quality < 1 || quality > 100 {
		return ErrInvalidQuality
	}
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(quality))
}

// FileStorage writes compositions as JPEG files inside Dir.
type FileStorage struct {
	Dir     string
	Quality int
}

// NewFileStorage returns a FileStorage rooted at dir.
func NewFileStorage(dir string, quality int) *FileStorage {
	return &FileStorage{Dir: dir, Quality: quality}
}

// Save encodes img and writes it to Dir/name, replacing any existing file.
func (s *FileStorage) Save(name string, img image.Image) (err error) {
	path := filepath.Join(s.Dir, name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); err == nil && closeErr != nil {
			err = fmt.Errorf("close %s: %w", path, closeErr)
		}
	}()

	if err := Encode(f, img, s.Quality); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return nil
}

// MemoryStorage keeps the most recent encoded composition and guards access with a RWMutex.
type MemoryStorage struct {
	clock func() time.Time

	mu      sync.RWMutex
	data    []byte
	savedAt time.Time
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// SaveEncoded stores an already encoded JPEG, replacing the previous one.
func (s *MemoryStorage) SaveEncoded(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)

	s.mu.Lock()
	s.data = cp
	s.savedAt = s.clock()
	s.mu.Unlock()

	return nil
}

// Latest returns a copy of the stored JPEG bytes and when they were saved.
func (s *MemoryStorage) Latest() ([]byte, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, time.Time{}, ErrNotFound
	}
	out := make([]byte, len(s.data))
	copy(out, s.data)
	return out, s.savedAt, nil
}
