package lyrics

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"
	"github.com/vikify/resolver/internal/lrc"
)

// LocalSource looks up lyrics stored next to, or inside, a local audio file.
type LocalSource interface {
	Lookup(path string) (*lrc.Lyrics, error)
}

// LocalStore reads a sibling .lrc file first and falls back to the file's embedded lyrics tag.
type LocalStore struct {
	// Enabled turns local lookups off entirely when false.
	Enabled bool
}

// NewLocalStore returns an enabled [LocalStore].
func NewLocalStore() *LocalStore {
	return &LocalStore{Enabled: true}
}

// Lookup returns parsed lyrics for the audio file at path, or nil when none are stored.
func (s *LocalStore) Lookup(path string) (*lrc.Lyrics, error) {
	if !s.Enabled || path == "" {
		return nil, nil
	}

	sibling := strings.TrimSuffix(path, filepath.Ext(path)) + ".lrc"
	if data, err := os.ReadFile(sibling); err == nil {
		if parsed := lrc.Parse(string(data)); len(parsed.Lines) > 0 {
			return &parsed, nil
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", sibling, err)
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	md, err := tag.ReadFrom(f)
	if errors.Is(err, tag.ErrNoTagsFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read tags from %s: %w", path, err)
	}

	text := strings.TrimSpace(md.Lyrics())
	if text == "" {
		return nil, nil
	}
	parsed := lrc.Parse(text)
	return &parsed, nil
}
