// Package staging owns the per-submission directories uploaded files land in.
package staging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"
)

// ErrStorageUnavailable is returned when the staging root cannot be written.
var ErrStorageUnavailable = errors.New("staging storage unavailable")

// Store creates staging directories under Root.
type Store struct {
	Root string
}

// NewStore creates a Store rooted at root.
func NewStore(root string) *Store {
	return &Store{Root: root}
}

// Directory is the staging area of a single submission.
type Directory struct {
	ID   string
	Path string

	mu    sync.Mutex
	names []string
	taken map[string]struct{}
}

// CreateStaging makes a fresh directory named after submissionID.
func (s *Store) CreateStaging(submissionID string) (*Directory, error) {
	if submissionID == "" || submissionID != filepath.Base(submissionID) {
		return nil, fmt.Errorf("invalid submission id %q", submissionID)
	}
	if err := os.MkdirAll(s.Root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	path := filepath.Join(s.Root, submissionID)
	if err := os.Mkdir(path, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return &Directory{
		ID:    submissionID,
		Path:  path,
		taken: make(map[string]struct{}),
	}, nil
}

// Admit writes r to the directory under a sanitized form of name and returns
// the stored name. Repeated names get an ordinal suffix: "a.pdf", "a (1).pdf", ...
func (s *Store) Admit(dir *Directory, name string, r io.Reader) (string, error) {
	dir.mu.Lock()
	defer dir.mu.Unlock()

	clean := SanitizeName(name)
	saved := clean
	for i := 1; ; i++ {
		if _, used := dir.taken[saved]; !used {
			break
		}
		saved = withOrdinal(clean, i)
	}

	f, err := os.OpenFile(filepath.Join(dir.Path, saved), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create staged file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write staged file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close staged file: %w", err)
	}

	dir.taken[saved] = struct{}{}
	dir.names = append(dir.names, saved)
	return saved, nil
}

// List returns stored names in admission order.
func (s *Store) List(dir *Directory) []string {
	dir.mu.Lock()
	defer dir.mu.Unlock()
	out := make([]string, len(dir.names))
	copy(out, dir.names)
	return out
}

// Discard removes a staging directory and everything in it.
func (s *Store) Discard(dir *Directory) error {
	return os.RemoveAll(dir.Path)
}

// SanitizeName strips any client-side path, normalizes to NFC and replaces
// names that cannot be stored as-is.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = norm.NFC.String(strings.TrimSpace(name))
	name = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, name)
	if name == "" || name == "." || name == ".." || name == "/" {
		return "file"
	}
	return name
}

func withOrdinal(name string, n int) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}
