// Package files manages the uploads directory shared by all requests:
// uniquely named input temporaries and generated output artifacts.
package files

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Filename prefixes used by the API.
const (
	PrefixSentimentInput = "temp_s_"
	PrefixQuestionInput  = "temp_q_"
	PrefixSpeechReply    = "qans_"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// ErrInvalidName is returned by Resolve for names that do not denote a file
// directly inside the managed directory.
var ErrInvalidName = errors.New("invalid file name")

// Manager owns a single directory. Names never collide because every name
// carries a fresh random UUID.
type Manager struct {
	dir string
}

// New returns a Manager for dir, creating the directory if it is absent.
func New(dir string) (*Manager, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve uploads dir: %w", err)
	}
	if err := os.MkdirAll(abs, dirPermissions); err != nil {
		return nil, fmt.Errorf("create uploads dir: %w", err)
	}
	return &Manager{dir: abs}, nil
}

// Dir returns the absolute directory path.
func (m *Manager) Dir() string {
	return m.dir
}

// NewName returns a fresh filename: prefix + uuid + ext.
func (m *Manager) NewName(prefix, ext string) string {
	return prefix + uuid.New().String() + ext
}

// Path joins name to the managed directory.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, name)
}

// Store copies r into a new file named prefix + id + ext and returns its
// path. An empty id gets a fresh UUID. A partially written file is removed
// before returning an error.
func (m *Manager) Store(r io.Reader, prefix, id, ext string) (string, error) {
	if id == "" {
		id = uuid.New().String()
	}
	path, err := m.Resolve(prefix + id + ext)
	if err != nil {
		return "", fmt.Errorf("upload id %q: %w", id, err)
	}

	// The directory may have been removed externally since New.
	if err := os.MkdirAll(m.dir, dirPermissions); err != nil {
		return "", fmt.Errorf("create uploads dir: %w", err)
	}

	out, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, filePermissions)
	if err != nil {
		return "", fmt.Errorf("create file: %w", err)
	}

	if _, err := io.Copy(out, r); err != nil {
		out.Close()
		_ = m.Discard(path)
		return "", fmt.Errorf("write file: %w", err)
	}
	if err := out.Close(); err != nil {
		_ = m.Discard(path)
		return "", fmt.Errorf("close file: %w", err)
	}
	return path, nil
}

// Discard removes path. A missing file is not an error.
func (m *Manager) Discard(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Resolve maps a client-supplied basename to a path inside the directory.
func (m *Manager) Resolve(name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || filepath.Base(name) != name {
		return "", ErrInvalidName
	}
	return m.Path(name), nil
}
