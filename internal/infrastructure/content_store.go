package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"erp-mcp-server/internal/domain"
)

// DefaultCategory names the directory prefix used when no category is given.
const DefaultCategory = "content"

// ContentStore writes retrieved content under the runtime anchor directory.
// The anchor is the first directory, starting at the working directory and
// walking up, that contains a directory named after the configured marker.
type ContentStore struct {
	marker  string
	workDir func() (string, error)
	logger  domain.Logger
}

// NewContentStore creates a store that looks for marker as the anchor.
func NewContentStore(cfg domain.ContentConfig, logger domain.Logger) *ContentStore {
	if logger == nil {
		logger = domain.NopLogger{}
	}
	marker := cfg.RuntimeDir
	if marker == "" {
		marker = domain.DefaultRuntimeDir
	}
	return &ContentStore{marker: marker, workDir: os.Getwd, logger: logger}
}

// NewContentStoreAt creates a store whose walk starts at dir instead of the
// process working directory.
func NewContentStoreAt(dir string, cfg domain.ContentConfig, logger domain.Logger) *ContentStore {
	s := NewContentStore(cfg, logger)
	s.workDir = func() (string, error) { return dir, nil }
	return s
}

// ErrAnchorNotFound is returned when no ancestor holds the marker directory.
var ErrAnchorNotFound = errors.New("runtime anchor directory not found")

// Anchor returns the marker directory found by walking up from the working
// directory.
func (s *ContentStore) Anchor() (string, error) {
	dir, err := s.workDir()
	if err != nil {
		return "", fmt.Errorf("failed to get working directory: %w", err)
	}
	dir, err = filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve working directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, s.marker)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %q directory above %s", ErrAnchorNotFound, s.marker, dir)
		}
		dir = parent
	}
}

// Save writes data to <anchor>/<category>File_<configID>/<contentID><ext>
// and returns the absolute path written.
func (s *ContentStore) Save(ctx context.Context, category, configID, contentID, mimeType string, data []byte) (string, error) {
	if category == "" {
		category = DefaultCategory
	}
	for name, part := range map[string]string{"category": category, "configId": configID, "contentId": contentID} {
		if err := checkPathPart(name, part); err != nil {
			return "", err
		}
	}

	anchor, err := s.Anchor()
	if err != nil {
		return "", err
	}

	dir := filepath.Join(anchor, category+"File_"+configID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", dir, err)
	}

	path := filepath.Join(dir, contentID+domain.ExtensionForMIME(mimeType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}

	s.logger.Info(ctx, "content saved", "path", path, "bytes", len(data))
	return path, nil
}

// checkPathPart rejects values that would escape the target directory.
func checkPathPart(name, value string) error {
	if value == "" {
		return fmt.Errorf("%s is required", name)
	}
	if value == "." || value == ".." || strings.ContainsAny(value, `/\`) || strings.ContainsRune(value, 0) {
		return fmt.Errorf("%s %q is not a valid path element", name, value)
	}
	return nil
}
