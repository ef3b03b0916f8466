package storage

import (
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"objectvision/internal/logger"

	"github.com/disintegration/imaging"
)

const (
	thumbnailDir = ".thumbs"
	suffixChars  = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	suffixLength = 7
	maxAttempts  = 100
)

// ErrInvalidName is returned for names that would escape the media directory.
var ErrInvalidName = errors.New("invalid media file name")

var invalidNameChars = regexp.MustCompile(`[^-\w.]`)

// MediaService stores uploads and derived files in a single flat directory.
type MediaService struct {
	dir           string
	thumbnailSize int
	logger        *logger.Logger
}

// NewMediaService creates the media directory if needed.
func NewMediaService(dir string, thumbnailSize int, logger *logger.Logger) (*MediaService, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create media directory: %w", err)
	}
	return &MediaService{dir: dir, thumbnailSize: thumbnailSize, logger: logger}, nil
}

// Dir returns the media directory.
func (s *MediaService) Dir() string {
	return s.dir
}

// Save writes r under a cleaned version of name. When the name is taken a random
// 7-character suffix is added before the extension. It returns the stored name.
func (s *MediaService) Save(name string, r io.Reader) (string, error) {
	clean := ValidName(name)
	if clean == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}

	ext := filepath.Ext(clean)
	root := strings.TrimSuffix(clean, ext)

	candidate := clean
	for attempt := 0; attempt < maxAttempts; attempt++ {
		f, err := os.OpenFile(filepath.Join(s.dir, candidate), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, os.ErrExist) {
			candidate = fmt.Sprintf("%s_%s%s", root, randomSuffix(), ext)
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create %s: %w", candidate, err)
		}

		if _, err := io.Copy(f, r); err != nil {
			f.Close()
			os.Remove(f.Name())
			return "", fmt.Errorf("failed to write %s: %w", candidate, err)
		}
		if err := f.Close(); err != nil {
			os.Remove(f.Name())
			return "", fmt.Errorf("failed to write %s: %w", candidate, err)
		}
		return candidate, nil
	}

	return "", fmt.Errorf("no available name for %s after %d attempts", clean, maxAttempts)
}

// Path resolves a stored name to its location on disk.
func (s *MediaService) Path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return filepath.Join(s.dir, name), nil
}

// Size returns a stored file's size in bytes.
func (s *MediaService) Size(name string) (int64, error) {
	path, err := s.Path(name)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Exists reports whether a stored file with this name is present.
func (s *MediaService) Exists(name string) bool {
	path, err := s.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Remove deletes a stored file and its thumbnail. Missing files are not an error.
func (s *MediaService) Remove(name string) error {
	path, err := s.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	if err := os.Remove(s.thumbnailPath(name)); err != nil && !os.IsNotExist(err) {
		s.logger.Warning("Failed to delete thumbnail for %s: %v", name, err)
	}
	return nil
}

// Clear deletes every stored file and all thumbnails.
func (s *MediaService) Clear() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("failed to read media directory: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() != thumbnailDir {
			continue
		}
		if err := os.RemoveAll(filepath.Join(s.dir, entry.Name())); err != nil {
			s.logger.Error("Error deleting %s: %v", entry.Name(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Thumbnail returns the path of a JPEG thumbnail that fits within the configured
// size, generating it on first use.
func (s *MediaService) Thumbnail(name string) (string, error) {
	src, err := s.Path(name)
	if err != nil {
		return "", err
	}

	thumb := s.thumbnailPath(name)
	srcInfo, err := os.Stat(src)
	if err != nil {
		return "", err
	}
	if info, err := os.Stat(thumb); err == nil && !info.ModTime().Before(srcInfo.ModTime()) {
		return thumb, nil
	}

	img, err := imaging.Open(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", name, err)
	}

	if err := os.MkdirAll(filepath.Dir(thumb), 0755); err != nil {
		return "", err
	}
	resized := imaging.Fit(img, s.thumbnailSize, s.thumbnailSize, imaging.Lanczos)
	if err := imaging.Save(resized, thumb, imaging.JPEGQuality(85)); err != nil {
		return "", fmt.Errorf("failed to save thumbnail for %s: %w", name, err)
	}

	s.logger.Debug("Generated thumbnail for %s", name)
	return thumb, nil
}

func (s *MediaService) thumbnailPath(name string) string {
	return filepath.Join(s.dir, thumbnailDir, name+".jpg")
}

// ValidName reduces an uploaded file name to a safe base name: surrounding spaces are
// trimmed, inner spaces become underscores and anything outside [-\w.] is dropped.
// It returns "" when nothing usable remains.
func ValidName(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.ReplaceAll(strings.TrimSpace(name), " ", "_")
	name = invalidNameChars.ReplaceAllString(name, "")
	return strings.TrimLeft(name, ".")
}

func randomSuffix() string {
	b := make([]byte, suffixLength)
	for i := range b {
		b[i] = suffixChars[rand.Intn(len(suffixChars))]
	}
	return string(b)
}
