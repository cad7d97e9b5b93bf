// Package storage keeps uploaded profile images on local disk or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
)

// ErrBadName is returned for object names that are empty or escape the storage root.
var ErrBadName = errors.New("storage: invalid object name")

// Storage stores objects under slash-separated names and returns their public URL.
type Storage interface {
	Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, name string) error
	// URL maps an object name to the address clients fetch it from.
	URL(name string) string
}

func cleanName(name string) (string, error) {
	name = strings.TrimLeft(path.Clean("/"+name), "/")
	if name == "" || name == "." {
		return "", ErrBadName
	}
	return name, nil
}

// Local writes files below BaseDir; gin serves them under PublicPrefix.
type Local struct {
	BaseDir      string
	PublicPrefix string
}

// NewLocal returns a Local store rooted at baseDir, creating it if needed.
func NewLocal(baseDir, publicPrefix string) (*Local, error) {
	if baseDir == "" {
		baseDir = "uploads"
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Local{BaseDir: baseDir, PublicPrefix: strings.TrimRight(publicPrefix, "/")}, nil
}

func (l *Local) Put(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	dst := filepath.Join(l.BaseDir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create dir: %w", err)
	}
	// write to a temp file first so readers never see a partial image
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("move %s into place: %w", name, err)
	}
	glog.V(1).Infof("stored %s (%s) in %s", name, contentType, l.BaseDir)
	return l.URL(name), nil
}

func (l *Local) Delete(ctx context.Context, name string) error {
	name, err := cleanName(name)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(l.BaseDir, filepath.FromSlash(name)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (l *Local) URL(name string) string {
	return l.PublicPrefix + "/" + strings.TrimLeft(name, "/")
}

// NameFromURL recovers the object name from a URL produced by s, or "" when the
// URL was not issued by it.
func NameFromURL(s Storage, url string) string {
	prefix := s.URL("")
	if url == "" || !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}
