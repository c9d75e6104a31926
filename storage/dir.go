package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"bookclub-catalog/catalog"
)

// DirSource serves covers from a local directory such as ./resources.
type DirSource struct {
	root string
}

func NewDirSource(root string) *DirSource {
	return &DirSource{root: root}
}

// Fetch reads root/name. Names that would leave root are treated as missing.
func (d *DirSource) Fetch(name string) (*catalog.CoverAsset, error) {
	if name == "" || filepath.IsAbs(name) || strings.Contains(filepath.ToSlash(name), "..") {
		return nil, fmt.Errorf("%w: %s", catalog.ErrCoverNotFound, name)
	}
	data, err := os.ReadFile(filepath.Join(d.root, filepath.Clean(name)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", catalog.ErrCoverNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read cover %s: %w", name, err)
	}
	return &catalog.CoverAsset{
		Name:        name,
		ContentType: ContentTypeFor(name),
		Data:        data,
	}, nil
}

// ContentTypeFor guesses the image type from the file extension.
func ContentTypeFor(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	}
	return "application/octet-stream"
}
