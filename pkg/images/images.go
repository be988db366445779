// Package images stores uploaded product images. The rest of the system
// treats image content as opaque; only the reference (path) matters.
package images

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotFound indicates no image is stored for the product.
var ErrNotFound = errors.New("image not found")

// Store saves and removes product images keyed by product id.
type Store interface {
	// Save writes the image bytes and returns the stored reference.
	Save(productID int64, r io.Reader) (string, error)
	Remove(productID int64) error
}

// Disk stores images as <dir>/<id>.jpg.
type Disk struct {
	dir string
}

// NewDisk creates a disk-backed store rooted at dir, creating it if needed.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create image dir: %w", err)
	}
	return &Disk{dir: dir}, nil
}

func (d *Disk) path(productID int64) string {
	return filepath.Join(d.dir, fmt.Sprintf("%d.jpg", productID))
}

// Save writes the image for the product, replacing any previous one.
func (d *Disk) Save(productID int64, r io.Reader) (string, error) {
	path := d.path(productID)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("write image: %w", err)
	}
	return fmt.Sprintf("/imagenes/%d.jpg", productID), nil
}

// Remove deletes the product's image, reporting ErrNotFound when absent.
func (d *Disk) Remove(productID int64) error {
	err := os.Remove(d.path(productID))
	if os.IsNotExist(err) {
		return ErrNotFound
	}
	return err
}
