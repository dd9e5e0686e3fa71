// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package upload stages image attachments for a chat message. A Tray validates
// size, type and count, hands out blob: handles for the staged bytes, and
// releases them when images are removed or the tray is closed.
package upload

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	// DefaultMaxImages is the number of images a tray holds unless configured otherwise.
	DefaultMaxImages = 5
	// DefaultMaxBytes is the per-image size limit unless configured otherwise.
	DefaultMaxBytes = 5 * 1024 * 1024

	blobPrefix = "blob:"
)

var (
	ErrTooLarge = errors.New("image exceeds size limit")
	ErrNotImage = errors.New("file must be an image")
	ErrTooMany  = errors.New("too many images")
)

// File is an incoming upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Image is a staged attachment.
type Image struct {
	// URL is the blob: handle for the staged bytes, or the caller-supplied URL.
	URL         string `json:"url"`
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	Size        int64  `json:"size"`
}

// Tray holds the images attached to one pending message.
type Tray struct {
	mu        sync.Mutex
	maxImages int
	maxBytes  int64
	images    []Image
	blobs     map[string][]byte
	onRevoke  func(url string)
}

// Option customises a Tray.
type Option func(*Tray)

// WithRevokeHook registers fn to be called for every blob handle the tray releases.
func WithRevokeHook(fn func(url string)) Option {
	return func(t *Tray) { t.onRevoke = fn }
}

// NewTray creates a tray. Non-positive limits fall back to the defaults.
func NewTray(maxImages int, maxBytes int64, opts ...Option) *Tray {
	if maxImages <= 0 {
		maxImages = DefaultMaxImages
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	t := &Tray{
		maxImages: maxImages,
		maxBytes:  maxBytes,
		blobs:     make(map[string][]byte),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// MaxImages returns the tray capacity.
func (t *Tray) MaxImages() int { return t.maxImages }

// MaxBytes returns the per-image size limit.
func (t *Tray) MaxBytes() int64 { return t.maxBytes }

// Validate checks one file against the size and type limits and returns its content type.
func (t *Tray) Validate(f File) (string, error) {
	if int64(len(f.Data)) > t.maxBytes {
		return "", fmt.Errorf("%w: %s is %d bytes, limit %d", ErrTooLarge, f.Name, len(f.Data), t.maxBytes)
	}
	contentType := detectImageType(f)
	if contentType == "" {
		return "", fmt.Errorf("%w: %s", ErrNotImage, f.Name)
	}
	return contentType, nil
}

// detectImageType sniffs the content. The declared type is only trusted when
// sniffing cannot tell what the bytes are.
func detectImageType(f File) string {
	detected := mimetype.Detect(f.Data)
	if strings.HasPrefix(detected.String(), "image/") {
		return detected.String()
	}
	if detected.Is("application/octet-stream") && strings.HasPrefix(strings.ToLower(f.ContentType), "image/") {
		return f.ContentType
	}
	return ""
}

// Add stages one file under a new blob: handle.
func (t *Tray) Add(f File) (Image, error) {
	images, err := t.AddBatch([]File{f})
	if err != nil {
		return Image{}, err
	}
	return images[0], nil
}

// AddWithURL stages a file the caller already holds a URL for, such as a pasted
// or dropped image. The URL is not revoked by the tray unless it is a blob: handle.
func (t *Tray) AddWithURL(f File, url string) (Image, error) {
	contentType, err := t.Validate(f)
	if err != nil {
		return Image{}, err
	}
	img := Image{URL: url, Name: f.Name, ContentType: contentType, Size: int64(len(f.Data))}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.images) >= t.maxImages {
		return Image{}, fmt.Errorf("%w: limit is %d", ErrTooMany, t.maxImages)
	}
	t.images = append(t.images, img)
	if strings.HasPrefix(url, blobPrefix) {
		t.blobs[url] = f.Data
	}
	return img, nil
}

// AddBatch validates every file, stopping at the first invalid one, and then
// stages them all only if they fit in the tray. Nothing is staged on error.
func (t *Tray) AddBatch(files []File) ([]Image, error) {
	staged := make([]Image, 0, len(files))
	data := make(map[string][]byte, len(files))
	for _, f := range files {
		contentType, err := t.Validate(f)
		if err != nil {
			return nil, err
		}
		url := blobPrefix + uuid.NewString()
		staged = append(staged, Image{URL: url, Name: f.Name, ContentType: contentType, Size: int64(len(f.Data))})
		data[url] = f.Data
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.images)+len(staged) > t.maxImages {
		return nil, fmt.Errorf("%w: %d staged, %d new, limit %d", ErrTooMany, len(t.images), len(staged), t.maxImages)
	}
	t.images = append(t.images, staged...)
	for url, b := range data {
		t.blobs[url] = b
	}
	return append([]Image(nil), staged...), nil
}

// Remove drops the image at index and releases its blob handle. Out-of-range
// indices are ignored.
func (t *Tray) Remove(index int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if index < 0 || index >= len(t.images) {
		return false
	}
	img := t.images[index]
	t.images = append(t.images[:index:index], t.images[index+1:]...)
	t.revokeLocked(img.URL)
	return true
}

// Images returns the staged images in order.
func (t *Tray) Images() []Image {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Image(nil), t.images...)
}

// Len returns the number of staged images.
func (t *Tray) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.images)
}

// Data returns the staged bytes behind a blob handle.
func (t *Tray) Data(url string) ([]byte, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.blobs[url]
	return b, ok
}

// Close releases every staged image.
func (t *Tray) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, img := range t.images {
		t.revokeLocked(img.URL)
	}
	t.images = nil
}

func (t *Tray) revokeLocked(url string) {
	if !strings.HasPrefix(url, blobPrefix) {
		return
	}
	delete(t.blobs, url)
	if t.onRevoke != nil {
		t.onRevoke(url)
	}
	log.Debugf("Revoked upload handle %s", url)
}
