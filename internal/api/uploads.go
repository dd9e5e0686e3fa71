// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/traylinx/modeldeck/internal/upload"
)

func (s *Server) tray(c *gin.Context) *upload.Tray {
	session := strings.TrimSpace(c.GetHeader(SessionHeader))
	if session == "" {
		session = defaultSession
	}
	return s.uploads.Tray(session)
}

func (s *Server) listUploads(c *gin.Context) {
	t := s.tray(c)
	c.JSON(http.StatusOK, gin.H{"images": t.Images(), "maxImages": t.MaxImages()})
}

func (s *Server) postUploads(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	headers := form.File["images"]
	if len(headers) == 0 {
		writeError(c, http.StatusBadRequest, "invalid_request", "no images in field \"images\"")
		return
	}

	t := s.tray(c)
	files := make([]upload.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readPart(fh, t.MaxBytes())
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_request", err.Error())
			return
		}
		files = append(files, f)
	}

	images, err := t.AddBatch(files)
	switch {
	case errors.Is(err, upload.ErrTooLarge):
		writeError(c, http.StatusRequestEntityTooLarge, "image_too_large", err.Error())
	case errors.Is(err, upload.ErrNotImage):
		writeError(c, http.StatusUnsupportedMediaType, "not_an_image", err.Error())
	case errors.Is(err, upload.ErrTooMany):
		writeError(c, http.StatusConflict, "too_many_images", err.Error())
	case err != nil:
		writeError(c, http.StatusInternalServerError, "upload_failed", err.Error())
	default:
		c.JSON(http.StatusCreated, gin.H{"images": images})
	}
}

// readPart reads at most limit+1 bytes so oversized parts still fail validation
// without being buffered whole.
func readPart(fh *multipart.FileHeader, limit int64) (upload.File, error) {
	src, err := fh.Open()
	if err != nil {
		return upload.File{}, fmt.Errorf("open %s: %w", fh.Filename, err)
	}
	defer func() { _ = src.Close() }()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return upload.File{}, fmt.Errorf("read %s: %w", fh.Filename, err)
	}
	return upload.File{Name: fh.Filename, ContentType: fh.Header.Get("Content-Type"), Data: data}, nil
}

func (s *Server) getUploadBlob(c *gin.Context) {
	url := "blob:" + c.Param("handle")
	t := s.tray(c)
	data, ok := t.Data(url)
	if !ok {
		writeError(c, http.StatusNotFound, "upload_not_found", "no staged image "+url)
		return
	}
	contentType := "application/octet-stream"
	for _, img := range t.Images() {
		if img.URL == url {
			contentType = img.ContentType
			break
		}
	}
	c.Data(http.StatusOK, contentType, data)
}

func (s *Server) deleteUpload(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "index must be an integer")
		return
	}
	if !s.tray(c).Remove(index) {
		writeError(c, http.StatusNotFound, "upload_not_found", fmt.Sprintf("no staged image at index %d", index))
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) clearUploads(c *gin.Context) {
	session := strings.TrimSpace(c.GetHeader(SessionHeader))
	if session == "" {
		session = defaultSession
	}
	s.uploads.Drop(session)
	c.Status(http.StatusNoContent)
}
