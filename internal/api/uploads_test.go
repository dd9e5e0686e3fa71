// Copyright 2026 The modeldeck Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package api

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/traylinx/modeldeck/internal/upload"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

type part struct {
	name        string
	contentType string
	data        []byte
}

func uploadRequest(t *testing.T, session string, parts ...part) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, p := range parts {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="images"; filename="`+p.name+`"`)
		h.Set("Content-Type", p.contentType)
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = w.Write(p.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/v0/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	return req
}

func withSession(req *http.Request, session string) *http.Request {
	req.Header.Set(SessionHeader, session)
	return req
}

func TestUploads_StageFetchRemove(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "chat-1",
		part{name: "a.png", contentType: "image/png", data: pngHeader},
		part{name: "b.png", contentType: "image/png", data: pngHeader},
	))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	images := decode[struct{ Images []upload.Image }](t, w).Images
	require.Len(t, images, 2)
	require.True(t, strings.HasPrefix(images[0].URL, "blob:"))

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/v0/uploads/blob/"+strings.TrimPrefix(images[0].URL, "blob:"), nil), "chat-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngHeader, w.Body.Bytes())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v0/uploads", nil))
	assert.Len(t, decode[struct{ Images []upload.Image }](t, w).Images, 0, "other sessions have their own tray")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodDelete, "/v0/uploads/0", nil), "chat-1"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodDelete, "/v0/uploads/7", nil), "chat-1"))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodDelete, "/v0/uploads/x", nil), "chat-1"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/v0/uploads", nil), "chat-1"))
	assert.Len(t, decode[struct{ Images []upload.Image }](t, w).Images, 1)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodDelete, "/v0/uploads", nil), "chat-1"))
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, withSession(httptest.NewRequest(http.MethodGet, "/v0/uploads/blob/"+strings.TrimPrefix(images[1].URL, "blob:"), nil), "chat-1"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploads_Rejections(t *testing.T) {
	s, _ := newTestServer(t, nil)
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "", part{name: "notes.txt", contentType: "text/plain", data: []byte("hello there")}))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
	assert.Contains(t, w.Body.String(), "not_an_image")

	many := make([]part, 0, upload.DefaultMaxImages+1)
	for i := 0; i <= upload.DefaultMaxImages; i++ {
		many = append(many, part{name: "x.png", contentType: "image/png", data: pngHeader})
	}
	w = httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, "", many...))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "too_many_images")

	w = httptest.NewRecorder()
	h.ServeHTTP(w, uploadRequest(t, ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
