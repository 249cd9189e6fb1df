package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeIdentifier struct {
	match Match
	err   error
	got   []byte
}

func (f *fakeIdentifier) Identify(_ context.Context, sample []byte, _ string) (Match, error) {
	f.got = sample
	return f.match, f.err
}

func upload(t *testing.T, field string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if data != nil {
		fw, err := mw.CreateFormFile(field, "sample.webm")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestRecognizeSuccess(t *testing.T) {
	id := &fakeIdentifier{match: Match{Title: "Split", Artist: "Eddie", ACRID: "acr_1", Offset: 0}}
	h := NewHandler(id, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, upload(t, "audio", []byte("webm-bytes")))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "webm-bytes", string(id.got))
	assert.Equal(t, map[string]any{
		"success": true, "title": "Split", "artist": "Eddie", "acrid": "acr_1", "timestamp": 0.0,
	}, decode(t, rec))
}

func TestRecognizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		id     Identifier
		data   []byte
		status int
		msg    string
	}{
		{"no file", &fakeIdentifier{}, nil, http.StatusBadRequest, "No audio file received"},
		{"empty file", &fakeIdentifier{}, []byte{}, http.StatusBadRequest, "No audio file received"},
		{"not configured", nil, []byte("x"), http.StatusInternalServerError, "Backend recognition service is not configured."},
		{"no match", &fakeIdentifier{err: ErrNoMatch}, []byte("x"), http.StatusOK, "No match found"},
		{"upstream failure", &fakeIdentifier{err: errors.New("timeout")}, []byte("x"), http.StatusInternalServerError, "Error communicating with recognition service."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			NewHandler(tt.id, zerolog.Nop()).ServeHTTP(rec, upload(t, "sample", tt.data))
			assert.Equal(t, tt.status, rec.Code)
			out := decode(t, rec)
			assert.Equal(t, false, out["success"])
			assert.Equal(t, tt.msg, out["error"])
		})
	}
}

func TestPreflight(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, zerolog.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "POST", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "3600", rec.Header().Get("Access-Control-Max-Age"))
}
