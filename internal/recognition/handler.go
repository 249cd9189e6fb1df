package recognition

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// MaxUploadBytes bounds an uploaded sample.
const MaxUploadBytes = 10 << 20

// Response is the JSON body returned by the recognition endpoint.
type Response struct {
	Success   bool   `json:"success"`
	Title     string `json:"title,omitempty"`
	Artist    string `json:"artist,omitempty"`
	ACRID     string `json:"acrid,omitempty"`
	Timestamp *int   `json:"timestamp,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Handler serves POST / with a multipart audio upload.
type Handler struct {
	id  Identifier
	log zerolog.Logger
}

// NewHandler returns the recognition router. A nil Identifier answers every
// request with a not-configured error.
func NewHandler(id Identifier, log zerolog.Logger) http.Handler {
	h := &Handler{id: id, log: log.With().Str("component", "recognition-http").Logger()}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS)
	r.Post("/", h.Recognize)
	return r
}

// CORS allows any origin to POST and answers preflight requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "POST")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.Header().Set("Access-Control-Max-Age", "3600")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Recognize reads the first uploaded file and identifies it.
func (h *Handler) Recognize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	sample, name, err := firstFile(r)
	if err != nil || len(sample) == 0 {
		writeJSON(w, http.StatusBadRequest, Response{Error: "No audio file received"})
		return
	}
	if h.id == nil {
		h.log.Error().Msg("ACRCloud credentials are not set")
		writeJSON(w, http.StatusInternalServerError, Response{Error: "Backend recognition service is not configured."})
		return
	}

	m, err := h.id.Identify(r.Context(), sample, name)
	switch {
	case errors.Is(err, ErrNoMatch):
		writeJSON(w, http.StatusOK, Response{Error: "No match found"})
	case err != nil:
		h.log.Error().Err(err).Str("request_id", chimiddleware.GetReqID(r.Context())).Msg("identify failed")
		writeJSON(w, http.StatusInternalServerError, Response{Error: "Error communicating with recognition service."})
	default:
		writeJSON(w, http.StatusOK, Response{
			Success:   true,
			Title:     m.Title,
			Artist:    m.Artist,
			ACRID:     m.ACRID,
			Timestamp: &m.Offset,
		})
	}
}

func firstFile(r *http.Request) ([]byte, string, error) {
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		return nil, "", err
	}
	for _, files := range r.MultipartForm.File {
		if len(files) == 0 {
			continue
		}
		f, err := files[0].Open()
		if err != nil {
			return nil, "", err
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		return b, files[0].Filename, err
	}
	return nil, "", http.ErrMissingFile
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
