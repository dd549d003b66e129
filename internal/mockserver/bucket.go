package mockserver

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// The bucket speaks just enough of the S3 REST protocol for PutObject and
// DeleteObject with path-style addressing.

func (s *Server) handlePutObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s3Error(w, http.StatusBadRequest, "IncompleteBody", err.Error())
		return
	}
	if s.RejectUpload != nil && s.RejectUpload(key) {
		s3Error(w, http.StatusForbidden, "AccessDenied", "Access Denied")
		return
	}

	s.mu.Lock()
	s.objects[key] = body
	s.mu.Unlock()

	w.Header().Set("ETag", `"mock-etag"`)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDeleteObject(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func s3Error(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>`+code+`</Code><Message>`+msg+`</Message></Error>`)
}
