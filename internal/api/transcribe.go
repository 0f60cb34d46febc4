package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/rafiqhealth/rafiq/internal/observe"
	"github.com/rafiqhealth/rafiq/internal/pipeline"
	"github.com/rafiqhealth/rafiq/pkg/provider/stt"
)

// multipartMemory is how much of an upload ParseMultipartForm keeps in
// memory before spilling to disk.
const multipartMemory = 8 << 20

type transcribeResponse struct {
	Transcription string `json:"transcription"`
	Language      string `json:"language,omitempty"`
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeError(w, http.StatusBadRequest, "No audio file uploaded.", err)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	f, hdr, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file uploaded.", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No audio file uploaded.", err)
		return
	}

	tr, err := s.turns.Transcribe(r.Context(), stt.Request{
		Audio:    data,
		MIMEType: hdr.Header.Get("Content-Type"),
		Language: r.FormValue("language"),
	})
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, pipeline.ErrInvalidRequest):
			status = http.StatusBadRequest
		case errors.Is(err, pipeline.ErrNotConfigured):
			status = http.StatusNotImplemented
		}
		observe.Logger(r.Context()).Warn("transcription failed", "status", status, "err", err)
		writeError(w, status, "Failed to transcribe audio.", err)
		return
	}
	writeJSON(w, http.StatusOK, transcribeResponse{Transcription: tr.Text, Language: tr.Language})
}
