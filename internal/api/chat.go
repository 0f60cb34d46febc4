package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rafiqhealth/rafiq/internal/observe"
	"github.com/rafiqhealth/rafiq/internal/pipeline"
	"github.com/rafiqhealth/rafiq/internal/safety"
	"github.com/rafiqhealth/rafiq/pkg/provider/stt"
	"github.com/rafiqhealth/rafiq/pkg/types"
)

// chatRequest is the POST /api/v1/chat body. History is a pointer so an
// absent field can be told apart from an empty conversation.
type chatRequest struct {
	History   *[]types.Message `json:"history"`
	User      string           `json:"user"`
	Audio     string           `json:"audio,omitempty"`
	AudioMIME string           `json:"audio_mime,omitempty"`
}

type chatResponse struct {
	TurnID               string         `json:"turn_id"`
	Reply                string         `json:"reply"`
	Audio                string         `json:"audio"`
	AudioContentType     string         `json:"audio_content_type,omitempty"`
	Crisis               bool           `json:"crisis"`
	CrisisIndicators     []string       `json:"crisis_indicators"`
	SafetyNote           string         `json:"safety_note"`
	ModificationsApplied bool           `json:"modifications_applied"`
	UsedFallback         bool           `json:"used_fallback"`
	Outcome              safety.Outcome `json:"outcome"`
	Transcript           string         `json:"transcript,omitempty"`
	ValidatorMetadata    any            `json:"validator_metadata"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.", err)
		return
	}
	if body.History == nil {
		writeError(w, http.StatusBadRequest, "Invalid request body.", errors.New("history is required"))
		return
	}

	req := pipeline.TurnRequest{History: *body.History, UserText: body.User}
	if body.Audio != "" {
		data, err := base64.StdEncoding.DecodeString(body.Audio)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body.", errors.New("audio is not valid base64"))
			return
		}
		req.Audio = &stt.Request{Audio: data, MIMEType: body.AudioMIME}
	}

	res, err := s.turns.Run(r.Context(), req)
	if err != nil {
		status, msg := chatErrorStatus(err)
		observe.Logger(r.Context()).Warn("chat turn failed", "status", status, "err", err)
		writeError(w, status, msg, err)
		return
	}
	writeJSON(w, http.StatusOK, newChatResponse(res))
}

func chatErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidRequest):
		return http.StatusBadRequest, "Invalid request body."
	case errors.Is(err, pipeline.ErrNotConfigured):
		return http.StatusNotImplemented, "Audio input is not enabled."
	case errors.Is(err, pipeline.ErrTranscription):
		return http.StatusBadGateway, "Failed to transcribe audio."
	case errors.Is(err, pipeline.ErrModel):
		return http.StatusBadGateway, "Failed to get response from LLM service."
	default:
		return http.StatusInternalServerError, "Internal error."
	}
}

func newChatResponse(res *pipeline.Result) chatResponse {
	out := chatResponse{
		TurnID:               res.TurnID,
		Reply:                res.FinalReply,
		Crisis:               res.CrisisLogged,
		CrisisIndicators:     res.CrisisIndicators,
		SafetyNote:           res.SafetyNote,
		ModificationsApplied: res.ModificationsApplied,
		UsedFallback:         res.UsedFallback,
		Outcome:              res.Outcome,
		Transcript:           res.Transcript,
	}
	if out.CrisisIndicators == nil {
		out.CrisisIndicators = []string{}
	}
	if res.Audio != nil {
		out.Audio = res.Audio.Base64()
		out.AudioContentType = res.Audio.ContentType
	}
	switch {
	case res.Verdict != nil:
		out.ValidatorMetadata = res.Verdict
	case res.ValidatorError != "":
		out.ValidatorMetadata = map[string]string{"error": res.ValidatorError}
	}
	return out
}
