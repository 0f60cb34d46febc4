package pipeline

import (
	"fmt"
	"strings"

	"github.com/rafiqhealth/rafiq/pkg/provider/stt"
	"github.com/rafiqhealth/rafiq/pkg/types"
)

// TurnRequest is one inbound chat turn. History is the client-held
// conversation so far; the server keeps no session state.
type TurnRequest struct {
	History []types.Message

	// UserText is the typed message. Ignored when Audio is set.
	UserText string

	// Audio, when non-nil, is transcribed and the transcript becomes the
	// user text.
	Audio *stt.Request
}

// validate checks the parts of r that do not depend on transcription.
func (r TurnRequest) validate() error {
	if err := types.ValidateHistory(r.History); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if r.Audio == nil && strings.TrimSpace(r.UserText) == "" {
		return fmt.Errorf("%w: user text is empty", ErrInvalidRequest)
	}
	return nil
}

// BuildTurns assembles the conversation model's input: the persona prompt
// first, then the user and assistant entries of history in order, then the
// current user message. The persona is the only system entry; client-sent
// system entries are dropped.
func BuildTurns(persona string, history []types.Message, userText string) []types.Message {
	turns := make([]types.Message, 0, len(history)+2)
	turns = append(turns, types.Message{Role: types.RoleSystem, Content: persona})
	turns = append(turns, ClientTurns(history)...)
	turns = append(turns, types.Message{Role: types.RoleUser, Content: userText})
	return turns
}

// ClientTurns returns the user and assistant entries of history in order.
// The result never shares storage with history.
func ClientTurns(history []types.Message) []types.Message {
	out := make([]types.Message, 0, len(history))
	for _, m := range history {
		if m.Role == types.RoleSystem {
			continue
		}
		out = append(out, m)
	}
	return out
}
