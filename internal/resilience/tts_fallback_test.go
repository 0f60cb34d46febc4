package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rafiqhealth/rafiq/pkg/provider/tts"
	ttsmock "github.com/rafiqhealth/rafiq/pkg/provider/tts/mock"
)

var voice = tts.Voice{ID: "ar-OM-AyshaNeural", Locale: "ar-OM"}

func TestTTSFallback_Synthesize_PrimarySuccess(t *testing.T) {
	primary := &ttsmock.Provider{Audio: &tts.Audio{Data: []byte("p"), ContentType: tts.ContentTypeMP3}}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "polly-me", FallbackConfig{})
	fb.AddFallback("polly-eu", secondary)

	a, err := fb.Synthesize(context.Background(), tts.Request{Text: "hi", Voice: voice})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(a.Data) != "p" {
		t.Errorf("data = %q", a.Data)
	}
	if secondary.CallCount() != 0 {
		t.Error("secondary called")
	}
}

func TestTTSFallback_Synthesize_Failover(t *testing.T) {
	primary := &ttsmock.Provider{Err: errors.New("throttled")}
	secondary := &ttsmock.Provider{}

	fb := NewTTSFallback(primary, "a", FallbackConfig{})
	fb.AddFallback("b", secondary)

	if _, err := fb.Synthesize(context.Background(), tts.Request{Text: "hi", Voice: voice}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := secondary.Voices(); len(got) != 1 || got[0] != voice {
		t.Errorf("secondary voices = %v", got)
	}
}

func TestTTSFallback_RejectedDoesNotTripBreaker(t *testing.T) {
	rejected := fmt.Errorf("polly: synthesize: %w: %w", tts.ErrRejected, errors.New("InvalidParameterValue"))
	primary := &ttsmock.Provider{Err: rejected}

	fb := NewTTSFallback(primary, "polly", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Hour},
	})
	for range 3 {
		_, err := fb.Synthesize(context.Background(), tts.Request{Text: "hi", Voice: voice})
		if !errors.Is(err, tts.ErrRejected) {
			t.Fatalf("err = %v, want ErrRejected", err)
		}
	}
	if fb.group.States()["polly"] != StateClosed {
		t.Error("rejected requests opened the breaker")
	}
	if primary.CallCount() != 3 {
		t.Errorf("calls = %d, want 3", primary.CallCount())
	}
}
