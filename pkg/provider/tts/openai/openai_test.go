package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rafiqhealth/rafiq/pkg/provider/tts"
)

func TestNew_EmptyAPIKey(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatal("expected error for empty apiKey")
	}
}

func TestSynthesize(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/speech") {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "audio/mpeg")
		_, _ = w.Write([]byte("ID3mp3"))
	}))
	defer srv.Close()

	p, _ := New("sk-test", WithBaseURL(srv.URL+"/"), WithModel("tts-1-hd"))
	audio, err := p.Synthesize(context.Background(), tts.Request{
		Text:  "marhaba",
		Voice: tts.Voice{ID: "nova", Locale: "ar-OM"},
	})
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(audio.Data) != "ID3mp3" {
		t.Errorf("Data = %q, want ID3mp3", audio.Data)
	}
	if audio.ContentType != tts.ContentTypeMP3 {
		t.Errorf("ContentType = %q, want %q", audio.ContentType, tts.ContentTypeMP3)
	}
	if body["voice"] != "nova" || body["model"] != "tts-1-hd" || body["input"] != "marhaba" {
		t.Errorf("unexpected request body: %v", body)
	}
	if body["response_format"] != "mp3" {
		t.Errorf("response_format = %v, want mp3", body["response_format"])
	}
}

func TestSynthesize_Validation(t *testing.T) {
	p, _ := New("sk-test")
	_, err := p.Synthesize(context.Background(), tts.Request{Text: " ", Voice: tts.Voice{ID: "nova"}})
	if !errors.Is(err, tts.ErrEmptyText) {
		t.Errorf("err = %v, want ErrEmptyText", err)
	}
	_, err = p.Synthesize(context.Background(), tts.Request{Text: "hi"})
	if !errors.Is(err, tts.ErrEmptyVoice) {
		t.Errorf("err = %v, want ErrEmptyVoice", err)
	}
}

func TestSynthesize_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"unknown voice","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	p, _ := New("sk-test", WithBaseURL(srv.URL+"/"))
	if _, err := p.Synthesize(context.Background(), tts.Request{Text: "hi", Voice: tts.Voice{ID: "x"}}); err == nil {
		t.Fatal("expected error on HTTP 400")
	}
}
