package deepgram

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rafiqhealth/rafiq/pkg/provider/stt"
)

// ---- URL / query-param tests ----

func TestBuildURL_Defaults(t *testing.T) {
	p, err := New("test-key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Request{Audio: []byte{1}, MIMEType: "audio/webm"})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	q := u.Query()

	assertEqual(t, "model", "nova-3", q.Get("model"))
	assertEqual(t, "language", "en", q.Get("language"))
	assertEqual(t, "punctuate", "true", q.Get("punctuate"))
	assertEqual(t, "encoding", "", q.Get("encoding"))
}

func TestBuildURL_RawPCM(t *testing.T) {
	p, err := New("key", WithModel("base"), WithSampleRate(48000))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Request{Audio: []byte{1}, MIMEType: stt.MIMEL16})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}

	q, _ := url.ParseQuery(mustQuery(t, rawURL))
	assertEqual(t, "model", "base", q.Get("model"))
	assertEqual(t, "encoding", "linear16", q.Get("encoding"))
	assertEqual(t, "sample_rate", "48000", q.Get("sample_rate"))
	assertEqual(t, "channels", "1", q.Get("channels"))
}

func TestBuildURL_LanguageOverriddenByRequest(t *testing.T) {
	p, err := New("key", WithLanguage("en"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rawURL, err := p.buildURL(stt.Request{Audio: []byte{1}, Language: "ar"})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	q, _ := url.ParseQuery(mustQuery(t, rawURL))
	assertEqual(t, "language", "ar", q.Get("language"))
}

func TestBuildURL_AlternateLanguagesUseMulti(t *testing.T) {
	p, _ := New("key")
	rawURL, err := p.buildURL(stt.Request{
		Audio:              []byte{1},
		Language:           "ar",
		AlternateLanguages: []string{"en-US"},
	})
	if err != nil {
		t.Fatalf("buildURL: %v", err)
	}
	q, _ := url.ParseQuery(mustQuery(t, rawURL))
	assertEqual(t, "language", "multi", q.Get("language"))
}

// ---- JSON parsing tests ----

func TestParseListenResponse(t *testing.T) {
	raw := []byte(`{
		"metadata": {"duration": 2.5},
		"results": {
			"channels": [{
				"detected_language": "ar",
				"alternatives": [{"transcript": " marhaba ", "confidence": 0.95}]
			}]
		}
	}`)

	tr, err := parseListenResponse(raw)
	if err != nil {
		t.Fatalf("parseListenResponse: %v", err)
	}
	assertEqual(t, "text", "marhaba", tr.Text)
	assertEqual(t, "language", "ar", tr.Language)
	if tr.Confidence != 0.95 {
		t.Errorf("expected confidence 0.95, got %f", tr.Confidence)
	}
	if tr.Duration != 2500*time.Millisecond {
		t.Errorf("expected duration 2.5s, got %v", tr.Duration)
	}
}

func TestParseListenResponse_EmptyAlternatives(t *testing.T) {
	raw := []byte(`{"results":{"channels":[{"alternatives":[]}]}}`)
	if _, err := parseListenResponse(raw); err == nil {
		t.Error("expected error when alternatives is empty")
	}
}

func TestParseListenResponse_InvalidJSON(t *testing.T) {
	if _, err := parseListenResponse([]byte(`{invalid`)); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

// ---- Transcribe against a fake server ----

func TestTranscribe_Roundtrip(t *testing.T) {
	var gotAuth, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"hello","confidence":0.9}]}]}}`))
	}))
	defer srv.Close()

	p, _ := New("secret", WithEndpoint(srv.URL+"/v1/listen"))
	tr, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte("abc"), MIMEType: "audio/ogg"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	assertEqual(t, "text", "hello", tr.Text)
	assertEqual(t, "auth", "Token secret", gotAuth)
	assertEqual(t, "content-type", "audio/ogg", gotType)
	assertEqual(t, "body", "abc", string(gotBody))
}

func TestTranscribe_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"err_msg":"bad key"}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	p, _ := New("bad", WithEndpoint(srv.URL))
	if _, err := p.Transcribe(context.Background(), stt.Request{Audio: []byte{1}}); err == nil {
		t.Fatal("expected error on HTTP 401")
	}
}

// ---- Constructor tests ----

func TestNew_EmptyAPIKey(t *testing.T) {
	_, err := New("")
	if err == nil {
		t.Error("expected error for empty API key")
	}
}

func TestNew_Defaults(t *testing.T) {
	p, err := New("key")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	assertEqual(t, "model", defaultModel, p.model)
	assertEqual(t, "language", defaultLanguage, p.language)
	if p.sampleRate != defaultSampleRate {
		t.Errorf("expected sampleRate %d, got %d", defaultSampleRate, p.sampleRate)
	}
}

// ---- helpers ----

func mustQuery(t *testing.T, raw string) string {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse URL: %v", err)
	}
	return u.RawQuery
}

func assertEqual(t *testing.T, label, want, got string) {
	t.Helper()
	if want != got {
		t.Errorf("%s: want %q, got %q", label, want, got)
	}
}
