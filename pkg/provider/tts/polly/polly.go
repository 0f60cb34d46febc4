// Package polly provides a TTS provider backed by Amazon Polly.
//
// Credentials and region come from the standard AWS configuration chain
// (environment, shared config, instance role). The voice locale is sent as
// Polly's LanguageCode so bilingual voices pick the right pronunciation.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/rafiqhealth/rafiq/pkg/provider/tts"
)

const (
	defaultRegion = "us-east-1"
	defaultEngine = "neural"
)

var _ tts.Provider = (*Provider)(nil)

// synthClient is the subset of the Polly client used here.
type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithRegion sets the AWS region. Defaults to us-east-1.
func WithRegion(region string) Option {
	return func(p *Provider) { p.region = region }
}

// WithEngine selects "neural", "standard", "long-form" or "generative".
func WithEngine(engine string) Option {
	return func(p *Provider) { p.engine = engine }
}

// withClient injects a pre-built client. Used by tests.
func withClient(c synthClient) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements tts.Provider using Amazon Polly. Output is MP3.
type Provider struct {
	region string
	engine string

	mu     sync.Mutex
	client synthClient
}

// New constructs a Polly Provider. The AWS client is built lazily on the
// first call so construction never blocks on credential resolution.
func New(opts ...Option) (*Provider, error) {
	p := &Provider{region: defaultRegion, engine: defaultEngine}
	for _, o := range opts {
		o(p)
	}
	if strings.TrimSpace(p.region) == "" {
		return nil, errors.New("polly: region must not be empty")
	}
	return p, nil
}

// Synthesize implements tts.Provider.
func (p *Provider) Synthesize(ctx context.Context, req tts.Request) (*tts.Audio, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("polly: %w", err)
	}
	client, err := p.resolveClient(ctx)
	if err != nil {
		return nil, err
	}

	text := req.Text
	input := &polly.SynthesizeSpeechInput{
		Engine:       engineFor(p.engine),
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(req.Voice.ID),
	}
	if req.Voice.Locale != "" {
		input.LanguageCode = pollytypes.LanguageCode(req.Voice.Locale)
	}

	out, err := client.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("polly: synthesize speech: %w", classify(err))
	}
	if out == nil || out.AudioStream == nil {
		return nil, errors.New("polly: synthesize speech: empty audio stream")
	}
	defer out.AudioStream.Close()

	data, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, fmt.Errorf("polly: read audio stream: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("polly: synthesize speech: empty audio stream")
	}
	ct := tts.ContentTypeMP3
	if out.ContentType != nil && *out.ContentType != "" {
		ct = *out.ContentType
	}
	return &tts.Audio{Data: data, ContentType: ct}, nil
}

// classify marks client-side Polly errors with tts.ErrRejected so callers can
// tell them apart from transient failures.
func classify(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	switch apiErr.ErrorCode() {
	case "InvalidSsmlException", "TextLengthExceededException", "LexiconNotFoundException",
		"MarksNotSupportedForFormatException", "InvalidSampleRateException",
		"LanguageNotSupportedException", "EngineNotSupportedException", "ValidationException":
		return fmt.Errorf("%w: %w", tts.ErrRejected, err)
	}
	return err
}

func engineFor(name string) pollytypes.Engine {
	switch strings.ToLower(name) {
	case "standard":
		return pollytypes.EngineStandard
	case "long-form":
		return pollytypes.EngineLongForm
	case "generative":
		return pollytypes.EngineGenerative
	default:
		return pollytypes.EngineNeural
	}
}

func (p *Provider) resolveClient(ctx context.Context) (synthClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.client != nil {
		return p.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return nil, fmt.Errorf("polly: load aws config: %w", err)
	}
	p.client = polly.NewFromConfig(awsCfg)
	return p.client, nil
}
