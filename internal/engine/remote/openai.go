// Package remote transcribes through an OpenAI-compatible audio API.
package remote

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fmueller/whisperd/internal/engine"
	"github.com/fmueller/whisperd/internal/logging"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

var ErrMissingAPIKey = errors.New("openai backend requires OPENAI_API_KEY")

type Options struct {
	APIKey string
	// BaseURL points at a compatible server; empty uses api.openai.com.
	BaseURL string
	Logger  *zap.Logger
}

// Model forwards audio files to the transcription endpoint. Beam size and
// VAD settings have no remote equivalent and are not sent.
type Model struct {
	client    *openai.Client
	modelName string
	logger    *zap.Logger
}

func Factory(opts Options) engine.Factory {
	return func(ctx context.Context, spec engine.ModelSpec) (engine.Model, error) {
		return New(ctx, spec, opts)
	}
}

func New(_ context.Context, spec engine.ModelSpec, opts Options) (*Model, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}

	logger := logging.OrNop(opts.Logger)
	name := RemoteModelName(spec.Name)
	logger.Debug("using remote transcription API", zap.String("base_url", cfg.BaseURL), zap.String("remote_model", name))

	return &Model{
		client:    openai.NewClientWithConfig(cfg),
		modelName: name,
		logger:    logger,
	}, nil
}

// RemoteModelName maps local size names onto the hosted whisper-1 model and
// passes anything else through for compatible servers.
func RemoteModelName(name string) string {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tiny", "tiny.en", "base", "base.en", "small", "small.en", "medium", "medium.en",
		"large", "large-v1", "large-v2", "large-v3", "turbo", "large-v3-turbo":
		return openai.Whisper1
	default:
		return name
	}
}

func (m *Model) Transcribe(ctx context.Context, audioPath string, opts engine.DecodeOptions) (*engine.Transcription, error) {
	resp, err := m.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    m.modelName,
		FilePath: audioPath,
		Format:   openai.AudioResponseFormatVerboseJSON,
		Language: opts.Language,
	})
	if err != nil {
		return nil, fmt.Errorf("remote transcription: %w", err)
	}

	tr := &engine.Transcription{
		Language: resp.Language,
		Duration: secondsToDuration(resp.Duration),
	}
	for _, seg := range resp.Segments {
		tr.Segments = append(tr.Segments, engine.Segment{
			ID:    seg.ID,
			Start: secondsToDuration(seg.Start),
			End:   secondsToDuration(seg.End),
			Text:  seg.Text,
		})
	}
	// Some compatible servers omit segments in verbose_json.
	if len(tr.Segments) == 0 && strings.TrimSpace(resp.Text) != "" {
		tr.Segments = []engine.Segment{{End: tr.Duration, Text: resp.Text}}
	}
	return tr, nil
}

func (m *Model) Close() error {
	return nil
}
