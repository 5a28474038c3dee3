package whispercpp

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fmueller/whisperd/internal/engine"
)

const blankAudioToken = "[BLANK_AUDIO]"

// cliOutput is the subset of whisper-cli's -oj document we read.
type cliOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func readOutput(path string) (*engine.Transcription, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return parseOutput(content)
}

func parseOutput(content []byte) (*engine.Transcription, error) {
	var out cliOutput
	if err := json.Unmarshal(content, &out); err != nil {
		return nil, fmt.Errorf("decode whisper output: %w", err)
	}

	tr := &engine.Transcription{Language: out.Result.Language}
	for _, item := range out.Transcription {
		// Overridden by the WAV header length when the input is readable.
		tr.Duration = time.Duration(item.Offsets.To) * time.Millisecond
		if strings.TrimSpace(item.Text) == blankAudioToken {
			continue
		}
		tr.Segments = append(tr.Segments, engine.Segment{
			ID:    len(tr.Segments),
			Start: time.Duration(item.Offsets.From) * time.Millisecond,
			End:   time.Duration(item.Offsets.To) * time.Millisecond,
			Text:  item.Text,
		})
	}
	return tr, nil
}
