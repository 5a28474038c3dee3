package whispercpp

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const ggmlBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// ModelFile is a pinned ggml model published by whisper.cpp.
type ModelFile struct {
	Name     string
	FileName string
	URL      string
	SHA256   string
}

type ResolvedModel struct {
	Name          string
	Path          string
	URL           string
	SHA256        string
	NeedsDownload bool
	IsCustomPath  bool
}

// pinned holds the sha256 of every published ggml file the service accepts.
var pinned = map[string]string{
	"tiny":     "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21",
	"base":     "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe",
	"small":    "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b",
	"medium":   "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208",
	"large-v3": "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2",
}

// aliases maps names the faster-whisper backend understands onto ggml
// files, so one WHISPER_MODEL value works with either backend.
var aliases = map[string]string{
	"large": "large-v3",
}

const fasterWhisperRepoPrefix = "systran/faster-whisper-"

func ModelNames() []string {
	names := make([]string, 0, len(pinned))
	for name := range pinned {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// LookupModel accepts registry names, aliases and Systran faster-whisper
// repository ids, case-insensitively.
func LookupModel(name string) (ModelFile, bool) {
	key := canonicalName(name)
	sum, ok := pinned[key]
	if !ok {
		return ModelFile{}, false
	}
	fileName := "ggml-" + key + ".bin"
	return ModelFile{Name: key, FileName: fileName, URL: ggmlBaseURL + fileName, SHA256: sum}, true
}

func canonicalName(name string) string {
	key := strings.ToLower(strings.TrimSpace(name))
	key = strings.TrimPrefix(key, fasterWhisperRepoPrefix)
	if target, ok := aliases[key]; ok {
		return target
	}
	return key
}

// ResolveModel maps a model id to its file in modelDir, or accepts a path to
// a custom ggml file.
func ResolveModel(modelRef, modelDir string) (ResolvedModel, error) {
	modelRef = strings.TrimSpace(modelRef)
	if modelRef == "" {
		return ResolvedModel{}, errors.New("model name must not be empty")
	}

	if model, ok := LookupModel(modelRef); ok {
		return resolveNamed(model, modelDir)
	}

	if !looksLikePath(modelRef) {
		return ResolvedModel{}, fmt.Errorf("unknown model %q (known models: %s)", modelRef, strings.Join(ModelNames(), ", "))
	}
	return resolveCustom(filepath.Clean(modelRef))
}

func resolveNamed(model ModelFile, modelDir string) (ResolvedModel, error) {
	if strings.TrimSpace(modelDir) == "" {
		return ResolvedModel{}, errors.New("model directory must not be empty for named model")
	}

	path := filepath.Join(modelDir, model.FileName)
	resolved := ResolvedModel{Name: model.Name, Path: path, URL: model.URL, SHA256: model.SHA256}
	switch _, err := os.Stat(path); {
	case err == nil:
	case errors.Is(err, os.ErrNotExist):
		resolved.NeedsDownload = true
	default:
		return ResolvedModel{}, fmt.Errorf("stat model path: %w", err)
	}
	return resolved, nil
}

func resolveCustom(path string) (ResolvedModel, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ResolvedModel{}, fmt.Errorf("custom model path does not exist: %s", path)
		}
		return ResolvedModel{}, fmt.Errorf("stat custom model path: %w", err)
	}
	return ResolvedModel{Name: filepath.Base(path), Path: path, IsCustomPath: true}, nil
}

func looksLikePath(input string) bool {
	return strings.ContainsRune(input, os.PathSeparator) || strings.ContainsRune(input, '/') || strings.HasSuffix(strings.ToLower(input), ".bin")
}
