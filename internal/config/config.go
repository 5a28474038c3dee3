// Package config resolves service settings from defaults, an optional config
// file, environment variables and command-line flags, in increasing order of
// precedence.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/fmueller/whisperd/internal/platform"
	"github.com/spf13/viper"
)

const (
	BackendFasterWhisper = "faster-whisper"
	BackendWhisperCPP    = "whisper-cpp"
	BackendOpenAI        = "openai"
	BackendStub          = "stub"

	DefaultModel          = "medium"
	DefaultDevice         = "cuda"
	DefaultComputeType    = "float16"
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8001
	DefaultMaxUploadBytes = 512 << 20
)

// Backends lists the accepted values of the backend key.
var Backends = []string{BackendFasterWhisper, BackendWhisperCPP, BackendOpenAI, BackendStub}

type Config struct {
	Model       string `mapstructure:"model"`
	Device      string `mapstructure:"device"`
	ComputeType string `mapstructure:"compute_type"`
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	Backend     string `mapstructure:"backend"`

	Python     string `mapstructure:"python"`
	ServiceDir string `mapstructure:"service_dir"`
	ModelDir   string `mapstructure:"model_dir"`
	WhisperCLI string `mapstructure:"whisper_cli"`
	VADModel   string `mapstructure:"vad_model"`

	OpenAIAPIKey  string `mapstructure:"openai_api_key"`
	OpenAIBaseURL string `mapstructure:"openai_base_url"`

	UploadDir      string   `mapstructure:"upload_dir"`
	MaxUploadBytes int64    `mapstructure:"max_upload_bytes"`
	CORSOrigins    []string `mapstructure:"cors_origins"`
}

// envKeys maps config keys to the environment variables the launcher and
// deployment scripts already export.
var envKeys = map[string]string{
	"model":            "WHISPER_MODEL",
	"device":           "WHISPER_DEVICE",
	"compute_type":     "WHISPER_COMPUTE_TYPE",
	"host":             "HOST",
	"port":             "PORT",
	"backend":          "WHISPER_BACKEND",
	"python":           "WHISPER_PYTHON",
	"service_dir":      "WHISPER_SERVICE_DIR",
	"model_dir":        "WHISPER_MODEL_DIR",
	"whisper_cli":      "WHISPER_CLI_PATH",
	"vad_model":        "WHISPER_VAD_MODEL",
	"openai_api_key":   "OPENAI_API_KEY",
	"openai_base_url":  "OPENAI_BASE_URL",
	"upload_dir":       "WHISPER_UPLOAD_DIR",
	"max_upload_bytes": "WHISPER_MAX_UPLOAD_BYTES",
	"cors_origins":     "CORS_ORIGINS",
}

// EnvName returns the environment variable bound to key.
func EnvName(key string) string {
	return envKeys[key]
}

// Keys returns every config key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(envKeys))
	for key := range envKeys {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys
}

// FlagName is the command-line flag spelling of key.
func FlagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

// NewViper returns a viper instance with defaults and environment bindings.
// configFile is optional; when set it must exist.
func NewViper(configFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("model", DefaultModel)
	v.SetDefault("device", DefaultDevice)
	v.SetDefault("compute_type", DefaultComputeType)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("backend", BackendFasterWhisper)
	v.SetDefault("python", "")
	v.SetDefault("service_dir", "")
	v.SetDefault("model_dir", "")
	v.SetDefault("whisper_cli", "")
	v.SetDefault("vad_model", "")
	v.SetDefault("openai_api_key", "")
	v.SetDefault("openai_base_url", "")
	v.SetDefault("upload_dir", "")
	v.SetDefault("max_upload_bytes", DefaultMaxUploadBytes)
	v.SetDefault("cors_origins", []string{"*"})
}

// Load unmarshals v, fills derived defaults and validates the result.
func Load(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.CORSOrigins = splitOrigins(cfg.CORSOrigins)

	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if cfg.ModelDir == "" {
		// Only the whisper-cpp backend reads model files; an unresolvable
		// home directory is reported when that backend loads.
		if dir, err := platform.ResolveModelDir(""); err == nil {
			cfg.ModelDir = dir
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model) == "" {
		errs = append(errs, errors.New("model must not be empty"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if !slices.Contains(Backends, c.Backend) {
		errs = append(errs, fmt.Errorf("unknown backend %q (want one of %s)", c.Backend, strings.Join(Backends, ", ")))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// BaseURL is the address clients use to reach the service.
func (c Config) BaseURL() string {
	return "http://" + c.Addr()
}

// splitOrigins accepts both list values and a single comma-separated string.
func splitOrigins(in []string) []string {
	var out []string
	for _, item := range in {
		for _, origin := range strings.Split(item, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				out = append(out, origin)
			}
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
