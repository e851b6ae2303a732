package config

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

const (
	defaultEnvFile          = ".env"
	defaultPort             = "8080"
	defaultReadTimeout      = 15 * time.Second
	defaultWriteTimeout     = 30 * time.Second
	defaultIdleTimeout      = 120 * time.Second
	defaultEnvironment      = "local"
	defaultStoreTimeout     = 30 * time.Second
	defaultUploadMaxBytes   = int64(20 * 1024 * 1024)
	defaultImagingMaxBytes  = int64(32 * 1024 * 1024)
	defaultMaxTexturePx     = 4000
	defaultSessionTTL       = 30 * time.Minute
	defaultSweepInterval    = time.Minute
	defaultDebounceDelay    = 250 * time.Millisecond
	defaultSecretsFallback  = ".secrets.local"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Stores      StoresConfig
	Imaging     ImagingConfig
	Sessions    SessionConfig
	Compositor  CompositorConfig
	Events      EventsConfig
	Secrets     SecretsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// StoresConfig holds endpoints and credentials for the upload and design stores.
type StoresConfig struct {
	UploadBaseURL   string
	UploadAuthToken string
	UploadMaxBytes  int64
	DesignBaseURL   string
	DesignAuthToken string
	RequestTimeout  time.Duration
}

// ImagingConfig configures the remote image loader.
type ImagingConfig struct {
	AuthHeader   string
	MaxBytes     int64
	MaxTexturePx int
}

// SessionConfig controls session lifetime and cleanup.
type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
}

// CompositorConfig configures rendering behaviour.
type CompositorConfig struct {
	FontDir       string
	DebounceDelay time.Duration
}

// EventsConfig names the Pub/Sub destination for save notifications. Both
// fields empty disables publishing.
type EventsConfig struct {
	ProjectID string
	Topic     string
}

// SecretsConfig points the secret fetcher at the right project and fallback file.
type SecretsConfig struct {
	ProjectID    string
	ProjectMap   map[string]string
	FallbackFile string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from os.Getenv, relying only on provided maps and .env files.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets a custom secret resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// EnvironmentValues returns the effective key/value environment map after applying the same
// precedence rules as Load (dotenv < OS env < explicit env map). Callers can use the result
// to initialise dependencies before invoking Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string)
	merge := func(source map[string]string) {
		for key, value := range source {
			values[key] = value
		}
	}

	merge(dotEnvValues)

	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				continue
			}
			key := strings.TrimSpace(parts[0])
			if key == "" {
				continue
			}
			values[key] = parts[1]
		}
	}

	merge(options.envMap)

	return values, nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and optional secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
		secret: SecretResolverFunc(func(ctx context.Context, ref string) (string, error) {
			return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
		}),
	}

	for _, opt := range opts {
		opt(&options)
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if options.envMap != nil {
			if value, ok := options.envMap[key]; ok {
				return value, true
			}
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if dotEnvValues != nil {
			if value, ok := dotEnvValues[key]; ok {
				return value, true
			}
		}
		return "", false
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "EDITOR_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "EDITOR_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "EDITOR_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "EDITOR_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "EDITOR_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Stores: StoresConfig{
			UploadBaseURL:   stringWithDefault(lookup, "EDITOR_UPLOAD_STORE_URL", ""),
			UploadAuthToken: stringWithDefault(lookup, "EDITOR_UPLOAD_STORE_TOKEN", ""),
			UploadMaxBytes:  int64WithDefault(lookup, "EDITOR_UPLOAD_MAX_BYTES", defaultUploadMaxBytes),
			DesignBaseURL:   stringWithDefault(lookup, "EDITOR_DESIGN_STORE_URL", ""),
			DesignAuthToken: stringWithDefault(lookup, "EDITOR_DESIGN_STORE_TOKEN", ""),
			RequestTimeout:  durationWithDefault(lookup, "EDITOR_STORE_TIMEOUT", defaultStoreTimeout),
		},
		Imaging: ImagingConfig{
			AuthHeader:   stringWithDefault(lookup, "EDITOR_IMAGING_AUTH_HEADER", ""),
			MaxBytes:     int64WithDefault(lookup, "EDITOR_IMAGING_MAX_BYTES", defaultImagingMaxBytes),
			MaxTexturePx: intWithDefault(lookup, "EDITOR_IMAGING_MAX_TEXTURE_PX", defaultMaxTexturePx),
		},
		Sessions: SessionConfig{
			TTL:           durationWithDefault(lookup, "EDITOR_SESSION_TTL", defaultSessionTTL),
			SweepInterval: durationWithDefault(lookup, "EDITOR_SESSION_SWEEP_INTERVAL", defaultSweepInterval),
		},
		Compositor: CompositorConfig{
			FontDir:       stringWithDefault(lookup, "EDITOR_FONT_DIR", ""),
			DebounceDelay: durationWithDefault(lookup, "EDITOR_RENDER_DEBOUNCE", defaultDebounceDelay),
		},
		Events: EventsConfig{
			ProjectID: stringWithDefault(lookup, "EDITOR_SAVE_EVENTS_PROJECT", ""),
			Topic:     stringWithDefault(lookup, "EDITOR_SAVE_EVENTS_TOPIC", ""),
		},
		Secrets: SecretsConfig{
			ProjectID:    stringWithDefault(lookup, "EDITOR_SECRETS_PROJECT_ID", ""),
			ProjectMap:   mapWithDefault(lookup, "EDITOR_SECRETS_PROJECT_MAP"),
			FallbackFile: stringWithDefault(lookup, "EDITOR_SECRETS_FALLBACK_FILE", defaultSecretsFallback),
		},
	}

	// Resolve secrets when token values reference Secret Manager.
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Stores.UploadAuthToken", &cfg.Stores.UploadAuthToken},
		{"Stores.DesignAuthToken", &cfg.Stores.DesignAuthToken},
		{"Imaging.AuthHeader", &cfg.Imaging.AuthHeader},
	}
	for _, target := range secretFields {
		resolved, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var missing []string

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Stores.UploadBaseURL == "" {
		missing = append(missing, "Stores.UploadBaseURL")
	}
	if cfg.Stores.DesignBaseURL == "" {
		missing = append(missing, "Stores.DesignBaseURL")
	}
	if cfg.Sessions.TTL <= 0 {
		missing = append(missing, "Sessions.TTL")
	}
	if cfg.Sessions.SweepInterval <= 0 {
		missing = append(missing, "Sessions.SweepInterval")
	}
	if cfg.Compositor.DebounceDelay < 0 {
		missing = append(missing, "Compositor.DebounceDelay")
	}
	if cfg.Events.Topic != "" && cfg.Events.ProjectID == "" {
		missing = append(missing, "Events.ProjectID")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}

	file, err := os.Open(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	values := make(map[string]string)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "export ") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		}
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if key == "" {
			continue
		}
		value = strings.Trim(value, "\"'")
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("config: failed parsing %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		d, err := time.ParseDuration(value)
		if err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func int64WithDefault(lookup func(string) (string, bool), key string, fallback int64) int64 {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func mapWithDefault(lookup func(string) (string, bool), key string) map[string]string {
	values := make(map[string]string)
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return values
	}
	entries := strings.Split(raw, ",")
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(parts[0]))
		value := strings.TrimSpace(parts[1])
		if name == "" || value == "" {
			continue
		}
		values[name] = value
	}
	return values
}
