package app

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"authd/provider"
)

// Config captures the full gateway configuration loaded from YAML and
// environment variables.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
}

// ServerConfig controls listener, TLS, and HTTP concerns.
type ServerConfig struct {
	PublicURL       string    `yaml:"public_url"`
	DevListenAddr   string    `yaml:"dev_listen_addr"`
	HTTPListenAddr  string    `yaml:"http_listen_addr"`
	HTTPSListenAddr string    `yaml:"https_listen_addr"`
	DevMode         bool      `yaml:"dev_mode"`
	TLS             TLSConfig `yaml:"tls"`
}

// TLSConfig defines autocert behaviour.
type TLSConfig struct {
	Domains  []string `yaml:"domains"`
	Email    string   `yaml:"email"`
	CacheDir string   `yaml:"cache_dir"`
}

// ProvidersConfig declares the upstream identity providers.
type ProvidersConfig struct {
	// Default selects the active provider for single-provider flows.
	Default string `yaml:"default"`

	// RedirectProxyURL is inherited by every provider that does not set
	// its own.
	RedirectProxyURL string `yaml:"redirect_proxy_url"`

	Entries []ProviderEntry `yaml:"entries"`
}

// ProviderEntry configures one provider, either by naming a built-in
// preset or by declaring endpoints explicitly. When both are given the
// explicit fields override the preset's defaults.
type ProviderEntry struct {
	ID     string `yaml:"id"`
	Preset string `yaml:"preset"`
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`

	Issuer       string `yaml:"issuer"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// Preset-specific settings.
	TenantID       string `yaml:"tenant_id"`        // entra
	Domain         string `yaml:"domain"`           // auth0
	TeamID         string `yaml:"team_id"`          // apple
	KeyID          string `yaml:"key_id"`           // apple
	PrivateKeyFile string `yaml:"private_key_file"` // apple

	Authorization *EndpointConfig `yaml:"authorization"`
	Token         *EndpointConfig `yaml:"token"`
	UserInfo      *EndpointConfig `yaml:"userinfo"`

	Checks           []string `yaml:"checks"`
	RedirectProxyURL string   `yaml:"redirect_proxy_url"`
}

// EndpointConfig accepts either a bare URL string or a mapping with url
// and extra query params:
//
//	authorization: https://idp.example/authorize
//	authorization:
//	  url: https://idp.example/authorize
//	  params:
//	    prompt: consent
type EndpointConfig struct {
	URL    string         `yaml:"url"`
	Params map[string]any `yaml:"params"`
}

func (e *EndpointConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		return node.Decode(&e.URL)
	}
	type plain EndpointConfig
	return node.Decode((*plain)(e))
}

func (e *EndpointConfig) ref() *provider.EndpointRef {
	if e == nil {
		return nil
	}
	return &provider.EndpointRef{URL: e.URL, Params: e.Params}
}

// LoadConfig reads the YAML config file and merges environment overrides.
func LoadConfig(path string) (Config, error) {
	cfg := defaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}

		decoder := yaml.NewDecoder(bytes.NewReader(b))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil {
			slog.Error("Failed to parse configuration", "error", err, "file", path)
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("Configuration validation failed", "error", err)
		return Config{}, err
	}
	return cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			PublicURL:       "http://127.0.0.1:8080",
			DevListenAddr:   "127.0.0.1:8080",
			HTTPListenAddr:  ":80",
			HTTPSListenAddr: ":443",
			DevMode:         true,
			TLS: TLSConfig{
				Domains:  []string{"localhost"},
				CacheDir: ".autocert",
			},
		},
	}
}

// DefaultConfig returns the default configuration template.
func DefaultConfig() Config {
	return defaultConfig()
}

func applyEnvOverrides(cfg *Config) {
	overrides := map[string]func(string){
		"AUTHD_SERVER_PUBLIC_URL":        func(v string) { cfg.Server.PublicURL = v },
		"AUTHD_SERVER_DEV_LISTEN_ADDR":   func(v string) { cfg.Server.DevListenAddr = v },
		"AUTHD_SERVER_HTTP_LISTEN_ADDR":  func(v string) { cfg.Server.HTTPListenAddr = v },
		"AUTHD_SERVER_HTTPS_LISTEN_ADDR": func(v string) { cfg.Server.HTTPSListenAddr = v },
		"AUTHD_SERVER_DEV_MODE":          func(v string) { cfg.Server.DevMode = parseBool(v, cfg.Server.DevMode) },
		"AUTHD_SERVER_TLS_DOMAINS":       func(v string) { cfg.Server.TLS.Domains = splitAndTrim(v) },
		"AUTHD_SERVER_TLS_EMAIL":         func(v string) { cfg.Server.TLS.Email = v },
		"AUTHD_SERVER_TLS_CACHE_DIR":     func(v string) { cfg.Server.TLS.CacheDir = v },
		"AUTHD_PROVIDERS_DEFAULT":        func(v string) { cfg.Providers.Default = v },
		"AUTHD_REDIRECT_PROXY_URL":       func(v string) { cfg.Providers.RedirectProxyURL = v },
	}

	for key, fn := range overrides {
		if val, ok := os.LookupEnv(key); ok {
			fn(val)
		}
	}
}

func parseBool(val string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func splitAndTrim(val string) []string {
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var presetNames = map[string]bool{
	"google": true,
	"github": true,
	"entra":  true,
	"auth0":  true,
	"apple":  true,
}

// Validate performs sanity checks on the config.
func (c Config) Validate() error {
	if c.Server.PublicURL == "" {
		slog.Error("Missing required configuration", "field", "server.public_url")
		return errors.New("server.public_url is required")
	}
	if !strings.HasPrefix(c.Server.PublicURL, "http://") && !strings.HasPrefix(c.Server.PublicURL, "https://") {
		slog.Error("Invalid configuration value", "field", "server.public_url", "value", c.Server.PublicURL)
		return fmt.Errorf("server.public_url must start with http:// or https://, got: %s", c.Server.PublicURL)
	}
	if !c.Server.DevMode && len(c.Server.TLS.Domains) == 0 {
		slog.Error("Missing required configuration for production mode", "field", "server.tls.domains")
		return errors.New("server.tls.domains must be provided in production")
	}

	seen := make(map[string]bool)
	for i, entry := range c.Providers.Entries {
		if entry.ID == "" && entry.Preset == "" {
			slog.Error("Provider entry missing id", "index", i)
			return fmt.Errorf("providers.entries[%d]: id or preset is required", i)
		}
		id := entry.effectiveID()
		if seen[id] {
			slog.Error("Duplicate provider id", "id", id, "index", i)
			return fmt.Errorf("providers.entries[%d]: duplicate id %q", i, id)
		}
		seen[id] = true

		if entry.Preset != "" && !presetNames[entry.Preset] {
			slog.Error("Unknown provider preset", "preset", entry.Preset, "index", i)
			return fmt.Errorf("providers.entries[%d]: unknown preset %q", i, entry.Preset)
		}
		if entry.Preset == "apple" {
			if entry.TeamID == "" || entry.KeyID == "" || entry.PrivateKeyFile == "" {
				slog.Error("Incomplete apple provider", "id", id,
					"reason", "team_id, key_id and private_key_file are all required")
				return fmt.Errorf("providers.entries[%d] (%s): team_id, key_id and private_key_file are required", i, id)
			}
		}
		if entry.Preset == "auth0" && entry.Domain == "" {
			slog.Error("Incomplete auth0 provider", "id", id, "field", "domain")
			return fmt.Errorf("providers.entries[%d] (%s): domain is required", i, id)
		}
		for _, check := range entry.Checks {
			switch provider.Check(check) {
			case provider.CheckPKCE, provider.CheckState, provider.CheckNonce:
			default:
				slog.Error("Unknown check", "id", id, "check", check)
				return fmt.Errorf("providers.entries[%d] (%s): unknown check %q", i, id, check)
			}
		}
	}

	if d := c.Providers.Default; d != "" && !seen[d] {
		slog.Error("Default provider not found", "default", d)
		return fmt.Errorf("providers.default %q is not configured", d)
	}
	return nil
}

func (e ProviderEntry) effectiveID() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Preset
}

// Sources converts the configured entries into assembler inputs. Apple
// signing keys are read here so a missing key file fails at startup, not
// at first token exchange.
func (c Config) Sources() ([]provider.Source, error) {
	sources := make([]provider.Source, 0, len(c.Providers.Entries))
	for i, entry := range c.Providers.Entries {
		decl, err := entry.declaration()
		if err != nil {
			return nil, fmt.Errorf("providers.entries[%d] (%s): %w", i, entry.effectiveID(), err)
		}
		sources = append(sources, provider.Source{Provider: decl})
	}
	return sources, nil
}

func (e ProviderEntry) declaration() (*provider.Provider, error) {
	if e.Preset == "" {
		return e.explicit(), nil
	}

	var decl *provider.Provider
	switch e.Preset {
	case "google":
		decl = provider.Google(e.ClientID, e.ClientSecret)
	case "github":
		decl = provider.GitHub(e.ClientID, e.ClientSecret)
	case "entra":
		decl = provider.Entra(e.TenantID, e.ClientID, e.ClientSecret)
	case "auth0":
		decl = provider.Auth0(e.Domain, e.ClientID, e.ClientSecret)
	case "apple":
		pem, err := os.ReadFile(e.PrivateKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read apple signing key: %w", err)
		}
		key, err := provider.ParseAppleSigningKey(pem)
		if err != nil {
			return nil, err
		}
		decl = provider.Apple(e.ClientID, provider.AppleClientSecret(e.TeamID, e.KeyID, e.ClientID, key, 0))
	default:
		return nil, fmt.Errorf("unknown preset %q", e.Preset)
	}

	if e.ID != "" {
		decl.ID = e.ID
	}
	if override := e.overrideFor(); override != nil {
		decl.Override = override
	}
	return decl, nil
}

// explicit builds a declaration straight from the entry's own fields.
func (e ProviderEntry) explicit() *provider.Provider {
	typ := provider.Type(e.Type)
	if typ == "" {
		typ = provider.TypeOIDC
	}
	return &provider.Provider{
		ID:               e.effectiveID(),
		Name:             e.Name,
		Type:             typ,
		Issuer:           e.Issuer,
		ClientID:         e.ClientID,
		ClientSecret:     e.ClientSecret,
		Authorization:    e.Authorization.ref(),
		Token:            e.Token.ref(),
		UserInfo:         e.UserInfo.ref(),
		Checks:           parseChecks(e.Checks),
		RedirectProxyURL: e.RedirectProxyURL,
	}
}

// overrideFor builds the partial layered over a preset's defaults. Nil
// when the entry customizes nothing.
func (e ProviderEntry) overrideFor() *provider.Provider {
	override := &provider.Provider{
		Name:             e.Name,
		Issuer:           e.Issuer,
		Authorization:    e.Authorization.ref(),
		Token:            e.Token.ref(),
		UserInfo:         e.UserInfo.ref(),
		Checks:           parseChecks(e.Checks),
		RedirectProxyURL: e.RedirectProxyURL,
	}
	if override.Name == "" && override.Issuer == "" && override.Authorization == nil &&
		override.Token == nil && override.UserInfo == nil &&
		override.Checks == nil && override.RedirectProxyURL == "" {
		return nil
	}
	return override
}

func parseChecks(names []string) []provider.Check {
	if len(names) == 0 {
		return nil
	}
	checks := make([]provider.Check, 0, len(names))
	for _, name := range names {
		checks = append(checks, provider.Check(name))
	}
	return checks
}
