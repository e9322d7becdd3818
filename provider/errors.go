package provider

import "fmt"

// ConfigError reports a provider declaration that is structurally
// missing a required piece. It is fatal to that provider's assembly and
// never retried.
type ConfigError struct {
	Provider string
	Reason   string
	Err      error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Provider, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// DiscoveryError reports that issuer metadata could not be fetched,
// parsed, or lacks an authorization endpoint. It wraps the underlying
// cause for diagnostics and is fatal to that provider's assembly.
type DiscoveryError struct {
	Issuer string
	Err    error
}

func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discover issuer %s: %v", e.Issuer, e.Err)
}

func (e *DiscoveryError) Unwrap() error { return e.Err }
