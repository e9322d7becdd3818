package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"authd/merge"
)

// Options configures one assembly pass. Everything the pass depends on
// is carried here explicitly; Assemble keeps no state between calls.
type Options struct {
	// Providers is the ordered list of declarations to normalize.
	Providers []Source

	// BaseURL is the public base URL of the application; sign-in and
	// callback URLs are derived from it.
	BaseURL string

	// ProviderID optionally selects the active record for the current
	// request. An unknown id is not an error; Result.Active is nil.
	ProviderID string

	// RedirectProxyURL is the global default redirect proxy, inherited
	// by OAuth-family providers that do not set their own.
	RedirectProxyURL string

	// Discover performs OIDC issuer discovery. Defaults to
	// Discoverer(nil).
	Discover DiscoverFunc

	Logger *slog.Logger
}

// Result is the output of one assembly pass.
type Result struct {
	// Records holds the successfully assembled providers in input
	// order. Providers that failed assembly are absent; their errors
	// are reported by Assemble's error return.
	Records []Record

	// Active is the record matching Options.ProviderID, nil when the
	// id was not requested or not found.
	Active *Record
}

// Assemble normalizes every declared provider concurrently. Each
// provider is assembled in isolation: a discovery or configuration
// failure removes only that provider from Result.Records and
// contributes one wrapped error to the joined error return. Callers
// decide whether any failure fails the whole batch.
func Assemble(ctx context.Context, opts Options) (Result, error) {
	if opts.Discover == nil {
		opts.Discover = Discoverer(nil)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	base := strings.TrimSuffix(opts.BaseURL, "/")

	records := make([]*Record, len(opts.Providers))
	errs := make([]error, len(opts.Providers))

	var wg sync.WaitGroup
	for i, src := range opts.Providers {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			rec, err := assembleOne(ctx, opts, base, src)
			if err != nil {
				errs[i] = err
				logger.Error("provider assembly failed", "index", i, "error", err)
				return
			}
			records[i] = rec
		}(i, src)
	}
	wg.Wait()

	result := Result{Records: make([]Record, 0, len(records))}
	for _, rec := range records {
		if rec != nil {
			result.Records = append(result.Records, *rec)
		}
	}
	if opts.ProviderID != "" {
		for i := range result.Records {
			if result.Records[i].ID == opts.ProviderID {
				result.Active = &result.Records[i]
				break
			}
		}
	}
	return result, errors.Join(errs...)
}

func assembleOne(ctx context.Context, opts Options, base string, src Source) (*Record, error) {
	decl := src.resolve()
	if decl == nil {
		return nil, &ConfigError{Provider: "?", Reason: "empty provider source"}
	}
	if decl.ID == "" {
		return nil, &ConfigError{Provider: "?", Reason: "provider id required"}
	}
	decl = decl.clone()

	computed := Provider{
		SigninURL:   base + "/signin/" + decl.ID,
		CallbackURL: base + "/callback/" + decl.ID,
	}
	overlays := make([]Provider, 0, 2)
	if decl.Override != nil {
		overlays = append(overlays, *decl.Override)
	}
	overlays = append(overlays, computed)

	merged, err := merge.Chain(*decl, overlays...)
	if err != nil {
		return nil, fmt.Errorf("merge provider %q: %w", decl.ID, err)
	}
	resolveCallbacks(&merged, decl, decl.Override)
	merged.Override = nil

	rec := &Record{Provider: merged}
	if !rec.IsOAuthFamily() {
		// email/credentials declarations pass through untouched apart
		// from the computed URLs.
		return rec, nil
	}

	if rec.Provider.RedirectProxyURL == "" {
		rec.Provider.RedirectProxyURL = opts.RedirectProxyURL
	}
	if proxy := rec.Provider.RedirectProxyURL; proxy != "" {
		rec.Provider.RedirectProxyURL = strings.TrimSuffix(proxy, "/") + "/callback/" + rec.ID
	}

	if err := resolveAuthorization(ctx, opts, rec); err != nil {
		return nil, fmt.Errorf("provider %q: %w", rec.ID, err)
	}

	if rec.Token, err = normalizeEndpoint(rec.Provider.Token); err != nil {
		return nil, &ConfigError{Provider: rec.ID, Reason: "invalid token endpoint", Err: err}
	}
	if rec.UserInfo, err = normalizeEndpoint(rec.Provider.UserInfo); err != nil {
		return nil, &ConfigError{Provider: rec.ID, Reason: "invalid userinfo endpoint", Err: err}
	}

	if len(rec.Provider.Checks) == 0 {
		rec.Provider.Checks = []Check{CheckPKCE}
	}
	// A redirect proxy without state-based CSRF protection is unsafe;
	// force the check rather than trusting configuration.
	if rec.Provider.RedirectProxyURL != "" && !rec.HasCheck(CheckState) {
		rec.Provider.Checks = append(rec.Provider.Checks, CheckState)
	}

	if rec.Provider.Profile == nil {
		rec.Provider.Profile = DefaultProfile
	}
	if rec.Provider.Account == nil {
		rec.Provider.Account = DefaultAccount
	}
	return rec, nil
}

// resolveAuthorization fills rec.Authorization from issuer discovery or
// the declared endpoint. Both absent is a configuration error: an
// OAuth-family record always carries an authorization descriptor.
func resolveAuthorization(ctx context.Context, opts Options, rec *Record) error {
	declared := rec.Provider.Authorization

	if rec.Issuer != "" {
		ep, err := discoverAuthorization(ctx, opts.Discover, rec.Issuer)
		if err != nil {
			return err
		}
		// Declared parameters and hooks still apply on top of the
		// discovered endpoint.
		if declared != nil {
			if err := applyParams(ep.URL, declared.Params); err != nil {
				return &ConfigError{Provider: rec.ID, Reason: "invalid authorization params", Err: err}
			}
			ep.Request = declared.Request
			ep.Conform = declared.Conform
		}
		rec.Authorization = ep
		return nil
	}

	if declared == nil {
		return &ConfigError{Provider: rec.ID, Reason: "authorization endpoint required: set issuer or authorization"}
	}
	ep, err := normalizeEndpoint(declared)
	if err != nil {
		return &ConfigError{Provider: rec.ID, Reason: "invalid authorization endpoint", Err: err}
	}
	rec.Authorization = ep
	return nil
}

// resolveCallbacks applies later-wins resolution for function-valued
// fields, which the data merge does not cover.
func resolveCallbacks(dst *Provider, layers ...*Provider) {
	for _, layer := range layers {
		if layer == nil {
			continue
		}
		if layer.Profile != nil {
			dst.Profile = layer.Profile
		}
		if layer.Account != nil {
			dst.Account = layer.Account
		}
		if layer.ClientSecretFunc != nil {
			dst.ClientSecretFunc = layer.ClientSecretFunc
		}
		resolveHooks(dst.Authorization, layer.Authorization)
		resolveHooks(dst.Token, layer.Token)
		resolveHooks(dst.UserInfo, layer.UserInfo)
	}
}

func resolveHooks(dst, src *EndpointRef) {
	if dst == nil || src == nil {
		return
	}
	if src.Request != nil {
		dst.Request = src.Request
	}
	if src.Conform != nil {
		dst.Conform = src.Conform
	}
}
