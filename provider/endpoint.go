package provider

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sort"
)

// PlaceholderURL is substituted when a structured endpoint declaration
// carries no URL. The host is in the RFC 2606 reserved .invalid TLD, so
// it can never resolve: it exists only to keep descriptor URLs non-nil,
// and the protocol layer must reject it before any live request.
const PlaceholderURL = "https://unset.invalid"

// EndpointRef declares a provider endpoint in one of its three input
// shapes: absent (nil pointer), a bare URL (EndpointURL), or a
// structured declaration with extra query parameters and hooks.
type EndpointRef struct {
	URL     string         `yaml:"url"`
	Params  map[string]any `yaml:"params"`
	Request RequestHook    `yaml:"-"`
	Conform ConformHook    `yaml:"-"`
}

// EndpointURL declares an endpoint as a bare URL.
func EndpointURL(raw string) *EndpointRef {
	return &EndpointRef{URL: raw}
}

func (e *EndpointRef) clone() *EndpointRef {
	if e == nil {
		return nil
	}
	c := *e
	c.Params = cloneParams(e.Params)
	return &c
}

func cloneParams(params map[string]any) map[string]any {
	if params == nil {
		return nil
	}
	out := make(map[string]any, len(params))
	for k, v := range params {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneParams(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// Endpoint is the canonical descriptor every declaration shape resolves
// to. URL is always a valid absolute URL with the declared extra
// parameters already serialized into its query.
type Endpoint struct {
	URL     *url.URL
	Request RequestHook
	Conform ConformHook

	// AS holds the discovered authorization server metadata. Set only
	// when the descriptor came from issuer discovery; the protocol
	// layer uses it during token exchange.
	AS *ASMetadata
}

// IsPlaceholder reports whether the descriptor URL is the unusable
// stand-in substituted for a missing declaration. Downstream code must
// treat a placeholder reaching the live request path as a logic error.
func (e *Endpoint) IsPlaceholder() bool {
	return e != nil && e.URL != nil && e.URL.Host == "unset.invalid"
}

// normalizeEndpoint resolves a declaration into the canonical
// descriptor. A nil declaration resolves to nil: whether that is an
// error is the caller's decision.
func normalizeEndpoint(ref *EndpointRef) (*Endpoint, error) {
	if ref == nil {
		return nil, nil
	}
	raw := ref.URL
	if raw == "" {
		raw = PlaceholderURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint url %q: %w", raw, err)
	}
	if !u.IsAbs() || u.Host == "" {
		return nil, fmt.Errorf("endpoint url %q is not absolute", raw)
	}
	if err := applyParams(u, ref.Params); err != nil {
		return nil, err
	}
	return &Endpoint{URL: u, Request: ref.Request, Conform: ref.Conform}, nil
}

// applyParams serializes extra parameters into the URL query. All
// values are flat strings except "claims", which the OIDC spec defines
// as a structured document and which is therefore JSON-encoded.
func applyParams(u *url.URL, params map[string]any) error {
	if len(params) == 0 {
		return nil
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	q := u.Query()
	for _, k := range keys {
		v := params[k]
		if k == "claims" {
			encoded, err := json.Marshal(v)
			if err != nil {
				return fmt.Errorf("encode claims parameter: %w", err)
			}
			q.Set(k, string(encoded))
			continue
		}
		q.Set(k, fmt.Sprint(v))
	}
	u.RawQuery = q.Encode()
	return nil
}
