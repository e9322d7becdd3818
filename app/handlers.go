package app

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"authd/provider"
)

// providerView is the redacted inspection shape for one assembled
// record. Client credentials never leave the process.
type providerView struct {
	ID               string            `json:"id"`
	Name             string            `json:"name,omitempty"`
	Type             provider.Type     `json:"type"`
	Issuer           string            `json:"issuer,omitempty"`
	Checks           []provider.Check  `json:"checks,omitempty"`
	SigninURL        string            `json:"signinUrl"`
	CallbackURL      string            `json:"callbackUrl"`
	RedirectProxyURL string            `json:"redirectProxyUrl,omitempty"`
	Style            *provider.Style   `json:"style,omitempty"`
	Authorization    *endpointView     `json:"authorization,omitempty"`
	Token            *endpointView     `json:"token,omitempty"`
	UserInfo         *endpointView     `json:"userinfo,omitempty"`
}

type endpointView struct {
	URL         string `json:"url"`
	Placeholder bool   `json:"placeholder,omitempty"`
	Discovered  bool   `json:"discovered,omitempty"`
}

func viewOf(rec *provider.Record) providerView {
	return providerView{
		ID:               rec.ID,
		Name:             rec.Name,
		Type:             rec.Type,
		Issuer:           rec.Issuer,
		Checks:           rec.Checks,
		SigninURL:        rec.SigninURL,
		CallbackURL:      rec.CallbackURL,
		RedirectProxyURL: rec.Provider.RedirectProxyURL,
		Style:            rec.Style,
		Authorization:    endpointViewOf(rec.Authorization),
		Token:            endpointViewOf(rec.Token),
		UserInfo:         endpointViewOf(rec.UserInfo),
	}
}

func endpointViewOf(ep *provider.Endpoint) *endpointView {
	if ep == nil {
		return nil
	}
	return &endpointView{
		URL:         ep.URL.String(),
		Placeholder: ep.IsPlaceholder(),
		Discovered:  ep.AS != nil,
	}
}

func (a *App) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"providers": len(a.Providers.Records),
	})
}

func (a *App) handleProviders(w http.ResponseWriter, r *http.Request) {
	views := make([]providerView, 0, len(a.Providers.Records))
	for i := range a.Providers.Records {
		views = append(views, viewOf(&a.Providers.Records[i]))
	}
	a.writeJSON(w, http.StatusOK, views)
}

func (a *App) handleProvider(w http.ResponseWriter, r *http.Request) {
	rec := a.Record(chi.URLParam(r, "id"))
	if rec == nil {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}
	a.writeJSON(w, http.StatusOK, viewOf(rec))
}

// handleAuthorizeURL builds a debug authorization redirect for a
// provider, with caller-supplied state/nonce/challenge values. It never
// initiates a flow; it only shows what the gateway would send.
func (a *App) handleAuthorizeURL(w http.ResponseWriter, r *http.Request) {
	rec := a.Record(chi.URLParam(r, "id"))
	if rec == nil {
		http.Error(w, "unknown provider", http.StatusNotFound)
		return
	}
	if !rec.IsOAuthFamily() {
		http.Error(w, "provider has no authorization endpoint", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	url := rec.AuthCodeURL(q.Get("state"), q.Get("nonce"), q.Get("code_challenge"))
	a.writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

func (a *App) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.Logger.Error("encode response", "error", err)
	}
}
