package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	oauthStateTTL     = 10 * time.Minute
	oauthStateMax     = 1000
	googleUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
)

// googleOAuth drives the Google authorization-code flow.
type googleOAuth struct {
	conf *oauth2.Config

	mu     sync.Mutex
	states map[string]time.Time
}

func newGoogleOAuth(clientID, clientSecret, redirectURL string) *googleOAuth {
	return &googleOAuth{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		states: make(map[string]time.Time),
	}
}

// issueState mints a one-time CSRF state token. The cache is bounded:
// expired entries are evicted on every mint, and a hard cap protects
// against state-flooding.
func (g *googleOAuth) issueState() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	for s, exp := range g.states {
		if now.After(exp) {
			delete(g.states, s)
		}
	}
	if len(g.states) >= oauthStateMax {
		for s := range g.states {
			delete(g.states, s)
			break
		}
	}

	state := uuid.NewString()
	g.states[state] = now.Add(oauthStateTTL)
	return state
}

// consumeState validates and burns a state token.
func (g *googleOAuth) consumeState(state string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	exp, ok := g.states[state]
	if !ok {
		return false
	}
	delete(g.states, state)
	return time.Now().Before(exp)
}

type googleUserinfo struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	GivenName  string `json:"given_name"`
	FamilyName string `json:"family_name"`
}

func (g *googleOAuth) fetchUserinfo(r *http.Request, tok *oauth2.Token) (*googleUserinfo, error) {
	client := g.conf.Client(r.Context(), tok)
	resp, err := client.Get(googleUserinfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var info googleUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.ID == "" || info.Email == "" {
		return nil, fmt.Errorf("userinfo missing id or email")
	}
	return &info, nil
}

func (a *API) handleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	state := a.google.issueState()
	url := a.google.conf.AuthCodeURL(state, oauth2.AccessTypeOnline)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (a *API) handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		writeError(w, r, http.StatusBadRequest, "google sign-in was cancelled")
		return
	}
	if !a.google.consumeState(r.URL.Query().Get("state")) {
		writeError(w, r, http.StatusBadRequest, "invalid or expired state")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, r, http.StatusBadRequest, "missing authorization code")
		return
	}

	tok, err := a.google.conf.Exchange(r.Context(), code)
	if err != nil {
		a.log.Warn().Err(err).Msg("google code exchange failed")
		writeError(w, r, http.StatusBadGateway, "could not complete google sign-in")
		return
	}

	info, err := a.google.fetchUserinfo(r, tok)
	if err != nil {
		a.log.Warn().Err(err).Msg("google userinfo fetch failed")
		writeError(w, r, http.StatusBadGateway, "could not complete google sign-in")
		return
	}

	res, err := a.svc.OAuthLogin(r.Context(), "google", info.ID, info.Email, info.GivenName, info.FamilyName)
	if err != nil {
		a.handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTokenResponse(res))
}
