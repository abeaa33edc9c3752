package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/iqautojobs/identity/internal/auth"
	"github.com/iqautojobs/identity/internal/obs"
)

// ReadyProbe checks downstream readiness (typically a DB ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the auth service.
type API struct {
	router     chi.Router
	svc        *auth.Service
	readyProbe ReadyProbe
	version    string
	log        zerolog.Logger
	google     *googleOAuth
}

// Option configures the API.
type Option func(*API)

// WithGoogleOAuth enables the Google login flow.
func WithGoogleOAuth(clientID, clientSecret, redirectURL string) Option {
	return func(a *API) {
		a.google = newGoogleOAuth(clientID, clientSecret, redirectURL)
	}
}

// WithAPILogger overrides the API logger.
func WithAPILogger(log zerolog.Logger) Option {
	return func(a *API) { a.log = log }
}

// New builds the router.
func New(svc *auth.Service, rp ReadyProbe, version string, opts ...Option) *API {
	a := &API{
		router:     chi.NewRouter(),
		svc:        svc,
		readyProbe: rp,
		version:    version,
		log:        obs.Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}

	r := a.router
	r.Use(RequestID)
	r.Use(SecurityHeaders)
	r.Use(CORS)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReady)
	r.Get("/v1/info", a.handleInfo)
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/password-reset/request", a.handlePasswordResetRequest)
		r.Post("/password-reset/confirm", a.handlePasswordResetConfirm)

		r.Group(func(r chi.Router) {
			r.Use(a.requireUser)
			r.Post("/logout", a.handleLogout)
			r.Post("/password/change", a.handlePasswordChange)
			r.Get("/me", a.handleMe)
		})

		if a.google != nil {
			r.Get("/google/login", a.handleGoogleLogin)
			r.Get("/google/callback", a.handleGoogleCallback)
		}
	})

	return a
}

// Handler returns the instrumented root handler.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.router)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "identity-api",
		"version": a.version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

func (a *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "identity-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := requestIDFrom(r); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

// handleAuthError maps service error kinds to status codes. Detail
// strings pass through; the service already keeps them non-revealing.
func (a *API) handleAuthError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, auth.ErrUnauthorized), errors.Is(err, auth.ErrInvalidToken):
		writeError(w, r, http.StatusUnauthorized, detail(err))
	case errors.Is(err, auth.ErrConflict):
		writeError(w, r, http.StatusConflict, detail(err))
	case errors.Is(err, auth.ErrNotFound):
		writeError(w, r, http.StatusNotFound, detail(err))
	case errors.Is(err, auth.ErrInvalidInput):
		writeError(w, r, http.StatusBadRequest, detail(err))
	default:
		a.log.Error().Err(err).Str("path", r.URL.Path).Msg("auth operation failed")
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// detail strips the sentinel prefix ("auth: unauthorized: ...") so the
// client sees only the human-readable part.
func detail(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 && strings.HasPrefix(msg, "auth: ") {
		return msg[i+2:]
	}
	return msg
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}
