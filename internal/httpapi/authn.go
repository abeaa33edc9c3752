package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/iqautojobs/identity/internal/auth"
)

const (
	authHeader   = "Authorization"
	bearerPrefix = "Bearer "
)

type ctxKey string

const accountKey ctxKey = "httpapi_account"

// requireUser resolves the bearer access token to an account and stores
// it in the request context. Anything short of a live, active account is
// a 401.
func (a *API) requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err.Error())
			return
		}
		acct, err := a.svc.CurrentUser(r.Context(), token)
		if err != nil {
			a.log.Error().Err(err).Msg("current user lookup failed")
			writeError(w, r, http.StatusInternalServerError, "authentication error")
			return
		}
		if acct == nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or expired access token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey, acct)))
	})
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("missing authorization header")
	}
	if !strings.HasPrefix(header, bearerPrefix) {
		return "", errors.New("authorization header must use the Bearer scheme")
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

func accountFrom(r *http.Request) *auth.Account {
	acct, _ := r.Context().Value(accountKey).(*auth.Account)
	return acct
}
