package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/larpkeep/characterhub/pkg/authz"
	"github.com/larpkeep/characterhub/pkg/contextkeys"
	"github.com/larpkeep/characterhub/pkg/httputil"
	"github.com/larpkeep/characterhub/pkg/identity"
)

// Trusted-gateway headers. When an upstream authorizer has already resolved
// the caller it forwards the user id and office list directly; no hub round
// trip is needed.
const (
	HeaderAuthUser    = "Auth-User"
	HeaderAuthOffices = "Auth-Offices"
)

// Authenticator resolves the caller on every request and stores the
// request-scoped actor in the context. Identity failures produce a 401 with
// the AUTHENTICATION_FAILED code; they are never reported as authorization
// denials.
type Authenticator struct {
	client *identity.Client
	log    logrus.FieldLogger
}

// NewAuthenticator builds the authentication middleware.
func NewAuthenticator(client *identity.Client, log logrus.FieldLogger) *Authenticator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Authenticator{client: client, log: log}
}

// Handler wraps an HTTP handler with caller resolution.
func (a *Authenticator) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := a.resolve(r)
		if err != nil {
			a.log.WithError(err).WithField("path", r.URL.Path).Debug("authentication failed")
			httputil.WriteDomainError(w, err)
			return
		}
		ctx := contextkeys.WithActor(r.Context(), actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) resolve(r *http.Request) (*authz.Actor, error) {
	if r.Header.Get(HeaderAuthUser) != "" {
		return a.fromHeaders(r)
	}
	token := bearerToken(r)
	id, err := a.client.ResolveToken(r.Context(), token)
	if err != nil {
		return nil, err
	}
	return id.Actor(), nil
}

// fromHeaders trusts the upstream authorizer's resolved identity.
func (a *Authenticator) fromHeaders(r *http.Request) (*authz.Actor, error) {
	userID, err := strconv.ParseInt(r.Header.Get(HeaderAuthUser), 10, 64)
	if err != nil {
		return nil, &identity.Error{Message: "invalid auth-user header", Cause: err}
	}
	offices := map[int][]string{}
	if raw := r.Header.Get(HeaderAuthOffices); raw != "" {
		var list []identity.Office
		if err := json.Unmarshal([]byte(raw), &list); err != nil {
			return nil, &identity.Error{Message: "invalid auth-offices header", Cause: err}
		}
		offices = identity.OfficesByUnit(list)
	}
	return &authz.Actor{UserID: userID, Offices: offices}, nil
}

// bearerToken extracts the caller token from the Authorization header or the
// legacy "token" query parameter.
func bearerToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return r.URL.Query().Get("token")
}
