package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/shashiranjanraj/catalog/app/models"
	"github.com/shashiranjanraj/catalog/pkg/auth"
	"github.com/shashiranjanraj/catalog/pkg/logger"
	"github.com/shashiranjanraj/catalog/pkg/response"
)

type principalKey struct{}

// WithPrincipal stores p on ctx.
func WithPrincipal(ctx context.Context, p models.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromCtx returns the authenticated caller, if any.
func PrincipalFromCtx(ctx context.Context) (models.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(models.Principal)
	return p, ok
}

// UserFinder resolves the subject of a token.
type UserFinder interface {
	FindByID(ctx context.Context, id string) (models.User, error)
}

// Auth authenticates requests from the token cookie or a bearer header.
type Auth struct {
	issuer       *auth.TokenIssuer
	users        UserFinder
	secureCookie bool
}

func NewAuth(issuer *auth.TokenIssuer, users UserFinder, secureCookie bool) *Auth {
	return &Auth{issuer: issuer, users: users, secureCookie: secureCookie}
}

var (
	errTokenMissing = errors.New("token missing")
	errTokenInvalid = errors.New("invalid token")
	errUserGone     = errors.New("user not found")
)

// Required rejects unauthenticated requests with 401.
func (a *Auth) Required(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.authenticate(w, r)
		if err != nil {
			response.Error(w, http.StatusUnauthorized, "Unauthorized: "+err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
	})
}

func (a *Auth) authenticate(w http.ResponseWriter, r *http.Request) (models.Principal, error) {
	raw := auth.TokenFromRequest(r)
	if raw == "" {
		return models.Principal{}, errTokenMissing
	}

	claims, err := a.issuer.Validate(raw)
	if err != nil {
		return models.Principal{}, errTokenInvalid
	}

	user, err := a.users.FindByID(r.Context(), claims.UserID)
	if err != nil {
		return models.Principal{}, errUserGone
	}

	if a.issuer.ShouldRenew(claims) {
		tok, exp, err := a.issuer.Issue(user.ID, user.Role)
		if err != nil {
			logger.WithCtx(r.Context()).Warn("token renewal failed", "user_id", user.ID, "error", err)
		} else {
			auth.SetCookie(w, tok, exp, a.secureCookie)
		}
	}

	return models.Principal{UserID: user.ID, Role: user.Role}, nil
}
