package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/booklify-checkout/internal/backend"
	"github.com/xenking/booklify-checkout/internal/domain/auth"
	"github.com/xenking/booklify-checkout/pkg/httpmiddleware"
)

// TokenVerifier verifies a raw bearer token.
type TokenVerifier interface {
	Verify(raw string) (*auth.Principal, error)
}

// Authenticate requires a valid "Authorization: Bearer <token>" header. The
// caller is stored with auth.WithPrincipal and the raw token is forwarded to
// backend calls made on behalf of the request.
func Authenticate(tokens TokenVerifier) httpmiddleware.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				writeError(w, http.StatusUnauthorized, "authorization header must be a bearer token")
				return
			}
			p, err := tokens.Verify(raw)
			if err != nil {
				zctx.From(r.Context()).Debug("Token rejected", zap.Error(err))
				writeError(w, http.StatusUnauthorized, auth.ErrInvalidToken.Error())
				return
			}

			ctx := auth.WithPrincipal(r.Context(), p)
			ctx = backend.WithToken(ctx, p.Token)
			ctx = zctx.With(ctx, zap.Int64("user_id", p.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
