package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/merchshop/storefront-backend/api/responses"
	pkgerrors "github.com/merchshop/storefront-backend/pkg/errors"
	"github.com/merchshop/storefront-backend/pkg/logger"
)

// CartSessionHeader carries the shopper's cart session in both directions.
const CartSessionHeader = "X-Cart-Session"

var cartSessionPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

// CartSession resolves the cart session for the request. A missing header
// starts a new session, which is echoed back so the client can keep it.
func CartSession(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := strings.TrimSpace(r.Header.Get(CartSessionHeader))
			if sessionID == "" {
				sessionID = uuid.NewString()
			} else if !cartSessionPattern.MatchString(sessionID) {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid cart session").
					WithDetails(map[string]any{"header": CartSessionHeader}))
				return
			}

			w.Header().Set(CartSessionHeader, sessionID)

			ctx := WithCartSession(r.Context(), sessionID)
			if logg != nil {
				ctx = logg.WithCartSession(ctx, sessionID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
