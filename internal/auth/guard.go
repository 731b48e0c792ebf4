package auth

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/redmonkez12/quick-flayer-api/internal/httputil"
	"github.com/redmonkez12/quick-flayer-api/internal/logging"
	"github.com/redmonkez12/quick-flayer-api/internal/user"
)

// RouteAccess describes who may call a route. It is declared next to the
// route in the router's table.
type RouteAccess struct {
	// Public routes skip authentication and role checks entirely
	Public bool
	// RequiredRoles, when non-empty, lists the roles allowed through.
	// Empty means any authenticated caller.
	RequiredRoles []user.Role
}

// Public is the access descriptor for routes open to anyone
func Public() RouteAccess {
	return RouteAccess{Public: true}
}

// Authenticated is the access descriptor for routes open to any valid token
func Authenticated() RouteAccess {
	return RouteAccess{}
}

// RequireRoles is the access descriptor for routes limited to the given roles
func RequireRoles(roles ...user.Role) RouteAccess {
	return RouteAccess{RequiredRoles: roles}
}

// Validate rejects a public route that also lists roles; such a route would
// skip the role check entirely.
func (a RouteAccess) Validate() error {
	if a.Public && len(a.RequiredRoles) > 0 {
		return fmt.Errorf("public route cannot require roles %v", a.RequiredRoles)
	}
	return nil
}

// Principal is the authenticated caller, taken from verified token claims
type Principal struct {
	UserID uuid.UUID
	Email  string
	Role   user.Role
}

type principalContextKey struct{}

// PrincipalFromContext returns the caller attached by Guard.Middleware
func PrincipalFromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalContextKey{}).(*Principal)
	return p, ok && p != nil
}

func withPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// Guard runs the access chain for a route: public bypass, then bearer token
// authentication, then the role check.
type Guard struct {
	tokens   TokenService
	observer Observer
}

func NewGuard(tokens TokenService, observer Observer) *Guard {
	return &Guard{tokens: tokens, observer: observerOrNop(observer)}
}

// Authorize decides whether r may proceed under access. Public routes return
// a nil principal and no error.
func (g *Guard) Authorize(r *http.Request, access RouteAccess) (*Principal, error) {
	if access.Public {
		return nil, nil
	}

	token, err := bearerToken(r)
	if err != nil {
		if r.Header.Get("Authorization") == "" {
			g.observer.GuardRejected(RejectMissingAuth)
		} else {
			g.observer.GuardRejected(RejectInvalidHeader)
		}
		return nil, err
	}

	claims, err := g.tokens.VerifyToken(token)
	if err != nil {
		g.observer.GuardRejected(RejectInvalidToken)
		return nil, newError(KindUnauthenticated, MsgInvalidToken, httputil.CodeInvalidToken)
	}

	principal := &Principal{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}

	if len(access.RequiredRoles) > 0 && !slices.Contains(access.RequiredRoles, principal.Role) {
		g.observer.GuardRejected(RejectForbidden)
		return nil, newError(KindForbidden, forbiddenMessage(access.RequiredRoles), httputil.CodeForbidden)
	}

	return principal, nil
}

// Middleware enforces access on every request it wraps and attaches the
// principal to the request context. It panics on an invalid access rule so a
// mis-declared route fails at startup.
func (g *Guard) Middleware(access RouteAccess) func(http.Handler) http.Handler {
	if err := access.Validate(); err != nil {
		panic(err)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := g.Authorize(r, access)
			if err != nil {
				logging.GetLoggerFromContext(r.Context()).Warn("access denied",
					"reason", err.Error(),
					"status", StatusCode(err),
				)
				writeError(w, err)
				return
			}

			if principal != nil {
				r = r.WithContext(withPrincipal(r.Context(), principal))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from "Authorization: Bearer <token>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", newError(KindUnauthenticated, MsgMissingAuthentication, httputil.CodeMissingAuth)
	}

	scheme, token, found := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !found || !strings.EqualFold(scheme, "Bearer") || token == "" || strings.ContainsAny(token, " \t") {
		return "", newError(KindUnauthenticated, MsgInvalidAuthHeader, httputil.CodeInvalidAuthHeader)
	}

	return token, nil
}

func forbiddenMessage(roles []user.Role) string {
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return fmt.Sprintf("Access denied: %s role required", strings.Join(names, " or "))
}
