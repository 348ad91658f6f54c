package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"rfpmanager/models"
)

// Identity пользователь, извлеченный из токена
type Identity struct {
	ID       string
	Email    string
	Role     models.Role
	VendorID string
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

func FromContext(ctx context.Context) (*Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(*Identity)
	return id, ok && id != nil
}

// tokenFromRequest берет токен из x-auth-token или Authorization: Bearer
func tokenFromRequest(r *http.Request) string {
	if token := r.Header.Get("x-auth-token"); token != "" {
		return token
	}
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}

func (m *TokenManager) identify(r *http.Request) (*Identity, bool) {
	token := tokenFromRequest(r)
	if token == "" {
		return nil, false
	}
	claims, err := m.Parse(token)
	if err != nil {
		return nil, false
	}
	return &Identity{
		ID:       claims.UserID,
		Email:    claims.Email,
		Role:     claims.Role,
		VendorID: claims.VendorID,
	}, true
}

// Authenticate пропускает только запросы с действительным токеном.
func (m *TokenManager) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if tokenFromRequest(r) == "" {
			writeError(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		id, ok := m.identify(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "Token is not valid")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// OptionalAuthenticate добавляет пользователя в контекст, если токен есть и он валиден.
func (m *TokenManager) OptionalAuthenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := m.identify(r); ok {
			r = r.WithContext(WithIdentity(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// Authorize ограничивает доступ ролями. Ставится после Authenticate.
func Authorize(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}
			for _, role := range roles {
				if id.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			writeError(w, http.StatusForbidden, "User role "+string(id.Role)+" is not authorized to access this route")
		})
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   message,
	})
}
