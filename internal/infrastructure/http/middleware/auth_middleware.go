package middleware

import (
	stdErrors "errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/johnquangdev/meeting-minutes/errors"
	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	"github.com/johnquangdev/meeting-minutes/pkg/jwt"
)

// Echo context keys set by EchoAuth
const (
	ActorContextKey  = "actor"
	UserIDContextKey = "user_id"
)

// APIKeyHeader carries the caller's own model API key
const APIKeyHeader = "X-Api-Key"

type errorBody struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
}

func reject(c echo.Context, appErr errors.AppError) error {
	return c.JSON(appErr.HTTPCode, errorBody{Code: appErr.Code, Message: appErr.Message})
}

// EchoAuth validates the bearer token and sets the entities.Actor and
// "user_id" (uuid.UUID) into the Echo context
func EchoAuth(jwtManager *jwt.Manager) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := ExtractToken(c.Request())
			if token == "" {
				return reject(c, errors.ErrUnauthenticated())
			}

			claims, err := jwtManager.ValidateAccessToken(token)
			if err != nil {
				if stdErrors.Is(err, jwt.ErrTokenExpired) {
					return reject(c, errors.ErrTokenExpired())
				}
				return reject(c, errors.ErrInvalidToken())
			}

			role := entities.Role(claims.Role)
			if !role.IsValid() {
				return reject(c, errors.ErrInvalidToken())
			}

			actor := entities.Actor{
				UserID:    claims.UserID,
				CompanyID: claims.CompanyID,
				Role:      role,
			}
			c.Set(ActorContextKey, actor)
			c.Set(UserIDContextKey, actor.UserID)

			return next(c)
		}
	}
}

// RequireRole checks if the authenticated actor has one of the roles
func RequireRole(roles ...entities.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor, ok := ActorFrom(c)
			if !ok {
				return reject(c, errors.ErrUnauthenticated())
			}
			for _, role := range roles {
				if actor.Role == role {
					return next(c)
				}
			}
			return reject(c, errors.ErrForbidden("Insufficient permissions"))
		}
	}
}

// ActorFrom retrieves the actor set by EchoAuth
func ActorFrom(c echo.Context) (entities.Actor, bool) {
	actor, ok := c.Get(ActorContextKey).(entities.Actor)
	return actor, ok
}

// ExtractToken reads the bearer token from the Authorization header, falling
// back to the access_token cookie
func ExtractToken(r *http.Request) string {
	authHeader := r.Header.Get(echo.HeaderAuthorization)
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return strings.TrimSpace(parts[1])
		}
	}

	if cookie, err := r.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}
