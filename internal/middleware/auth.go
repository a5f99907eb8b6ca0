package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/nursing-api/internal/model"
	"github.com/jwalitptl/nursing-api/pkg/auth"
	"github.com/jwalitptl/nursing-api/pkg/errors"
	"github.com/jwalitptl/nursing-api/pkg/httputil"
)

const ContextActor = "actor"

type AuthMiddleware struct {
	jwt auth.JWTService
}

func NewAuthMiddleware(jwt auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

// Authenticate verifies the bearer token and stores the caregiver as the
// request actor.
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, errors.Unauthorized(auth.ErrInvalidToken))
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			abort(c, errors.Unauthorized(auth.ErrInvalidToken))
			return
		}

		claims, err := m.jwt.ValidateToken(parts[1])
		if err != nil {
			abort(c, errors.Unauthorized(err))
			return
		}

		c.Set(ContextActor, claims.Actor())
		c.Next()
	}
}

// RequireRole lets through only actors holding one of roles.
func (m *AuthMiddleware) RequireRole(roles ...model.Role) gin.HandlerFunc {
	allowed := make(map[model.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			abort(c, errors.Unauthorized(auth.ErrInvalidToken))
			return
		}
		if !allowed[actor.Role] {
			abort(c, errors.Forbidden("role "+string(actor.Role)+" may not perform this action", nil))
			return
		}
		c.Next()
	}
}

// ActorFrom returns the authenticated caregiver of the request.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}

func abort(c *gin.Context, err error) {
	httputil.RespondWithError(c, err)
	c.Abort()
}
