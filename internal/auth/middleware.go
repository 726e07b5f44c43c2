package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"otakuhub/pkg/models"
	"otakuhub/pkg/repository"
)

const CtxUserKey = "auth_user"

// ErrAuthenticationFailed covers every gate-level rejection: malformed
// header, bad or expired token, unknown subject.
var ErrAuthenticationFailed = errors.New("authentication failed")

// Gate extracts bearer tokens from inbound requests, validates them and
// resolves the subject to a stored user.
type Gate struct {
	Tokens TokenService
	Users  *repository.Repository[models.User]
}

func NewGate(tokens TokenService, users *repository.Repository[models.User]) *Gate {
	return &Gate{Tokens: tokens, Users: users}
}

// Authenticate inspects the Authorization header. No header (or a
// non-bearer scheme) yields no identity without error; anonymous access
// is decided later by the permission layer. A malformed bearer header or
// a failing token is an authentication failure.
func (g *Gate) Authenticate(ctx context.Context, header string) (*models.User, error) {
	if strings.TrimSpace(header) == "" {
		return nil, nil
	}

	parts := strings.Fields(header)
	if !strings.EqualFold(parts[0], "bearer") {
		return nil, nil
	}
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: invalid token header", ErrAuthenticationFailed)
	}

	claims, err := g.Tokens.Validate(parts[1])
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return nil, fmt.Errorf("%w: token has expired", ErrAuthenticationFailed)
		}
		return nil, fmt.Errorf("%w: invalid token", ErrAuthenticationFailed)
	}

	subject := claims.UserID
	if subject == "" {
		subject = claims.Subject
	}

	user, err := g.Users.GetByID(ctx, subject)
	if err != nil || user == nil {
		return nil, fmt.Errorf("%w: user not found", ErrAuthenticationFailed)
	}
	return user, nil
}

// Middleware runs the gate on every request. Anonymous requests pass
// through with no identity attached; failed authentication aborts 401.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := g.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": strings.TrimPrefix(err.Error(), ErrAuthenticationFailed.Error()+": ")})
			c.Abort()
			return
		}
		if user != nil {
			c.Set(CtxUserKey, user)
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user attached by the gate, or
// nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	v, ok := c.Get(CtxUserKey)
	if !ok {
		return nil
	}
	user, _ := v.(*models.User)
	return user
}
