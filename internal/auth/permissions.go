package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"otakuhub/pkg/models"
)

// Permission predicates per (user, action, resource). Safe methods are
// always allowed; the auth endpoints themselves carry no policy so that
// login/register/refresh stay reachable unauthenticated.

func SafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

// CanMutate reports whether user may perform a mutating action on a
// general resource: any authenticated user, superusers unconditionally.
func CanMutate(user *models.User) bool {
	return user != nil
}

// CanMutateOwned reports whether user may mutate a resource owned by
// ownerID: the owner themselves, or a superuser.
func CanMutateOwned(user *models.User, ownerID string) bool {
	if user == nil {
		return false
	}
	if user.IsSuperuser {
		return true
	}
	return ownerID != "" && user.ID == ownerID
}

// RequireAuthOrReadOnly permits safe methods anonymously and requires an
// authenticated user for anything else.
func RequireAuthOrReadOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if SafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if !CanMutate(CurrentUser(c)) {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSelfOrSuperuser permits safe methods anonymously and restricts
// mutations to the user addressed by the given path parameter, or a
// superuser.
func RequireSelfOrSuperuser(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if SafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if !CanMutateOwned(CurrentUser(c), c.Param(param)) {
			c.JSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			c.Abort()
			return
		}
		c.Next()
	}
}
