package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"otakuhub/internal/auth"
	"otakuhub/pkg/models"
	"otakuhub/pkg/repository"
)

type Handler struct {
	Users  *repository.Repository[models.User]
	Hasher auth.PasswordHasher
}

func NewHandler(users *repository.Repository[models.User]) *Handler {
	return &Handler{Users: users, Hasher: auth.NewPasswordHasher()}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
	rg.GET("", h.list)
	rg.GET("/:id", h.retrieve)
	rg.PATCH("/:id", auth.RequireSelfOrSuperuser("id"), h.update)
	rg.DELETE("/:id", auth.RequireSelfOrSuperuser("id"), h.destroy)
}

func (h *Handler) me(c *gin.Context) {
	user := auth.CurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (h *Handler) list(c *gin.Context) {
	all, err := h.Users.GetAll(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	out := make([]map[string]any, 0, len(all))
	for i := range all {
		out = append(out, all[i].Public())
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) retrieve(c *gin.Context) {
	user, err := h.Users.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeRepoError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (h *Handler) update(c *gin.Context) {
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	requester := auth.CurrentUser(c)
	if requester != nil && !requester.IsSuperuser {
		// role flags are superuser-only
		delete(fields, "is_superuser")
		delete(fields, "is_staff")
		delete(fields, "is_active")
	}

	// rehash only when the password is explicitly changed
	if plain, ok := fields["password"].(string); ok {
		if len(plain) < 8 || len(plain) > 72 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "password must be 8-72 chars"})
			return
		}
		hash, err := h.Hasher.Hash(plain)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
			return
		}
		fields["password"] = hash
	}

	user, err := h.Users.Update(c.Request.Context(), c.Param("id"), fields)
	if err != nil {
		writeRepoError(c, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.JSON(http.StatusOK, user.Public())
}

func (h *Handler) destroy(c *gin.Context) {
	existed, err := h.Users.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeRepoError(c, err)
		return
	}
	if !existed {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func writeRepoError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, repository.ErrInvalidID),
		errors.Is(err, repository.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, repository.ErrAlreadyExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "operation failed"})
	}
}
