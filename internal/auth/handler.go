package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"otakuhub/pkg/models"
	"otakuhub/pkg/repository"
)

type Handler struct {
	Users  *repository.Repository[models.User]
	Tokens TokenService
	Hasher PasswordHasher
}

func NewHandler(users *repository.Repository[models.User], tokens TokenService) *Handler {
	return &Handler{Users: users, Tokens: tokens, Hasher: NewPasswordHasher()}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/register", h.register)
	rg.POST("/login", h.login)
	rg.POST("/refresh", h.refresh)
	rg.POST("/create-superuser", h.createSuperuser)
}

type registerReq struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginReq struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) tokenPair(c *gin.Context, u *models.User, status int) {
	access, _, err := h.Tokens.IssueAccess(u)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}
	refresh, err := h.Tokens.IssueRefresh(u.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token failed"})
		return
	}

	c.JSON(status, gin.H{
		"access_token":  access,
		"token_type":    "Bearer",
		"refresh_token": refresh,
	})
}

func (h *Handler) register(c *gin.Context) {
	h.createAccount(c, false)
}

func (h *Handler) createSuperuser(c *gin.Context) {
	h.createAccount(c, true)
}

func (h *Handler) createAccount(c *gin.Context, superuser bool) {
	var req registerReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if len(req.Username) < 3 || len(req.Username) > 30 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username must be 3-30 chars"})
		return
	}
	if !strings.Contains(req.Email, "@") || len(req.Email) > 255 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	if len(req.Password) < 8 || len(req.Password) > 72 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "password must be 8-72 chars"})
		return
	}

	// uniqueness checks
	if u, _ := h.Users.FindByField(c.Request.Context(), "email", req.Email); u != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "a user with this email already exists"})
		return
	}
	if u, _ := h.Users.FindByField(c.Request.Context(), "username", req.Username); u != nil {
		c.JSON(http.StatusConflict, gin.H{"error": "a user with this username already exists"})
		return
	}

	hash, err := h.Hasher.Hash(req.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "hash failed"})
		return
	}

	created, err := h.Users.Create(c.Request.Context(), map[string]any{
		"username":     req.Username,
		"email":        req.Email,
		"password":     hash,
		"is_active":    true,
		"is_staff":     superuser,
		"is_superuser": superuser,
	})
	if err != nil {
		// the store's unique index will also trigger here in races
		if errors.Is(err, repository.ErrAlreadyExists) {
			c.JSON(http.StatusConflict, gin.H{"error": "user already exists"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	// auto-login
	h.tokenPair(c, created, http.StatusCreated)
}

func (h *Handler) login(c *gin.Context) {
	var req loginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password required"})
		return
	}

	u, err := h.Users.FindByField(c.Request.Context(), "username", username)
	if err != nil || u == nil {
		// don't reveal which part failed
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	if !h.Hasher.Verify(req.Password, u.PasswordHash) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	h.tokenPair(c, u, http.StatusOK)
}

func (h *Handler) refresh(c *gin.Context) {
	var req refreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.RefreshToken == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}

	claims, err := h.Tokens.Validate(req.RefreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "refresh token has expired"})
			return
		}
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	subject := claims.Subject
	if subject == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	u, err := h.Users.GetByID(c.Request.Context(), subject)
	if err != nil || u == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
		return
	}

	h.tokenPair(c, u, http.StatusOK)
}
