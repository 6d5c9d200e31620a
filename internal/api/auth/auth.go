package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"recipebox/internal/model"
	"recipebox/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserStore 是 Handler 依赖的用户仓储。
type UserStore interface {
	Create(ctx context.Context, p store.CreateUserParams) (*model.User, error)
	Authenticate(ctx context.Context, username, password string) (*model.User, error)
	GetByID(ctx context.Context, id uint) (*model.User, error)
	Update(ctx context.Context, id uint, p store.UpdateUserParams) (*model.User, error)
	Delete(ctx context.Context, id uint) error
}

// Handler 提供用户注册、Token 签发和个人资料接口。
type Handler struct {
	users     UserStore
	jwtSecret []byte
	tokenTTL  time.Duration
	logger    *slog.Logger
}

// NewHandler 创建 Auth Handler。
func NewHandler(users UserStore, jwtSecret string, tokenTTL time.Duration, logger *slog.Logger) *Handler {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	return &Handler{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		tokenTTL:  tokenTTL,
		logger:    logger,
	}
}

type createUserRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

type updateMeRequest struct {
	Name     *string `json:"name"`
	Password *string `json:"password"`
}

type userResponse struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

func newUserResponse(user *model.User) userResponse {
	return userResponse{
		ID:       user.ID,
		Username: user.Username,
		Email:    user.Email,
		Name:     user.Name,
	}
}

// Register 创建新用户。
//
// POST /users
func (h *Handler) Register(c *gin.Context) {
	var req createUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.users.Create(c.Request.Context(), store.CreateUserParams{
		Username: req.Username,
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
			return
		}
		if h.logger != nil {
			h.logger.Error("create user failed", slog.String("username", req.Username), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create user failed"})
		return
	}

	if h.logger != nil {
		h.logger.Info("user registered", slog.String("username", user.Username))
	}
	c.JSON(http.StatusCreated, newUserResponse(user))
}

// Token 校验凭证并签发 Bearer Token。
//
// POST /users/token
func (h *Handler) Token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Username == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}

	user, err := h.users.Authenticate(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrInvalidCredentials) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid credentials"})
			return
		}
		if h.logger != nil {
			h.logger.Error("authenticate failed", slog.String("username", req.Username), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "authenticate failed"})
		return
	}

	token, err := h.issueToken(user.ID)
	if err != nil {
		if h.logger != nil {
			h.logger.Error("sign token failed", slog.String("username", user.Username), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sign token failed"})
		return
	}

	if h.logger != nil {
		h.logger.Info("token issued", slog.String("username", user.Username))
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// Me 返回当前用户的资料。
//
// GET /users/me
func (h *Handler) Me(c *gin.Context) {
	userID := currentUserID(c)
	user, err := h.users.GetByID(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

// UpdateMe 更新当前用户的名称和密码。
//
// PATCH /users/me
func (h *Handler) UpdateMe(c *gin.Context) {
	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := currentUserID(c)
	user, err := h.users.Update(c.Request.Context(), userID, store.UpdateUserParams{
		Name:     req.Name,
		Password: req.Password,
	})
	if err != nil {
		var verr *store.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Fields})
			return
		}
		if h.logger != nil {
			h.logger.Error("update profile failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update profile failed"})
		return
	}
	c.JSON(http.StatusOK, newUserResponse(user))
}

// DeleteAccount 注销当前账户并级联清理名下数据。
//
// POST /users/me/delete
func (h *Handler) DeleteAccount(c *gin.Context) {
	userID := currentUserID(c)
	if err := h.users.Delete(c.Request.Context(), userID); err != nil {
		if h.logger != nil {
			h.logger.Error("delete account failed", slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete account failed"})
		return
	}
	if h.logger != nil {
		h.logger.Info("account deleted", slog.Uint64("user_id", uint64(userID)))
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handler) issueToken(userID uint) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(h.tokenTTL)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(h.jwtSecret)
}

func currentUserID(c *gin.Context) uint {
	v, ok := c.Get("userID")
	if !ok {
		return 0
	}
	id, _ := v.(uint)
	return id
}
