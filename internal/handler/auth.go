package handler

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"

	"canvas-backend/internal/auth"
	"canvas-backend/internal/directory"
	"canvas-backend/internal/model"
)

// userStore 인증에 필요한 사용자 저장소 (directory.Service가 구현)
type userStore interface {
	CreateUser(username, email, passwordHash string) (*model.User, error)
	FindUserByUsername(username string) (*model.User, error)
}

// AuthHandler 인증 핸들러
type AuthHandler struct {
	users        userStore
	jwtManager   *auth.JWTManager
	tokenExpiry  time.Duration
	secureCookie bool
}

// NewAuthHandler AuthHandler 생성
func NewAuthHandler(users userStore, jwtManager *auth.JWTManager, tokenExpiry time.Duration, secureCookie bool) *AuthHandler {
	return &AuthHandler{
		users:        users,
		jwtManager:   jwtManager,
		tokenExpiry:  tokenExpiry,
		secureCookie: secureCookie,
	}
}

// RegisterRequest 회원가입 요청
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest 로그인 요청
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// AuthResponse 인증 응답
type AuthResponse struct {
	User        UserResponse `json:"user"`
	AccessToken string       `json:"access_token"`
	ExpiresIn   int64        `json:"expires_in"`
}

// UserResponse 사용자 응답
type UserResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Register 회원가입
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))

	if req.Username == "" || req.Email == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username, email and password are required",
		})
	}
	if len(req.Password) < 8 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "password must be at least 8 characters",
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to hash password",
		})
	}

	user, err := h.users.CreateUser(req.Username, req.Email, string(hash))
	if err != nil {
		if errors.Is(err, directory.ErrDuplicateUser) {
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"error": "username or email already in use",
			})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to create user",
		})
	}

	return h.respondWithToken(c, user, fiber.StatusCreated)
}

// Login 로그인
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid request body",
		})
	}

	if req.Username == "" || req.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "username and password are required",
		})
	}

	user, err := h.users.FindUserByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		// Same answer for unknown user and wrong password.
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid credentials",
		})
	}

	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "invalid credentials",
		})
	}

	return h.respondWithToken(c, user, fiber.StatusOK)
}

// Logout 로그아웃 (쿠키 제거)
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: "Lax",
	})
	return c.JSON(fiber.Map{"message": "logged out"})
}

// Me 현재 사용자 조회 (AuthMiddleware 뒤에서만)
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	claims := c.Locals("claims").(*auth.Claims)

	user, err := h.users.FindUserByUsername(claims.Username)
	if err != nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "user not found",
		})
	}

	return c.JSON(UserResponse{ID: user.ID, Username: user.Username, Email: user.Email})
}

func (h *AuthHandler) respondWithToken(c *fiber.Ctx, user *model.User, status int) error {
	token, err := h.jwtManager.GenerateToken(user.ID, user.Username)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "failed to generate token",
		})
	}

	c.Cookie(&fiber.Cookie{
		Name:     "access_token",
		Value:    token,
		Expires:  time.Now().Add(h.tokenExpiry),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: "Lax",
	})

	return c.Status(status).JSON(AuthResponse{
		User:        UserResponse{ID: user.ID, Username: user.Username, Email: user.Email},
		AccessToken: token,
		ExpiresIn:   int64(h.tokenExpiry.Seconds()),
	})
}
