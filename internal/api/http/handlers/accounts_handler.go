package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/support-stream/internal/api/dto"
	"github.com/spec-kit/support-stream/internal/service"
	apperrors "github.com/spec-kit/support-stream/pkg/errorutil"
)

// AccountsHandler manages registration and login endpoints.
type AccountsHandler struct {
	service *service.AuthService
}

// NewAccountsHandler constructs handler.
func NewAccountsHandler(authService *service.AuthService) *AccountsHandler {
	return &AccountsHandler{service: authService}
}

// Register POST /auth/register.
func (h *AccountsHandler) Register(c *fiber.Ctx) error {
	var req dto.RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	account, err := h.service.Register(c.Context(), req.Handle, req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"data": dto.AccountResponse{
		ID:     account.ID,
		Handle: account.Handle,
		Email:  account.Email,
		Role:   account.Role,
	}})
}

// Login POST /auth/login.
func (h *AccountsHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	result, err := h.service.Login(c.Context(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.AuthResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
	}})
}
