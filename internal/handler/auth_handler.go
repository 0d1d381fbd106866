package handler

import (
	"github.com/gin-gonic/gin"

	"storefront/internal/service/auth"
	"storefront/pkg/utils"
)

// AuthHandler authentication handler
type AuthHandler struct {
	authService auth.AuthService
}

// NewAuthHandler creates an authentication handler
func NewAuthHandler(authService auth.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// RequestCode issues a one-time login code for a phone number
func (h *AuthHandler) RequestCode(c *gin.Context) {
	var req auth.RequestCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.FormatBindingError(err))
		return
	}

	issued, err := h.authService.RequestCode(c.Request.Context(), req.PhoneNumber)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, issued)
}

// Verify exchanges a login code for an access token
func (h *AuthHandler) Verify(c *gin.Context) {
	var req auth.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.AppErrorResponse(c, utils.FormatBindingError(err))
		return
	}

	session, err := h.authService.Login(c.Request.Context(), req.PhoneNumber, req.Code)
	if err != nil {
		utils.AppErrorResponse(c, err)
		return
	}

	utils.SuccessResponse(c, session)
}
