package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/activmap/activmap-api/internal/dto"
	appErrors "github.com/activmap/activmap-api/pkg/errors"
	"github.com/activmap/activmap-api/pkg/response"
)

type verificationService interface {
	SendCode(ctx context.Context, recipient string) error
	VerifyCode(ctx context.Context, recipient, code string) (bool, error)
}

// VerificationHandler exposes one-time email verification codes.
type VerificationHandler struct {
	service verificationService
}

// NewVerificationHandler constructs the handler.
func NewVerificationHandler(service verificationService) *VerificationHandler {
	return &VerificationHandler{service: service}
}

// SendCode issues a code for the given email.
func (h *VerificationHandler) SendCode(c *gin.Context) {
	var req dto.SendVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "a valid email is required"))
		return
	}
	if err := h.service.SendCode(c.Request.Context(), req.Email); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"sent": true}, nil)
}

// VerifyCode checks a code for the given email.
func (h *VerificationHandler) VerifyCode(c *gin.Context) {
	var req dto.VerifyCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "email and code are required"))
		return
	}
	ok, err := h.service.VerifyCode(c.Request.Context(), req.Email, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}
	if !ok {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid or expired code"))
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"verified": true}, nil)
}
