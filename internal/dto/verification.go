package dto

// SendVerificationRequest asks for a one-time code to be issued.
type SendVerificationRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// VerifyCodeRequest checks a previously issued code.
type VerifyCodeRequest struct {
	Email string `json:"email" binding:"required,email"`
	Code  string `json:"code" binding:"required"`
}
