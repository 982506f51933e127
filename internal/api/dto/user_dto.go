package dto

import "github.com/Behnamfe76/ticket-portal/internal/domain"

// LoginRequest payload for POST /api/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// CodeResponse carries a one-time authorization code to redeem via exchange.
type CodeResponse struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ExchangeRequest payload for POST /api/auth/exchange.
type ExchangeRequest struct {
	Code string `json:"code"`
}

// ExchangeResponse is the session returned by a successful exchange.
type ExchangeResponse struct {
	AccessToken string      `json:"accessToken"`
	User        domain.User `json:"user"`
}

// MeResponse is returned by GET and PUT /api/me.
type MeResponse struct {
	User domain.User `json:"user"`
}

// SignupRequest payload for POST /api/signup.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ForgotPasswordRequest payload for POST /api/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest payload for POST /api/reset-password.
type ResetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// UpdateMeRequest payload for PUT /api/me. Nil fields are left unchanged.
type UpdateMeRequest struct {
	Name      *string `json:"name,omitempty"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// MessageResponse is the generic acknowledgement shape.
type MessageResponse struct {
	Message string `json:"message,omitempty"`
}

// SignInRequest is the web shell sign-in form. Next is the return target.
type SignInRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
	Next     string `json:"next" form:"next"`
}

// ShellSignupRequest is the web shell signup form.
type ShellSignupRequest struct {
	SignupRequest
	Next string `json:"next" form:"next"`
}
