package dto

// ResetPasswordRequest es el body de POST /auth/reset-password.
type ResetPasswordRequest struct {
	UsernameOrEmail string `json:"username_or_email"`
}

// SetPasswordRequest es el body de los endpoints que completan un cambio
// de password con un token (reset o password vencida).
type SetPasswordRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// VerifyEmailRequest es el body de POST /auth/verify-email.
type VerifyEmailRequest struct {
	Email string `json:"email"`
}

// StatusResponse es la respuesta genérica de los flujos de cuenta.
type StatusResponse struct {
	Status   string `json:"status"`
	Username string `json:"username,omitempty"`
	// Link solo se devuelve fuera de prod, para pruebas sin SMTP.
	Link string `json:"link,omitempty"`
}
