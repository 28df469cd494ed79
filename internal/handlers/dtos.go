package handlers

// Request and response bodies for the auth, MFA, and rule endpoints.

type LoginRequest struct {
	Username string `json:"username" validate:"required,min=1,max=255"`
	Password string `json:"password" validate:"required,min=1,max=1024"`
	Channel  string `json:"channel" validate:"omitempty,oneof=totp email sms"`
}

type VerifyCodeRequest struct {
	SetupToken string `json:"setup_token" validate:"required,len=32,hexadecimal"`
	Code       string `json:"code" validate:"required,min=6,max=10,numeric"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type ForgotPasswordRequest struct {
	Username string `json:"username" validate:"required,min=1,max=255"`
}

type ResetPasswordRequest struct {
	ResetToken  string `json:"reset_token" validate:"required,len=32,hexadecimal"`
	NewPassword string `json:"new_password" validate:"required,min=12,max=1024"`
}

type ConfirmEnrollmentRequest struct {
	SetupToken string `json:"setup_token" validate:"required,len=32,hexadecimal"`
	Code       string `json:"code" validate:"required,len=6,numeric"`
}

type ReenrollRequest struct {
	CurrentCode string `json:"current_code" validate:"required,len=6,numeric"`
}

type DisableMFARequest struct {
	CurrentCode string `json:"current_code" validate:"required,len=6,numeric"`
}

type RuleRequest struct {
	DepartmentID string `json:"department_id" validate:"required,max=64"`
	RoleID       string `json:"role_id" validate:"required,max=255"`
	HTTPMethod   string `json:"http_method" validate:"required,oneof=GET POST PUT PATCH DELETE get post put patch delete"`
	PathPattern  string `json:"path_pattern" validate:"required,max=512"`
	Allowed      *bool  `json:"allowed" validate:"required"`
}

type RuleResponse struct {
	ID           string `json:"id"`
	DepartmentID string `json:"department_id"`
	RoleID       string `json:"role_id"`
	HTTPMethod   string `json:"http_method"`
	PathPattern  string `json:"path_pattern"`
	Allowed      bool   `json:"allowed"`
	CreatedAt    string `json:"created_at"`
	ModifiedAt   string `json:"modified_at"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
