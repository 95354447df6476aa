package handler

import "github.com/tinygate/tinygate/internal/secret"

// registerRequest is the body of POST /auth/register. Code is accepted for
// form compatibility and ignored.
type registerRequest struct {
	User             string         `json:"user"     validate:"required"`
	Password         *secret.Secret `json:"password" validate:"required" swaggertype:"string"`
	Token            string         `json:"token"    validate:"required"`
	Code             string         `json:"code,omitempty"`
	SecondFactorAsQR bool           `json:"second_factor_as_qr,omitempty"`
}

// registerResponse is returned when a second factor was provisioned.
type registerResponse struct {
	SecondFactorURL string `json:"second_factor_url,omitempty"`
	SecondFactorQR  string `json:"second_factor_qr,omitempty"`
}

// loginRequest is the body of POST /auth/login.
type loginRequest struct {
	User     string         `json:"user"     validate:"required"`
	Password *secret.Secret `json:"password" validate:"required" swaggertype:"string"`
	Code     string         `json:"code,omitempty" validate:"omitempty,max=16"`
}

// errorBody documents the error envelope rendered by the API error handler.
type errorBody struct {
	Error string `json:"error" example:"InvalidCredentials"`
	Msg   string `json:"msg"   example:"invalid credentials"`
}
