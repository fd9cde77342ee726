package dto

// AccessTokenRequest completes the authorization handshake.
type AccessTokenRequest struct {
	Token    string `json:"token" validate:"required,max=256,printascii"`
	Verifier string `json:"verifier" validate:"required,max=256,printascii"`
}

type AuthStatusResponse struct {
	State         string `json:"state"`
	Authenticated bool   `json:"authenticated"`
}

type ErrorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}
