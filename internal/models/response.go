package models

// MessageResponse is the success body of every mutating endpoint
type MessageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ErrorResponse is the uniform failure body, sent with a non-2xx status
type ErrorResponse struct {
	Error string `json:"error"`
}
