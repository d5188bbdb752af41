package errors

// ErrorDetail is the inner payload of an ErrorResponse.
type ErrorDetail struct {
	Message      string                 `json:"message"`
	InternalCode string                 `json:"internal_code,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
}

// ErrorResponse is the wire shape errors take when serialized, e.g. inside
// telemetry payloads or API responses.
type ErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// NewErrorResponse builds the serializable representation of err.
func NewErrorResponse(err error) *ErrorResponse {
	if err == nil {
		return nil
	}

	message := err.Error()
	if hint := Hint(err); hint != "" {
		message = hint
	}

	return &ErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Message:      message,
			InternalCode: ErrCode(err),
			Details:      ReportableDetails(err),
		},
	}
}
