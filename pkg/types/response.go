package types

type SuccessEnvelope struct {
	Data any `json:"data"`
}

// ListEnvelope wraps paged collections with their window so clients can
// iterate without counting.
type ListEnvelope struct {
	Data   any `json:"data"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Count  int `json:"count"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
