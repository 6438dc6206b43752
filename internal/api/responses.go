package api

type ErrorResponse struct {
	Error   string            `json:"error" example:"something went wrong"`
	Code    string            `json:"code,omitempty" example:"VALIDATION_ERROR"`
	Details []ValidationError `json:"details,omitempty"`
}

type HealthResponse struct {
	Status string            `json:"status" example:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}
