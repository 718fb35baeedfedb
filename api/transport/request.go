package transport

// SelectMarketRequest is the body of POST /businesses/{id}/markets.
type SelectMarketRequest struct {
	Country string `json:"country"`
}

// TaskStatusRequest is the body of PATCH /timelines/{id}/tasks/{taskId}.
type TaskStatusRequest struct {
	Status string `json:"status"`
}

// ActionRequest is the body of POST /notifications/{id}/actions.
type ActionRequest struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data"`
}

// SweepRequest is the optional body of POST /sweeps/certifications.
type SweepRequest struct {
	RunID string `json:"run_id"`
}
