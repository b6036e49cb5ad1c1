package recognition

// StatusData describes the running service for the status endpoint.
type StatusData struct {
	Service string `json:"service"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Model   string `json:"model,omitempty"`
}
