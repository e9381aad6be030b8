package domain

// Critique is the critic's evaluation of one artifact. severity=acceptable is
// the only verdict that terminates a session successfully.
type Critique struct {
	Severity         Severity `json:"severity"`
	Summary          string   `json:"summary"`
	Reasoning        string   `json:"reasoning,omitempty"`
	RevisionRequests []string `json:"revision_requests,omitempty"`
}

// Validate checks the critique fields.
func (c *Critique) Validate() error {
	if !c.Severity.Valid() {
		return &ValidationError{Field: "severity", Reason: "must be acceptable, minor_issues, or major_issues"}
	}
	if c.Summary == "" {
		return &ValidationError{Field: "summary", Reason: "is required"}
	}
	return nil
}
