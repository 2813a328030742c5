package deps

import "strings"

// Requirement describes an external binary loom shells out to.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of one requirement.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries resolves each requirement and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, Check(req))
	}
	return results
}

// Check resolves a single requirement. The Detail of an available
// requirement carries the resolved path when it differs from the configured
// command; the Detail of a missing one explains the failure.
func Check(req Requirement) Status {
	status := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := Resolve(status.Command)
	if err != nil {
		status.Detail = err.Error()
		return status
	}
	status.Available = true
	if resolved != status.Command {
		status.Detail = resolved
	}
	return status
}
