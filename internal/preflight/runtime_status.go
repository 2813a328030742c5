package preflight

import (
	"context"
	"strings"

	"loom/internal/config"
)

// CheckAPIFromConfig evaluates api-mode readiness from config and
// connectivity. Status displays treat a disabled feature as a normal state,
// not a failure.
func CheckAPIFromConfig(cfg *config.Config) Result {
	const name = "API endpoint"

	if cfg == nil {
		return Result{Name: name, Detail: "unknown"}
	}
	if !cfg.API.Enabled {
		return Result{Name: name, Passed: true, Detail: "disabled"}
	}
	if strings.TrimSpace(cfg.API.APIKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}
	return CheckAPI(context.Background(), cfg)
}
