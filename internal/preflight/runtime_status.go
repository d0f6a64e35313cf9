package preflight

import (
	"context"
	"strings"

	"modelfarm/internal/config"
	"modelfarm/internal/credential"
)

// CheckHubFromConfig evaluates hub status from settings and the manifest's
// token reference. A reference that cannot be resolved is reported without
// contacting the hub.
func CheckHubFromConfig(ctx context.Context, cfg *config.Config, credentialRef string) Result {
	const name = "Hub"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Fetch.Endpoint) == "" {
		return Result{Name: name, Detail: "Missing endpoint"}
	}
	var token credential.Token
	if strings.TrimSpace(credentialRef) != "" {
		resolved, err := credential.Resolve(credentialRef, nil)
		if err != nil {
			return Result{Name: name, Detail: err.Error()}
		}
		token = resolved
	}
	return CheckHub(ctx, cfg.Fetch.Endpoint, token.Reveal(), cfg.Fetch.UserAgent)
}
