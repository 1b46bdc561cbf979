// Package security registers deploy-time checks over the auth and HTTP
// configuration. All of them are deploy-only: a development box running the
// shipped defaults is fine, the same defaults reaching production are not.
package security

import (
	"context"
	"fmt"

	"github.com/statline/statline-backend/internal/checks"
	"github.com/statline/statline-backend/internal/config"
)

// minSecretLength is the shortest AUTH_SECRET that does not draw a warning.
const minSecretLength = 50

func init() {
	checks.MustRegisterDeploy("security.default_secret", CheckDefaultSecret, checks.TagSecurity)
	checks.MustRegisterDeploy("security.secret_length", CheckSecretLength, checks.TagSecurity)
	checks.MustRegisterDeploy("security.debug_mode", CheckDebugMode, checks.TagSecurity)
	checks.MustRegisterDeploy("security.cors_wildcard", CheckCORSWildcard, checks.TagSecurity)
}

// CheckDefaultSecret flags the placeholder AUTH_SECRET shipped in the dev
// compose files.
func CheckDefaultSecret(_ context.Context, env *checks.Env) []checks.Message {
	if env.Cfg.Auth.Secret != config.DefaultAuthSecret {
		return nil
	}
	return []checks.Message{
		checks.Error("security.E001", "AUTH_SECRET is the built-in development default.").
			WithHint("Every statline install ships the same default; anyone holding it can mint API tokens. Set a unique AUTH_SECRET."),
	}
}

// CheckSecretLength flags secrets short enough to brute force.
func CheckSecretLength(_ context.Context, env *checks.Env) []checks.Message {
	secret := env.Cfg.Auth.Secret
	if secret == config.DefaultAuthSecret || len(secret) >= minSecretLength {
		return nil
	}
	return []checks.Message{
		checks.Warning("security.W002",
			fmt.Sprintf("AUTH_SECRET has fewer than %d characters.", minSecretLength)).
			WithHint("Short signing secrets make issued tokens guessable. Generate a longer random value."),
	}
}

// CheckDebugMode flags debug responses in deployment.
func CheckDebugMode(_ context.Context, env *checks.Env) []checks.Message {
	if !env.Cfg.Debug {
		return nil
	}
	return []checks.Message{
		checks.Warning("security.W003", "APP_DEBUG is enabled.").
			WithHint("Debug responses include SQL and request internals. Disable APP_DEBUG in deployment."),
	}
}

// CheckCORSWildcard flags a wildcard browser origin.
func CheckCORSWildcard(_ context.Context, env *checks.Env) []checks.Message {
	for _, origin := range env.Cfg.HTTP.CORSOrigins {
		if origin == "*" {
			return []checks.Message{
				checks.Warning("security.W004", "HTTP_CORS_ORIGINS allows any origin (*).").
					WithHint("A wildcard origin lets any site read dashboard responses with the visitor's credentials. List the dashboard origins explicitly."),
			}
		}
	}
	return nil
}
