package config

import (
	"os"
	"strings"
)

// Environment is the deployment stage the binary runs in
type Environment string

const (
	Development Environment = "development"
	Test        Environment = "test"
	CI          Environment = "ci"
	Production  Environment = "production"
)

// GetEnvironment reads ENV, with CI=true taking precedence. Unknown values
// fall back to development.
func GetEnvironment() Environment {
	if os.Getenv("CI") == "true" {
		return CI
	}
	return ParseEnvironment(os.Getenv("ENV"))
}

// ParseEnvironment accepts the short aliases used in compose files
func ParseEnvironment(value string) Environment {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "production", "prod":
		return Production
	case "test", "testing":
		return Test
	case "ci":
		return CI
	default:
		return Development
	}
}

// IsProduction gates release-mode behavior such as gin's release mode and
// the stricter config validation.
func (e Environment) IsProduction() bool {
	return e == Production
}

// ConsoleLogs reports whether logs should be human readable
func (e Environment) ConsoleLogs() bool {
	return e == Development || e == Test
}
