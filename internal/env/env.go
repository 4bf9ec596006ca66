package env

import (
	"os"
	"strings"
)

const (
	environmentVariableNameDomain = "OPENSANDBOX_DOMAIN"
	environmentVariableNameAPIKey = "OPENSANDBOX_API_KEY"
	environmentVariableNameDebug  = "OPENSANDBOX_DEBUG"
)

// DomainFromEnvironment returns the service domain configured through the
// environment, or "" when unset.
func DomainFromEnvironment() string {
	return os.Getenv(environmentVariableNameDomain)
}

// APIKeyFromEnvironment returns the API key configured through the
// environment, or "" when unset.
func APIKeyFromEnvironment() string {
	return os.Getenv(environmentVariableNameAPIKey)
}

// DebugFromEnvironment reports whether wire-level debug dumping was requested.
// The second value reports whether the variable was set at all.
func DebugFromEnvironment() (bool, bool) {
	value := strings.ToLower(os.Getenv(environmentVariableNameDebug))
	if value == "" {
		return false, false
	}
	return value == "true" || value == "yes" || value == "y" || value == "1", true
}
