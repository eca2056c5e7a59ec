package vision

import (
	"fmt"
	"os"
	"strings"

	"interiorDesignAi/internal/design"
)

// DefaultCredentialEnv lists the variables checked for the API key, in order.
var DefaultCredentialEnv = []string{"GEMINI_API_KEY", "API_KEY"}

// Credentials supplies the service API key.
type Credentials interface {
	APIKey() (string, error)
}

// EnvCredentials reads the key from the environment on every call so that a
// key exported after startup is picked up by the next request.
type EnvCredentials struct {
	Vars []string
}

// APIKey returns the first non-empty variable.
func (e EnvCredentials) APIKey() (string, error) {
	vars := e.Vars
	if len(vars) == 0 {
		vars = DefaultCredentialEnv
	}
	for _, name := range vars {
		if value := strings.TrimSpace(os.Getenv(name)); value != "" {
			return value, nil
		}
	}
	return "", fmt.Errorf("%w: set %s", design.ErrConfig, strings.Join(vars, " or "))
}

// StaticCredentials is a fixed key, mostly for tests.
type StaticCredentials string

// APIKey implements Credentials.
func (s StaticCredentials) APIKey() (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", design.ErrConfig
	}
	return string(s), nil
}
