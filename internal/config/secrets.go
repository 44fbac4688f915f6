package config

import (
	"fmt"
	"os"
	"strings"
)

// ResolveSecret returns the secret named by envName. When envName_FILE is
// set the secret is read from that file, trimmed, and envName is ignored.
// Neither being set yields "".
func ResolveSecret(envName string) (string, error) {
	fileEnv := envName + "_FILE"
	path := os.Getenv(fileEnv)
	if path == "" {
		return os.Getenv(envName), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		// Name the variable, never the content.
		return "", fmt.Errorf("failed to read secret from %s=%s: %w", fileEnv, path, err)
	}
	return strings.TrimSpace(string(content)), nil
}
