package zenodo

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// Environment variables holding the access tokens for the two
// environments. The sandbox and production tokens are separate
// credentials issued by separate services.
const (
	EnvToken        = "ZENODO_TOKEN"
	EnvSandboxToken = "ZENODO_SANDBOX_TOKEN"
)

// TokenFromEnv returns the access token for the selected environment.
// A .env file in the working directory is loaded first if present; OS
// environment variables take precedence over its values. The token is
// never logged.
func TokenFromEnv(sandbox bool) (string, error) {
	_ = godotenv.Load()

	name := EnvToken
	if sandbox {
		name = EnvSandboxToken
	}
	token := os.Getenv(name)
	if token == "" {
		return "", &AuthError{Message: fmt.Sprintf("set the %s environment variable", name)}
	}
	return token, nil
}
