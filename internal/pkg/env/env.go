package env

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
)

var Env map[string]string

func GetEnv(key, def string) string {
	// First check our loaded Env map
	if val, ok := Env[key]; ok {
		return val
	}
	// Fallback to OS environment variables (for Docker/tests)
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// GetEnvInt parses an integer setting and falls back to def on empty or invalid values.
func GetEnvInt(key string, def int) int {
	raw := strings.TrimSpace(GetEnv(key, ""))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warnf("[Env] %s=%q is not an integer, using %d", key, raw, def)
		return def
	}
	return v
}

// GetEnvBool accepts true/false/1/0/yes/no.
func GetEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(GetEnv(key, ""))) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

func SetupEnvFile() {
	// Look for .env file in project root
	envFiles := []string{
		".env",          // Current directory
		"../../.env",    // From cmd/translafox to project root
		"../../../.env", // Fallback for deeper nesting
	}

	var err error
	for _, envFile := range envFiles {
		Env, err = godotenv.Read(envFile)
		if err == nil {
			return
		}
	}

	// Containers inject configuration through the process environment only.
	Env = map[string]string{}
	log.Warn("[Env] No .env file found, using process environment")
}

// MissingKeys returns the keys that resolve to an empty value.
func MissingKeys(keys ...string) []string {
	var missing []string
	for _, k := range keys {
		if strings.TrimSpace(GetEnv(k, "")) == "" {
			missing = append(missing, k)
		}
	}
	return missing
}

// MustHaveEnv panics when any of the given keys is unset. Used at startup so a
// misconfigured deployment fails fast instead of half-working.
func MustHaveEnv(keys ...string) {
	if missing := MissingKeys(keys...); len(missing) > 0 {
		panic(fmt.Sprintf("missing required environment variables: %s", strings.Join(missing, ", ")))
	}
}

func IsDev() bool {
	return GetEnv("APP_ENV", "prod") == "dev"
}
