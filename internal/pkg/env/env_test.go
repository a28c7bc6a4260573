package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func withEnv(t *testing.T, values map[string]string) {
	t.Helper()
	original := Env
	Env = values
	t.Cleanup(func() { Env = original })
}

func TestGetEnvPrefersLoadedFile(t *testing.T) {
	withEnv(t, map[string]string{"TF_TEST_KEY": "from-file"})
	t.Setenv("TF_TEST_KEY", "from-os")

	assert.Equal(t, "from-file", GetEnv("TF_TEST_KEY", "default"))
}

func TestGetEnvFallsBackToOSAndDefault(t *testing.T) {
	withEnv(t, map[string]string{})
	t.Setenv("TF_TEST_OS_ONLY", "os")

	assert.Equal(t, "os", GetEnv("TF_TEST_OS_ONLY", "default"))
	assert.Equal(t, "default", GetEnv("TF_TEST_UNSET", "default"))
}

func TestGetEnvIntAndBool(t *testing.T) {
	withEnv(t, map[string]string{
		"WORKERS": "7",
		"BROKEN":  "seven",
		"ATOMIC":  "no",
		"VERBOSE": "1",
		"GARBAGE": "maybe",
	})

	assert.Equal(t, 7, GetEnvInt("WORKERS", 3))
	assert.Equal(t, 3, GetEnvInt("BROKEN", 3))
	assert.Equal(t, 3, GetEnvInt("MISSING", 3))

	assert.False(t, GetEnvBool("ATOMIC", true))
	assert.True(t, GetEnvBool("VERBOSE", false))
	assert.True(t, GetEnvBool("GARBAGE", true))
}

func TestMustHaveEnv(t *testing.T) {
	withEnv(t, map[string]string{"DB_USER": "tf", "DB_NAME": ""})

	assert.Equal(t, []string{"DB_NAME"}, MissingKeys("DB_USER", "DB_NAME"))
	assert.NotPanics(t, func() { MustHaveEnv("DB_USER") })
	assert.PanicsWithValue(t, "missing required environment variables: DB_NAME", func() {
		MustHaveEnv("DB_USER", "DB_NAME")
	})
}
