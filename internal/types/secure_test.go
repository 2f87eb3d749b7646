package types

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "owm-key-0123456789abcdef"

func TestSecretString_NeverPrints(t *testing.T) {
	s := SecretString(testAPIKey)

	for _, verb := range []string{"%s", "%v", "%+v"} {
		out := fmt.Sprintf(verb, s)
		assert.NotContains(t, out, testAPIKey, "verb %s leaked the secret", verb)
		assert.Equal(t, redactedPlaceholder, out)
	}
}

func TestSecretString_MarshalJSON_InStruct(t *testing.T) {
	type providerSettings struct {
		APIKey SecretString `json:"api_key"`
		Name   string       `json:"name"`
	}

	data, err := json.Marshal(providerSettings{APIKey: SecretString(testAPIKey), Name: "openweathermap"})
	require.NoError(t, err)

	assert.False(t, strings.Contains(string(data), testAPIKey))
	assert.JSONEq(t, `{"api_key":"***REDACTED***","name":"openweathermap"}`, string(data))
}

func TestSecretString_Unmask(t *testing.T) {
	s := SecretString(testAPIKey)
	assert.Equal(t, testAPIKey, s.Unmask())
	assert.True(t, s.IsSet())
	assert.False(t, SecretString("").IsSet())
}

func TestSecretString_GoSyntaxAndLogs(t *testing.T) {
	s := SecretString(testAPIKey)
	assert.NotContains(t, fmt.Sprintf("%#v", s), testAPIKey)

	var buf strings.Builder
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	logger.Info("provider configured", "api_key", s)

	assert.NotContains(t, buf.String(), testAPIKey)
	assert.Contains(t, buf.String(), `"api_key":"***REDACTED***"`)
}
