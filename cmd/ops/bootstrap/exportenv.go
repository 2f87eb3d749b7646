package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

// ExportEnvFile reads the stored parameters back from SSM and writes them as a
// dotenv file for running the API locally. Missing parameters are left out.
// The file is created with owner-only permissions since it holds secrets.
func ExportEnvFile(ctx context.Context, m *SSMManager, steps []BootstrapStep, path string) (int, error) {
	env := map[string]string{
		"APP_ENV":   "local",
		"LOG_LEVEL": "debug",
	}

	exported := 0
	for _, step := range steps {
		p := m.SSMPath(step.SSMCategoryKey)
		exists, err := m.ParameterExists(ctx, p)
		if err != nil {
			return exported, err
		}
		if !exists {
			continue
		}
		value, err := m.GetParameterValue(ctx, p, step.ParamType == ParamSecureString)
		if err != nil {
			return exported, err
		}
		env[step.EnvVar] = value
		exported++
	}

	if err := godotenv.Write(env, path); err != nil {
		return exported, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return exported, fmt.Errorf("restricting permissions on %s: %w", path, err)
	}
	return exported, nil
}
