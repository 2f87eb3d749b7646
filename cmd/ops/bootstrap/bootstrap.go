package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ParameterType selects how a parameter is stored in SSM.
type ParameterType int

const (
	ParamSecureString ParameterType = iota
	ParamString
)

// BootstrapStep is one parameter the API reads at startup.
type BootstrapStep struct {
	Label string

	// SSMCategoryKey is the path below /{env}/atmos/.
	SSMCategoryKey string

	// EnvVar is the configuration variable the parameter feeds. The API
	// resolves it from {EnvVar}_SSM_PARAM.
	EnvVar string

	ParamType ParameterType
	Prompt    string

	// Default is used when the operator enters nothing.
	Default string

	ValidateFn func(ctx context.Context, input string) ValidationResult
	IsSecret   bool

	// Optional steps are skipped on empty input instead of re-prompting.
	Optional bool
}

const maxRetries = 5

var errSkipped = errors.New("parameter skipped by operator")

// BuildInventory lists the Atmos parameters in prompt order.
func BuildInventory(v *Validator) []BootstrapStep {
	return []BootstrapStep{
		{
			Label:          "Weather Provider",
			SSMCategoryKey: "upstream/provider",
			EnvVar:         "WEATHER_PROVIDER",
			ParamType:      ParamString,
			Prompt:         `Upstream weather source: "open-meteo" (no key) or "openweathermap".`,
			Default:        "open-meteo",
			ValidateFn:     v.ValidateProvider,
		},
		{
			Label:          "OpenWeatherMap API Key",
			SSMCategoryKey: "upstream/openweathermap_api_key",
			EnvVar:         "OPENWEATHERMAP_API_KEY",
			ParamType:      ParamSecureString,
			Prompt: `1. Sign in at https://home.openweathermap.org/api_keys.
   2. Copy an active key and paste it here (Enter to skip when using open-meteo):`,
			ValidateFn: v.ValidateOpenWeatherMapKey,
			IsSecret:   true,
			Optional:   true,
		},
		{
			Label:          "CORS Allowed Origins",
			SSMCategoryKey: "security/cors_allowed_origins",
			EnvVar:         "CORS_ALLOWED_ORIGINS",
			ParamType:      ParamString,
			Prompt:         `Comma-separated dashboard origins, or * to allow any:`,
			Default:        "*",
			ValidateFn:     v.ValidateOrigins,
		},
	}
}

// BootstrapRunner walks the inventory: probe SSM, prompt, validate, write.
type BootstrapRunner struct {
	SSM       *SSMManager
	Validator *Validator
	Stdin     io.Reader
	Stderr    io.Writer

	// scanner is shared so buffered input is not lost between prompts.
	scanner   *bufio.Scanner
	inventory []BootstrapStep
}

// NewBootstrapRunner creates a runner on the process's stdin and stderr.
func NewBootstrapRunner(bctx *BootstrapContext) *BootstrapRunner {
	return &BootstrapRunner{
		SSM:       NewSSMManager(bctx),
		Validator: NewValidator(),
		Stdin:     os.Stdin,
		Stderr:    os.Stderr,
	}
}

type stepResult struct {
	Label  string
	EnvVar string
	Path   string
	Action string // written, overwritten, kept, skipped
}

// Run processes every step and returns the results in inventory order.
func (r *BootstrapRunner) Run(ctx context.Context) ([]stepResult, error) {
	inventory := r.inventory
	if inventory == nil {
		inventory = BuildInventory(r.Validator)
	}

	results := make([]stepResult, 0, len(inventory))
	for i, step := range inventory {
		fmt.Fprintf(r.Stderr, "\n[%d/%d] %s\n", i+1, len(inventory), step.Label)

		res, err := r.processStep(ctx, step)
		if err != nil {
			return results, fmt.Errorf("step %q failed: %w", step.Label, err)
		}
		results = append(results, res)
	}

	r.printSummary(results)
	return results, nil
}

func (r *BootstrapRunner) processStep(ctx context.Context, step BootstrapStep) (stepResult, error) {
	path := r.SSM.SSMPath(step.SSMCategoryKey)
	res := stepResult{Label: step.Label, EnvVar: step.EnvVar, Path: path}

	exists, err := r.SSM.ParameterExists(ctx, path)
	if err != nil {
		return res, err
	}
	if exists {
		fmt.Fprintf(r.Stderr, "  Parameter already exists: %s\n", path)
		overwrite, err := r.confirm("  Overwrite? [y/N] ")
		if err != nil {
			return res, fmt.Errorf("reading overwrite choice: %w", err)
		}
		if !overwrite {
			res.Action = "kept"
			return res, nil
		}
	}

	value, err := r.promptAndValidate(ctx, step)
	if errors.Is(err, errSkipped) {
		fmt.Fprintf(r.Stderr, "  Skipped.\n")
		res.Action = "skipped"
		return res, nil
	}
	if err != nil {
		return res, err
	}

	if step.ParamType == ParamSecureString {
		err = r.SSM.PutSecret(ctx, path, value, exists)
	} else {
		err = r.SSM.PutString(ctx, path, value)
	}
	if err != nil {
		return res, err
	}

	res.Action = "written"
	if exists {
		res.Action = "overwritten"
	}
	fmt.Fprintf(r.Stderr, "  Stored: %s\n", path)
	return res, nil
}

func (r *BootstrapRunner) promptAndValidate(ctx context.Context, step BootstrapStep) (string, error) {
	fmt.Fprintf(r.Stderr, "\n  %s\n", step.Prompt)
	if step.Default != "" {
		fmt.Fprintf(r.Stderr, "  (default: %s)\n", step.Default)
	}
	fmt.Fprintln(r.Stderr)

	for attempt := 1; attempt <= maxRetries; attempt++ {
		read := r.readInput
		if step.IsSecret {
			read = r.readSecretInput
		}
		input, err := read("  > ")
		if err != nil {
			return "", fmt.Errorf("reading input for %s: %w", step.Label, err)
		}

		input = strings.TrimSpace(input)
		if input == "" {
			switch {
			case step.Default != "":
				input = step.Default
			case step.Optional:
				return "", errSkipped
			default:
				fmt.Fprintf(r.Stderr, "  A value is required.\n")
				continue
			}
		}

		if step.IsSecret {
			fmt.Fprintf(r.Stderr, "  Received %d chars.\n", len(input))
		}

		if step.ValidateFn != nil {
			vr := step.ValidateFn(ctx, input)
			if !vr.Valid {
				fmt.Fprintf(r.Stderr, "  Validation failed: %s\n", vr.Message)
				continue
			}
			fmt.Fprintf(r.Stderr, "  Validated: %s\n", vr.Message)
		}
		return input, nil
	}

	return "", fmt.Errorf("maximum retries (%d) exceeded for %s", maxRetries, step.Label)
}

func (r *BootstrapRunner) scanLine() (string, error) {
	if r.scanner == nil {
		r.scanner = bufio.NewScanner(r.Stdin)
	}
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return r.scanner.Text(), nil
}

func (r *BootstrapRunner) readInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)
	return r.scanLine()
}

// readSecretInput disables echo when stdin is a terminal and falls back to
// plain line reads for piped input.
func (r *BootstrapRunner) readSecretInput(prompt string) (string, error) {
	fmt.Fprint(r.Stderr, prompt)

	if f, ok := r.Stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(r.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading secret input: %w", err)
		}
		return string(secret), nil
	}
	return r.scanLine()
}

func (r *BootstrapRunner) confirm(prompt string) (bool, error) {
	fmt.Fprint(r.Stderr, prompt)
	line, err := r.scanLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

func (r *BootstrapRunner) printSummary(results []stepResult) {
	fmt.Fprintf(r.Stderr, "\n============================================================\n")
	fmt.Fprintf(r.Stderr, "  Bootstrap Summary\n")
	fmt.Fprintf(r.Stderr, "============================================================\n")
	for _, res := range results {
		fmt.Fprintf(r.Stderr, "  %-14s %s\n", "["+strings.ToUpper(res.Action)+"]", res.Label)
	}
	fmt.Fprintf(r.Stderr, "============================================================\n\n")
}

// WriteBindings prints the {EnvVar}_SSM_PARAM lines the API needs to resolve
// every stored parameter. Skipped steps are omitted.
func WriteBindings(w io.Writer, results []stepResult) error {
	for _, res := range results {
		if res.Action == "skipped" {
			continue
		}
		if _, err := fmt.Fprintf(w, "%s_SSM_PARAM=%s\n", res.EnvVar, res.Path); err != nil {
			return err
		}
	}
	return nil
}
