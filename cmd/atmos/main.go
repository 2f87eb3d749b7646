// Package main implements the atmos terminal dashboard.
//
// It queries a running Atmos API for one or more locations and prints a
// dashboard for each: current conditions, details, and a five-day forecast.
//
// Usage:
//
//	go run ./cmd/atmos
//	go run ./cmd/atmos -city London -city "São Paulo"
//	go run ./cmd/atmos -api https://weather.example.com -lat 51.5 -lon -0.12
//
// With no location flags the default city is shown. Locations are fetched
// concurrently and printed in the order they were given.
package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"atmos/internal/dashboard"
	"atmos/internal/external"
)

const (
	defaultAPIURL  = "http://localhost:8080"
	userAgent      = "Atmos-Dashboard/1.0"
	maxConcurrency = 4
)

// errSearchFailed is returned when at least one dashboard ended in the error state.
var errSearchFailed = errors.New("one or more locations could not be loaded")

// cityList collects repeated -city flags.
type cityList []string

func (c *cityList) String() string {
	return strings.Join(*c, ",")
}

func (c *cityList) Set(v string) error {
	*c = append(*c, v)
	return nil
}

// options are the parsed command-line settings.
type options struct {
	apiURL   string
	queries  []dashboard.Query
	timeout  time.Duration
	location *time.Location
	verbose  bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	switch {
	case err == nil:
	case errors.Is(err, flag.ErrHelp):
	case errors.Is(err, errSearchFailed):
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
}

// run parses args, fetches every requested location and writes the rendered
// dashboards to stdout.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	httpClient := &http.Client{Timeout: opts.timeout}
	newBase := func(name string) *external.BaseClient {
		return external.NewBaseClient(httpClient, name, external.DefaultBreakerSettings(), userAgent)
	}
	client := dashboard.NewClient(newBase("atmos-api-weather"), newBase("atmos-api-forecast"), opts.apiURL, logger)
	renderer := dashboard.NewRenderer(opts.location)

	outputs := make([][]byte, len(opts.queries))
	failed := make([]bool, len(opts.queries))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for i, q := range opts.queries {
		g.Go(func() error {
			s := client.Search(gCtx, dashboard.NewState(), q)
			failed[i] = s.Status == dashboard.StatusError

			var buf bytes.Buffer
			if err := renderer.Render(&buf, s); err != nil {
				return fmt.Errorf("rendering dashboard %d: %w", i+1, err)
			}
			outputs[i] = buf.Bytes()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	anyFailed := false
	for i, out := range outputs {
		if i > 0 {
			if _, err := io.WriteString(stdout, "\n"); err != nil {
				return err
			}
		}
		if _, err := stdout.Write(out); err != nil {
			return fmt.Errorf("writing dashboard: %w", err)
		}
		anyFailed = anyFailed || failed[i]
	}

	if anyFailed {
		return errSearchFailed
	}
	return nil
}

// parseFlags turns args into options. Latitude and longitude must be given
// together; with no location at all the default city is used.
func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("atmos", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var cities cityList
	apiURL := fs.String("api", defaultAPIURL, "Base URL of the Atmos API")
	fs.Var(&cities, "city", "City to show (repeatable)")
	lat := fs.Float64("lat", 0, "Latitude of a location to show (requires -lon)")
	lon := fs.Float64("lon", 0, "Longitude of a location to show (requires -lat)")
	timeout := fs.Duration("timeout", 15*time.Second, "Per-request timeout (0 disables)")
	tz := fs.String("tz", "Local", "IANA time zone for sunrise and sunset")
	verbose := fs.Bool("v", false, "Log requests to stderr")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Atmos Dashboard\n\n")
		fmt.Fprintf(stderr, "Usage:\n")
		fmt.Fprintf(stderr, "  atmos [-api URL] [-city NAME]... [-lat LAT -lon LON]\n\n")
		fmt.Fprintf(stderr, "Flags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if set["lat"] != set["lon"] {
		return nil, errors.New("-lat and -lon must be given together")
	}

	loc, err := time.LoadLocation(*tz)
	if err != nil {
		return nil, fmt.Errorf("invalid -tz %q: %w", *tz, err)
	}

	opts := &options{
		apiURL:   *apiURL,
		timeout:  *timeout,
		location: loc,
		verbose:  *verbose,
	}
	for _, c := range cities {
		if strings.TrimSpace(c) == "" {
			continue
		}
		opts.queries = append(opts.queries, dashboard.CityQuery(c))
	}
	if set["lat"] {
		opts.queries = append(opts.queries, dashboard.LocationQuery(*lat, *lon))
	}
	if len(opts.queries) == 0 {
		opts.queries = []dashboard.Query{dashboard.CityQuery(dashboard.DefaultCity)}
	}
	return opts, nil
}
