// Copyright (c) 2025 The indexsupply CLI Authors
// Licensed under the MIT License. See LICENSE file in the project root for details.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"indexsupply/cli/internal/config"
	"indexsupply/cli/internal/httperrors"
	"indexsupply/cli/internal/keychain"
	"indexsupply/cli/internal/logging"
	"indexsupply/cli/internal/metrics"
	"indexsupply/cli/pkg/indexsupply"
)

// app holds what every API command needs: merged settings, a logger and
// the optional metrics collector.
type app struct {
	cfg     config.Config
	logger  *slog.Logger
	apiKey  string
	metrics *metrics.Collector
}

// loadSettings merges the config file, the environment, command overrides
// and the persistent flags, in increasing order of precedence.
func loadSettings(o config.Overrides) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, err
	}
	env, err := config.FromEnv()
	if err != nil {
		return cfg, err
	}
	if err := cfg.Apply(env); err != nil {
		return cfg, err
	}
	o.APIURL = flagAPIURL
	o.Chain = flagChain
	o.LogLevel = flagLogLevel
	if err := cfg.Apply(o); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// resolveAPIKey returns the --api-key flag, INDEXSUPPLY_API_KEY or the key
// saved by 'indexsupply login', in that order. An empty key is allowed.
func resolveAPIKey() string {
	if flagAPIKey != "" {
		return flagAPIKey
	}
	if v := os.Getenv("INDEXSUPPLY_API_KEY"); v != "" {
		return v
	}
	km, err := keychain.GetManager()
	if err != nil {
		return ""
	}
	key, err := km.LoadAPIKey()
	if err != nil {
		return ""
	}
	return key
}

func newApp(o config.Overrides) (*app, error) {
	cfg, err := loadSettings(o)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewLogger(os.Stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, apiKey: resolveAPIKey()}
	if cfg.MetricsAddr != "" {
		a.metrics = metrics.New(metrics.Config{})
	}
	return a, nil
}

// client returns an API client. extra, when non-nil, receives every metric
// event alongside the Prometheus collector.
func (a *app) client(extra indexsupply.Metrics) *indexsupply.Client {
	var sinks []indexsupply.Metrics
	if a.metrics != nil {
		sinks = append(sinks, a.metrics)
	}
	if extra != nil {
		sinks = append(sinks, extra)
	}
	cfg := indexsupply.Config{
		APIURL:         a.cfg.APIURL,
		APIKey:         a.apiKey,
		Logger:         a.logger,
		Retry:          a.cfg.Retry.Policy(),
		RequestTimeout: time.Duration(a.cfg.RequestTimeout),
		UserAgent:      "indexsupply-cli/" + Version,
	}
	switch len(sinks) {
	case 0:
	case 1:
		cfg.Metrics = sinks[0]
	default:
		cfg.Metrics = teeMetrics(sinks)
	}
	return indexsupply.New(cfg)
}

// serveMetrics starts the metrics endpoint in g when one is configured.
func (a *app) serveMetrics(ctx context.Context, g *errgroup.Group) {
	if a.metrics == nil {
		return
	}
	addr := a.cfg.MetricsAddr
	a.logger.Info("serving metrics", "addr", addr)
	g.Go(func() error {
		if err := a.metrics.Serve(ctx, addr); err != nil {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
}

// report prints err for a human and returns it for the exit status.
// Cancellation is not an error.
func (a *app) report(err error, activity string) error {
	if err == nil || errors.Is(err, context.Canceled) {
		return nil
	}
	var e *indexsupply.Error
	if errors.As(err, &e) && e.Status == 0 && e.Err != nil {
		netErr := httperrors.FormatNetworkError(e.Err, activity, httperrors.ExtractHostFromURL(a.cfg.APIURL))
		return errors.New(logging.Mask(netErr.Error()))
	}
	logging.PresentQueryError(err)
	return errors.New(logging.PresentError(activity, err))
}

// teeMetrics fans metric events out to several sinks.
type teeMetrics []indexsupply.Metrics

func (t teeMetrics) Request(path string, status int, elapsed time.Duration) {
	for _, m := range t {
		m.Request(path, status, elapsed)
	}
}

func (t teeMetrics) State(from, to indexsupply.State) {
	for _, m := range t {
		m.State(from, to)
	}
}

func (t teeMetrics) Frame(rows int, blockHeight uint64) {
	for _, m := range t {
		m.Frame(rows, blockHeight)
	}
}

func (t teeMetrics) Retry(kind indexsupply.Kind, delay time.Duration) {
	for _, m := range t {
		m.Retry(kind, delay)
	}
}

func (t teeMetrics) Bytes(n int) {
	for _, m := range t {
		m.Bytes(n)
	}
}

// readQuery returns the SQL from args or from file ("-" reads stdin).
func readQuery(args []string, file string) (string, error) {
	var q string
	switch {
	case file == "-":
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		q = string(b)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", err
		}
		q = string(b)
	default:
		q = strings.Join(args, " ")
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return "", errors.New("a query is required: pass it as an argument or with --file")
	}
	return q, nil
}
