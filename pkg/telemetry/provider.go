// SPDX-FileCopyrightText: Copyright 2026 ApexID, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry wires the metrics pipeline: an OpenTelemetry meter
// provider backed by a Prometheus exporter over a private registry, and
// the HTTP middleware that records per-request metrics into it.
package telemetry

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/apexid/tokend/pkg/logger"
)

// Config holds the telemetry configuration.
type Config struct {
	// ServiceName identifies the service on exported metrics.
	ServiceName string
	// ServiceVersion identifies the running build.
	ServiceVersion string
	// MetricsEnabled controls whether the Prometheus pipeline is built.
	// When false the meter provider is a no-op and there is no handler.
	MetricsEnabled bool
}

// Option is an option type used to configure the telemetry provider.
type Option func(*Config) error

// WithServiceName sets the service name.
func WithServiceName(serviceName string) Option {
	return func(config *Config) error {
		if serviceName == "" {
			return fmt.Errorf("service name cannot be empty")
		}
		config.ServiceName = serviceName
		return nil
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(serviceVersion string) Option {
	return func(config *Config) error {
		if serviceVersion == "" {
			return fmt.Errorf("service version cannot be empty")
		}
		config.ServiceVersion = serviceVersion
		return nil
	}
}

// WithMetricsEnabled sets the metrics enabled flag.
func WithMetricsEnabled(metricsEnabled bool) Option {
	return func(config *Config) error {
		config.MetricsEnabled = metricsEnabled
		return nil
	}
}

// Provider owns the meter provider and the Prometheus scrape handler.
type Provider struct {
	meterProvider  metric.MeterProvider
	metricsHandler http.Handler
	shutdownFuncs  []func(context.Context) error
}

// NewProvider creates the metrics provider described by the options.
// With metrics disabled it returns a no-op provider whose handler is nil.
func NewProvider(ctx context.Context, options ...Option) (*Provider, error) {
	config := Config{}
	for _, option := range options {
		if err := option(&config); err != nil {
			return nil, err
		}
	}

	if !config.MetricsEnabled {
		logger.Infof("No telemetry configured, using no-op providers")
		return &Provider{
			meterProvider: noop.NewMeterProvider(),
			shutdownFuncs: []func(context.Context) error{},
		}, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(config.ServiceName),
			semconv.ServiceVersion(config.ServiceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource with service name '%s' and version '%s': %w",
			config.ServiceName, config.ServiceVersion, err)
	}

	// A private registry keeps this process's metrics apart from any
	// global state other libraries register into.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)

	logger.Infof("Telemetry providers created successfully")
	return &Provider{
		meterProvider:  meterProvider,
		metricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		shutdownFuncs:  []func(context.Context) error{meterProvider.Shutdown},
	}, nil
}

// MeterProvider returns the meter provider. It is never nil.
func (p *Provider) MeterProvider() metric.MeterProvider {
	return p.meterProvider
}

// MetricsHandler returns the Prometheus scrape handler, or nil when
// metrics are disabled.
func (p *Provider) MetricsHandler() http.Handler {
	return p.metricsHandler
}

// Shutdown gracefully flushes and stops the metrics pipeline.
func (p *Provider) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for i, shutdown := range p.shutdownFuncs {
		if err := shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("provider %d shutdown failed: %w", i, err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown failed with %d errors: %v", len(errs), errs)
	}
	return nil
}
