package metrics

// Package metrics provides Prometheus metrics for the umbra interface.
//
// This package includes:
// - HTTP request metrics for the local API (count, latency, errors)
// - Transfer lifecycle, confirmation tracker and backend client metrics
// - Metrics HTTP server on configurable port
//
// Usage:
//   import "github.com/umbra-research/umbra-interface/internal/metrics"
//
//   metricsServer := metrics.StartMetricsServer(cfg.Metrics, []string{metrics.ServiceHTTP}, logger)
//   defer metricsServer.Stop(context.Background())
//
//   e.Use(metrics.HTTPMiddleware())
