package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

const (
	ServiceHTTP      = "http"
	ServiceLifecycle = "lifecycle"
	ServiceTracker   = "tracker"
	ServiceBackend   = "backend"
)

// RegisterMetrics registers metrics for the specified services
func RegisterMetrics(services []string, logger logrus.FieldLogger) {
	// Always register Go and process metrics
	registerIfNotExists(collectors.NewGoCollector(), "go_collector", logger)
	registerIfNotExists(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), "process_collector", logger)

	for _, service := range services {
		switch service {
		case ServiceHTTP:
			registerHTTPMetrics(logger)
		case ServiceLifecycle:
			registerLifecycleMetrics(logger)
		case ServiceTracker:
			registerTrackerMetrics(logger)
		case ServiceBackend:
			registerBackendMetrics(logger)
		default:
			logger.Warnf("Unknown service type for metrics registration: %s", service)
		}
	}
}

// registerIfNotExists registers a collector if it's not already registered
func registerIfNotExists(collector prometheus.Collector, name string, logger logrus.FieldLogger) {
	if err := prometheus.Register(collector); err != nil {
		var alreadyRegErr prometheus.AlreadyRegisteredError
		if errors.As(err, &alreadyRegErr) {
			logger.Debugf("%s already registered", name)
		} else {
			logger.Errorf("Failed to register %s: %v", name, err)
		}
	}
}

func registerHTTPMetrics(logger logrus.FieldLogger) {
	registerIfNotExists(httpRequestsTotal, "http_requests_total", logger)
	registerIfNotExists(httpRequestDuration, "http_request_duration", logger)
	registerIfNotExists(httpErrorsTotal, "http_errors_total", logger)
}

func registerLifecycleMetrics(logger logrus.FieldLogger) {
	registerIfNotExists(lifecycleTransfersTotal, "lifecycle_transfers_total", logger)
}

func registerTrackerMetrics(logger logrus.FieldLogger) {
	registerIfNotExists(trackerPollsTotal, "tracker_polls_total", logger)
	registerIfNotExists(trackerSettleDuration, "tracker_settle_seconds", logger)
}

func registerBackendMetrics(logger logrus.FieldLogger) {
	registerIfNotExists(backendRequestsTotal, "backend_requests_total", logger)
	registerIfNotExists(backendRequestDuration, "backend_request_duration", logger)
}
