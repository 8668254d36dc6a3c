package observability

import (
	"jobapplicator/internal/config"
)

const defaultServiceName = "jobapplicator"

// GetObservabilityConfig derives the manager settings from the observability
// section. Tracing and metrics switches fold into the sample rate and the
// Prometheus toggle; a nil config turns everything off.
func GetObservabilityConfig(cfg *config.Config, version string) ObservabilityConfig {
	if cfg == nil {
		return ObservabilityConfig{ServiceName: defaultServiceName, ServiceVersion: version}
	}
	obs := cfg.Observability

	serviceName := obs.ServiceName
	if serviceName == "" {
		serviceName = defaultServiceName
	}
	serviceVersion := obs.ServiceVersion
	if serviceVersion == "" {
		serviceVersion = version
	}

	return ObservabilityConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		Enabled:        obs.Enabled,
		ConsoleOutput:  obs.ConsoleOutput || obs.Console.Enabled,
		PrettyPrint:    obs.Console.PrettyPrint,
		SampleRate:     traceSampleRate(obs),
		Prometheus: PrometheusConfig{
			Enabled:  obs.Prometheus.Enabled && obs.Metrics.Enabled,
			Endpoint: obs.Prometheus.Endpoint,
			Port:     obs.Prometheus.Port,
		},
	}
}

// traceSampleRate prefers tracing.sampleRate over the top-level rate and
// clamps the result to [0, 1]. Disabled tracing samples nothing.
func traceSampleRate(obs config.ObservabilityConfig) float64 {
	if !obs.Tracing.Enabled {
		return 0
	}
	rate := obs.SampleRate
	if obs.Tracing.SampleRate > 0 {
		rate = obs.Tracing.SampleRate
	}
	switch {
	case rate < 0:
		return 0
	case rate > 1:
		return 1
	}
	return rate
}
