package observability

import (
	"testing"

	"github.com/smallbiznis/songlake/internal/config"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OTEL_ENABLED", "")
	t.Setenv("LOG_FORMAT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "")

	cfg := LoadConfig(config.Config{AppName: "songlake", Environment: "production", PushgatewayURL: "http://pgw:9091"})
	if cfg.OtelEnabled {
		t.Fatalf("expected tracing disabled by default")
	}
	if cfg.LogFormat != "json" || cfg.OtelExporterProtocol != "grpc" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.Debug() {
		t.Fatalf("production info logging is not debug")
	}
	if got := provideMetricsConfig(cfg).PushgatewayURL; got != "http://pgw:9091" {
		t.Fatalf("pushgateway url not carried, got %q", got)
	}
}

func TestTracesProtocolOverride(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL", "HTTP")

	cfg := LoadConfig(config.Config{Environment: "local"})
	if cfg.OtelExporterProtocol != "http" {
		t.Fatalf("expected http, got %q", cfg.OtelExporterProtocol)
	}
	if cfg.ServiceName != "songlake" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if !cfg.Debug() {
		t.Fatalf("local environment logs at debug")
	}
}
