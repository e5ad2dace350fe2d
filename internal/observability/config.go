package observability

import (
	"os"
	"strconv"
	"strings"

	"github.com/smallbiznis/roomwatt/internal/config"
)

// Config holds observability configuration derived from environment variables.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

const (
	productionSamplingRatio  = 0.1
	developmentSamplingRatio = 1.0
)

// LoadConfig derives logging and telemetry settings from the application
// config. Development environments sample every trace and log to the console.
// Exporting defaults to on only in production.
func LoadConfig(cfg config.Config) Config {
	serviceName := getenv("OTEL_SERVICE_NAME", strings.TrimSpace(cfg.AppName))
	if serviceName == "" {
		serviceName = "roomwatt"
	}
	environment := strings.TrimSpace(cfg.Environment)
	dev := isDevEnv(environment)

	logFormat := "json"
	if dev {
		logFormat = "console"
	}
	logFormat = strings.ToLower(getenv("LOG_FORMAT", logFormat))

	otlpProtocol := strings.ToLower(getenv("OTEL_EXPORTER_OTLP_PROTOCOL", "grpc"))
	if tracesProtocol := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_TRACES_PROTOCOL")); tracesProtocol != "" {
		otlpProtocol = strings.ToLower(tracesProtocol)
	}

	defaultRatio := productionSamplingRatio
	if dev {
		defaultRatio = developmentSamplingRatio
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          environment,
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogFormat:            logFormat,
		OtelEnabled:          getenvBool("OTEL_ENABLED", cfg.IsProduction()),
		OtelExporterEndpoint: getenv("OTEL_EXPORTER_OTLP_ENDPOINT", strings.TrimSpace(cfg.OTLPEndpoint)),
		OtelExporterProtocol: otlpProtocol,
		OtelSamplingRatio:    samplingRatio(os.Getenv("OTEL_SAMPLING_RATIO"), defaultRatio),
	}
}

func (c Config) Debug() bool {
	level := strings.ToLower(strings.TrimSpace(c.LogLevel))
	if level == "debug" {
		return true
	}
	return isDevEnv(c.Environment)
}

func isDevEnv(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	switch env {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func getenv(key, def string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

// samplingRatio parses a ratio in [0, 1]; anything else falls back to def.
func samplingRatio(raw string, def float64) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(raw, 64)
	if err != nil || parsed < 0 || parsed > 1 {
		return def
	}
	return parsed
}
