package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Env         string
	ServiceName string
	HostName    string

	NewRelicLicenseKey string

	OtelExporterOTLPEndpoint string
	OtelExporterOTLPEncoding string

	LogLevel string

	Addr               string
	CORSAllowedOrigins []string

	Telemetry TelemetryConfig
}

// TelemetryConfig tunes the batching pipelines. Zero values mean "use the default".
type TelemetryConfig struct {
	ExportInterval     time.Duration `yaml:"export_interval"`
	ExportTimeout      time.Duration `yaml:"export_timeout"`
	MaxQueueSize       int           `yaml:"max_queue_size"`
	MaxExportBatchSize int           `yaml:"max_export_batch_size"`
	MetricInterval     time.Duration `yaml:"metric_interval"`
}

const (
	DefaultOTLPEndpoint = "https://otlp.nr-data.net"
	EncodingJSON        = "json"
	EncodingProtobuf    = "protobuf"
)

func Load() (*Config, error) {
	cfg := &Config{
		Env:                      os.Getenv("ENV"),
		ServiceName:              os.Getenv("SERVICE_NAME"),
		HostName:                 os.Getenv("HOST_NAME"),
		NewRelicLicenseKey:       os.Getenv("NEWRELIC_LICENSE_KEY"),
		OtelExporterOTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		OtelExporterOTLPEncoding: os.Getenv("OTEL_EXPORTER_OTLP_ENCODING"),
		LogLevel:                 os.Getenv("LOG_LEVEL"),
		Addr:                     os.Getenv("ADDR"),
		CORSAllowedOrigins:       splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
	}

	// Load from YAML file if available
	if err := cfg.LoadFromYAML("config.yaml"); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

func (c *Config) LoadFromYAML(path string) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is not an error
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	var yamlConfig struct {
		Telemetry TelemetryConfig `yaml:"telemetry"`
	}

	if err := yaml.Unmarshal(data, &yamlConfig); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	if yamlConfig.Telemetry.ExportInterval > 0 {
		c.Telemetry.ExportInterval = yamlConfig.Telemetry.ExportInterval
	}
	if yamlConfig.Telemetry.ExportTimeout > 0 {
		c.Telemetry.ExportTimeout = yamlConfig.Telemetry.ExportTimeout
	}
	if yamlConfig.Telemetry.MaxQueueSize > 0 {
		c.Telemetry.MaxQueueSize = yamlConfig.Telemetry.MaxQueueSize
	}
	if yamlConfig.Telemetry.MaxExportBatchSize > 0 {
		c.Telemetry.MaxExportBatchSize = yamlConfig.Telemetry.MaxExportBatchSize
	}
	if yamlConfig.Telemetry.MetricInterval > 0 {
		c.Telemetry.MetricInterval = yamlConfig.Telemetry.MetricInterval
	}

	return nil
}

func (c *Config) SetDefaults() {
	if c.Env == "" {
		c.Env = "development"
	}
	if c.ServiceName == "" {
		c.ServiceName = "beacon"
	}
	if c.HostName == "" {
		c.HostName = "localhost"
	}
	if c.OtelExporterOTLPEndpoint == "" {
		c.OtelExporterOTLPEndpoint = DefaultOTLPEndpoint
	}
	if c.OtelExporterOTLPEncoding == "" {
		c.OtelExporterOTLPEncoding = EncodingJSON
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Addr == "" {
		c.Addr = "127.0.0.1:3000"
	}
	if len(c.CORSAllowedOrigins) == 0 {
		c.CORSAllowedOrigins = []string{"*"}
	}
}

func (c *Config) validate() error {
	if c.NewRelicLicenseKey == "" {
		return fmt.Errorf("NEWRELIC_LICENSE_KEY is required")
	}
	switch c.OtelExporterOTLPEncoding {
	case EncodingJSON, EncodingProtobuf:
	default:
		return fmt.Errorf("OTEL_EXPORTER_OTLP_ENCODING must be %q or %q, got %q",
			EncodingJSON, EncodingProtobuf, c.OtelExporterOTLPEncoding)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
