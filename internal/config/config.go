package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/abgdnv/productroom/pkg/config"
	"github.com/abgdnv/productroom/pkg/config/configloader"
)

var _ configloader.Validator = (*Config)(nil)

const (
	defaultOpTimeout = 5 * time.Second
	defaultQueueSize = 64
)

type Config struct {
	HTTPServer config.HTTPConfig       `koanf:"server"`
	Database   config.DatabaseConfig   `koanf:"database"`
	Log        config.LogConfig        `koanf:"log"`
	PProf      config.PProfConfig      `koanf:"pprof"`
	GRPC       config.GrpcServerConfig `koanf:"grpc"`
	Shutdown   config.ShutdownConfig   `koanf:"shutdown"`
	NATS       config.NATSConfig       `koanf:"nats"`
	Resilience config.ResilienceConfig `koanf:"resilience"`
	Telemetry  config.TelemetryConfig  `koanf:"telemetry"`
	Service    ServiceConfig           `koanf:"service"`
	Console    ConsoleConfig           `koanf:"console"`
}

// ServiceConfig tunes the product service worker.
type ServiceConfig struct {
	// OpTimeout bounds a single store operation.
	OpTimeout time.Duration `koanf:"optimeout"`
	// QueueSize is how many operations may wait for the worker before submitters block.
	QueueSize int `koanf:"queuesize"`
}

type ConsoleConfig struct {
	Enabled bool `koanf:"enabled"`
}

func (c *ServiceConfig) Validate() error {
	if c.OpTimeout < 0 {
		return fmt.Errorf("service.optimeout must not be negative: %v", c.OpTimeout)
	}
	if c.OpTimeout == 0 {
		c.OpTimeout = defaultOpTimeout
	}
	if c.QueueSize < 0 {
		return fmt.Errorf("service.queuesize must not be negative: %d", c.QueueSize)
	}
	if c.QueueSize == 0 {
		c.QueueSize = defaultQueueSize
	}
	return nil
}

func (c *Config) String() string {
	var b strings.Builder
	b.WriteString(c.HTTPServer.String())
	b.WriteString(c.Database.String())
	b.WriteString(c.GRPC.String())
	b.WriteString(c.NATS.String())
	b.WriteString(c.Resilience.String())
	b.WriteString(c.Telemetry.String())
	b.WriteString(c.Log.String())
	b.WriteString(c.PProf.String())
	b.WriteString(c.Shutdown.String())

	b.WriteString("\n--- Service ---\n")
	b.WriteString(fmt.Sprintf("  service.optimeout: %s\n", c.Service.OpTimeout))
	b.WriteString(fmt.Sprintf("  service.queuesize: %d\n", c.Service.QueueSize))
	b.WriteString(fmt.Sprintf("  console.enabled: %t\n", c.Console.Enabled))
	return b.String()
}

// Validate checks every section and fills in defaults where a section allows them.
func (c *Config) Validate() error {
	validators := []configloader.Validator{
		&c.HTTPServer,
		&c.Database,
		&c.Log,
		&c.PProf,
		&c.Shutdown,
		&c.GRPC,
		&c.NATS,
		&c.Telemetry,
		&c.Service,
	}
	if c.NATS.Enabled {
		validators = append(validators, &c.Resilience)
	}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}
