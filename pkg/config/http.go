package config

import (
	"fmt"
	"strings"
	"time"
)

type HTTPConfig struct {
	Enabled        bool `koanf:"enabled"`
	Port           int  `koanf:"port"`
	MaxHeaderBytes int  `koanf:"maxheaderbytes"`
	Timeout        struct {
		Read       time.Duration `koanf:"read"`
		Write      time.Duration `koanf:"write"`
		Idle       time.Duration `koanf:"idle"`
		ReadHeader time.Duration `koanf:"readheader"`
	} `koanf:"timeout"`
}

// String returns a string representation of the HTTPConfig.
func (c *HTTPConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- HTTP ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	b.WriteString(fmt.Sprintf("  port: %d\n", c.Port))
	b.WriteString(fmt.Sprintf("  timeout.read: %v\n", c.Timeout.Read))
	b.WriteString(fmt.Sprintf("  timeout.write: %v\n", c.Timeout.Write))
	b.WriteString(fmt.Sprintf("  timeout.idle: %v\n", c.Timeout.Idle))
	b.WriteString(fmt.Sprintf("  timeout.readheader: %v\n", c.Timeout.ReadHeader))
	return b.String()
}

func (c *HTTPConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid HTTP server port: %d", c.Port)
	}
	if c.Timeout.Read <= 0 {
		return fmt.Errorf("invalid HTTP server read timeout: %v", c.Timeout.Read)
	}
	// zero disables the write timeout, which the event stream needs
	if c.Timeout.Write < 0 {
		return fmt.Errorf("invalid HTTP server write timeout: %v", c.Timeout.Write)
	}
	if c.Timeout.Idle <= 0 {
		return fmt.Errorf("invalid HTTP server idle timeout: %v", c.Timeout.Idle)
	}
	if c.Timeout.ReadHeader <= 0 {
		return fmt.Errorf("invalid HTTP server read header timeout: %v", c.Timeout.ReadHeader)
	}
	return nil
}
