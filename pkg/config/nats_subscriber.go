package config

import (
	"fmt"
	"strings"
	"time"
)

type SubscriberConfig struct {
	Enabled bool   `koanf:"enabled"`
	Subject string `koanf:"subject"`
	// Consumer names a durable consumer; empty means an ephemeral one per process.
	Consumer string        `koanf:"consumer"`
	Batch    int           `koanf:"batch"`
	Timeout  time.Duration `koanf:"timeout"`
	Interval time.Duration `koanf:"interval"`
	Workers  int           `koanf:"workers"`
}

// String returns a string representation of the NATS Subscriber configuration.
func (c *SubscriberConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- NATS Subscriber ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	b.WriteString(fmt.Sprintf("  subject: %s\n", c.Subject))
	b.WriteString(fmt.Sprintf("  consumer: %s\n", c.Consumer))
	b.WriteString(fmt.Sprintf("  batch: %d\n", c.Batch))
	b.WriteString(fmt.Sprintf("  timeout: %s\n", c.Timeout))
	b.WriteString(fmt.Sprintf("  interval: %s\n", c.Interval))
	b.WriteString(fmt.Sprintf("  workers: %d\n", c.Workers))
	return b.String()
}

func (c *SubscriberConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Subject == "" {
		c.Subject = "products.>"
	}
	if c.Batch <= 0 {
		c.Batch = 1
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("SubscriberConfig: timeout must be greater than zero")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("SubscriberConfig: interval must be greater than zero")
	}
	return nil
}
