package config

import (
	"fmt"
	"log"
	"strings"
	"time"
)

type ResilienceConfig struct {
	CircuitBreaker CircuitBreakerConfig `koanf:"circuitbreaker"`
}

type CircuitBreakerConfig struct {
	ConsecutiveFailures uint32        `koanf:"consecutivefailures"`
	ErrorRatePercent    int           `koanf:"errorratepercent"`
	OpenTimeout         time.Duration `koanf:"opentimeout"`
}

// String returns a string representation of the ResilienceConfig.
func (c *ResilienceConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- Circuit Breaker ---\n")
	b.WriteString(fmt.Sprintf("  consecutivefailures: %d\n", c.CircuitBreaker.ConsecutiveFailures))
	b.WriteString(fmt.Sprintf("  errorratepercent: %d\n", c.CircuitBreaker.ErrorRatePercent))
	b.WriteString(fmt.Sprintf("  opentimeout: %v\n", c.CircuitBreaker.OpenTimeout))
	return b.String()
}

func (c *ResilienceConfig) Validate() error {
	if c.CircuitBreaker.ConsecutiveFailures == 0 {
		log.Println("Using default value for resilience.circuitbreaker.consecutivefailures")
		c.CircuitBreaker.ConsecutiveFailures = 5
	}
	if c.CircuitBreaker.OpenTimeout <= 0 {
		log.Println("Using default value for resilience.circuitbreaker.opentimeout")
		c.CircuitBreaker.OpenTimeout = 30 * time.Second
	}
	if c.CircuitBreaker.ErrorRatePercent < 0 || c.CircuitBreaker.ErrorRatePercent > 100 {
		return fmt.Errorf("circuit_breaker.error_rate_percent must be between 0 and 100")
	}
	return nil
}
