package config

import (
	"fmt"
	"log"
	"net"
	"strings"
)

// defaultPProfAddr keeps the profiler on loopback unless configured otherwise.
const defaultPProfAddr = "localhost:6060"

// PProfConfig controls the net/http/pprof listener, which runs apart from the API server.
type PProfConfig struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

func (c *PProfConfig) String() string {
	var b strings.Builder
	b.WriteString("\n--- PProf ---\n")
	b.WriteString(fmt.Sprintf("  enabled: %t\n", c.Enabled))
	if c.Enabled {
		b.WriteString(fmt.Sprintf("  addr: %s\n", c.Addr))
	}
	return b.String()
}

func (c *PProfConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		log.Println("Using default value for pprof.addr")
		c.Addr = defaultPProfAddr
	}
	if _, port, err := net.SplitHostPort(c.Addr); err != nil || port == "" {
		return fmt.Errorf("pprof.addr must be host:port, got %q", c.Addr)
	}
	return nil
}
