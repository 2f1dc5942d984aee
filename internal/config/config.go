// Package config builds the immutable configuration record injected into
// both role engines at startup. No package in this module reads os.Getenv
// directly outside of here (spec §9: "no globals in the core").
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/M4GNV5/iso15118/internal/xerr"
)

// Config is the full set of recognized environment keys from spec §6,
// resolved once and handed to whichever engine (EVCC or SECC) is started.
// Fields irrelevant to a given role are simply left at their defaults.
type Config struct {
	NetworkInterface string
	Iface            *net.Interface

	SECCControllerSim bool
	SECCEnforceTLS    bool

	EVCCControllerSim bool
	EVCCUseTLS        bool
	EVCCEnforceTLS    bool

	PKIPath string

	RedisHost string
	RedisPort int

	LogLevel string
}

// Load reads a .env file if present (teacher's badger-backed persistence
// plays the role of durable state; this plays the role of the original
// Python implementation's environs.Env.read_env), then resolves every key
// against the process environment, falling back to the documented default.
// envPath may be empty, in which case ".env" in the working directory is
// tried and silently skipped if absent.
func Load(envPath string) (*Config, error) {
	if envPath == "" {
		envPath = ".env"
	}
	_ = godotenv.Load(envPath) // best-effort, same as the original's environs default

	for _, key := range []string{"SECC_CONTROLLER_SIM", "SECC_ENFORCE_TLS", "EVCC_CONTROLLER_SIM", "EVCC_USE_TLS", "EVCC_ENFORCE_TLS"} {
		if v := os.Getenv(key); v != "" {
			if _, err := strconv.ParseBool(v); err != nil {
				return nil, xerr.New(xerr.Config, fmt.Sprintf("%s: invalid boolean %q", key, v))
			}
		}
	}

	c := &Config{
		NetworkInterface:  getenv("NETWORK_INTERFACE", "eth0"),
		SECCControllerSim: getbool("SECC_CONTROLLER_SIM", false),
		SECCEnforceTLS:    getbool("SECC_ENFORCE_TLS", false),
		EVCCControllerSim: getbool("EVCC_CONTROLLER_SIM", false),
		EVCCUseTLS:        getbool("EVCC_USE_TLS", false),
		EVCCEnforceTLS:    getbool("EVCC_ENFORCE_TLS", false),
		PKIPath:           getenv("PKI_PATH", "./pki"),
		RedisHost:         getenv("REDIS_HOST", ""),
		LogLevel:          getenv("LOG_LEVEL", "info"),
	}

	port, err := getint("REDIS_PORT", 6379)
	if err != nil {
		return nil, xerr.New(xerr.Config, fmt.Sprintf("REDIS_PORT: %v", err))
	}
	c.RedisPort = port

	iface, err := net.InterfaceByName(c.NetworkInterface)
	if err != nil {
		return nil, xerr.New(xerr.Config, fmt.Sprintf("NETWORK_INTERFACE %q not found: %v", c.NetworkInterface, err))
	}
	c.Iface = iface

	if c.PKIPath == "" {
		return nil, xerr.New(xerr.Config, "PKI_PATH must not be empty")
	}
	if info, err := os.Stat(c.PKIPath); err != nil || !info.IsDir() {
		return nil, xerr.New(xerr.Config, fmt.Sprintf("PKI_PATH %q is not a directory", c.PKIPath))
	}

	return c, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getbool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getint(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", v, err)
	}
	return i, nil
}

// RedisEnabled reports whether an external session mirror is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}
