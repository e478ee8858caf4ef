package config

import (
	"os"
	"strconv"
)

// ApplyEnv overrides file settings with PRINTAUDIT_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("PRINTAUDIT_INPUT"); v != "" {
		c.Input = v
	}
	if v := os.Getenv("PRINTAUDIT_OUTPUT"); v != "" {
		c.Output = v
	}
	if v := os.Getenv("PRINTAUDIT_BACKEND"); v != "" {
		c.Backend = v
	}
	if v := os.Getenv("PRINTAUDIT_INTERACTIVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Interactive = b
		}
	}
	if v := os.Getenv("PRINTAUDIT_QUERY_MODE"); v != "" {
		c.Query.Mode = v
	}
	if v := os.Getenv("PRINTAUDIT_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Query.TimeoutMS = n
		}
	}
	if v := os.Getenv("PRINTAUDIT_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Query.MaxWorkers = n
		}
	}
	if v := os.Getenv("PRINTAUDIT_ON_ERROR"); v != "" {
		c.Query.OnError = v
	}
	if v := os.Getenv("PRINTAUDIT_SSH_PASSWORD"); v != "" {
		c.SSH.Password = v
	}
	if v := os.Getenv("PRINTAUDIT_SNMP_COMMUNITY"); v != "" {
		c.SNMP.Community = v
	}
	if v := os.Getenv("PRINTAUDIT_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}
