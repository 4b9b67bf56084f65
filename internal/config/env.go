package config

import (
	"os"
	"time"
)

// parseEnv overlays cfg with GSTBILL_* environment variables. Durations use
// time.ParseDuration syntax; unparsable values are ignored so a typo cannot
// zero out an interval.
func parseEnv(cfg *Config) {
	if v := os.Getenv("GSTBILL_LOCAL_DSN"); v != "" {
		cfg.LocalDSN = v
	}
	if v := os.Getenv("GSTBILL_REMOTE_DSN"); v != "" {
		cfg.RemoteDSN = v
	}
	if v := os.Getenv("GSTBILL_TENANT_TOKEN"); v != "" {
		cfg.TenantToken = v
	}
	if v := os.Getenv("GSTBILL_TOKEN_SECRET"); v != "" {
		cfg.TokenSecret = v
	}
	if v := os.Getenv("GSTBILL_STORE_ID"); v != "" {
		cfg.StoreID = v
	}
	if v := os.Getenv("GSTBILL_STORE_CODE"); v != "" {
		cfg.StoreCode = v
	}
	if v := os.Getenv("GSTBILL_SYNC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SyncInterval = d
		}
	}
	if v := os.Getenv("GSTBILL_PING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.PingInterval = d
		}
	}
	if v := os.Getenv("GSTBILL_REMOTE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RemoteTimeout = d
		}
	}
	if v := os.Getenv("GSTBILL_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}
