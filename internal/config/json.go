package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/gstbill/gstbill/internal/flagx"
	"github.com/gstbill/gstbill/internal/timex"
)

// JsonConfig is a DTO used only for JSON unmarshalling. Intervals accept
// either strings like "30s" or integer nanoseconds via timex.Duration.
type JsonConfig struct {
	LocalDSN      string         `json:"local_dsn"`
	RemoteDSN     string         `json:"remote_dsn"`
	TenantToken   string         `json:"tenant_token"`
	TokenSecret   string         `json:"token_secret"`
	StoreID       string         `json:"store_id"`
	StoreCode     string         `json:"store_code"`
	SyncInterval  timex.Duration `json:"sync_interval"`
	PingInterval  timex.Duration `json:"ping_interval"`
	RemoteTimeout timex.Duration `json:"remote_timeout"`
	LogFile       string         `json:"log_file"`
}

// parseJson overlays cfg with values from the file named by -c/-config.
// Missing flag means no JSON is loaded. Read or unmarshal errors panic:
// a broken config file should stop the daemon immediately.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.LocalDSN != "" {
		cfg.LocalDSN = jc.LocalDSN
	}
	if jc.RemoteDSN != "" {
		cfg.RemoteDSN = jc.RemoteDSN
	}
	if jc.TenantToken != "" {
		cfg.TenantToken = jc.TenantToken
	}
	if jc.TokenSecret != "" {
		cfg.TokenSecret = jc.TokenSecret
	}
	if jc.StoreID != "" {
		cfg.StoreID = jc.StoreID
	}
	if jc.StoreCode != "" {
		cfg.StoreCode = jc.StoreCode
	}
	if jc.SyncInterval.Duration != 0 {
		cfg.SyncInterval = time.Duration(jc.SyncInterval.Duration)
	}
	if jc.PingInterval.Duration != 0 {
		cfg.PingInterval = time.Duration(jc.PingInterval.Duration)
	}
	if jc.RemoteTimeout.Duration != 0 {
		cfg.RemoteTimeout = time.Duration(jc.RemoteTimeout.Duration)
	}
	if jc.LogFile != "" {
		cfg.LogFile = jc.LogFile
	}
}
