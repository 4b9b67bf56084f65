package config

import (
	"flag"
	"os"
	"time"

	"github.com/gstbill/gstbill/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags:
//
//	-l string   local SQLite DSN
//	-r string   remote PostgreSQL DSN
//	-t string   tenant token
//	-s int      sync interval in seconds
//
// os.Args is filtered through flagx.FilterArgs so this parser ignores flags
// owned by other components (like -c/-config).
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-l", "-r", "-t", "-s"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.LocalDSN, "l", cfg.LocalDSN, "local SQLite DSN")
	fs.StringVar(&cfg.RemoteDSN, "r", cfg.RemoteDSN, "remote PostgreSQL DSN")
	fs.StringVar(&cfg.TenantToken, "t", cfg.TenantToken, "tenant token")
	syncInterval := fs.Int("s", int(cfg.SyncInterval.Seconds()), "sync interval (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	cfg.SyncInterval = time.Duration(*syncInterval) * time.Second
}
