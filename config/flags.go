package config

import (
	"github.com/spf13/pflag"
)

// Flags holds the command-line overrides. Only flags the user actually set are
// applied.
type Flags struct {
	fs *pflag.FlagSet

	port      string
	dbPath    string
	logLevel  string
	logFormat string
	staticDir string
}

// BindFlags registers the override flags on fs.
func BindFlags(fs *pflag.FlagSet) *Flags {
	f := &Flags{fs: fs}

	fs.StringVar(&f.port, "port", DefaultPort, "HTTP port")
	fs.StringVar(&f.dbPath, "db", DefaultDBPath, "Path to the SQLite database")
	fs.StringVar(&f.logLevel, "log-level", DefaultLogLevel, "Log level (debug, info, warn, error)")
	fs.StringVar(&f.logFormat, "log-format", DefaultLogFormat, "Log format (console or json)")
	fs.StringVar(&f.staticDir, "static", "", "Directory served at / (disabled when empty)")

	return f
}

// Apply copies every flag set on the command line into cfg.
func (f *Flags) Apply(cfg *Config) {
	apply := func(name, value string, target *string) {
		if f.fs.Changed(name) {
			*target = value
		}
	}

	apply("port", f.port, &cfg.Port)
	apply("db", f.dbPath, &cfg.DBPath)
	apply("log-level", f.logLevel, &cfg.LogLevel)
	apply("log-format", f.logFormat, &cfg.LogFormat)
	apply("static", f.staticDir, &cfg.StaticDir)
}
