package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/kiwes/internal/flagx"
)

var ownFlags = []string{"-a", "-g", "-d", "-s", "-t", "-r", "-l", "-store"}

// parseFlags overlays the flags it owns from args.
//
//	-a string   HTTP bind address (e.g. ":8080")
//	-g string   gRPC bind address (e.g. ":50051")
//	-d string   PostgreSQL DSN
//	-s string   base64 signing secret
//	-t int      access token lifetime, seconds
//	-r int      refresh token lifetime, seconds
//	-l string   log level
//	-store string  refresh token store: postgres or redis
//
// Other arguments are ignored, so -c/-config can share the command line.
func parseFlags(config *Config, args []string) error {
	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.HTTPAddr, "a", config.HTTPAddr, "HTTP address and port")
	fs.StringVar(&config.GRPCAddr, "g", config.GRPCAddr, "gRPC address and port")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "base64 signing secret")
	access := fs.Int64("t", 0, "access token lifetime (in seconds)")
	refresh := fs.Int64("r", 0, "refresh token lifetime (in seconds)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.StringVar(&config.RefreshStore, "store", config.RefreshStore, "refresh token store")

	if err := fs.Parse(flagx.FilterArgs(args, ownFlags)); err != nil {
		return fmt.Errorf("config: flags: %w", err)
	}

	// Lifetimes from earlier layers survive unless -t or -r was given.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "t":
			config.AccessTokenTTL = time.Duration(*access) * time.Second
		case "r":
			config.RefreshTokenTTL = time.Duration(*refresh) * time.Second
		}
	})
	return nil
}
