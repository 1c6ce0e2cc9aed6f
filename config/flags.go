package config

import (
	"flag"
	"io"
)

// parseFlags overlays command-line flags.
//
//	-p string   listen port
//	-d string   database DSN
//	-s string   JWT signing secret
//	-u string   public base URL used in verification links
//	-t duration session token lifetime
//	-a string   avatar storage backend (local, s3)
func parseFlags(c *Config, args []string) error {
	fs := flag.NewFlagSet("userauth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&c.Port, "p", c.Port, "listen port")
	fs.StringVar(&c.DatabaseDSN, "d", c.DatabaseDSN, "database DSN")
	fs.StringVar(&c.SigningKey, "s", c.SigningKey, "JWT signing secret")
	fs.StringVar(&c.BaseURL, "u", c.BaseURL, "public base URL")
	fs.DurationVar(&c.TokenExpiration, "t", c.TokenExpiration, "session token lifetime")
	fs.StringVar(&c.AvatarStorage, "a", c.AvatarStorage, "avatar storage backend")

	return fs.Parse(args)
}
