package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   gRPC bind address (e.g., ":50051")
//	-d string   PostgreSQL DSN
//	-s string   JWT HMAC secret key
//	-t int      access token validity, minutes
//	-k string   master key (hex or base64)
//	-m string   storage backend, "local" or "s3"
//	-f string   local storage directory
//	-w string   scratch directory
//	-x duration default expiry (e.g., "168h")
//	-z int      max upload size, bytes
//	-r string   redis address, empty disables the cache
//	-l duration cache TTL
//	-o string   public base URL for shared links
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//
// The arguments are first filtered with flagx.FilterArgs so flags owned by
// other components do not collide.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-s", "-t", "-k", "-m", "-f", "-w", "-x", "-z",
		"-r", "-l", "-o", "-u", "-p", "-b", "-g", "-e"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrGRPC, "a", config.EndpointAddrGRPC, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")

	accessTokenValidityDuration := fs.Int("t", int(config.AccessTokenValidityDuration.Minutes()), "access_token_validity_duration (in minutes)")

	fs.StringVar(&config.MasterKey, "k", config.MasterKey, "master key, hex or base64")
	fs.StringVar(&config.StorageBackend, "m", config.StorageBackend, "storage backend (local or s3)")
	fs.StringVar(&config.StorageDir, "f", config.StorageDir, "local storage directory")
	fs.StringVar(&config.ScratchDir, "w", config.ScratchDir, "scratch directory")
	fs.DurationVar(&config.DefaultExpiry, "x", config.DefaultExpiry, "default expiry")
	fs.Int64Var(&config.MaxUploadSize, "z", config.MaxUploadSize, "max upload size (in bytes)")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.DurationVar(&config.CacheTTL, "l", config.CacheTTL, "cache TTL")
	fs.StringVar(&config.PublicBaseURL, "o", config.PublicBaseURL, "public base URL")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.AccessTokenValidityDuration = time.Duration(*accessTokenValidityDuration) * time.Minute
}
