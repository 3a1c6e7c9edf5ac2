package config

import (
	"flag"
	"os"

	"github.com/dmitrijs2005/sealbox/internal/flagx"
)

// parseFlags overlays cfg with -a (server address), -t (access token),
// -d (download directory) and -w (request timeout).
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-t", "-d", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	fs.StringVar(&cfg.AccessToken, "t", cfg.AccessToken, "access token")
	fs.StringVar(&cfg.DownloadDir, "d", cfg.DownloadDir, "directory for downloaded files")
	fs.DurationVar(&cfg.RequestTimeout, "w", cfg.RequestTimeout, "timeout of a single request")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
