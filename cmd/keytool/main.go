package main

import (
	"fmt"
	"os"

	"github.com/dmitrijs2005/sealbox/internal/keytool"
	"github.com/dmitrijs2005/sealbox/internal/server/config"
)

func main() {
	cfg := config.LoadConfig()

	d := keytool.Defaults{Secret: cfg.SecretKey, TokenTTL: cfg.AccessTokenValidityDuration}
	if err := keytool.Run(os.Args[1:], d, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
