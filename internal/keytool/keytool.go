// Package keytool implements the operator commands behind cmd/keytool:
// master key generation and derivation, and access token minting.
package keytool

import (
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/common"
	"github.com/dmitrijs2005/sealbox/internal/cryptox"
	"github.com/dmitrijs2005/sealbox/internal/server/auth"
	"github.com/dmitrijs2005/sealbox/internal/server/models"
	"golang.org/x/term"
)

const saltSize = 16

var ErrUsage = errors.New("usage: keytool generate | derive [-salt hex] | token -user id [-role user|admin] [-secret s] [-ttl 24h]")

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// Defaults come from the server configuration and seed the token command.
type Defaults struct {
	Secret   string
	TokenTTL time.Duration
}

// Run executes the command in args and writes its result to out. Prompts go
// to errOut so out stays machine-readable. A leading -c/-config pair is the
// server config file and is skipped.
func Run(args []string, d Defaults, out, errOut io.Writer) error {
	if len(args) >= 2 && (args[0] == "-c" || args[0] == "-config") {
		args = args[2:]
	}
	if len(args) == 0 {
		return ErrUsage
	}
	switch args[0] {
	case "generate":
		key := cryptox.GenerateKey()
		defer common.WipeByteArray(key)
		_, err := fmt.Fprintln(out, hex.EncodeToString(key))
		return err
	case "derive":
		return derive(args[1:], out, errOut)
	case "token":
		return token(args[1:], d, out, errOut)
	default:
		return ErrUsage
	}
}

func derive(args []string, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("derive", flag.ContinueOnError)
	fs.SetOutput(errOut)
	saltHex := fs.String("salt", "", "hex-encoded salt; a fresh one is generated and printed when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var salt []byte
	if *saltHex == "" {
		salt = common.GenerateRandByteArray(saltSize)
		fmt.Fprintf(errOut, "salt: %s\n", hex.EncodeToString(salt))
	} else {
		var err error
		if salt, err = hex.DecodeString(*saltHex); err != nil {
			return fmt.Errorf("salt must be hex: %w", err)
		}
	}

	fmt.Fprint(errOut, "Passphrase: ")
	pass, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(errOut)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pass)
	if len(pass) == 0 {
		return errors.New("empty passphrase")
	}

	key := cryptox.DeriveMasterKey(pass, salt)
	defer common.WipeByteArray(key)
	_, err = fmt.Fprintln(out, hex.EncodeToString(key))
	return err
}

func token(args []string, d Defaults, out, errOut io.Writer) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	fs.SetOutput(errOut)
	user := fs.String("user", "", "user id")
	role := fs.String("role", models.RoleUser, "role: user or admin")
	secret := fs.String("secret", d.Secret, "JWT signing secret of the server")
	ttl := fs.Duration("ttl", d.TokenTTL, "token validity")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *secret == "" {
		return ErrUsage
	}
	if *ttl <= 0 {
		*ttl = 24 * time.Hour
	}
	if *role != models.RoleUser && *role != models.RoleAdmin {
		return fmt.Errorf("unknown role %q", *role)
	}

	tok, err := auth.GenerateToken(*user, *role, []byte(*secret), *ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, tok)
	return err
}
