package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/sealbox/internal/api"
	"github.com/dmitrijs2005/sealbox/internal/client/client"
	"github.com/dmitrijs2005/sealbox/internal/client/config"
)

// Client is the server API the commands use. *client.GRPCClient implements it.
type Client interface {
	Ping(ctx context.Context) error
	Upload(ctx context.Context, opts client.UploadOptions, files []client.UploadSource) (*api.Result, error)
	Download(ctx context.Context, id, password string, w io.Writer) (*api.DownloadHeader, error)
	Metadata(ctx context.Context, id, password string) (*api.Result, error)
	Delete(ctx context.Context, id string) (*api.Result, error)
	Dashboard(ctx context.Context) (*api.Result, error)
	MyLogs(ctx context.Context) (*api.Result, error)
	AllLogs(ctx context.Context) (*api.Result, error)
	Close() error
}

type App struct {
	config *config.Config
	api    Client
	out    io.Writer
	reader *bufio.Reader
}

func NewApp(c *config.Config) (*App, error) {
	apiClient, err := client.NewSealboxClient(c.ServerEndpointAddr, c.AccessToken)
	if err != nil {
		return nil, err
	}
	return newApp(c, apiClient, os.Stdout, os.Stdin), nil
}

func newApp(c *config.Config, api Client, out io.Writer, in io.Reader) *App {
	return &App{config: c, api: api, out: out, reader: bufio.NewReader(in)}
}

// Run executes the command in args, or starts the interactive loop when args
// names no command.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.api.Close()

	cmd := commandArgs(args)
	if len(cmd) == 0 {
		runREPL(ctx, a, bufio.NewScanner(a.reader))
		return nil
	}
	return a.Exec(ctx, cmd[0], cmd[1:])
}

// globalFlags take a value and belong to the config layer.
var globalFlags = map[string]bool{"-a": true, "-t": true, "-d": true, "-w": true, "-c": true, "-config": true}

// commandArgs drops leading global flags and returns the command with its
// own arguments.
func commandArgs(args []string) []string {
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if len(arg) == 0 || arg[0] != '-' {
			return args[i:]
		}
		name := arg
		if eq := strings.IndexByte(arg, '='); eq >= 0 {
			name = arg[:eq]
		} else if globalFlags[name] {
			i++
		}
	}
	return nil
}
