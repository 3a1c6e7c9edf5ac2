package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrijs2005/sealbox/internal/api"
	"github.com/dmitrijs2005/sealbox/internal/client/client"
	"github.com/dmitrijs2005/sealbox/internal/client/models"
	"github.com/dmitrijs2005/sealbox/internal/filex"
)

var errUsage = errors.New("usage")

// Exec runs one command.
func (a *App) Exec(ctx context.Context, cmd string, args []string) error {
	ctx, cancel := context.WithTimeout(ctx, a.config.RequestTimeout)
	defer cancel()

	switch cmd {
	case "upload":
		return a.Upload(ctx, args)
	case "download":
		return a.Download(ctx, args)
	case "meta":
		return a.Meta(ctx, args)
	case "delete":
		return a.Delete(ctx, args)
	case "dashboard":
		return a.Dashboard(ctx)
	case "logs":
		return a.Logs(ctx, false)
	case "alllogs":
		return a.Logs(ctx, true)
	case "ping":
		if err := a.api.Ping(ctx); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "OK")
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func (a *App) Upload(ctx context.Context, args []string) error {
	fs := newFlagSet("upload", a.out)
	access := fs.String("access", "", "access mode: private, public or restricted")
	users := fs.String("users", "", "comma-separated users allowed to download (restricted)")
	limit := fs.Int64("limit", 0, "maximum number of downloads")
	expires := fs.Duration("expires", 0, "time until the share expires")
	askPassword := fs.Bool("password", false, "protect the share with a password")
	mime := fs.String("mime", "", "MIME type for every file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("%w: upload [flags] <file>...", errUsage)
	}

	opts := client.UploadOptions{Access: *access}
	if *users != "" {
		for _, u := range strings.Split(*users, ",") {
			if u = strings.TrimSpace(u); u != "" {
				opts.AllowedUsers = append(opts.AllowedUsers, u)
			}
		}
	}
	if *limit > 0 {
		opts.DownloadLimit = limit
	}
	if *expires > 0 {
		at := time.Now().Add(*expires).UTC()
		opts.ExpiresAt = &at
	}
	if *askPassword {
		pw, err := GetPassword(a.out, "Share password: ")
		if err != nil {
			return err
		}
		opts.Password = pw
	}

	var sources []client.UploadSource
	for _, path := range fs.Args() {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		sources = append(sources, client.UploadSource{Name: filepath.Base(path), MimeType: *mime, Content: f})
	}

	res, err := a.api.Upload(ctx, opts, sources)
	if err != nil {
		return err
	}
	var files []models.FileInfo
	if err := res.Decode(&files); err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	for _, f := range files {
		fmt.Fprintf(a.out, "%s  %s  %s\n", f.ID, f.Name, f.SharedLink)
	}
	return nil
}

func (a *App) fileArgs(name string, args []string, withPassword bool) (string, string, error) {
	fs := newFlagSet(name, a.out)
	var askPassword *bool
	if withPassword {
		askPassword = fs.Bool("password", false, "prompt for the share password")
	}
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	if fs.NArg() != 1 {
		return "", "", fmt.Errorf("%w: %s <id>", errUsage, name)
	}
	var pw string
	if askPassword != nil && *askPassword {
		var err error
		if pw, err = GetPassword(a.out, "Share password: "); err != nil {
			return "", "", err
		}
	}
	return fs.Arg(0), pw, nil
}

// Download saves the file into the download directory under its original
// name. Nothing is left behind when the transfer fails.
func (a *App) Download(ctx context.Context, args []string) error {
	id, pw, err := a.fileArgs("download", args, true)
	if err != nil {
		return err
	}

	dir, err := filex.EnsureDir(a.config.DownloadDir)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".sealbox-*")
	if err != nil {
		return err
	}
	defer filex.Remove(tmp.Name())

	h, err := a.api.Download(ctx, id, pw, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	dest := filepath.Join(dir, filepath.Base(h.Name))
	if err := filex.MoveFile(tmp.Name(), dest); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "saved %s (%d bytes)\n", dest, h.Size)
	return nil
}

func (a *App) Meta(ctx context.Context, args []string) error {
	id, pw, err := a.fileArgs("meta", args, true)
	if err != nil {
		return err
	}
	res, err := a.api.Metadata(ctx, id, pw)
	if err != nil {
		return err
	}
	var f models.FileInfo
	if err := res.Decode(&f); err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "id\t%s\n", f.ID)
	fmt.Fprintf(w, "name\t%s\n", f.Name)
	fmt.Fprintf(w, "owner\t%s\n", f.OwnerID)
	fmt.Fprintf(w, "size\t%d\n", f.Size)
	fmt.Fprintf(w, "type\t%s\n", f.MimeType)
	fmt.Fprintf(w, "access\t%s\n", f.Access)
	fmt.Fprintf(w, "status\t%s\n", f.Status)
	fmt.Fprintf(w, "downloads\t%s\n", f.Downloads())
	fmt.Fprintf(w, "expires\t%s\n", f.ExpiresAt.Format(time.RFC3339))
	fmt.Fprintf(w, "previewable\t%t\n", f.Previewable)
	return w.Flush()
}

func (a *App) Delete(ctx context.Context, args []string) error {
	id, _, err := a.fileArgs("delete", args, false)
	if err != nil {
		return err
	}
	res, err := a.api.Delete(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(a.out, res.Message)
	return nil
}

func (a *App) Dashboard(ctx context.Context) error {
	res, err := a.api.Dashboard(ctx)
	if err != nil {
		return err
	}
	var files []models.FileInfo
	if err := res.Decode(&files); err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSIZE\tACCESS\tSTATUS\tDOWNLOADS\tEXPIRES\tLINK")
	for _, f := range files {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			f.ID, f.Name, f.Size, f.Access, f.Status, f.Downloads(), f.ExpiresAt.Format(time.RFC3339), f.SharedLink)
	}
	return w.Flush()
}

func (a *App) Logs(ctx context.Context, all bool) error {
	var (
		res *api.Result
		err error
	)
	if all {
		res, err = a.api.AllLogs(ctx)
	} else {
		res, err = a.api.MyLogs(ctx)
	}
	if err != nil {
		return err
	}
	var entries []models.LogEntry
	if err := res.Decode(&entries); err != nil {
		return err
	}

	w := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tUSER\tEVENT\tFILES\tDETAILS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			e.Timestamp.Format(time.RFC3339), e.UserID, e.Type, strings.Join(e.FileIDs, ","), e.Detail)
	}
	return w.Flush()
}
