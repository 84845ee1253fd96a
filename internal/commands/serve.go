package commands

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"time"

	"punchlist/internal/config"
	"punchlist/internal/exitcode"
	"punchlist/internal/server"
	"punchlist/internal/service"
)

func init() {
	Register(&ServeCmd{})
}

// ServeCmd runs the self-hosted task server.
type ServeCmd struct {
	addr string
	db   string
}

func (c *ServeCmd) Name() string      { return "serve" }
func (c *ServeCmd) Aliases() []string { return nil }
func (c *ServeCmd) Synopsis() string  { return "Run the task server" }
func (c *ServeCmd) Usage() string     { return "punchlist serve [common flags] [--addr <addr>] [--db <path>]" }
func (c *ServeCmd) NeedsAuth() bool   { return false }

func (c *ServeCmd) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.addr, "addr", ":8787", "")
	fs.StringVar(&c.db, "db", "", "")
}

func (c *ServeCmd) Run(ctx context.Context, cfg *config.Config, svc service.Service, args []string, out, errOut io.Writer) int {
	dbPath := c.db
	if dbPath == "" {
		if err := cfg.EnsureDir(); err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			return exitcode.BackendError
		}
		dbPath = filepath.Join(cfg.Dir, "punchlist.db")
	}

	store, err := server.OpenStore(dbPath)
	if err != nil {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	defer store.Close()

	srv := &http.Server{
		Addr:    c.addr,
		Handler: server.New(store, cfg.Log()).Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			cfg.Log().Warn("server shutdown failed", "err", err)
		}
	}()

	if !cfg.Quiet {
		fmt.Fprintf(out, "listening on %s (db: %s)\n", c.addr, dbPath)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		fmt.Fprintf(errOut, "error: %v\n", err)
		return exitcode.BackendError
	}
	return exitcode.Success
}
