package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"propertyhub.org/internal/audit"
	"propertyhub.org/internal/auth"
	"propertyhub.org/internal/store/pg"
)

// Backend is the storage propctl writes through.
type Backend interface {
	auth.Store
	audit.Store
}

// Opener connects to a backend. The returned func releases it.
type Opener func(ctx context.Context, dsn string) (Backend, func() error, error)

// OpenPostgres is the production Opener.
func OpenPostgres(ctx context.Context, dsn string) (Backend, func() error, error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("database DSN is required (--dsn or PROPHUB_PG_DSN)")
	}
	store, err := pg.Open(dsn)
	if err != nil {
		return nil, nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}
	return store, store.Close, nil
}

// session is what each subcommand works with once the backend is open.
type session struct {
	admin    *auth.Admin
	recorder *audit.Recorder
	out      io.Writer
}

type runFunc func(cmd *cobra.Command, s *session) error

// NewRootCmd builds the propctl command tree.
func NewRootCmd(open Opener) *cobra.Command {
	var dsn string

	rootCmd := &cobra.Command{
		Use:   "propctl",
		Short: "PropertyHub administration CLI",
		Long: `propctl manages accounts and grants directly against the PropertyHub
database. Changes are attributed to the "system" actor in the audit log.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if dsn == "" {
				dsn = os.Getenv("PROPHUB_PG_DSN")
			}
		},
	}
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "PostgreSQL DSN (also set via PROPHUB_PG_DSN)")

	with := func(run runFunc) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			backend, closeFn, err := open(cmd.Context(), dsn)
			if err != nil {
				return err
			}
			defer func() { _ = closeFn() }()

			recorder := audit.NewRecorder(backend)
			admin, err := auth.NewAdmin(backend, recorder)
			if err != nil {
				return err
			}
			return run(cmd, &session{admin: admin, recorder: recorder, out: cmd.OutOrStdout()})
		}
	}

	rootCmd.AddCommand(newAccountsCmd(with))
	rootCmd.AddCommand(newGrantsCmd(with))
	rootCmd.AddCommand(newAuditCmd(with))
	return rootCmd
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd(OpenPostgres).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
