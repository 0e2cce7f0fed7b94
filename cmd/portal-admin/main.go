package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gpchangipur/portal/internal/bootstrap"
	"github.com/gpchangipur/portal/internal/core"
	"github.com/gpchangipur/portal/internal/data"
	domainauth "github.com/gpchangipur/portal/internal/domain/auth"
	"github.com/gpchangipur/portal/internal/migrate"
)

// profileStore is the slice of the profiles table the operator commands use.
type profileStore interface {
	core.ProfileAdminRepository
	GetByID(ctx context.Context, id string) (domainauth.Profile, error)
}

// adminStore is what every subcommand works against.
type adminStore struct {
	Users      core.UserRepository
	Profiles   profileStore
	Migrate    func(ctx context.Context) ([]string, error)
	BcryptCost int
	Close      func() error
}

// storeOpener connects the store lazily so --help never touches the database.
type storeOpener func(ctx context.Context, logger *slog.Logger) (*adminStore, error)

type app struct {
	open   storeOpener
	logger *slog.Logger
	out    io.Writer
	store  *adminStore
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	root, closeStore := newRootCmd(openDatabaseStore, logger, os.Stdout)
	err := root.ExecuteContext(ctx)
	if cerr := closeStore(); cerr != nil {
		logger.Error("close database failed", "error", cerr)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		os.Exit(1) //nolint:forbidigo // CLI entrypoint reports failure through the exit status.
	}
}

// newRootCmd builds the command tree. The returned func releases the store
// opened by whichever subcommand ran.
func newRootCmd(open storeOpener, logger *slog.Logger, out io.Writer) (*cobra.Command, func() error) {
	a := &app{open: open, logger: logger, out: out}

	root := &cobra.Command{
		Use:           "portal-admin",
		Short:         "Operator commands for the portal database",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	root.AddCommand(a.migrateCmd(), a.usersCmd(), a.profilesCmd())
	return root, a.close
}

func (a *app) connect(ctx context.Context) (*adminStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	s, err := a.open(ctx, a.logger)
	if err != nil {
		return nil, err
	}
	a.store = s
	return s, nil
}

func (a *app) close() error {
	if a.store == nil || a.store.Close == nil {
		return nil
	}
	err := a.store.Close()
	a.store = nil
	return err
}

func openDatabaseStore(_ context.Context, logger *slog.Logger) (*adminStore, error) {
	cfg, err := bootstrap.ParseConfig()
	if err != nil {
		return nil, err
	}
	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{DBConfig: cfg.Postgres, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	return newDatabaseStore(db, cfg.Auth.BcryptCost), nil
}

func newDatabaseStore(db *sql.DB, cost int) *adminStore {
	return &adminStore{
		Users:    data.NewUserRepo(db),
		Profiles: data.NewProfileRepo(db),
		Migrate: func(ctx context.Context) ([]string, error) {
			return migrate.Apply(ctx, db)
		},
		BcryptCost: cost,
		Close:      db.Close,
	}
}

func requireFlag(name, value string) error {
	if value == "" {
		return errors.New("--" + name + " is required")
	}
	return nil
}
