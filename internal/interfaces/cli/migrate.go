package cli

import (
	"fmt"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/turtacn/ClaimLens/internal/infrastructure/database/postgres"
	"github.com/turtacn/ClaimLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/ClaimLens/pkg/errors"
)

// connMigrator closes the connection it opened along with the migrator.
type connMigrator struct {
	*postgres.Migrator
	conn *postgres.Connection
}

func (m *connMigrator) Close() error {
	err := m.Migrator.Close()
	if cerr := m.conn.Close(); err == nil {
		err = cerr
	}
	return err
}

func openMigrator(cfg postgres.PostgresConfig, logger logging.Logger) (Migrator, error) {
	conn, err := postgres.NewConnection(cfg, logger)
	if err != nil {
		return nil, err
	}
	m, err := postgres.NewMigrator(conn.DB(), logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return &connMigrator{Migrator: m, conn: conn}, nil
}

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withMigrator(cmd, func(m Migrator) error {
				if err := m.Down(steps); err != nil {
					return err
				}
				return reportVersion(cmd, m, fmt.Sprintf("rolled back %d migration(s)", steps))
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m Migrator) error {
					if err := m.Up(); err != nil {
						return err
					}
					return reportVersion(cmd, m, "migrations applied")
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withMigrator(cmd, func(m Migrator) error {
					return reportVersion(cmd, m, "")
				})
			},
		},
		&cobra.Command{
			Use:   "force VERSION",
			Short: "Set the schema version without running migrations",
			Long:  "Set the schema version without running migrations. Use it to clear a dirty state after fixing a failed migration by hand.",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil || v < 0 {
					return errors.Newf(errors.ErrCodeBadRequest, "invalid version %q", args[0])
				}
				return withMigrator(cmd, func(m Migrator) error {
					if err := m.Force(v); err != nil {
						return err
					}
					return reportVersion(cmd, m, fmt.Sprintf("forced version %d", v))
				})
			},
		},
	)
	return cmd
}

func withMigrator(cmd *cobra.Command, fn func(Migrator) error) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	m, err := cliCtx.deps.NewMigrator(cliCtx.Config.Database.Postgres, cliCtx.Logger)
	if err != nil {
		return fmt.Errorf("open migrator: %w", err)
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			cliCtx.Logger.Warn("close migrator", logging.Err(cerr))
		}
	}()
	return fn(m)
}

type migrationStatus struct {
	Version uint   `json:"version"`
	Dirty   bool   `json:"dirty"`
	Message string `json:"message,omitempty"`
}

func reportVersion(cmd *cobra.Command, m Migrator, msg string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}
	v, dirty, err := m.Status()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if cliCtx.OutputFormat == OutputJSON {
		return printJSON(out, migrationStatus{Version: v, Dirty: dirty, Message: msg})
	}
	if msg != "" {
		fmt.Fprintf(out, "%s %s\n", color.GreenString("✓"), msg)
	}
	state := color.GreenString("clean")
	if dirty {
		state = color.RedString("dirty")
	}
	fmt.Fprintf(out, "schema version %d (%s)\n", v, state)
	return nil
}
