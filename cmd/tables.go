package cmd

import (
	"context"
	"fmt"

	"github.com/inovacc/htables/pkg/htables"
	"github.com/spf13/cobra"
)

var createCmd = &cobra.Command{
	Use:   "create [table...]",
	Short: "Create the configured tables",
	Long: `Create every table declared in the config, plus any named on the
command line. Existing tables are left alone.

Examples:
  htables create
  htables --uri sqlite:///tmp/data.db create person widgets`,
	RunE: runCreate,
}

var dropCmd = &cobra.Command{
	Use:   "drop [table...]",
	Short: "Drop the configured tables and every large object",
	Long: `Drop every table declared in the config, plus any named on the command
line, and remove all large objects. On PostgreSQL this removes every large
object in the database.`,
	RunE: runDrop,
}

func init() {
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(dropCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	return runSession(cmd, args, func(ctx context.Context, s *htables.Session) error {
		if err := s.CreateAll(ctx); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Tables created.")

		return nil
	})
}

func runDrop(cmd *cobra.Command, args []string) error {
	return runSession(cmd, args, func(ctx context.Context, s *htables.Session) error {
		if err := s.DropAll(ctx); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Tables dropped.")

		return nil
	})
}
