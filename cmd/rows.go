package cmd

import (
	"context"
	"fmt"

	"github.com/inovacc/htables/pkg/htables"
	"github.com/spf13/cobra"
)

var (
	updateUnset []string
	findFirst   bool
	findSingle  bool
)

var insertCmd = &cobra.Command{
	Use:   "insert <table> [key=value...]",
	Short: "Insert a row",
	Long: `Insert a row built from key=value arguments and print it with its new id.

Examples:
  htables insert person name=Alice city=Lisbon`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInsert,
}

var getCmd = &cobra.Command{
	Use:   "get <table> <id>",
	Short: "Print the row with the given id",
	Args:  cobra.ExactArgs(2),
	RunE:  runGet,
}

var updateCmd = &cobra.Command{
	Use:   "update <table> <id> [key=value...]",
	Short: "Change fields of a row",
	Long: `Set the given fields on an existing row, remove the keys named by
--unset, and save it.

Examples:
  htables update person 1 city=Porto
  htables update person 1 --unset city`,
	Args: cobra.MinimumNArgs(2),
	RunE: runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <table> <id>",
	Short:   "Delete a row",
	Aliases: []string{"rm"},
	Args:    cobra.ExactArgs(2),
	RunE:    runDelete,
}

var findCmd = &cobra.Command{
	Use:   "find <table> [key=value...]",
	Short: "Print the rows whose fields match every filter",
	Long: `Print every row containing all of the given key=value pairs, one JSON
object per line in id order. Without filters every row is printed.

Examples:
  htables find person city=Lisbon
  htables find person name=Alice --single`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFind,
}

func init() {
	rootCmd.AddCommand(insertCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(findCmd)

	updateCmd.Flags().StringSliceVar(&updateUnset, "unset", nil, "Keys to remove from the row")
	findCmd.Flags().BoolVar(&findFirst, "first", false, "Print only the first match")
	findCmd.Flags().BoolVar(&findSingle, "single", false, "Print the only match, failing unless exactly one row matches")
	findCmd.MarkFlagsMutuallyExclusive("first", "single")
}

func runInsert(cmd *cobra.Command, args []string) error {
	fields, err := parseFields(args[1:])
	if err != nil {
		return err
	}

	return runSession(cmd, args[:1], func(ctx context.Context, s *htables.Session) error {
		table, err := s.Table(args[0])
		if err != nil {
			return err
		}

		row, err := table.New(ctx, fields)
		if err != nil {
			return err
		}

		return printRow(cmd.OutOrStdout(), row)
	})
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[1])
	if err != nil {
		return err
	}

	return runSession(cmd, args[:1], func(ctx context.Context, s *htables.Session) error {
		table, err := s.Table(args[0])
		if err != nil {
			return err
		}

		row, err := table.Get(ctx, id)
		if err != nil {
			return err
		}

		return printRow(cmd.OutOrStdout(), row)
	})
}

func runUpdate(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[1])
	if err != nil {
		return err
	}

	fields, err := parseFields(args[2:])
	if err != nil {
		return err
	}

	return runSession(cmd, args[:1], func(ctx context.Context, s *htables.Session) error {
		table, err := s.Table(args[0])
		if err != nil {
			return err
		}

		row, err := table.Get(ctx, id)
		if err != nil {
			return err
		}

		for key, value := range fields {
			row.Set(key, value)
		}

		for _, key := range updateUnset {
			row.Unset(key)
		}

		if err := row.Save(ctx); err != nil {
			return err
		}

		return printRow(cmd.OutOrStdout(), row)
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[1])
	if err != nil {
		return err
	}

	return runSession(cmd, args[:1], func(ctx context.Context, s *htables.Session) error {
		table, err := s.Table(args[0])
		if err != nil {
			return err
		}

		if err := table.Delete(ctx, id); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s %d.\n", args[0], id)

		return nil
	})
}

func runFind(cmd *cobra.Command, args []string) error {
	filter, err := parseFields(args[1:])
	if err != nil {
		return err
	}

	return runSession(cmd, args[:1], func(ctx context.Context, s *htables.Session) error {
		table, err := s.Table(args[0])
		if err != nil {
			return err
		}

		switch {
		case findFirst:
			row, err := table.FindFirst(ctx, filter)
			if err != nil {
				return err
			}

			return printRow(cmd.OutOrStdout(), row)
		case findSingle:
			row, err := table.FindSingle(ctx, filter)
			if err != nil {
				return err
			}

			return printRow(cmd.OutOrStdout(), row)
		}

		for row, err := range table.Find(ctx, filter) {
			if err != nil {
				return err
			}

			if err := printRow(cmd.OutOrStdout(), row); err != nil {
				return err
			}
		}

		return nil
	})
}
