package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/inovacc/htables/pkg/htables"
	"github.com/spf13/cobra"
)

var fileCmd = &cobra.Command{
	Use:   "file",
	Short: "Manage large binary objects",
	Long: `Store, fetch and remove large binary objects.

Examples:
  htables file put ./report.pdf
  htables file get 4211 ./copy.pdf
  htables file rm 4211`,
}

var filePutCmd = &cobra.Command{
	Use:   "put <path>",
	Short: "Store a file and print its id",
	Args:  cobra.ExactArgs(1),
	RunE:  runFilePut,
}

var fileGetCmd = &cobra.Command{
	Use:   "get <id> [output]",
	Short: "Write an object to output, or stdout",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  runFileGet,
}

var fileRmCmd = &cobra.Command{
	Use:     "rm <id>",
	Short:   "Remove an object",
	Aliases: []string{"remove", "delete"},
	Args:    cobra.ExactArgs(1),
	RunE:    runFileRm,
}

func init() {
	rootCmd.AddCommand(fileCmd)
	fileCmd.AddCommand(filePutCmd)
	fileCmd.AddCommand(fileGetCmd)
	fileCmd.AddCommand(fileRmCmd)
}

func runFilePut(cmd *cobra.Command, args []string) error {
	path, err := expandPath(args[0])
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return runSession(cmd, nil, func(ctx context.Context, s *htables.Session) error {
		file, err := s.NewDbFile(ctx)
		if err != nil {
			return err
		}

		if err := file.WriteFrom(ctx, f); err != nil {
			return err
		}

		_, _ = fmt.Fprintln(cmd.OutOrStdout(), file.ID())

		return nil
	})
}

func runFileGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return runSession(cmd, nil, func(ctx context.Context, s *htables.Session) error {
		file, err := s.DbFile(id)
		if err != nil {
			return err
		}

		if len(args) == 1 {
			_, err := file.CopyTo(ctx, cmd.OutOrStdout())

			return err
		}

		path, err := expandPath(args[1])
		if err != nil {
			return err
		}

		out, err := os.Create(path)
		if err != nil {
			return err
		}

		if _, err := file.CopyTo(ctx, out); err != nil {
			_ = out.Close()
			_ = os.Remove(path)

			return err
		}

		return out.Close()
	})
}

func runFileRm(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	return runSession(cmd, nil, func(ctx context.Context, s *htables.Session) error {
		if err := s.DelDbFile(ctx, id); err != nil {
			return err
		}

		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed file %d.\n", id)

		return nil
	})
}
