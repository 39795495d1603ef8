package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/inovacc/htables/pkg/htables"
)

// parseFields turns key=value arguments into a field map. Later keys win.
func parseFields(args []string) (map[string]string, error) {
	fields := make(map[string]string, len(args))

	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("invalid field %q: expected key=value", arg)
		}

		if key == "" {
			return nil, fmt.Errorf("invalid field %q: empty key", arg)
		}

		fields[key] = value
	}

	return fields, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}

	return id, nil
}

type rowOutput struct {
	Table  string            `json:"table"`
	ID     int64             `json:"id"`
	Fields map[string]string `json:"fields"`
}

// printRow writes row as one line of JSON.
func printRow(w io.Writer, row *htables.Row) error {
	return json.NewEncoder(w).Encode(rowOutput{
		Table:  row.Kind().Table,
		ID:     row.ID,
		Fields: row.Fields,
	})
}

// expandPath expands ~ to the user's home directory and returns an absolute path
func expandPath(path string) (string, error) {
	if len(path) == 0 {
		return "", fmt.Errorf("path is empty")
	}

	if path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}

		path = filepath.Join(home, path[1:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}

	return absPath, nil
}
