// Package connuri parses the connection strings accepted by htables.
package connuri

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

const (
	SchemePostgres = "postgresql"
	SchemeSQLite   = "sqlite"
)

var postgresRe = regexp.MustCompile(`^postgresql://` +
	`(?:(?P<user>[^:@/]*)(?::(?P<password>[^@/]*))?@)?` +
	`(?P<host>[^@/]+)/(?P<db>[^/]+)$`)

// ConfigurationError reports a connection string that does not match the
// expected grammar.
type ConfigurationError struct {
	URI    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("can't parse connection URI %q: %s", e.URI, e.Reason)
}

// Params holds the discrete connection parameters of a PostgreSQL URI.
type Params struct {
	Database string
	Host     string
	User     string
	Password string
}

// Parse parses postgresql://[user[:password]@]host/database.
func Parse(uri string) (Params, error) {
	m := postgresRe.FindStringSubmatch(uri)
	if m == nil {
		return Params{}, &ConfigurationError{URI: uri, Reason: "malformed URI"}
	}

	return Params{
		Database: m[postgresRe.SubexpIndex("db")],
		Host:     m[postgresRe.SubexpIndex("host")],
		User:     m[postgresRe.SubexpIndex("user")],
		Password: m[postgresRe.SubexpIndex("password")],
	}, nil
}

// ParseSQLite parses sqlite://<path> and returns the database file path.
func ParseSQLite(uri string) (string, error) {
	path, ok := strings.CutPrefix(uri, SchemeSQLite+"://")
	if !ok || path == "" {
		return "", &ConfigurationError{URI: uri, Reason: "malformed URI"}
	}

	return path, nil
}

// Scheme returns the backend scheme selected by uri.
func Scheme(uri string) (string, error) {
	scheme, _, ok := strings.Cut(uri, "://")
	if !ok {
		return "", &ConfigurationError{URI: uri, Reason: "missing scheme"}
	}

	switch scheme {
	case SchemePostgres, SchemeSQLite:
		return scheme, nil
	default:
		return "", &ConfigurationError{URI: uri, Reason: fmt.Sprintf("unsupported scheme %q", scheme)}
	}
}

// ConnString renders p as a connection URL understood by pgx.
func (p Params) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   p.Host,
		Path:   "/" + p.Database,
	}

	switch {
	case p.User != "" && p.Password != "":
		u.User = url.UserPassword(p.User, p.Password)
	case p.User != "":
		u.User = url.User(p.User)
	}

	return u.String()
}

// String returns p with the password masked, for logging.
func (p Params) String() string {
	masked := p
	if masked.Password != "" {
		masked.Password = "xxxxx"
	}

	return masked.ConnString()
}
