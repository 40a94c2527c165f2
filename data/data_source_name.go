package data

import (
	"net/url"
	"regexp"
	"strings"
)

// Constants for database drivers.
const (
	PostgresScheme = "postgres"
	SqliteScheme   = "sqlite"
	FileScheme     = "file"
)

var keyValueDSNRegex = regexp.MustCompile(
	`(?i)^(user=\S+|password=\S+|host=\S+|port=\d+|dbname=\S+|sslmode=\S+)(\s+\S+=\S+)*$`,
)

// A DSN for conveniently handling a URI connection string.
type DSN string

func (d DSN) String() string {
	return string(d)
}

func (d DSN) IsPostgres() bool {
	lower := strings.ToLower(strings.TrimSpace(string(d)))
	if strings.HasPrefix(lower, PostgresScheme+"://") || strings.HasPrefix(lower, "postgresql://") {
		return true
	}

	return keyValueDSNRegex.MatchString(strings.TrimSpace(string(d)))
}

func (d DSN) IsSQLite() bool {
	lower := strings.ToLower(strings.TrimSpace(string(d)))
	return strings.HasPrefix(lower, SqliteScheme+"://") || strings.HasPrefix(lower, FileScheme+":")
}

func (d DSN) IsDB() bool {
	return d.IsPostgres() || d.IsSQLite()
}

// SQLitePath returns the connection string understood by the sqlite driver.
// `sqlite:///var/db/app.db?_pragma=busy_timeout(5000)` becomes `/var/db/app.db?_pragma=busy_timeout(5000)`,
// `file:` strings are passed through untouched.
func (d DSN) SQLitePath() string {
	raw := strings.TrimSpace(string(d))
	if strings.HasPrefix(strings.ToLower(raw), FileScheme+":") {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return strings.TrimPrefix(raw, SqliteScheme+"://")
	}

	path := u.Host + u.Path
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return path
}
