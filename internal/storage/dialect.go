package storage

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"cltv-analytics/internal/config"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// dialect captures the SQL that differs between the supported servers.
type dialect struct {
	driver         string
	listDatabases  string
	listTables     string
	quote          func(string) string
	placeholder    func(n int) string
	floatType      string
	textType       string
	integerType    string
	timestampType  string
	singleConnOnly bool
}

var dialects = map[string]dialect{
	"mysql": {
		driver:        "mysql",
		listDatabases: "SHOW DATABASES",
		listTables:    "SHOW TABLES",
		quote:         func(s string) string { return "`" + s + "`" },
		placeholder:   func(int) string { return "?" },
		floatType:     "DOUBLE",
		textType:      "VARCHAR(64)",
		integerType:   "INT",
		timestampType: "DATETIME",
	},
	"postgres": {
		driver:        "postgres",
		listDatabases: "SELECT datname FROM pg_database WHERE NOT datistemplate ORDER BY datname",
		listTables:    "SELECT tablename FROM pg_tables WHERE schemaname = current_schema() ORDER BY tablename",
		quote:         func(s string) string { return `"` + s + `"` },
		placeholder:   func(n int) string { return "$" + strconv.Itoa(n) },
		floatType:     "DOUBLE PRECISION",
		textType:      "VARCHAR(64)",
		integerType:   "INTEGER",
		timestampType: "TIMESTAMP",
	},
	"sqlite": {
		driver:         "sqlite",
		listDatabases:  "SELECT name FROM pragma_database_list ORDER BY seq",
		listTables:     "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name",
		quote:          func(s string) string { return `"` + s + `"` },
		placeholder:    func(int) string { return "?" },
		floatType:      "REAL",
		textType:       "TEXT",
		integerType:    "INTEGER",
		timestampType:  "TIMESTAMP",
		singleConnOnly: true,
	},
}

func (d dialect) placeholders(n int) string {
	ps := make([]string, n)
	for i := range ps {
		ps[i] = d.placeholder(i + 1)
	}
	return strings.Join(ps, ", ")
}

// table validates name and returns it quoted.
func (d dialect) table(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	return d.quote(name), nil
}

// dataSourceName builds the driver specific connection string.
func dataSourceName(cfg config.DatabaseConfig) string {
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	switch cfg.Driver {
	case "mysql":
		mc := mysql.NewConfig()
		mc.User = cfg.User
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = addr
		mc.DBName = cfg.Name
		mc.ParseTime = true
		mc.Timeout = cfg.ConnectTimeout
		return mc.FormatDSN()
	case "postgres":
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(cfg.User, cfg.Password),
			Host:   addr,
			Path:   "/" + cfg.Name,
		}
		q := url.Values{}
		q.Set("sslmode", "disable")
		if secs := int(cfg.ConnectTimeout.Seconds()); secs > 0 {
			q.Set("connect_timeout", strconv.Itoa(secs))
		}
		u.RawQuery = q.Encode()
		return u.String()
	default:
		return cfg.Name
	}
}
