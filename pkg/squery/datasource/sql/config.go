package sql

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq" // postgres driver
	_ "modernc.org/sqlite" // sqlite driver

	"github.com/sllt/squery/pkg/squery/config"
	"github.com/sllt/squery/pkg/squery/datasource"
)

const (
	DialectMySQL    = "mysql"
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"

	defaultDBPort       = 3306
	defaultPostgresPort = 5432
	defaultMaxIdle      = 2
	defaultConnLifetime = 5 * time.Minute
)

var errUnsupportedDialect = errors.New("unsupported db dialect")

// DBConfig has those members which are necessary variables while connecting to database.
type DBConfig struct {
	Dialect     string `label:"DB_DIALECT" validate:"required,oneof=mysql postgres sqlite"`
	HostName    string `label:"DB_HOST" validate:"required_unless=Dialect sqlite"`
	User        string `label:"DB_USER" validate:"required_unless=Dialect sqlite"`
	Password    string
	Port        string `label:"DB_PORT" validate:"omitempty,numeric"`
	Database    string `label:"DB_NAME" validate:"required"`
	SSLMode     string `label:"DB_SSL_MODE" validate:"omitempty,oneof=disable require verify-ca verify-full"`
	MaxIdleConn int    `label:"DB_MAX_IDLE_CONNECTION" validate:"gte=0"`
	MaxOpenConn int    `label:"DB_MAX_OPEN_CONNECTION" validate:"gte=0"`
}

// NewSQL opens the database described by the DB_* configuration keys.
func NewSQL(configs config.Config, logger datasource.Logger, metrics Metrics) (*DB, error) {
	dbConfig := getDBConfig(configs)

	return Open(dbConfig, logger, metrics)
}

// Open validates dbConfig, opens the pool and pings it.
func Open(dbConfig *DBConfig, logger datasource.Logger, metrics Metrics) (*DB, error) {
	if err := validateConfig(dbConfig); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	dsn, err := getDBConnectionString(dbConfig)
	if err != nil {
		return nil, err
	}

	database, err := sql.Open(driverName(dbConfig.Dialect), dsn)
	if err != nil {
		return nil, fmt.Errorf("could not open connection with '%s': %w", dbConfig.Database, err)
	}

	if dbConfig.MaxIdleConn > 0 {
		database.SetMaxIdleConns(dbConfig.MaxIdleConn)
	}

	database.SetMaxOpenConns(dbConfig.MaxOpenConn)
	database.SetConnMaxLifetime(defaultConnLifetime)

	if err := database.Ping(); err != nil {
		_ = database.Close()

		return nil, fmt.Errorf("could not connect with '%s': %w", dbConfig.Database, err)
	}

	if logger != nil {
		logger.Infof("connected to '%s' database at '%s'", dbConfig.Database, hostOrFile(dbConfig))
	}

	return &DB{DB: database, config: dbConfig, logger: logger, metrics: metrics}, nil
}

func hostOrFile(c *DBConfig) string {
	if c.Dialect == DialectSQLite {
		return c.Database
	}

	return net.JoinHostPort(c.HostName, c.Port)
}

func getDBConfig(configs config.Config) *DBConfig {
	dialect := normalizeDialect(configs.GetOrDefault("DB_DIALECT", DialectSQLite))

	port := strconv.Itoa(defaultDBPort)
	if dialect == DialectPostgres {
		port = strconv.Itoa(defaultPostgresPort)
	}

	maxIdle, err := strconv.Atoi(configs.Get("DB_MAX_IDLE_CONNECTION"))
	if err != nil {
		maxIdle = defaultMaxIdle
	}

	// zero means unlimited for database/sql
	maxOpen, _ := strconv.Atoi(configs.Get("DB_MAX_OPEN_CONNECTION"))

	return &DBConfig{
		Dialect:     dialect,
		HostName:    configs.Get("DB_HOST"),
		User:        configs.Get("DB_USER"),
		Password:    configs.Get("DB_PASSWORD"),
		Port:        configs.GetOrDefault("DB_PORT", port),
		Database:    configs.Get("DB_NAME"),
		SSLMode:     configs.GetOrDefault("DB_SSL_MODE", ""),
		MaxIdleConn: maxIdle,
		MaxOpenConn: maxOpen,
	}
}

func normalizeDialect(dialect string) string {
	switch strings.ToLower(strings.TrimSpace(dialect)) {
	case "mysql", "mariadb":
		return DialectMySQL
	case "postgres", "postgresql", "cockroachdb", "supabase":
		return DialectPostgres
	case "sqlite", "sqlite3":
		return DialectSQLite
	default:
		return dialect
	}
}

func driverName(dialect string) string {
	// modernc registers itself as "sqlite", lib/pq as "postgres"
	return dialect
}

func getDBConnectionString(dbConfig *DBConfig) (string, error) {
	switch dbConfig.Dialect {
	case DialectMySQL:
		c := mysql.NewConfig()
		c.User = dbConfig.User
		c.Passwd = dbConfig.Password
		c.Net = "tcp"
		c.Addr = net.JoinHostPort(dbConfig.HostName, dbConfig.Port)
		c.DBName = dbConfig.Database
		c.ParseTime = true
		c.Params = map[string]string{"charset": "utf8mb4"}

		return c.FormatDSN(), nil
	case DialectPostgres:
		sslMode := dbConfig.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}

		return fmt.Sprintf("host=%v port=%v user=%v password=%v dbname=%v sslmode=%v",
			dbConfig.HostName, dbConfig.Port, dbConfig.User, dbConfig.Password, dbConfig.Database, sslMode), nil
	case DialectSQLite:
		return "file:" + dbConfig.Database + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedDialect, dbConfig.Dialect)
	}
}
