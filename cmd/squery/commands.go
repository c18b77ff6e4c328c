package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v3"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/sllt/squery/pkg/squery/config"
	squerySQL "github.com/sllt/squery/pkg/squery/datasource/sql"
	"github.com/sllt/squery/pkg/squery/datasource/sql/qb"
	"github.com/sllt/squery/pkg/squery/logging"
	"github.com/sllt/squery/pkg/squery/metrics"
	"github.com/sllt/squery/pkg/squery/migration"
	"github.com/sllt/squery/pkg/squery/tracing"
)

const sqlStatsMetric = "app_sql_stats"

var errNoMigrationSource = errors.New("please provide --file or --dir")

// env is what every database command works with. close releases the pool,
// flushes pending spans and dumps the SQL metrics when --metrics-out is set.
type env struct {
	logger     logging.Logger
	db         *squerySQL.DB
	store      *qb.Store
	tracer     *sdktrace.TracerProvider
	registry   *prometheus.Registry
	metricsOut string
	out        io.Writer
}

func (e *env) close(ctx context.Context) {
	if err := e.db.Close(); err != nil {
		e.logger.Errorf("error closing database: %v", err)
	}

	if e.tracer != nil {
		if err := e.tracer.Shutdown(ctx); err != nil {
			e.logger.Errorf("error flushing traces: %v", err)
		}
	}

	if e.metricsOut != "" {
		if err := prometheus.WriteToTextfile(e.metricsOut, e.registry); err != nil {
			e.logger.Errorf("error writing metrics to %s: %v", e.metricsOut, err)
		}
	}
}

func openEnv(ctx context.Context, cmd *cli.Command) (*env, error) {
	root := cmd.Root()
	logger := logging.NewWriterLogger(root.ErrWriter, logging.GetLevelFromString(root.String("log-level")))

	cfg := config.NewEnvFile(root.String("config"), logger)

	registry := prometheus.NewRegistry()

	manager := metrics.NewManager(registry, logger)
	if err := manager.NewHistogram(sqlStatsMetric, "Response time of SQL statements in microseconds.",
		[]string{"hostname", "database", "type"}, .05, .075, .1, .125, .15, .2, .3, .5, .75, 1, 2, 3, 4, 5, 7.5, 10); err != nil {
		return nil, errors.Wrap(err, "registering sql metrics")
	}

	db, err := squerySQL.NewSQL(cfg, logger, manager)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}

	tp, err := tracing.New(ctx, cfg, logger)
	if err != nil {
		_ = db.Close()

		return nil, errors.Wrap(err, "configuring tracing")
	}

	if tp != nil {
		db.UseTracer(tp.Tracer("squery"))
	}

	store, err := qb.NewStore(db, logger)
	if err != nil {
		_ = db.Close()

		return nil, err
	}

	return &env{
		logger:     logger,
		db:         db,
		store:      store,
		tracer:     tp,
		registry:   registry,
		metricsOut: root.String("metrics-out"),
		out:        root.Writer,
	}, nil
}

func versionAction(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	if cmd.IsSet("set") {
		if err := e.db.SetUserVersion(ctx, cmd.Int64("set")); err != nil {
			return errors.Wrap(err, "setting user version")
		}
	}

	v, err := e.db.UserVersion(ctx)
	if err != nil {
		return errors.Wrap(err, "reading user version")
	}

	fmt.Fprintln(e.out, v)

	return nil
}

func migrateAction(ctx context.Context, cmd *cli.Command) error {
	var (
		migrations map[int64]migration.Migrate
		err        error
	)

	switch {
	case cmd.String("file") != "":
		migrations, err = migration.LoadFile(cmd.String("file"))
	case cmd.String("dir") != "":
		migrations, err = migration.LoadDir(cmd.String("dir"))
	default:
		return errNoMigrationSource
	}

	if err != nil {
		return err
	}

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	pending, err := migration.Pending(ctx, e.db, migrations)
	if err != nil {
		return err
	}

	if err := migration.Run(ctx, e.db, e.logger, migrations); err != nil {
		return err
	}

	fmt.Fprintf(e.out, "applied %d migration(s)\n", len(pending))

	return nil
}

func countAction(ctx context.Context, cmd *cli.Command) error {
	table := cmd.StringArg("table")
	if table == "" {
		return fmt.Errorf("please provide a table name, e.g.: squery count users")
	}

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	q := e.store.From(table)

	if where := cmd.String("where"); where != "" {
		q.Where(where, toArgs(cmd.StringSlice("arg"))...)
	}

	if cmd.Bool("distinct") {
		q.Distinct()
	}

	n, err := q.Count(ctx, cmd.StringSlice("column")...)
	if err != nil {
		return errors.Wrapf(err, "counting %s", table)
	}

	fmt.Fprintln(e.out, n)

	return nil
}

func queryAction(ctx context.Context, cmd *cli.Command) error {
	query := cmd.StringArg("sql")
	if query == "" {
		return fmt.Errorf("please provide a statement, e.g.: squery query \"SELECT * FROM users\"")
	}

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	cur, err := e.store.ExecuteQuery(ctx, query, toArgs(cmd.StringSlice("arg"))...)
	if err != nil {
		return err
	}
	defer cur.Close()

	w := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)

	for set := true; set; set = cur.NextResultSet() {
		writeRow(w, toArgs(cur.Columns()))

		for cur.Next() {
			row := make([]any, 0, len(cur.Columns()))

			for _, col := range cur.Columns() {
				v, _ := cur.Value(col)
				row = append(row, displayValue(v))
			}

			writeRow(w, row)
		}
	}

	if err := cur.Err(); err != nil {
		return err
	}

	return w.Flush()
}

func writeRow(w io.Writer, cells []any) {
	for i, c := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}

		fmt.Fprint(w, c)
	}

	fmt.Fprintln(w)
}

func displayValue(v any) any {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(t)
	default:
		return t
	}
}

func tablesAction(ctx context.Context, cmd *cli.Command) error {
	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.close(ctx)

	var names []string

	if err := e.db.Select(ctx, &names, tablesQuery(e.db.Dialect())); err != nil {
		return errors.Wrap(err, "listing tables")
	}

	for _, n := range names {
		fmt.Fprintln(e.out, n)
	}

	return nil
}

func tablesQuery(dialect string) string {
	switch dialect {
	case squerySQL.DialectMySQL:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() ORDER BY table_name"
	case squerySQL.DialectPostgres:
		return "SELECT table_name FROM information_schema.tables WHERE table_schema = current_schema() ORDER BY table_name"
	default:
		return "SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name"
	}
}
