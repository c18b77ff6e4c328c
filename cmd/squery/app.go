package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/sllt/squery/pkg/squery/datasource/sql/qb"
)

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "squery",
		Usage:   "Inspect and migrate databases through the squery builder",
		Version: CLIVersion,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "Folder holding the .env files",
				Value: "./configs",
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "DEBUG, INFO, NOTICE, WARN, ERROR or FATAL",
				Value:   "INFO",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "metrics-out",
				Usage:   "Write the app_sql_stats histogram to this file in Prometheus text format on exit",
				Sources: cli.EnvVars("METRICS_OUT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "params",
				Usage: "Print the @name placeholders of a statement",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "sql",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					query := cmd.StringArg("sql")
					if query == "" {
						return fmt.Errorf("please provide a statement, e.g.: squery params \"SELECT * FROM t WHERE id=@id\"")
					}

					for _, p := range qb.ExtractParams(query) {
						fmt.Fprintln(cmd.Root().Writer, p)
					}

					return nil
				},
			},
			{
				Name:  "version",
				Usage: "Print or set the schema user version",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "set",
						Usage: "Store this user version instead of printing it",
					},
				},
				Action: versionAction,
			},
			{
				Name:  "migrate",
				Usage: "Run pending YAML migration steps and advance the user version. No schema diffing",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "YAML migration file",
					},
					&cli.StringFlag{
						Name:  "dir",
						Usage: "Directory of YAML migration files",
					},
				},
				Action: migrateAction,
				Commands: []*cli.Command{
					{
						Name:  "create",
						Usage: "Create a new migration file",
						Flags: []cli.Flag{
							&cli.StringFlag{
								Name:  "out",
								Usage: "Directory the migration file is written to",
								Value: "migrations",
							},
						},
						Arguments: []cli.Argument{
							&cli.StringArg{
								Name: "migration-name",
							},
						},
						Action: func(_ context.Context, cmd *cli.Command) error {
							path, err := createMigration(cmd.String("out"), cmd.StringArg("migration-name"), time.Now())
							if err != nil {
								return err
							}

							fmt.Fprintf(cmd.Root().Writer, "Successfully created migration %v\n", path)

							return nil
						},
					},
				},
			},
			{
				Name:  "count",
				Usage: "Count the rows of a table",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "table",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "where",
						Usage: "WHERE clause, may use @name placeholders",
					},
					&cli.StringSliceFlag{
						Name:  "arg",
						Usage: "Value for the next distinct placeholder of --where",
					},
					&cli.BoolFlag{
						Name:  "distinct",
						Usage: "Count distinct values of --column",
					},
					&cli.StringSliceFlag{
						Name:  "column",
						Usage: "Columns to count",
					},
				},
				Action: countAction,
			},
			{
				Name:  "query",
				Usage: "Run a statement and print the rows it returns",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "sql",
					},
				},
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:  "arg",
						Usage: "Value for the next distinct placeholder",
					},
				},
				Action: queryAction,
			},
			{
				Name:   "tables",
				Usage:  "List the tables of the database",
				Action: tablesAction,
			},
		},
	}
}

func toArgs(values []string) []any {
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}

	return args
}
