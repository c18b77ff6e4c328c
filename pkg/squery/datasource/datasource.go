/*
Package datasource holds the contracts shared by squery's storage backends.
The SQL backend lives in datasource/sql and its statement builder in
datasource/sql/qb.
*/
package datasource

// Logger is the subset of logging.Logger a datasource writes to.
type Logger interface {
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
}
