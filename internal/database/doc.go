// Package database builds the pgx connection pool used by the tick recorder.
package database
