// Package postgres provides PostgreSQL-specific implementations for the data
// storage interfaces defined in the internal/store package. It handles
// connection setup, embedded goose migrations, query building and mapping
// between domain entities and database records.
package postgres
