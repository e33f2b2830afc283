// Package memory provides an in-process implementation of the store
// interfaces. It honors the same uniqueness and ownership rules as the
// PostgreSQL implementation and is used for local runs and tests.
package memory
