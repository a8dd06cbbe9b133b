// Package memoryengine provides an in-memory entitystore.Engine.
//
// Filters are parsed with entitystore.ParseFilter and evaluated against the JSON form of each entity, so the
// engine honours the same operator semantics as the PostgreSQL engine. It is safe for concurrent use and is
// meant for tests and for the command line tool's dry runs.
package memoryengine
