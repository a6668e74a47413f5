// Package testdoubles provides spies for the ledger observability interfaces.
//
// The spies record every call so tests can assert which logs, metrics and spans an
// operation produced without an observability backend.
package testdoubles
