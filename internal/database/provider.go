package database

import (
	"context"
	"errors"
)

var (
	postgresRosterReader   func() RosterReader
	postgresEncodingWriter func() EncodingWriter
	postgresLedgerStore    func() LedgerStore
	postgresInitialized    bool
)

// RegisterPostgresBackend registers PostgreSQL repository constructors.
// This is called by commands after the postgres pool is initialized to avoid import cycles.
func RegisterPostgresBackend(
	roster func() RosterReader,
	encodings func() EncodingWriter,
	ledger func() LedgerStore,
) {
	postgresRosterReader = roster
	postgresEncodingWriter = encodings
	postgresLedgerStore = ledger
	postgresInitialized = true
}

// IsInitialized returns whether the PostgreSQL backend has been initialized.
func IsInitialized() bool {
	return postgresInitialized
}

// GetRosterReader returns a RosterReader from the PostgreSQL backend
func GetRosterReader(ctx context.Context) (RosterReader, error) {
	if !postgresInitialized {
		return nil, errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresRosterReader == nil {
		return nil, errors.New("PostgreSQL roster reader not registered")
	}
	return postgresRosterReader(), nil
}

// GetEncodingWriter returns an EncodingWriter from the PostgreSQL backend
func GetEncodingWriter(ctx context.Context) (EncodingWriter, error) {
	if !postgresInitialized {
		return nil, errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresEncodingWriter == nil {
		return nil, errors.New("PostgreSQL encoding writer not registered")
	}
	return postgresEncodingWriter(), nil
}

// GetLedgerStore returns a LedgerStore from the PostgreSQL backend
func GetLedgerStore(ctx context.Context) (LedgerStore, error) {
	if !postgresInitialized {
		return nil, errors.New("PostgreSQL backend not initialized: DATABASE_URL is required")
	}
	if postgresLedgerStore == nil {
		return nil, errors.New("PostgreSQL ledger store not registered")
	}
	return postgresLedgerStore(), nil
}
