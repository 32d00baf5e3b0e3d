package pipeline

import (
	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/dvloznov/mpesa-insights/internal/statement"
)

// Request describes one statement to ingest. Either Data or GCSURI must be set.
type Request struct {
	SessionID string
	Filename  string
	// Format overrides the format derived from Filename.
	Format string
	Data   []byte
	GCSURI string
}

// Result is the outcome of a successful ingestion.
type Result struct {
	Filename    string
	Format      domain.Format
	Checksum    string
	Ledger      domain.Ledger
	Report      *statement.Report
	ArchiveURI  string // empty when the raw file was not archived
	StatementID string // empty when the ledger was not written to the warehouse
	Data        []byte
}
