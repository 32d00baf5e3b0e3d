package statement

import (
	"errors"
	"fmt"

	"github.com/dvloznov/mpesa-insights/internal/domain"
)

// Fatal ingestion errors. Every failure returned by Normalize or Clean wraps
// exactly one of these, so callers can classify with errors.Is.
var (
	// ErrUnsupportedFormat is returned when the declared format tag is not csv or pdf.
	ErrUnsupportedFormat = errors.New("statement: unsupported format")

	// ErrHeaderNotFound is returned when no CSV header row was found in the scan window.
	ErrHeaderNotFound = errors.New("statement: transaction header not found")

	// ErrNoTransactionsFound is returned when a PDF contains no recognizable transaction table.
	ErrNoTransactionsFound = errors.New("statement: no transaction tables found")

	// ErrParseFailure is returned for any other structural failure.
	ErrParseFailure = errors.New("statement: parse failure")

	// ErrAmbiguousHeader is returned when two source headers map to the same canonical
	// field and the cleaner is configured to reject such tables.
	ErrAmbiguousHeader = errors.New("statement: ambiguous header mapping")

	// ErrMissingReceiptColumn is returned when no header maps to the receipt number.
	ErrMissingReceiptColumn = errors.New("statement: no receipt number column")
)

// IngestError carries the failure kind together with the format being ingested.
type IngestError struct {
	Kind   error
	Format domain.Format
	Err    error
}

func (e *IngestError) Error() string {
	msg := e.Kind.Error()
	if e.Format != "" {
		msg = fmt.Sprintf("%s (format %s)", msg, e.Format)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes both the kind and the underlying cause to errors.Is and errors.As.
func (e *IngestError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func newIngestError(kind error, format domain.Format, cause error) *IngestError {
	return &IngestError{Kind: kind, Format: format, Err: cause}
}

// IsUnsupportedFormat checks if err reports an unrecognized format tag.
func IsUnsupportedFormat(err error) bool {
	return errors.Is(err, ErrUnsupportedFormat)
}

// IsHeaderNotFound checks if err reports a missing CSV header row.
func IsHeaderNotFound(err error) bool {
	return errors.Is(err, ErrHeaderNotFound)
}

// IsNoTransactionsFound checks if err reports a PDF without transaction tables.
func IsNoTransactionsFound(err error) bool {
	return errors.Is(err, ErrNoTransactionsFound)
}

// IsParseFailure checks if err reports a generic structural failure.
func IsParseFailure(err error) bool {
	return errors.Is(err, ErrParseFailure)
}

// ClassifyError returns a short, stable name for the failure kind.
// It is suitable for API responses and log fields.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, ErrHeaderNotFound):
		return "header_not_found"
	case errors.Is(err, ErrNoTransactionsFound):
		return "no_transactions_found"
	case errors.Is(err, ErrParseFailure):
		return "parse_failure"
	default:
		return "internal"
	}
}

// UserMessage returns a fixed, user-facing sentence for the failure kind of err.
// It never includes the wrapped cause.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return "Unsupported file type. Please upload a PDF or CSV M-Pesa statement."
	case errors.Is(err, ErrHeaderNotFound):
		return "Could not find the transaction table header in this CSV statement."
	case errors.Is(err, ErrNoTransactionsFound):
		return "No transaction tables were found in this PDF statement."
	case errors.Is(err, ErrMissingReceiptColumn):
		return "The statement has no Receipt No. column."
	case errors.Is(err, ErrAmbiguousHeader):
		return "The statement has several columns for the same field."
	case errors.Is(err, ErrParseFailure):
		return "The statement could not be read."
	default:
		return "The statement could not be processed."
	}
}
