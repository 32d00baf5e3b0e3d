package pipeline

// Content types recorded on archived raw statements.
const (
	contentTypeCSV = "text/csv"
	contentTypePDF = "application/pdf"
)

// DefaultFilename names statements that arrive without a filename.
const DefaultFilename = "statement"
