package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dvloznov/mpesa-insights/internal/analytics"
	"github.com/dvloznov/mpesa-insights/internal/app"
	"github.com/dvloznov/mpesa-insights/internal/config"
	"github.com/dvloznov/mpesa-insights/internal/domain"
	"github.com/dvloznov/mpesa-insights/internal/export"
	"github.com/dvloznov/mpesa-insights/internal/gcsuploader"
	"github.com/dvloznov/mpesa-insights/internal/insights"
	"github.com/dvloznov/mpesa-insights/internal/logger"
	"github.com/dvloznov/mpesa-insights/internal/pdftables"
	"github.com/dvloznov/mpesa-insights/internal/pipeline"
	"github.com/rs/zerolog"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load(".env")
	if err != nil {
		bootLog := logger.New()
		bootLog.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log := logger.NewWithLevel(os.Stderr, cfg.LogLevel)

	switch os.Args[1] {
	case "analyze":
		runAnalyze(cfg, log)
	case "export":
		runExport(cfg, log)
	case "insights":
		runInsights(cfg, log)
	case "models":
		runModels(cfg, log)
	case "tables":
		runTables(cfg, log)
	case "ingest":
		runIngest(cfg, log)
	case "upload":
		runUpload(cfg, log)
	case "history":
		runHistory(cfg, log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("M-Pesa Insights CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  analyze   Print KPIs, breakdowns and trends for a local statement")
	fmt.Println("  export    Write the cleaned transactions of a statement as CSV")
	fmt.Println("  insights  Ask Gemini for an assessment of a statement")
	fmt.Println("  models    List the Gemini models available for insights")
	fmt.Println("  tables    Dump the raw tables Gemini extracts from a PDF statement")
	fmt.Println("  ingest    Parse a statement and archive it in GCS and BigQuery")
	fmt.Println("  upload    Upload a statement file to GCS")
	fmt.Println("  history   Summarize archived transactions from BigQuery")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// filterFlags are the ledger filters shared by analyze and export.
type filterFlags struct {
	start  *string
	end    *string
	search *string
}

func addFilterFlags(fs *flag.FlagSet) filterFlags {
	return filterFlags{
		start:  fs.String("start", "", "Only include transactions on or after this date (YYYY-MM-DD)"),
		end:    fs.String("end", "", "Only include transactions on or before this date (YYYY-MM-DD)"),
		search: fs.String("q", "", "Only include transactions whose details contain this text"),
	}
}

func (f filterFlags) apply(ledger domain.Ledger) (domain.Ledger, error) {
	return filterLedger(ledger, *f.start, *f.end, *f.search)
}

// ingestLocal parses a local statement file without touching any sink.
func ingestLocal(ctx context.Context, cfg *config.Config, log zerolog.Logger, path string) (*pipeline.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	local := *cfg
	local.GCSBucket = ""
	local.BigQueryProject = ""
	local.BigQueryDataset = ""

	services, err := app.Build(ctx, &local, log)
	if err != nil {
		return nil, err
	}
	defer services.Close()

	return services.Ingestor.Ingest(ctx, pipeline.Request{
		Filename: filepath.Base(path),
		Data:     data,
	})
}

func commandContext(log zerolog.Logger, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return logger.WithContext(ctx, log), cancel
}

func runAnalyze(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	file := fs.String("file", "", "Path to an M-Pesa statement (PDF or CSV)")
	top := fs.Int("top", analytics.DefaultTopCounterparties, "Number of counterparties to list")
	filters := addFilterFlags(fs)
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Usage: cli analyze -file PATH [-start DATE] [-end DATE] [-q TEXT]")
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	res, err := ingestLocal(ctx, cfg, log, *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read statement")
	}

	ledger, err := filters.apply(res.Ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid filter")
	}

	printReport(os.Stdout, res.Filename, res.Report)
	printAnalysis(os.Stdout, ledger, *top)
}

func runExport(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	file := fs.String("file", "", "Path to an M-Pesa statement (PDF or CSV)")
	out := fs.String("out", "", "Output CSV path (defaults to a name derived from the statement)")
	filters := addFilterFlags(fs)
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Usage: cli export -file PATH [-out PATH] [-start DATE] [-end DATE] [-q TEXT]")
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	res, err := ingestLocal(ctx, cfg, log, *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read statement")
	}

	ledger, err := filters.apply(res.Ledger)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid filter")
	}

	if *out == "" {
		*out = export.Filename(res.Filename)
	}

	f, err := os.Create(*out)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create output file")
	}
	defer f.Close()

	if err := export.WriteCSV(f, ledger); err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("Wrote %d transactions to %s\n", ledger.Len(), *out)
}

func runInsights(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("insights", flag.ExitOnError)
	file := fs.String("file", "", "Path to an M-Pesa statement (PDF or CSV)")
	model := fs.String("model", "", "Gemini model (defaults to GEMINI_MODEL)")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Usage: cli insights -file PATH [-model NAME]")
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	res, err := ingestLocal(ctx, cfg, log, *file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read statement")
	}

	advisor, err := insights.NewGeminiAdvisor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create advisor")
	}

	text, err := advisor.WithModel(*model).GenerateInsights(ctx, analytics.BuildInsightSummary(res.Ledger))
	if err != nil {
		fmt.Fprintln(os.Stderr, insights.Notice(err))
		os.Exit(1)
	}

	fmt.Println(text)
}

func runModels(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := commandContext(log, time.Minute)
	defer cancel()

	advisor, err := insights.NewGeminiAdvisor(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create advisor")
	}

	models, err := advisor.ListModels(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, insights.Notice(err))
		os.Exit(1)
	}

	for _, m := range models {
		marker := " "
		if m == advisor.Model() {
			marker = "*"
		}
		fmt.Printf("%s %s\n", marker, m)
	}
}

func runTables(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("tables", flag.ExitOnError)
	file := fs.String("file", "", "Path to a PDF statement")
	model := fs.String("model", cfg.GeminiModel, "Gemini model")
	fs.Parse(os.Args[2:])

	if *file == "" {
		log.Fatal().Msg("Usage: cli tables -file PATH [-model NAME]")
	}
	if cfg.GeminiAPIKey == "" {
		log.Fatal().Msg("GEMINI_API_KEY must be set to extract PDF tables")
	}

	pdf, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read PDF")
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	extractor, err := pdftables.NewGeminiExtractor(ctx, cfg.GeminiAPIKey, *model)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create extractor")
	}

	pages, err := extractor.ExtractTables(ctx, pdf)
	if err != nil {
		log.Fatal().Err(err).Msg("Extraction failed")
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(pages); err != nil {
		log.Fatal().Err(err).Msg("Failed to write tables")
	}
}

func runIngest(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	file := fs.String("file", "", "Path to a local statement")
	gcsURI := fs.String("gcs-uri", "", "GCS URI of a statement")
	format := fs.String("format", "", "Force statement format (csv or pdf)")
	fs.Parse(os.Args[2:])

	if (*file == "") == (*gcsURI == "") {
		log.Fatal().Msg("Usage: cli ingest (-file PATH | -gcs-uri URI) [-format csv|pdf]")
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	services, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	req := pipeline.Request{GCSURI: *gcsURI, Format: *format}
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read file")
		}
		req.Filename = filepath.Base(*file)
		req.Data = data
	}

	log.Info().Str("file", *file).Str("gcs_uri", *gcsURI).Msg("Starting ingestion")

	res, err := services.Ingestor.Ingest(ctx, req)
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Printf("Ingested %d transactions from %s\n", res.Ledger.Len(), res.Filename)
	if res.ArchiveURI != "" {
		fmt.Printf("Raw statement: %s\n", res.ArchiveURI)
	}
	if res.StatementID != "" {
		fmt.Printf("BigQuery statement ID: %s\n", res.StatementID)
	}
}

func runUpload(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("upload", flag.ExitOnError)
	bucketName := fs.String("bucket", cfg.GCSBucket, "GCS bucket name (defaults to GCS_BUCKET)")
	objectName := fs.String("object", "", "GCS object name (defaults to statements/<sha256>/<filename>)")
	filePath := fs.String("file", "", "Path to local statement file")
	fs.Parse(os.Args[2:])

	if *bucketName == "" || *filePath == "" {
		log.Fatal().Msg("Usage: cli upload -bucket NAME -file PATH")
	}

	if *objectName == "" {
		data, err := os.ReadFile(*filePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to read file")
		}
		*objectName = gcsuploader.StatementObjectName(domain.Checksum(data), *filePath)
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	log.Info().
		Str("bucket", *bucketName).
		Str("object", *objectName).
		Str("file", *filePath).
		Msg("Uploading file to GCS")

	if err := gcsuploader.UploadFile(ctx, *bucketName, *objectName, *filePath); err != nil {
		log.Fatal().Err(err).Msg("Upload failed")
	}

	fmt.Printf("Uploaded %s to %s\n", *filePath, gcsuploader.GCSURI(*bucketName, *objectName))
}

func runHistory(cfg *config.Config, log zerolog.Logger) {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	start := fs.String("start", "", "First day (YYYY-MM-DD, defaults to 90 days ago)")
	end := fs.String("end", "", "Last day (YYYY-MM-DD, defaults to today)")
	top := fs.Int("top", analytics.DefaultTopCounterparties, "Number of counterparties to list")
	fs.Parse(os.Args[2:])

	if !cfg.ArchiveEnabled() {
		log.Fatal().Msg("BIGQUERY_PROJECT must be set to query the archive")
	}

	endDate := time.Now().UTC()
	startDate := endDate.AddDate(0, 0, -90)
	var err error
	if *start != "" {
		if startDate, err = parseDate(*start); err != nil {
			log.Fatal().Err(err).Msg("Invalid -start")
		}
	}
	if *end != "" {
		if endDate, err = parseDate(*end); err != nil {
			log.Fatal().Err(err).Msg("Invalid -end")
		}
	}

	ctx, cancel := commandContext(log, 5*time.Minute)
	defer cancel()

	services, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Close()

	rows, err := services.Archive.QueryTransactionsByDateRange(ctx, startDate, endDate)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to query transactions")
	}

	ledger := make(domain.Ledger, 0, len(rows))
	for _, row := range rows {
		ledger = append(ledger, row.ToTransaction())
	}

	fmt.Printf("Archived transactions %s to %s\n", startDate.Format(dateLayout), endDate.Format(dateLayout))
	printAnalysis(os.Stdout, ledger, *top)
}
