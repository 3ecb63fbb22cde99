package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	telemetrypostgres "iot-ingestor/internal/telemetry/infrastructure/postgres"
	"iot-ingestor/internal/telemetry/interfaces/report"
)

// Offline export: pulls a device's stored readings for a time range and
// writes an operator report as .xlsx, .pdf, or both.

func main() {
	var (
		dsn    = flag.String("dsn", getenvDefault("DATABASE_URL", ""), "Postgres connection string")
		device = flag.String("device", "", "device id to export")
		from   = flag.String("from", "", "range start, RFC 3339")
		to     = flag.String("to", "", "range end, RFC 3339 (default now)")
		limit  = flag.Int("limit", 10000, "maximum readings to export")
		outDir = flag.String("out", ".", "output directory")
		format = flag.String("format", "both", "xlsx, pdf, or both")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("DATABASE_URL or -dsn is required")
	}
	if *device == "" {
		log.Fatal("-device is required")
	}
	fromTime, err := time.Parse(time.RFC3339, *from)
	if err != nil {
		log.Fatalf("invalid -from: %v", err)
	}
	toTime := time.Now().UTC()
	if *to != "" {
		toTime, err = time.Parse(time.RFC3339, *to)
		if err != nil {
			log.Fatalf("invalid -to: %v", err)
		}
	}
	if *format != "xlsx" && *format != "pdf" && *format != "both" {
		log.Fatalf("unknown -format %q", *format)
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	query := telemetrypostgres.NewReadingQuery(db)
	readings, err := query.ListRange(context.Background(), *device, fromTime, toTime, *limit)
	if err != nil {
		log.Fatalf("query readings: %v", err)
	}
	log.Printf("export: device=%s readings=%d range=%s..%s", *device, len(readings), fromTime.Format(time.RFC3339), toTime.Format(time.RFC3339))

	rep := report.RangeReport{DeviceID: *device, From: fromTime, To: toTime, Readings: readings}
	stamp := time.Now().UTC().Format("20060102T150405")

	if *format == "xlsx" || *format == "both" {
		data, err := report.BuildXLSX(rep)
		if err != nil {
			log.Fatalf("build xlsx: %v", err)
		}
		path := filepath.Join(*outDir, fmt.Sprintf("telemetry-%s-%s.xlsx", *device, stamp))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		log.Printf("wrote %s", path)
	}
	if *format == "pdf" || *format == "both" {
		data, err := report.BuildPDF(rep)
		if err != nil {
			log.Fatalf("build pdf: %v", err)
		}
		path := filepath.Join(*outDir, fmt.Sprintf("telemetry-%s-%s.pdf", *device, stamp))
		if err := os.WriteFile(path, data, 0o644); err != nil {
			log.Fatalf("write %s: %v", path, err)
		}
		log.Printf("wrote %s", path)
	}
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
