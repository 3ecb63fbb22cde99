package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"log"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"

	telemetry "iot-ingestor/internal/telemetry/domain"
	telemetrypostgres "iot-ingestor/internal/telemetry/infrastructure/postgres"
)

// Offline replay: feeds newline-delimited JSON readings from a file through
// the same decode/validate path as the live receiver and bulk-inserts them.
// Re-running a file is safe; duplicates are skipped by the store.

func main() {
	var (
		dsn       = flag.String("dsn", getenvDefault("DATABASE_URL", ""), "Postgres connection string")
		file      = flag.String("file", "", "newline-delimited JSON readings file")
		batchSize = flag.Int("batch", 2000, "rows per bulk insert")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("DATABASE_URL or -dsn is required")
	}
	if *file == "" {
		log.Fatal("-file is required")
	}
	if *batchSize <= 0 {
		log.Fatal("-batch must be > 0")
	}

	in, err := os.Open(*file)
	if err != nil {
		log.Fatalf("open input: %v", err)
	}
	defer in.Close()

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	repo := telemetrypostgres.NewReadingRepository(db)
	ctx := context.Background()

	var (
		lines        int
		invalid      int
		inserted     int64
		deduplicated int64
		batch        = make([]telemetry.Reading, 0, *batchSize)
	)

	flush := func() {
		if len(batch) == 0 {
			return
		}
		result, err := repo.InsertReadings(ctx, batch)
		if err != nil {
			log.Fatalf("insert batch: %v", err)
		}
		inserted += result.Inserted
		deduplicated += result.Deduplicated
		batch = batch[:0]
	}

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		lines++

		reading, err := telemetry.DecodeReading(line)
		if err == nil {
			err = telemetry.Validate(reading)
		}
		if err != nil {
			invalid++
			if errors.Is(err, telemetry.ErrDecode) || errors.Is(err, telemetry.ErrValidation) {
				continue
			}
			log.Fatalf("line %d: %v", lines, err)
		}

		batch = append(batch, reading)
		if len(batch) >= *batchSize {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("read input: %v", err)
	}
	flush()

	log.Printf("replay done: lines=%d invalid=%d inserted=%d deduplicated=%d", lines, invalid, inserted, deduplicated)
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
