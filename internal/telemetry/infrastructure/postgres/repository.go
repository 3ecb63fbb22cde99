package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	telemetry "iot-ingestor/internal/telemetry/domain"
)

const defaultReadingTable = "telemetry"

// ReadingRepository is the Postgres store for telemetry readings.
type ReadingRepository struct {
	db    *sql.DB
	table string
}

// RepositoryOption configures the repository.
type RepositoryOption func(*ReadingRepository)

// WithTable overrides the default table name.
func WithTable(table string) RepositoryOption {
	return func(repo *ReadingRepository) {
		if table != "" {
			repo.table = table
		}
	}
}

// NewReadingRepository constructs a repository with the default table name.
func NewReadingRepository(db *sql.DB, opts ...RepositoryOption) *ReadingRepository {
	repo := &ReadingRepository{db: db, table: defaultReadingTable}
	for _, opt := range opts {
		opt(repo)
	}
	return repo
}

// InsertReadings bulk-inserts a sealed batch in a single round trip.
// Duplicate (device_id, ts) pairs are skipped by the table's uniqueness
// constraint; the result distinguishes inserted rows from skipped ones.
// Failures the store is expected to recover from wrap ErrTransientStore.
func (r *ReadingRepository) InsertReadings(ctx context.Context, readings []telemetry.Reading) (telemetry.WriteResult, error) {
	if r == nil || r.db == nil {
		return telemetry.WriteResult{}, errors.New("telemetry repo: nil db")
	}
	if len(readings) == 0 {
		return telemetry.WriteResult{}, nil
	}

	deviceIDs := make([]string, len(readings))
	timestamps := make([]time.Time, len(readings))
	temperatures := make([]float64, len(readings))
	humidities := make([]float64, len(readings))
	batteries := make([]float64, len(readings))
	for i, reading := range readings {
		deviceIDs[i] = reading.DeviceID
		timestamps[i] = reading.Timestamp
		temperatures[i] = reading.Temperature
		humidities[i] = reading.Humidity
		batteries[i] = reading.Battery
	}

	query := fmt.Sprintf(`
INSERT INTO %s (device_id, ts, temperature, humidity, battery)
SELECT * FROM UNNEST($1::text[], $2::timestamptz[], $3::float8[], $4::float8[], $5::float8[])
ON CONFLICT (device_id, ts) DO NOTHING`, r.table)

	result, err := r.db.ExecContext(ctx, query, deviceIDs, timestamps, temperatures, humidities, batteries)
	if err != nil {
		if isTransient(err) {
			return telemetry.WriteResult{}, fmt.Errorf("insert readings: %w: %w", telemetry.ErrTransientStore, err)
		}
		return telemetry.WriteResult{}, fmt.Errorf("insert readings: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return telemetry.WriteResult{}, fmt.Errorf("insert readings: rows affected: %w", err)
	}
	return telemetry.WriteResult{
		Inserted:     inserted,
		Deduplicated: int64(len(readings)) - inserted,
	}, nil
}

// isTransient reports whether a store failure is worth retrying. SQLSTATE
// class 08 covers connection exceptions; 53300 is pool exhaustion, 57P03
// cannot-connect-now, 57014 a cancelled (timed out) statement.
func isTransient(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if strings.HasPrefix(pgErr.Code, "08") {
			return true
		}
		switch pgErr.Code {
		case "53300", "57P03", "57014":
			return true
		}
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
