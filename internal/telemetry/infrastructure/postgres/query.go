package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	telemetry "iot-ingestor/internal/telemetry/domain"
)

// ReadingQuery loads stored readings for offline tooling. The serving query
// API lives outside this process; this covers exports and replays only.
type ReadingQuery struct {
	db    *sql.DB
	table string
}

// NewReadingQuery constructs a query helper with the default table name.
func NewReadingQuery(db *sql.DB) *ReadingQuery {
	return &ReadingQuery{db: db, table: defaultReadingTable}
}

// ListRange returns readings for a device inside [from, to), newest first,
// using the (device_id, ts DESC) index.
func (q *ReadingQuery) ListRange(ctx context.Context, deviceID string, from, to time.Time, limit int) ([]telemetry.Reading, error) {
	if q == nil || q.db == nil {
		return nil, errors.New("telemetry query: nil db")
	}
	if deviceID == "" {
		return nil, errors.New("telemetry query: empty device id")
	}
	if limit <= 0 {
		limit = 1000
	}

	query := fmt.Sprintf(`
SELECT device_id, ts, temperature, humidity, battery
FROM %s
WHERE device_id = $1 AND ts >= $2 AND ts < $3
ORDER BY device_id, ts DESC
LIMIT $4`, q.table)

	rows, err := q.db.QueryContext(ctx, query, deviceID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("list readings: %w", err)
	}
	defer rows.Close()

	var readings []telemetry.Reading
	for rows.Next() {
		var r telemetry.Reading
		if err := rows.Scan(&r.DeviceID, &r.Timestamp, &r.Temperature, &r.Humidity, &r.Battery); err != nil {
			return nil, fmt.Errorf("scan reading: %w", err)
		}
		r.Timestamp = r.Timestamp.UTC()
		readings = append(readings, r)
	}
	return readings, rows.Err()
}
