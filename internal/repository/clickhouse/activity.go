package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"tradelens/internal/events"
	"tradelens/internal/metrics"
	"tradelens/pkg/clickhouse"
	"tradelens/pkg/errors"
	"tradelens/pkg/logger"
)

// DefaultActivityTable is where activity events land
const DefaultActivityTable = "user_activity"

// ActivityColumns is the column list of the activity table
const ActivityColumns = `timestamp DateTime64(3, 'UTC'),
	event_id UUID,
	user_id String,
	activity_type LowCardinality(String),
	query String,
	source LowCardinality(String),
	duration_ms Int64,
	data String`

// ActivityRepositoryConfig tunes batching for the activity table
type ActivityRepositoryConfig struct {
	Table        string
	MaxBatchSize int
	MaxAge       time.Duration
}

// ActivityRepository stores user activity in ClickHouse. InsertBatch writes
// synchronously; Store buffers through a BatchWriter.
type ActivityRepository struct {
	conn        driver.Conn
	table       string
	batchWriter *clickhouse.BatchWriter[events.ActivityEvent]
	log         *logger.Logger
}

var _ events.ActivityStore = (*ActivityRepository)(nil)

// NewActivityRepository creates an activity repository with its batch writer
func NewActivityRepository(conn driver.Conn, cfg ActivityRepositoryConfig) *ActivityRepository {
	if cfg.Table == "" {
		cfg.Table = DefaultActivityTable
	}

	repo := &ActivityRepository{
		conn:  conn,
		table: cfg.Table,
		log:   logger.Get().With("component", "activity_repository", "table", cfg.Table),
	}
	repo.batchWriter = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig[events.ActivityEvent]{
		FlushFunc:    repo.InsertBatch,
		TableName:    cfg.Table,
		MaxBatchSize: cfg.MaxBatchSize,
		MaxAge:       cfg.MaxAge,
	})
	return repo
}

// EnsureSchema creates the activity table when it does not exist
func (r *ActivityRepository) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (activity_type, user_id, timestamp)
		TTL toDateTime(timestamp) + INTERVAL 365 DAY`, r.table, ActivityColumns)
	if err := r.conn.Exec(ctx, query); err != nil {
		return errors.Wrapf(err, "create table %s", r.table)
	}
	return nil
}

// Start begins the background flush loop
func (r *ActivityRepository) Start(ctx context.Context) {
	r.batchWriter.Start(ctx)
}

// Stop flushes buffered events and stops the batch writer
func (r *ActivityRepository) Stop(ctx context.Context) error {
	return r.batchWriter.Stop(ctx)
}

// Store buffers one event for a later batch insert
func (r *ActivityRepository) Store(ctx context.Context, ev events.ActivityEvent) error {
	return r.batchWriter.Add(ctx, ev)
}

// InsertBatch writes events in a single INSERT
func (r *ActivityRepository) InsertBatch(ctx context.Context, batch []events.ActivityEvent) (err error) {
	if len(batch) == 0 {
		return nil
	}
	start := time.Now()
	defer func() {
		metrics.RecordDBQuery("clickhouse", "insert", time.Since(start), err)
	}()

	query := fmt.Sprintf(`INSERT INTO %s (
			timestamp, event_id, user_id, activity_type,
			query, source, duration_ms, data
		)`, r.table)

	stmt, err := r.conn.PrepareBatch(ctx, query)
	if err != nil {
		return errors.Wrap(err, "failed to prepare batch")
	}
	defer stmt.Close()

	for _, ev := range batch {
		data, err := encodeData(ev.Data)
		if err != nil {
			return errors.Wrapf(err, "encode data of %s", ev.ID)
		}
		if err := stmt.Append(
			ev.Timestamp, ev.ID, ev.UserID, string(ev.Type),
			ev.Query, ev.Source, ev.DurationMs, data,
		); err != nil {
			return errors.Wrap(err, "failed to append to batch")
		}
	}

	if err := stmt.Send(); err != nil {
		return errors.Wrap(err, "failed to send batch")
	}

	metrics.ActivityEvents.WithLabelValues("stored", "success").Add(float64(len(batch)))
	r.log.Debugw("Batch inserted activity events", "rows", len(batch), "duration", time.Since(start))
	return nil
}

// ActivityCount is the number of events of one type
type ActivityCount struct {
	Type  string `ch:"activity_type" json:"type"`
	Count uint64 `ch:"n" json:"count"`
}

// QueryCount is how often a search query was run
type QueryCount struct {
	Query string `ch:"query" json:"query"`
	Count uint64 `ch:"n" json:"count"`
}

// CountByType returns per-type event counts for a user since a timestamp
func (r *ActivityRepository) CountByType(ctx context.Context, userID string, since time.Time) ([]ActivityCount, error) {
	query := fmt.Sprintf(`
		SELECT activity_type, count() AS n
		FROM %s
		WHERE user_id = ? AND timestamp >= ?
		GROUP BY activity_type
		ORDER BY n DESC, activity_type`, r.table)

	var out []ActivityCount
	if err := r.conn.Select(ctx, &out, query, userID, since); err != nil {
		return nil, errors.Wrap(err, "count activity by type")
	}
	return out, nil
}

// TopQueries returns the most frequent search queries since a timestamp
func (r *ActivityRepository) TopQueries(ctx context.Context, since time.Time, limit int) ([]QueryCount, error) {
	if limit <= 0 {
		limit = 10
	}
	query := fmt.Sprintf(`
		SELECT query, count() AS n
		FROM %s
		WHERE activity_type = ? AND query != '' AND timestamp >= ?
		GROUP BY query
		ORDER BY n DESC, query
		LIMIT ?`, r.table)

	var out []QueryCount
	if err := r.conn.Select(ctx, &out, query, string(events.ActivitySearch), since, limit); err != nil {
		return nil, errors.Wrap(err, "top queries")
	}
	return out, nil
}

// Exists reports whether an event id has been stored
func (r *ActivityRepository) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var n uint64
	row := r.conn.QueryRow(ctx, fmt.Sprintf(`SELECT count() FROM %s WHERE event_id = ?`, r.table), id)
	if err := row.Scan(&n); err != nil {
		return false, errors.Wrap(err, "lookup activity event")
	}
	return n > 0, nil
}

func encodeData(data map[string]any) (string, error) {
	if len(data) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
