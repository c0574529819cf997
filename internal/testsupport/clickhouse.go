package testsupport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"tradelens/internal/adapters/clickhouse"
	"tradelens/internal/adapters/config"
	"tradelens/internal/events"
)

// ClickHouseTestHelper manages cleanup for ClickHouse integration tests.
type ClickHouseTestHelper struct {
	client *clickhouse.Client
}

// NewClickHouseTestHelper creates a ClickHouse client for tests.
func NewClickHouseTestHelper(t *testing.T, cfg config.ClickHouseConfig) *ClickHouseTestHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := clickhouse.NewClient(ctx, cfg)
	if err != nil {
		t.Fatalf("failed to connect to clickhouse: %v", err)
	}

	helper := &ClickHouseTestHelper{client: client}
	t.Cleanup(func() { _ = client.Close() })
	return helper
}

// NewTestClickHouse creates a helper from the CLICKHOUSE_* environment,
// skipping the test when it is not configured
func NewTestClickHouse(t *testing.T) *ClickHouseTestHelper {
	t.Helper()
	return NewClickHouseTestHelper(t, ClickHouseConfigFromEnv(t))
}

// Client returns the underlying client
func (h *ClickHouseTestHelper) Client() *clickhouse.Client {
	return h.client
}

// CreateTempTable creates a uniquely named MergeTree table and drops it
// when the test ends.
func (h *ClickHouseTestHelper) CreateTempTable(t *testing.T, columns string) string {
	t.Helper()

	table := UniqueName("tmp_test")
	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) ENGINE = MergeTree() ORDER BY tuple()", table, columns)

	if err := h.client.Exec(context.Background(), query); err != nil {
		t.Fatalf("failed to create clickhouse table: %v", err)
	}

	h.RegisterDrop(t, table)
	return table
}

// RegisterDrop drops table after the test, for tables created by code under test
func (h *ClickHouseTestHelper) RegisterDrop(t *testing.T, table string) {
	t.Helper()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = h.client.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
	})
}

// CleanupTable drops the provided table immediately.
func (h *ClickHouseTestHelper) CleanupTable(ctx context.Context, table string) error {
	return h.client.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
}

// TruncateTable removes all data from the table but keeps the structure
func (h *ClickHouseTestHelper) TruncateTable(ctx context.Context, table string) error {
	return h.client.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE IF EXISTS %s", table))
}

// ActivityFixture builds activity events for tests
type ActivityFixture struct {
	event events.ActivityEvent
}

// NewActivityFixture returns a search event by a fresh user, timestamped now
func NewActivityFixture() *ActivityFixture {
	return &ActivityFixture{
		event: events.ActivityEvent{
			ID:         uuid.New(),
			UserID:     UniqueUserID(),
			Type:       events.ActivitySearch,
			Query:      "India electronics imports",
			Source:     "model",
			DurationMs: 1200,
			Timestamp:  time.Now().UTC().Truncate(time.Millisecond),
		},
	}
}

func (f *ActivityFixture) WithUser(userID string) *ActivityFixture {
	f.event.UserID = userID
	return f
}

func (f *ActivityFixture) WithType(typ events.ActivityType) *ActivityFixture {
	f.event.Type = typ
	return f
}

func (f *ActivityFixture) WithQuery(query string) *ActivityFixture {
	f.event.Query = query
	return f
}

func (f *ActivityFixture) At(ts time.Time) *ActivityFixture {
	f.event.Timestamp = ts.UTC().Truncate(time.Millisecond)
	return f
}

func (f *ActivityFixture) WithData(data map[string]any) *ActivityFixture {
	f.event.Data = data
	return f
}

// Build returns the event
func (f *ActivityFixture) Build() events.ActivityEvent {
	return f.event
}

// BuildMany returns count events one second apart, each with its own id
func (f *ActivityFixture) BuildMany(count int) []events.ActivityEvent {
	out := make([]events.ActivityEvent, count)
	for i := range out {
		ev := f.event
		ev.ID = uuid.New()
		ev.Timestamp = f.event.Timestamp.Add(time.Duration(i) * time.Second)
		out[i] = ev
	}
	return out
}
