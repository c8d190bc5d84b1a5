package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bagofwords1/bagofwords-sub001/config"
	"github.com/bagofwords1/bagofwords-sub001/datasource"
	"github.com/bagofwords1/bagofwords-sub001/logger"
	"github.com/bagofwords1/bagofwords-sub001/mcpserver"
	"github.com/bagofwords1/bagofwords-sub001/pipeline"
	"github.com/bagofwords1/bagofwords-sub001/profile"
	"github.com/bagofwords1/bagofwords-sub001/sandbox"
)

// seedDatabase creates a small sqlite file database.
func seedDatabase(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE orders (id INTEGER, region TEXT, amount REAL, placed_at TEXT)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders VALUES
		(1, 'north', 10.0, '2024-01-01T10:00:00Z'),
		(2, 'south', 7.5, '2024-01-02T11:00:00Z'),
		(3, 'north', 2.5, '2024-01-03T12:00:00Z')`)
	require.NoError(t, err)
	return path
}

// TestIntegrationConfigToPipeline runs a pipeline built from a config file
// against a real sqlite data source.
func TestIntegrationConfigToPipeline(t *testing.T) {
	dbPath := seedDatabase(t)
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`
logging:
  mode: development
  level: debug
pipeline:
  max_retries: 3
data_sources:
  - name: shop
    driver: sqlite
    dsn: `+dbPath+`
`), 0600))

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)

	t.Run("ConfigAndLoggerIntegration", func(t *testing.T) {
		testLogger, err := logger.NewFromConfig(cfg)
		require.NoError(t, err)
		testLogger.Info("Integration test started")
		_ = testLogger.Sync()
	})

	log := zaptest.NewLogger(t)
	reg, err := datasource.Open(context.Background(), log, cfg.DataSources)
	require.NoError(t, err)
	defer reg.Close()

	executor := sandbox.NewExecutor(log, cfg.ExecutorConfig())
	validator := pipeline.StaticValidator(sandbox.NewStaticValidator(cfg.Sandbox.MaxCodeBytes))

	t.Run("RetryThenAggregate", func(t *testing.T) {
		broken := `
def generate_table(sources, files):
    return sources["shop"].query("SELECT nope FROM orders")
`
		working := `
def generate_table(sources, files):
    orders = sources["shop"].query("SELECT region, amount FROM orders WHERE amount > ?", 1.0)
    totals = {}
    for row in orders:
        totals[row["region"]] = totals.get(row["region"], 0.0) + row["amount"]
    return [{"region": k, "total": v} for k, v in sorted(totals.items())]
`
		gen := pipeline.NewCandidateGenerator("", broken, working)
		ctrl := pipeline.NewController(log, gen, validator, executor)

		var events []pipeline.Event
		done := ctrl.Run(context.Background(), pipeline.Request{
			Handles:    sandbox.Handles{Sources: reg.Clients()},
			MaxRetries: cfg.Pipeline.MaxRetries,
		}, pipeline.SinkFunc(func(e pipeline.Event) { events = append(events, e) }))

		require.NotNil(t, done.Table)
		require.Len(t, done.Errors, 2)
		assert.Contains(t, done.Errors[0].Message, "code is empty")
		assert.Contains(t, done.Errors[1].Message, "Execution error:")
		assert.Equal(t, working, done.Code)
		assert.Equal(t, pipeline.EventDone, events[len(events)-1].Type)

		assert.Equal(t, []string{"region", "total"}, done.Table.ColumnNames())
		require.Equal(t, 2, done.Table.Len())
		assert.Equal(t, "north", done.Table.Rows[0]["region"])
		assert.InDelta(t, 12.5, done.Table.Rows[0]["total"], 1e-9)

		widget := profile.ToWidgetPayload(done.Table, cfg.Pipeline.MaxRows)
		assert.Len(t, widget.Rows, 2)
		assert.Equal(t, 2, widget.Info.ColumnInfo["region"].UniqueCount)

		_, err := json.Marshal(done)
		require.NoError(t, err)
	})

	t.Run("FullMCPIntegration", func(t *testing.T) {
		server, err := mcpserver.New(cfg, log, executor, reg)
		require.NoError(t, err)
		require.NotNil(t, server)
		assert.NotNil(t, server.GetMCPServer())
	})
}
