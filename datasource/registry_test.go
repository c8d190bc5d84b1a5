package datasource

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRegistryOpen(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()

	t.Run("SQLiteInMemory", func(t *testing.T) {
		reg, err := Open(ctx, logger, []Config{
			{Name: "warehouse", Driver: DriverSQLite, DSN: ":memory:"},
			{Name: "scratch", Driver: DriverSQLite, DSN: ":memory:"},
		})
		require.NoError(t, err)
		defer reg.Close()

		assert.Equal(t, []string{"scratch", "warehouse"}, reg.Names())
		client := reg.Get("warehouse")
		require.NotNil(t, client)
		assert.Equal(t, DriverSQLite, client.Driver())

		tbl, err := client.Query(ctx, "SELECT 1 AS one, 'a' AS letter, 2.5 AS ratio")
		require.NoError(t, err)
		assert.Equal(t, []string{"one", "letter", "ratio"}, tbl.ColumnNames())
		assert.Equal(t, int64(1), tbl.Rows[0]["one"])
		assert.Equal(t, "a", tbl.Rows[0]["letter"])
		assert.InDelta(t, 2.5, tbl.Rows[0]["ratio"], 1e-9)
	})

	t.Run("UnknownDriver", func(t *testing.T) {
		_, err := Open(ctx, logger, []Config{{Name: "x", Driver: "oracle", DSN: "x"}})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrUnknownDriver)
	})

	t.Run("DuplicateName", func(t *testing.T) {
		_, err := Open(ctx, logger, []Config{
			{Name: "x", Driver: DriverSQLite, DSN: ":memory:"},
			{Name: "x", Driver: DriverSQLite, DSN: ":memory:"},
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "duplicate data source name")
	})

	t.Run("ClientsReturnsCopy", func(t *testing.T) {
		reg := NewRegistry(logger)
		clients := reg.Clients()
		clients["ghost"] = nil
		assert.Nil(t, reg.Get("ghost"))
		assert.Empty(t, reg.Names())
	})
}
