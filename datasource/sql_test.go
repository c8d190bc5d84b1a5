package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/bagofwords1/bagofwords-sub001/table"
)

func TestSQLClientQuery(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("CollectsRows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT region, total FROM sales").
			WillReturnRows(sqlmock.NewRows([]string{"region", "total"}).
				AddRow("emea", int64(10)).
				AddRow([]byte("apac"), nil))

		client := NewSQLClient(logger, "sales", DriverSQLite, db)
		tbl, err := client.Query(context.Background(), "SELECT region, total FROM sales")
		require.NoError(t, err)

		assert.Equal(t, []string{"region", "total"}, tbl.ColumnNames())
		assert.Equal(t, table.TypeString, tbl.Columns[0].Type)
		assert.Equal(t, table.TypeInt, tbl.Columns[1].Type)
		require.Equal(t, 2, tbl.Len())
		assert.Equal(t, "apac", tbl.Rows[1]["region"])
		assert.Nil(t, tbl.Rows[1]["total"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("DuplicateColumnNames", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT a.id, b.id").
			WillReturnRows(sqlmock.NewRows([]string{"id", "id", "name"}).
				AddRow(int64(1), int64(7), "x"))

		client := NewSQLClient(logger, "sales", DriverSQLite, db)
		tbl, err := client.Query(context.Background(), "SELECT a.id, b.id, a.name FROM a JOIN b")
		require.NoError(t, err)

		assert.Equal(t, []string{"id", "id_1", "name"}, tbl.ColumnNames())
		assert.Equal(t, int64(1), tbl.Rows[0]["id"])
		assert.Equal(t, int64(7), tbl.Rows[0]["id_1"])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("EmptyResultUsesDeclaredTypes", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		rows := mock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("n").OfType("BIGINT", int64(0)),
			sqlmock.NewColumn("label").OfType("VARCHAR", ""),
		)
		mock.ExpectQuery("SELECT").WillReturnRows(rows)

		client := NewSQLClient(logger, "sales", DriverPostgres, db)
		tbl, err := client.Query(context.Background(), "SELECT n, label FROM t WHERE false")
		require.NoError(t, err)

		assert.Equal(t, 0, tbl.Len())
		assert.Equal(t, []table.Column{
			{Name: "n", Type: table.TypeInt},
			{Name: "label", Type: table.TypeString},
		}, tbl.Columns)
	})

	t.Run("QueryError", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT").WillReturnError(errors.New("no such table: orders"))

		client := NewSQLClient(logger, "sales", DriverSQLite, db)
		_, err = client.Query(context.Background(), "SELECT * FROM orders")
		require.Error(t, err)

		var qerr *QueryError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, "sales", qerr.Source)
		assert.Contains(t, err.Error(), "no such table")
	})
}

func TestDeclaredType(t *testing.T) {
	tests := []struct {
		declared string
		expected string
	}{
		{"INTEGER", table.TypeInt},
		{"bigint", table.TypeInt},
		{"DOUBLE PRECISION", table.TypeFloat},
		{"NUMERIC", table.TypeFloat},
		{"BOOLEAN", table.TypeBool},
		{"TIMESTAMP", table.TypeDatetime},
		{"VARCHAR", table.TypeString},
		{"JSONB", table.TypeObject},
		{"", table.TypeObject},
	}

	for _, tt := range tests {
		t.Run(tt.declared, func(t *testing.T) {
			assert.Equal(t, tt.expected, declaredType(tt.declared))
		})
	}
}

func TestDedupeNames(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{in: []string{"a", "b"}, want: []string{"a", "b"}},
		{in: []string{"id", "id", "id"}, want: []string{"id", "id_1", "id_2"}},
		{in: []string{"id", "id", "id_1"}, want: []string{"id", "id_2", "id_1"}},
		{in: []string{}, want: []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dedupeNames(tt.in))
	}
}
