package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	t.Run("all tables exist", func(t *testing.T) {
		for _, tableName := range []string{"companies", "price_bars", "news_items"} {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.tables
					WHERE table_schema = 'public'
					AND table_name = $1
				)
			`, tableName).Scan(&exists)

			require.NoError(t, err, "failed to check table existence for %s", tableName)
			assert.True(t, exists, "table %s should exist", tableName)
		}
	})

	t.Run("price_bars table has correct columns", func(t *testing.T) {
		expectedColumns := map[string]string{
			"id":             "integer",
			"company_id":     "integer",
			"date":           "date",
			"open":           "numeric",
			"high":           "numeric",
			"low":            "numeric",
			"close":          "numeric",
			"volume":         "bigint",
			"eps":            "numeric",
			"pe_ratio":       "numeric",
			"revenue":        "numeric",
			"debt_to_equity": "numeric",
			"cash_flow":      "numeric",
			"roi":            "numeric",
			"created_at":     "timestamp without time zone",
			"updated_at":     "timestamp without time zone",
		}

		for colName, expectedType := range expectedColumns {
			var actualType string
			err := testDB.GetRawConn().QueryRow(`
				SELECT data_type
				FROM information_schema.columns
				WHERE table_name = 'price_bars' AND column_name = $1
			`, colName).Scan(&actualType)

			require.NoError(t, err, "column %s should exist in price_bars table", colName)
			assert.Equal(t, expectedType, actualType, "column %s should have type %s", colName, expectedType)
		}
	})

	t.Run("news_items published_at keeps the zone", func(t *testing.T) {
		var actualType string
		err := testDB.GetRawConn().QueryRow(`
			SELECT data_type
			FROM information_schema.columns
			WHERE table_name = 'news_items' AND column_name = 'published_at'
		`).Scan(&actualType)

		require.NoError(t, err)
		assert.Equal(t, "timestamp with time zone", actualType)
	})

	t.Run("uniqueness constraints exist", func(t *testing.T) {
		for _, constraint := range []string{"uq_price_bars_company_date", "uq_news_items_company_link", "companies_ticker_key"} {
			var exists bool
			err := testDB.GetRawConn().QueryRow(`
				SELECT EXISTS (
					SELECT FROM information_schema.table_constraints
					WHERE constraint_type = 'UNIQUE' AND constraint_name = $1
				)
			`, constraint).Scan(&exists)

			require.NoError(t, err)
			assert.True(t, exists, "constraint %s should exist", constraint)
		}
	})

	t.Run("migrating twice is a no-op", func(t *testing.T) {
		require.NoError(t, testDB.Migrate())
	})
}
