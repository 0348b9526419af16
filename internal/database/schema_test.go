package database

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMigrationsDir = "../../migrations"

// readMigration returns the up and down halves of a goose SQL file
func readMigration(t *testing.T, name string) (up, down string) {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(testMigrationsDir, name))
	require.NoError(t, err)

	up, down, found := strings.Cut(string(raw), "-- +goose Down")
	require.True(t, found, "%s has no down section", name)
	require.Contains(t, up, "-- +goose Up", name)
	return up, down
}

// Feature: ecommerce-api, Property: Pending migrations are executed
func TestMigrations_VersionsAreContiguous(t *testing.T) {
	migrations, err := goose.CollectMigrations(testMigrationsDir, 0, goose.MaxVersion)
	require.NoError(t, err)
	require.Len(t, migrations, 9)

	for i, m := range migrations {
		assert.Equal(t, int64(i+1), m.Version, filepath.Base(m.Source))

		up, down := readMigration(t, filepath.Base(m.Source))
		for _, half := range []string{up, down} {
			assert.Equal(t,
				strings.Count(half, "-- +goose StatementBegin"),
				strings.Count(half, "-- +goose StatementEnd"),
				"unbalanced statement blocks in %s", m.Source)
		}
	}
}

func TestMigrations_TablesRoundTrip(t *testing.T) {
	tables := []struct {
		file    string
		table   string
		columns []string
	}{
		{"00001_create_users_table.sql", "users", []string{
			"id UUID PRIMARY KEY", "username VARCHAR", "email VARCHAR", "password_hash VARCHAR", "role VARCHAR",
		}},
		{"00002_create_refresh_tokens_table.sql", "refresh_tokens", nil},
		{"00003_create_categories_table.sql", "categories", []string{"slug VARCHAR"}},
		{"00004_create_products_table.sql", "products", []string{
			"category_id UUID", "price DECIMAL", "stock INTEGER", "available BOOLEAN",
			"FOREIGN KEY (category_id)",
		}},
		{"00005_create_carts_table.sql", "carts", []string{
			"CREATE UNIQUE INDEX IF NOT EXISTS carts_one_active_per_user ON carts(user_id) WHERE status = 'active'",
			"'active'", "'checked_out'", "'abandoned'",
		}},
		{"00006_create_cart_items_table.sql", "cart_items", []string{
			"UNIQUE (cart_id, product_id)", "CHECK (quantity > 0)",
		}},
		{"00007_create_orders_table.sql", "orders", []string{
			"total DECIMAL(12, 2)", "checked_out_at TIMESTAMP",
			"'pending'", "'processing'", "'shipped'", "'delivered'", "'cancelled'",
		}},
		{"00008_create_order_items_table.sql", "order_items", []string{
			"unit_price DECIMAL(10, 2)", "REFERENCES products(id)",
		}},
	}

	for _, tt := range tables {
		t.Run(tt.table, func(t *testing.T) {
			up, down := readMigration(t, tt.file)
			assert.Contains(t, up, "CREATE TABLE IF NOT EXISTS "+tt.table+" (")
			assert.Contains(t, down, "DROP TABLE IF EXISTS "+tt.table+";")
			for _, fragment := range tt.columns {
				assert.Contains(t, up, fragment)
			}
		})
	}
}

func TestMigrations_OrderStatusesUseSingleSpelling(t *testing.T) {
	up, _ := readMigration(t, "00007_create_orders_table.sql")
	assert.NotContains(t, up, "'canceled'")
}

func TestMigrations_UpdatedAtTriggers(t *testing.T) {
	up, down := readMigration(t, "00009_create_updated_at_trigger.sql")

	for _, table := range []string{"users", "products", "carts", "cart_items", "orders"} {
		trigger := table + "_set_updated_at"
		assert.Contains(t, up, "CREATE TRIGGER "+trigger+" BEFORE UPDATE ON "+table)
		assert.Contains(t, down, "DROP TRIGGER IF EXISTS "+trigger+" ON "+table)
	}
	assert.Contains(t, down, "DROP FUNCTION IF EXISTS set_updated_at()")
}
