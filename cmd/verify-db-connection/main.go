package main

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"github.com/aurora-is-near/rainbow-non-fungible-token-connector/internal/config"
)

// address columns hold 40 hex chars without prefix
var addressColumns = []struct {
	table  string
	column string
}{
	{"bridge_state", "locker_address"},
	{"bridge_state", "metadata_connector"},
	{"registered_assets", "asset"},
	{"bridge_transfers", "asset"},
	{"withdraw_results", "recipient"},
}

func main() {
	fmt.Println("🔍 Verifying database connection and address column sizes...")

	if err := config.LoadConfig(""); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sqlDB, err := sql.Open("postgres", config.AppConfig.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	var dbName string
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&dbName); err != nil {
		log.Fatalf("Failed to get database name: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s\n", dbName)

	failures := 0
	for _, col := range addressColumns {
		var size sql.NullInt64
		err := sqlDB.QueryRow(`
			SELECT character_maximum_length
			FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
		`, col.table, col.column).Scan(&size)
		switch {
		case err == sql.ErrNoRows:
			fmt.Printf("❌ %s.%s does not exist, run bridge-server migrate\n", col.table, col.column)
			failures++
		case err != nil:
			log.Fatalf("Failed to query %s.%s: %v", col.table, col.column, err)
		case !size.Valid || size.Int64 < 40:
			fmt.Printf("❌ %s.%s is too small: need VARCHAR(40), got %v\n", col.table, col.column, size.Int64)
			failures++
		default:
			fmt.Printf("✅ %s.%s VARCHAR(%d)\n", col.table, col.column, size.Int64)
		}
	}

	if failures > 0 {
		log.Fatalf("%d column(s) need attention", failures)
	}
	fmt.Println("✅ Database schema looks good")
}
