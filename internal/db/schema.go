package db

import (
	"database/sql"
	"fmt"
	"log"

	"private-lending/internal/config"
)

// ColumnCheck is a column whose declared size must hold a hex value.
type ColumnCheck struct {
	Table   string
	Column  string
	MinSize int64
}

// Tables lists the tables expected for a role.
func Tables(role string) []string {
	tables := []string{"remote_routers", "outbound_messages"}
	switch role {
	case config.RoleIngress:
		tables = append(tables, "deposits", "custody_transfers", "custody_balances", "relayed_actions")
	case config.RoleLendingCore:
		tables = append(tables, "encrypted_actions", "processed_payloads", "token_configs", "positions", "price_records", "price_sources")
	}
	return tables
}

// HashColumns lists bytes32 columns (0x + 64 hex chars) per role.
func HashColumns(role string) []ColumnCheck {
	checks := []ColumnCheck{{"remote_routers", "router", 66}}
	switch role {
	case config.RoleIngress:
		checks = append(checks,
			ColumnCheck{"deposits", "handle", 66},
			ColumnCheck{"relayed_actions", "ciphertext_hash", 66},
			ColumnCheck{"relayed_actions", "action_handle", 66},
		)
	case config.RoleLendingCore:
		checks = append(checks,
			ColumnCheck{"encrypted_actions", "action_handle", 66},
			ColumnCheck{"encrypted_actions", "ciphertext_hash", 66},
			ColumnCheck{"encrypted_actions", "origin_router", 66},
		)
	}
	return checks
}

// SchemaReport is the result of CheckSchema.
type SchemaReport struct {
	Database       string
	MissingTables  []string
	InvalidColumns []string
}

// OK reports whether the schema matched.
func (r *SchemaReport) OK() bool {
	return len(r.MissingTables) == 0 && len(r.InvalidColumns) == 0
}

// CheckSchema verifies over database/sql that the role's tables exist and hash columns are wide enough.
func CheckSchema(sqlDB *sql.DB, role string) (*SchemaReport, error) {
	report := &SchemaReport{}
	if err := sqlDB.QueryRow("SELECT current_database()").Scan(&report.Database); err != nil {
		return nil, fmt.Errorf("failed to get database name: %w", err)
	}

	for _, table := range Tables(role) {
		var exists bool
		err := sqlDB.QueryRow(`
			SELECT EXISTS (
				SELECT 1
				FROM information_schema.tables
				WHERE table_schema = 'public'
				AND table_name = $1
			)`, table).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table, err)
		}
		if !exists {
			log.Printf("❌ table %s does not exist", table)
			report.MissingTables = append(report.MissingTables, table)
		}
	}

	for _, col := range HashColumns(role) {
		var size sql.NullInt64
		err := sqlDB.QueryRow(`
			SELECT character_maximum_length
			FROM information_schema.columns
			WHERE table_schema = 'public'
			AND table_name = $1
			AND column_name = $2`, col.Table, col.Column).Scan(&size)
		if err == sql.ErrNoRows {
			report.InvalidColumns = append(report.InvalidColumns, fmt.Sprintf("%s.%s missing", col.Table, col.Column))
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to query %s.%s: %w", col.Table, col.Column, err)
		}
		// NULL length means unbounded (text)
		if size.Valid && size.Int64 < col.MinSize {
			log.Printf("❌ %s.%s is VARCHAR(%d), need %d", col.Table, col.Column, size.Int64, col.MinSize)
			report.InvalidColumns = append(report.InvalidColumns, fmt.Sprintf("%s.%s VARCHAR(%d) < %d", col.Table, col.Column, size.Int64, col.MinSize))
		}
	}
	return report, nil
}
