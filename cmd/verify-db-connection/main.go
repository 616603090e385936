package main

import (
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	_ "github.com/lib/pq"

	"private-lending/internal/config"
	"private-lending/internal/db"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml")
	role := flag.String("role", "", "node role to check (defaults to node.role)")
	flag.Parse()

	fmt.Println("🔍 Verifying database connection and column sizes...")
	fmt.Println(strings.Repeat("=", 60))

	if err := config.LoadConfigForRole(*configPath, *role); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	cfg := config.AppConfig
	if cfg.Database.Driver != "postgres" {
		log.Fatalf("verify-db-connection only supports postgres, got %q", cfg.Database.Driver)
	}

	sqlDB, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}

	report, err := db.CheckSchema(sqlDB, cfg.Node.Role)
	if err != nil {
		log.Fatalf("Schema check failed: %v", err)
	}
	fmt.Printf("📋 Connected to database: %s (role %s)\n", report.Database, cfg.Node.Role)

	for _, table := range report.MissingTables {
		fmt.Printf("❌ missing table: %s\n", table)
	}
	for _, col := range report.InvalidColumns {
		fmt.Printf("❌ invalid column: %s\n", col)
	}
	if !report.OK() {
		fmt.Println("\n🔧 Start the node once to run AutoMigrate, or widen the columns above")
		os.Exit(1)
	}
	fmt.Println("✅ Schema OK")
}
