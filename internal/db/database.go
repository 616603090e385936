package db

import (
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"private-lending/internal/config"
	"private-lending/internal/models"
)

var DB *gorm.DB

// InitDB opens the configured database and migrates the tables of this node's role.
func InitDB() {
	if config.AppConfig == nil || config.AppConfig.Database.DSN == "" {
		log.Fatalf("Database DSN is required")
	}

	var err error
	DB, err = Open(config.AppConfig.Database)
	if err != nil {
		log.Fatalf("Failed to connect database: %v", err)
	}
	log.Println("✅ Database connected successfully")

	log.Println("🚀 Starting database schema migration with GORM AutoMigrate...")
	if err := Migrate(DB, config.AppConfig.Node.Role); err != nil {
		log.Fatalf("AutoMigrate failed: %v", err)
	}
	log.Println("✅ Database schema migrated successfully")
}

// Open connects with the given driver. sqlite is used for local runs and tests.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormConfig := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		SkipDefaultTransaction:                   true,
		DisableAutomaticPing:                     true,
		CreateBatchSize:                          1000,
		Logger:                                   logger.Default.LogMode(logger.Silent),
	}

	switch cfg.Driver {
	case "", "postgres":
		gormConfig.PrepareStmt = true
		return gorm.Open(postgres.Open(cfg.DSN), gormConfig)
	case "sqlite":
		db, err := gorm.Open(sqlite.Open(cfg.DSN), gormConfig)
		if err != nil {
			return nil, err
		}
		// a single connection keeps in-memory databases shared and serialises writers
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Models returns the tables owned by a node role.
func Models(role string) []interface{} {
	shared := []interface{}{
		&models.RemoteRouter{},
		&models.OutboundMessage{},
	}
	switch role {
	case config.RoleIngress:
		return append(shared,
			&models.Deposit{},
			&models.CustodyTransfer{},
			&models.CustodyBalance{},
			&models.RelayedAction{},
		)
	case config.RoleLendingCore:
		return append(shared,
			&models.EncryptedAction{},
			&models.ProcessedPayload{},
			&models.TokenConfig{},
			&models.Position{},
			&models.PriceRecord{},
			&models.PriceSource{},
		)
	default:
		return shared
	}
}

// Migrate runs AutoMigrate for the role's tables.
func Migrate(db *gorm.DB, role string) error {
	return db.AutoMigrate(Models(role)...)
}

// OpenInMemory returns a migrated in-memory sqlite database for the role.
func OpenInMemory(role string) (*gorm.DB, error) {
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", DSN: "file::memory:"})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db, role); err != nil {
		return nil, err
	}
	return db, nil
}
