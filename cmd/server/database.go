package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/taichu-system/rental-management/internal/config"
	"github.com/taichu-system/rental-management/internal/logger"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func initDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=%s",
		cfg.Database.Host,
		cfg.Database.Username,
		cfg.Database.Password,
		cfg.Database.DBName,
		cfg.Database.Port,
		cfg.Database.SSLMode,
		cfg.Database.Timezone,
	)

	// TranslateError 让唯一索引冲突以 gorm.ErrDuplicatedKey 返回
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	return db, nil
}

// runMigrations 按文件名顺序执行 migrationsDir 下尚未执行的 SQL
func runMigrations(db *gorm.DB, migrationsDir string) error {
	log := logger.GetLogger()

	if err := db.Exec("CREATE TABLE IF NOT EXISTS schema_migrations (version VARCHAR(255) PRIMARY KEY, applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW())").Error; err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	var executedMigrations []string
	if err := db.Raw("SELECT version FROM schema_migrations").Scan(&executedMigrations).Error; err != nil {
		return fmt.Errorf("failed to get executed migrations: %w", err)
	}
	executed := make(map[string]bool, len(executedMigrations))
	for _, v := range executedMigrations {
		executed[v] = true
	}

	migrationFiles, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list migration files: %w", err)
	}
	sort.Strings(migrationFiles)

	applied := 0
	for _, file := range migrationFiles {
		filename := filepath.Base(file)
		if executed[filename] {
			continue
		}

		log.Info("executing migration", zap.String("file", filename))
		sqlBytes, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration file %s: %w", filename, err)
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(sqlBytes)).Error; err != nil {
				return fmt.Errorf("failed to execute migration %s: %w", filename, err)
			}
			if err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", filename).Error; err != nil {
				return fmt.Errorf("failed to record migration %s: %w", filename, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
		applied++
	}

	log.Info("migrations completed", zap.Int("applied", applied), zap.Int("total", len(migrationFiles)))
	return nil
}
