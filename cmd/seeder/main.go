// cmd/seeder/main.go
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/leadgrid/leadgrid-backend/internal/config"
	"github.com/leadgrid/leadgrid-backend/internal/db"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

// Applies every migrations/*.sql file in lexical order, then the optional
// seed/*.sql fixtures. Files are plain SQL; ordering comes from the numeric
// filename prefix.
func main() {
	config.Load()
	logger.Init(config.Cfg.LoggerLevel, config.Cfg.LoggerFormat)
	defer logger.Sync()

	db.Init()

	if err := applyDir("migrations"); err != nil {
		logger.L().Fatalf("migrations failed: %v", err)
	}
	if _, err := os.Stat("seed"); err == nil {
		if err := applyDir("seed"); err != nil {
			logger.L().Fatalf("seed failed: %v", err)
		}
	}

	fmt.Println("Database setup completed successfully!")
}

func applyDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("read %s: %w", file, err)
		}
		if _, err := db.DB.Exec(string(content)); err != nil {
			return fmt.Errorf("execute %s: %w", file, err)
		}
		logger.L().Infow("applied", "file", file)
	}
	return nil
}
