// internal/db/db.go
package db

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/leadgrid/leadgrid-backend/internal/config"
	"github.com/leadgrid/leadgrid-backend/pkg/logger"
)

var DB *sql.DB

func Init() {
	dsn := fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		config.Cfg.DBUser, config.Cfg.DBPassword,
		config.Cfg.DBHost, config.Cfg.DBPort,
		config.Cfg.DBName, config.Cfg.DBSSLMode,
	)

	var err error
	DB, err = sql.Open("postgres", dsn)
	if err != nil {
		logger.L().Fatalf("failed to connect to DB: %v", err)
	}

	if err = DB.Ping(); err != nil {
		logger.L().Fatalf("failed to ping DB: %v", err)
	}

	logger.L().Infow("connected to database", "host", config.Cfg.DBHost, "name", config.Cfg.DBName)
}
