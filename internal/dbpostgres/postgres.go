// Package dbpostgres connects to Postgres and provisions the schema on
// first run.
package dbpostgres

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"interpreter-engine/internal/config"
)

var DBStatus bool

func executeSchemaFile(db *sqlx.DB) error {
	wd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	schemaPath := findSchemaFile(wd)
	if schemaPath == "" {
		return fmt.Errorf("schema.sql file not found")
	}

	log.Printf("Found schema.sql at: %s", schemaPath)

	schemaContent, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}

	statements := strings.Split(string(schemaContent), ";")
	for i, statement := range statements {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		if _, err := db.Exec(statement); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				log.Printf("Table/Index already exists, skipping statement %d", i+1)
				continue
			}
			return fmt.Errorf("failed to execute statement %d: %w\nStatement: %s", i+1, err, statement)
		}
	}

	log.Printf("Schema executed successfully")
	return nil
}

func findSchemaFile(startDir string) string {
	currentDir := startDir
	for {
		schemaPath := filepath.Join(currentDir, "schema.sql")
		if _, err := os.Stat(schemaPath); err == nil {
			return schemaPath
		}
		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			break
		}
		currentDir = parentDir
	}
	return ""
}

// ConnectAndCreateDB connects to Postgres, creating the target database and
// running schema.sql if it does not yet exist.
func ConnectAndCreateDB(cfg config.PostgresConfig) (*sqlx.DB, error) {
	defaultConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=postgres sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password)

	log.Printf("Connecting to PostgreSQL with: host=%s, port=%s, user=%s, dbname=%s",
		cfg.Host, cfg.Port, cfg.Username, cfg.DBname)

	defaultDB, err := sql.Open("postgres", defaultConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to default postgres db: %w", err)
	}
	defer defaultDB.Close()

	var exists bool
	checkQuery := `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`
	if err := defaultDB.QueryRow(checkQuery, cfg.DBname).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to check if database exists: %w", err)
	}

	if !exists {
		createQuery := fmt.Sprintf(`CREATE DATABASE "%s"`, cfg.DBname)
		if _, err := defaultDB.Exec(createQuery); err != nil {
			return nil, fmt.Errorf("failed to create database %s: %w", cfg.DBname, err)
		}
		log.Printf("Database '%s' created successfully", cfg.DBname)
	}

	targetConnStr := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.Username, cfg.Password, cfg.DBname)

	db, err := sqlx.Connect("postgres", targetConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to target database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping target database: %w", err)
	}

	if !exists {
		if err := executeSchemaFile(db); err != nil {
			return nil, fmt.Errorf("failed to execute schema.sql: %w", err)
		}
	}

	DBStatus = true
	sqlx.BindDriver("postgres", sqlx.DOLLAR)
	sqlx.NameMapper = func(s string) string { return s }
	return db, nil
}

// RetryConnectOnFailed retries the connection with a fixed backoff until it
// succeeds, used by cmd/engine when the initial connect fails at startup.
func RetryConnectOnFailed(wait time.Duration, db **sqlx.DB, cfg config.PostgresConfig) {
	if DBStatus {
		log.Printf("database connection already healthy, abort retry")
		return
	}

	if *db != nil {
		if err := (*db).Ping(); err == nil {
			log.Printf("database connection is healthy, no retry needed")
			return
		}
	}

	newDB, err := ConnectAndCreateDB(cfg)
	if err == nil {
		*db = newDB
		log.Printf("database retry connection successful")
		return
	}
	log.Printf("failed to retry connect database: %s, next retry in %v", err, wait)
	time.Sleep(wait)
	RetryConnectOnFailed(wait, db, cfg)
}
