package db

import (
	"database/sql"
	"fmt"
	"log"
)

// InitSQLite opens a sqlite database with foreign key enforcement enabled.
func InitSQLite(databaseName string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite3", databaseName+"?_foreign_keys=1")
	if err != nil {
		return nil, err
	}

	var enabled int
	err = conn.QueryRow("PRAGMA foreign_keys").Scan(&enabled)
	if err != nil {
		return nil, fmt.Errorf("error checking foreign keys: %v", err)
	}
	if enabled != 1 {
		return nil, fmt.Errorf("foreign keys are not enabled")
	}

	return conn, nil
}

func CloseDB(databaseInstance *sql.DB) {
	if databaseInstance != nil {
		databaseInstance.Close()
		log.Println("Database connection closed")
	}
}
