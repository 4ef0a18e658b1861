package database

import (
	"context"
	"database/sql"
	"log"

	_ "github.com/lib/pq"

	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// Container is the whatsmeow device store (credential material lives here).
var Container *sqlstore.Container

// AppDB holds session metadata and doctor registrations.
var AppDB *sql.DB

// InitWhatsmeow opens the whatsmeow SQL store. The store owns its own
// schema and migrates itself on first use.
func InitWhatsmeow(dbURL string) {
	dbLog := waLog.Stdout("Database", "WARN", true)

	container, err := sqlstore.New(context.Background(), "postgres", dbURL, dbLog)
	if err != nil {
		log.Fatal("Failed to connect whatsmeow DB:", err)
	}
	Container = container
	log.Println("Whatsmeow store connected successfully")
}

// InitAppDB opens the metadata DB (may be the same database as the
// whatsmeow store).
func InitAppDB(appDbURL string) {
	db, err := sql.Open("postgres", appDbURL)
	if err != nil {
		log.Fatal("Failed to connect app DB:", err)
	}
	AppDB = db
	if err := AppDB.Ping(); err != nil {
		log.Fatal("Failed to ping app DB:", err)
	}
	log.Println("App DB connected successfully")
}
