package model

import (
	"database/sql"
	"time"

	"gowa-medtoken/database"
)

// SessionRecord is the durable row behind one logical session.
type SessionRecord struct {
	SessionID      string
	PhoneNumber    sql.NullString
	JID            sql.NullString
	Status         string
	CreatedAt      time.Time
	ConnectedAt    sql.NullTime
	DisconnectedAt sql.NullTime
}

// EnsureSessionRecord inserts the row for a session if it does not exist
// yet. Safe to call on every start.
func EnsureSessionRecord(sessionID string) error {
	db := database.AppDB
	if db == nil {
		return nil
	}

	query := `
		INSERT INTO sessions (session_id, status)
		VALUES ($1, 'disconnected')
		ON CONFLICT (session_id) DO NOTHING
	`
	_, err := db.Exec(query, sessionID)
	return err
}

func GetAllSessionRecords() ([]SessionRecord, error) {
	db := database.AppDB
	if db == nil {
		return nil, nil
	}

	rows, err := db.Query(`
		SELECT session_id, phone_number, jid, status, created_at, connected_at, disconnected_at
		FROM sessions
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var r SessionRecord
		if err := rows.Scan(&r.SessionID, &r.PhoneNumber, &r.JID, &r.Status, &r.CreatedAt, &r.ConnectedAt, &r.DisconnectedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}

	return records, rows.Err()
}

// GetSessionJID returns the stored JID mapping for a session, or empty
// string when the session never paired (or was logged out).
func GetSessionJID(sessionID string) (string, error) {
	db := database.AppDB
	if db == nil {
		return "", nil
	}

	var jid sql.NullString
	err := db.QueryRow(`SELECT jid FROM sessions WHERE session_id = $1`, sessionID).Scan(&jid)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return jid.String, nil
}

func UpdateSessionOnConnected(sessionID, jid, phoneNumber string) error {
	db := database.AppDB
	if db == nil {
		return nil
	}

	query := `
		UPDATE sessions
		SET jid = $2, phone_number = $3, status = 'connected',
		    qr_code = NULL, qr_expires_at = NULL, connected_at = NOW()
		WHERE session_id = $1
	`
	_, err := db.Exec(query, sessionID, jid, phoneNumber)
	return err
}

func UpdateSessionOnDisconnected(sessionID string) error {
	db := database.AppDB
	if db == nil {
		return nil
	}

	query := `
		UPDATE sessions
		SET status = 'disconnected', disconnected_at = NOW()
		WHERE session_id = $1
	`
	_, err := db.Exec(query, sessionID)
	return err
}

// UpdateSessionOnLoggedOut clears the JID mapping: the device record is
// gone from the credential store, so the mapping must not survive either.
func UpdateSessionOnLoggedOut(sessionID string) error {
	db := database.AppDB
	if db == nil {
		return nil
	}

	query := `
		UPDATE sessions
		SET status = 'logged_out', jid = NULL, phone_number = NULL,
		    qr_code = NULL, qr_expires_at = NULL, disconnected_at = NOW()
		WHERE session_id = $1
	`
	_, err := db.Exec(query, sessionID)
	return err
}

func UpdateSessionQR(sessionID, qrCode string, expiresAt time.Time) error {
	db := database.AppDB
	if db == nil {
		return nil
	}

	query := `
		UPDATE sessions
		SET status = 'pending_qr', qr_code = $2, qr_expires_at = $3
		WHERE session_id = $1
	`
	_, err := db.Exec(query, sessionID, qrCode, expiresAt)
	return err
}
