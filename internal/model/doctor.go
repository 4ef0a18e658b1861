package model

import (
	"time"

	"gowa-medtoken/database"
)

const (
	RegistrationConfirmed = "confirmed"
	RegistrationDeclined  = "declined"
)

// InsertDoctorRegistration writes the audit row for a new confirmation
// workflow. The in-memory state machine stays authoritative; this table is
// history only.
func InsertDoctorRegistration(registrationID, sessionID, jid, name, link string) error {
	db := database.AppDB
	if db == nil {
		return nil
	}

	query := `
		INSERT INTO doctor_registrations (registration_id, session_id, jid, doctor_name, payload_link)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := db.Exec(query, registrationID, sessionID, jid, name, link)
	return err
}

// ResolveDoctorRegistration records the outcome of a confirmation workflow.
func ResolveDoctorRegistration(registrationID, state string, resolvedAt time.Time) error {
	db := database.AppDB
	if db == nil {
		return nil
	}

	query := `
		UPDATE doctor_registrations
		SET state = $2, resolved_at = $3
		WHERE registration_id = $1
	`
	_, err := db.Exec(query, registrationID, state, resolvedAt)
	return err
}
