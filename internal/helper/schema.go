package helper

import (
	"log"

	"gowa-medtoken/database"
)

// InitCustomSchema creates/ensures the gateway's own tables. The whatsmeow
// store manages its schema separately.
func InitCustomSchema() {
	db := database.AppDB

	sessionSchema := `
        CREATE TABLE IF NOT EXISTS sessions (
            id                  SERIAL PRIMARY KEY,
            session_id          VARCHAR(255) UNIQUE NOT NULL,
            phone_number        VARCHAR(50),
            jid                 VARCHAR(255),
            status              VARCHAR(50) NOT NULL DEFAULT 'disconnected',
            qr_code             TEXT,
            qr_expires_at       TIMESTAMP,
            created_at          TIMESTAMP NOT NULL DEFAULT NOW(),
            connected_at        TIMESTAMP,
            disconnected_at     TIMESTAMP
        );

        CREATE INDEX IF NOT EXISTS idx_sessions_session_id ON sessions(session_id);
        CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);

        COMMENT ON TABLE sessions IS 'One row per logical WhatsApp device session';
        COMMENT ON COLUMN sessions.session_id IS 'Logical session name, e.g. default';
        COMMENT ON COLUMN sessions.jid IS 'WhatsApp JID once paired; cleared on terminal logout';
    `
	if _, err := db.Exec(sessionSchema); err != nil {
		log.Fatalf("failed to init sessions schema: %v", err)
	}

	registrationSchema := `
        CREATE TABLE IF NOT EXISTS doctor_registrations (
            id                  BIGSERIAL PRIMARY KEY,
            registration_id     UUID UNIQUE NOT NULL,
            session_id          VARCHAR(255) NOT NULL,
            jid                 VARCHAR(255) NOT NULL,
            doctor_name         VARCHAR(255) NOT NULL,
            payload_link        TEXT NOT NULL,
            state               VARCHAR(30) NOT NULL DEFAULT 'await_confirmation'
                                CHECK (state IN ('await_confirmation', 'confirmed', 'declined')),
            created_at          TIMESTAMP(6) WITH TIME ZONE NOT NULL DEFAULT NOW(),
            resolved_at         TIMESTAMP(6) WITH TIME ZONE
        );

        CREATE INDEX IF NOT EXISTS idx_doctor_registrations_jid ON doctor_registrations(jid);
        CREATE INDEX IF NOT EXISTS idx_doctor_registrations_state ON doctor_registrations(state);

        COMMENT ON TABLE doctor_registrations IS 'Audit trail of doctor confirmation workflows';
        COMMENT ON COLUMN doctor_registrations.payload_link IS 'Link delivered after an affirmative reply';
    `
	if _, err := db.Exec(registrationSchema); err != nil {
		log.Fatalf("failed to init doctor_registrations schema: %v", err)
	}

	log.Println("schema created/ensured successfully")
}
