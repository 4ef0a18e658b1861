package ws

import "time"

const (
	EventSessionStatusChanged = "SESSION_STATUS_CHANGED"
	EventQRGenerated          = "QR_GENERATED"
	EventQRTimeout            = "QR_TIMEOUT"
	EventDoctorRegistered     = "DOCTOR_REGISTERED"
	EventDoctorResolved       = "DOCTOR_RESOLVED"
	EventSessionError         = "SESSION_ERROR"
)

// WsEvent is the envelope broadcast to every connected client.
type WsEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

type SessionStatusChangedData struct {
	SessionID      string     `json:"session_id"`
	PhoneNumber    string     `json:"phone_number,omitempty"`
	Status         string     `json:"status"`
	ConnectedAt    *time.Time `json:"connected_at,omitempty"`
	DisconnectedAt *time.Time `json:"disconnected_at,omitempty"`
}

type QRGeneratedData struct {
	SessionID string    `json:"session_id"`
	QRData    string    `json:"qr_data"`
	ExpiresAt time.Time `json:"expires_at"`
}

type DoctorEventData struct {
	RegistrationID string `json:"registration_id"`
	SessionID      string `json:"session_id"`
	Phone          string `json:"phone"`
	DoctorName     string `json:"doctor_name"`
	State          string `json:"state"`
}
