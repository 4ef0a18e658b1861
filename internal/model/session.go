package model

import (
	"context"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
)

type SessionStatus string

const (
	StatusDisconnected SessionStatus = "disconnected"
	StatusPendingQR    SessionStatus = "pending_qr"
	StatusConnected    SessionStatus = "connected"
)

// WAClient is the subset of *whatsmeow.Client the gateway touches. The
// lifecycle manager only depends on this interface so the transport can be
// faked in tests.
type WAClient interface {
	Connect() error
	Disconnect()
	IsConnected() bool
	IsLoggedIn() bool
	AddEventHandler(handler whatsmeow.EventHandler) uint32
	GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error)
	SendMessage(ctx context.Context, to types.JID, message *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error)
	SendPresence(ctx context.Context, state types.Presence) error
	Logout(ctx context.Context) error
}

// Session is one logical device session. Owned exclusively by the
// lifecycle manager; handlers read it through the manager's API.
type Session struct {
	ID        string
	JID       string
	Status    SessionStatus
	CurrentQR string
	Client    WAClient
	Device    *store.Device
}
