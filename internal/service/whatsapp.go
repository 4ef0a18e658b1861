package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gowa-medtoken/internal/helper"
	"gowa-medtoken/internal/model"
	"gowa-medtoken/internal/ws"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wstore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"
)

// CredentialStore persists auth material per logical session.
type CredentialStore interface {
	Load(ctx context.Context, sessionID string) (*wstore.Device, error)
	Save(ctx context.Context, sessionID string, device *wstore.Device) error
	Erase(ctx context.Context, sessionID string, device *wstore.Device) error
}

// ClientFactory builds a protocol client for a device record.
type ClientFactory func(device *wstore.Device) model.WAClient

// InboundHandler receives inbound (never self-originated) message events.
type InboundHandler func(sessionID string, evt *events.Message)

// NewWhatsmeowClientFactory is the production factory. Auto-reconnect is
// disabled on purpose: the manager owns the reconnect loop.
func NewWhatsmeowClientFactory() ClientFactory {
	clientLog := waLog.Stdout("Client", "INFO", true)
	return func(device *wstore.Device) model.WAClient {
		client := whatsmeow.NewClient(device, clientLog)
		client.EnableAutoReconnect = false
		return client
	}
}

// Manager owns every session: it starts them, reacts to connection events
// and applies the reconnect policy. All mutations of session state happen
// inside the manager; handlers only read through its API.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*model.Session
	attempts map[string]int

	// Sessions being logged out on purpose; their disconnect events must
	// not trigger a reconnect.
	loggingOut     map[string]bool
	loggingOutLock sync.RWMutex

	creds     CredentialStore
	newClient ClientFactory
	policy    ReconnectPolicy
	inbound   InboundHandler

	Realtime ws.RealtimePublisher
}

func NewManager(creds CredentialStore, factory ClientFactory, policy ReconnectPolicy) *Manager {
	return &Manager{
		sessions:   make(map[string]*model.Session),
		attempts:   make(map[string]int),
		loggingOut: make(map[string]bool),
		creds:      creds,
		newClient:  factory,
		policy:     policy,
	}
}

// SetInboundHandler wires the confirmation workflow. Must be called before
// Start.
func (m *Manager) SetInboundHandler(h InboundHandler) {
	m.inbound = h
}

// Start loads credentials and brings up a fresh protocol client for the
// session. Returns once the connection attempt is underway; pairing and
// the network handshake continue asynchronously.
func (m *Manager) Start(ctx context.Context, sessionID string) error {
	device, err := m.creds.Load(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load credentials for %s: %w", sessionID, err)
	}

	if err := model.EnsureSessionRecord(sessionID); err != nil {
		log.Printf("Warning: failed to ensure session record %s: %v", sessionID, err)
	}

	client := m.newClient(device)
	session := &model.Session{
		ID:     sessionID,
		Status: model.StatusDisconnected,
		Client: client,
		Device: device,
	}

	m.mu.Lock()
	if old, exists := m.sessions[sessionID]; exists {
		// Replaced wholesale; the stale handle must not linger.
		old.Client.Disconnect()
	}
	m.sessions[sessionID] = session
	m.mu.Unlock()

	client.AddEventHandler(m.eventHandler(sessionID, client))

	if device.ID == nil {
		// Never paired (or freshly erased): QR flow.
		go m.qrLoop(sessionID, client)
		return nil
	}

	if err := client.Connect(); err != nil {
		return fmt.Errorf("connect %s: %w", sessionID, err)
	}
	return nil
}

// qrLoop drives the pairing flow: it must grab the QR channel before
// connecting, then tracks each emitted code until scan or timeout.
func (m *Manager) qrLoop(sessionID string, client model.WAClient) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	qrChan, err := client.GetQRChannel(ctx)
	if err != nil {
		log.Printf("Failed to get QR channel for session %s: %v", sessionID, err)
		return
	}

	if err := client.Connect(); err != nil {
		log.Printf("Failed to connect session %s: %v", sessionID, err)
		return
	}

	for item := range qrChan {
		switch {
		case item.Event == "code":
			m.storeQR(sessionID, client, item.Code)

		case item.Event == "success":
			// events.Connected finalizes the transition.
			return

		case item.Event == "timeout":
			log.Printf("✗ QR timeout for session: %s", sessionID)
			m.clearQR(sessionID, client)
			if m.Realtime != nil {
				m.Realtime.Publish(ws.WsEvent{
					Event: ws.EventQRTimeout,
					Data:  map[string]interface{}{"session_id": sessionID},
				})
			}
			return

		case strings.HasPrefix(item.Event, "err-"):
			log.Printf("✗ QR error for session %s: %s", sessionID, item.Event)
			m.clearQR(sessionID, client)
			return
		}
	}
}

func (m *Manager) storeQR(sessionID string, client model.WAClient, code string) {
	m.mu.Lock()
	sess := m.sessions[sessionID]
	if sess == nil || sess.Client != client {
		m.mu.Unlock()
		return
	}
	sess.Status = model.StatusPendingQR
	sess.CurrentQR = code
	m.mu.Unlock()

	expiresAt := time.Now().Add(60 * time.Second)
	if err := model.UpdateSessionQR(sessionID, code, expiresAt); err != nil {
		log.Printf("Warning: failed to store QR for session %s: %v", sessionID, err)
	}

	log.Printf("Novo QR gerado para sessao %s — escaneie para conectar.", sessionID)

	if m.Realtime != nil {
		m.Realtime.Publish(ws.WsEvent{
			Event: ws.EventQRGenerated,
			Data: ws.QRGeneratedData{
				SessionID: sessionID,
				QRData:    code,
				ExpiresAt: expiresAt,
			},
		})
	}
}

func (m *Manager) clearQR(sessionID string, client model.WAClient) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess := m.sessions[sessionID]
	if sess == nil || sess.Client != client {
		return
	}
	sess.CurrentQR = ""
	if sess.Status == model.StatusPendingQR {
		sess.Status = model.StatusDisconnected
	}
}

// GetActive returns the session only when it is connected; it never waits
// for a connection to come up.
func (m *Manager) GetActive(sessionID string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess := m.sessions[sessionID]
	if sess == nil || sess.Status != model.StatusConnected || !sess.Client.IsConnected() {
		return nil, ErrSessionUnavailable
	}
	return sess, nil
}

// GetSession returns the session regardless of connection state.
func (m *Manager) GetSession(sessionID string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess := m.sessions[sessionID]
	if sess == nil {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Sessions returns a snapshot of all sessions.
func (m *Manager) Sessions() map[string]*model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*model.Session, len(m.sessions))
	for k, v := range m.sessions {
		result[k] = v
	}
	return result
}

// CurrentQR returns the pending QR token for a session, if any. A QR from
// before the last successful connect is never served.
func (m *Manager) CurrentQR(sessionID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess := m.sessions[sessionID]
	if sess == nil || sess.Status != model.StatusPendingQR || sess.CurrentQR == "" {
		return "", false
	}
	return sess.CurrentQR, true
}

// Send delivers a text message through the session's client.
func (m *Manager) Send(ctx context.Context, sessionID string, to types.JID, text string) error {
	sess, err := m.GetActive(sessionID)
	if err != nil {
		return err
	}

	msg := &waE2E.Message{
		Conversation: proto.String(text),
	}

	if _, err := sess.Client.SendMessage(ctx, to, msg); err != nil {
		log.Printf("Erro ao enviar mensagem para %s: %v", to.String(), err)
		return fmt.Errorf("%w: send to %s", ErrDeliveryFailed, to.User)
	}

	log.Printf("📤 Mensagem enviada para %s", to.String())
	return nil
}

// LoadAllSessions restarts every session known to the metadata DB. Called
// once at boot.
func (m *Manager) LoadAllSessions(ctx context.Context) error {
	records, err := model.GetAllSessionRecords()
	if err != nil {
		return fmt.Errorf("failed to get session records: %w", err)
	}

	log.Printf("Found %d saved sessions in database", len(records))

	for _, rec := range records {
		if err := m.Start(ctx, rec.SessionID); err != nil {
			log.Printf("Failed to start session %s: %v", rec.SessionID, err)
			continue
		}
		log.Printf("✓ Session starting: %s", rec.SessionID)
	}

	return nil
}

// Logout unlinks the device and leaves the session dormant. This is the
// operator-initiated path; the reconnect policy does not apply.
func (m *Manager) Logout(ctx context.Context, sessionID string) error {
	m.loggingOutLock.Lock()
	m.loggingOut[sessionID] = true
	m.loggingOutLock.Unlock()

	defer func() {
		m.loggingOutLock.Lock()
		delete(m.loggingOut, sessionID)
		m.loggingOutLock.Unlock()
	}()

	m.mu.Lock()
	sess, exists := m.sessions[sessionID]
	if exists {
		delete(m.sessions, sessionID)
	}
	m.mu.Unlock()

	if !exists {
		return ErrSessionNotFound
	}

	if err := sess.Client.Logout(ctx); err != nil {
		log.Printf("Warning: failed to logout from WhatsApp: %v", err)
	}
	sess.Client.Disconnect()

	if err := m.creds.Erase(ctx, sessionID, sess.Device); err != nil {
		log.Printf("Warning: failed to erase credentials for %s: %v", sessionID, err)
	}

	m.publishStatus(sessionID, "", "logged_out")
	log.Println("✓ Device logged out, session cleared:", sessionID)
	return nil
}

func (m *Manager) isLoggingOut(sessionID string) bool {
	m.loggingOutLock.RLock()
	defer m.loggingOutLock.RUnlock()
	return m.loggingOut[sessionID]
}

func (m *Manager) eventHandler(sessionID string, client model.WAClient) whatsmeow.EventHandler {
	return func(evt interface{}) {
		m.handleEvent(sessionID, client, evt)
	}
}

// HandleEvent feeds one protocol event through the state machine. The
// production path goes through the registered event handler; tests drive
// this directly.
func (m *Manager) HandleEvent(sessionID string, evt interface{}) {
	m.handleEvent(sessionID, nil, evt)
}

func (m *Manager) handleEvent(sessionID string, client model.WAClient, evt interface{}) {
	switch e := evt.(type) {
	case *events.PairSuccess:
		log.Println("✓ Pair success! Session:", sessionID)

	case *events.Connected:
		m.handleConnected(sessionID, client)

	case *events.LoggedOut:
		m.handleLoggedOut(sessionID, client)

	case *events.Disconnected:
		m.handleDisconnected(sessionID, client)

	case *events.StreamReplaced:
		log.Println("⚠ Stream replaced! Session:", sessionID)

	case *events.Message:
		// Self-originated messages never reach the confirmation workflow.
		if e.Info.IsFromMe {
			return
		}
		if m.inbound != nil {
			m.inbound(sessionID, e)
		}
	}
}

// current returns the live session when the event's client is still the
// owned handle. Events from replaced handles are dropped. Caller must hold
// m.mu.
func (m *Manager) current(sessionID string, client model.WAClient) *model.Session {
	sess := m.sessions[sessionID]
	if sess == nil {
		return nil
	}
	if client != nil && sess.Client != client {
		return nil
	}
	return sess
}

func (m *Manager) handleConnected(sessionID string, client model.WAClient) {
	if m.isLoggingOut(sessionID) {
		log.Println("⚠ Ignoring reconnect during logout:", sessionID)
		return
	}

	m.mu.Lock()
	sess := m.current(sessionID, client)
	if sess == nil {
		m.mu.Unlock()
		return
	}
	sess.Status = model.StatusConnected
	sess.CurrentQR = ""
	if sess.Device != nil && sess.Device.ID != nil {
		sess.JID = sess.Device.ID.String()
	}
	m.attempts[sessionID] = 0
	jid := sess.JID
	device := sess.Device
	liveClient := sess.Client
	m.mu.Unlock()

	ctx := context.Background()

	// Credential durability comes before any further use of the session;
	// running on unsaved credentials risks losing the device on the next
	// restart.
	if err := m.creds.Save(ctx, sessionID, device); err != nil {
		log.Printf("✗ Failed to persist credentials for %s, forcing reconnect: %v", sessionID, err)
		m.mu.Lock()
		if s := m.current(sessionID, liveClient); s != nil {
			s.Status = model.StatusDisconnected
			delete(m.sessions, sessionID)
		}
		m.mu.Unlock()
		liveClient.Disconnect()
		m.scheduleReconnect(sessionID)
		return
	}

	if err := liveClient.SendPresence(ctx, types.PresenceAvailable); err != nil {
		log.Println("⚠ Failed to send presence for session:", sessionID, err)
	}

	phone := helper.ExtractPhoneFromJID(jid)
	if err := model.UpdateSessionOnConnected(sessionID, jid, phone); err != nil {
		log.Println("Warning: failed to update session on connected:", err)
	}

	log.Println("✓ Connected! Session:", sessionID, "JID:", jid)
	m.publishStatus(sessionID, phone, "connected")
}

// handleLoggedOut is the terminal branch: the remote party revoked the
// credentials, so they are erased before anything else happens. Whether
// the session comes back with a fresh identity is up to the policy.
func (m *Manager) handleLoggedOut(sessionID string, client model.WAClient) {
	if m.isLoggingOut(sessionID) {
		return
	}

	m.mu.Lock()
	sess := m.current(sessionID, client)
	if sess == nil {
		m.mu.Unlock()
		return
	}
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	log.Println("✗ Logged out! Session:", sessionID)

	ctx := context.Background()
	if err := m.creds.Erase(ctx, sessionID, sess.Device); err != nil {
		log.Printf("⚠ Failed to erase credentials for %s: %v", sessionID, err)
	}
	sess.Client.Disconnect()

	m.publishStatus(sessionID, "", "logged_out")

	if !m.policy.RestartAfterLogout {
		log.Printf("Session %s left dormant after logout (restart disabled)", sessionID)
		return
	}

	log.Printf("Reconectando sessao %s com identidade nova...", sessionID)
	if err := m.Start(ctx, sessionID); err != nil {
		log.Printf("Failed to restart session %s after logout: %v", sessionID, err)
	}
}

func (m *Manager) handleDisconnected(sessionID string, client model.WAClient) {
	if m.isLoggingOut(sessionID) {
		return
	}

	m.mu.Lock()
	sess := m.current(sessionID, client)
	if sess == nil {
		m.mu.Unlock()
		return
	}
	sess.Status = model.StatusDisconnected
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	log.Println("⚠ Disconnected! Session:", sessionID)

	sess.Client.Disconnect()

	if err := model.UpdateSessionOnDisconnected(sessionID); err != nil {
		log.Println("Warning: failed to update session on disconnected:", err)
	}

	m.publishStatus(sessionID, "", "disconnected")
	m.scheduleReconnect(sessionID)
}

// scheduleReconnect restarts the SAME session that dropped, honoring the
// policy's cap and backoff.
func (m *Manager) scheduleReconnect(sessionID string) {
	m.mu.Lock()
	m.attempts[sessionID]++
	attempt := m.attempts[sessionID]
	m.mu.Unlock()

	if m.policy.Exhausted(attempt) {
		log.Printf("✗ Giving up on session %s after %d attempts", sessionID, attempt-1)
		return
	}

	delay := m.policy.Delay(attempt)

	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		log.Printf("Reconectando sessao %s (tentativa %d)...", sessionID, attempt)
		if err := m.Start(context.Background(), sessionID); err != nil {
			log.Printf("Reconnect attempt %d for %s failed: %v", attempt, sessionID, err)
			m.scheduleReconnect(sessionID)
		}
	}()
}

func (m *Manager) publishStatus(sessionID, phone, status string) {
	if m.Realtime == nil {
		return
	}

	now := time.Now().UTC()
	data := ws.SessionStatusChangedData{
		SessionID:   sessionID,
		PhoneNumber: phone,
		Status:      status,
	}
	if status == "connected" {
		data.ConnectedAt = &now
	} else {
		data.DisconnectedAt = &now
	}

	m.Realtime.Publish(ws.WsEvent{
		Event:     ws.EventSessionStatusChanged,
		Timestamp: now,
		Data:      data,
	})
}
