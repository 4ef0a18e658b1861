package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"gowa-medtoken/internal/model"
	"gowa-medtoken/internal/ws"

	"github.com/google/uuid"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

type DoctorState string

const (
	DoctorIdle              DoctorState = "idle"
	DoctorAwaitConfirmation DoctorState = "await_confirmation"
)

const (
	promptMessage = "👋 Olá, %s! Recebemos o seu cadastro na plataforma.\n\nResponda *SIM* para confirmar o cadastro ou *NÃO* para cancelar."
	linkMessage   = "✅ Cadastro confirmado! Acesse a plataforma pelo link: %s"
	sorryMessage  = "Tudo bem! Seu cadastro não foi concluído. Caso mude de ideia, fale com a nossa equipe. 🙏"
)

// Doctor tracks one pending yes/no confirmation workflow, keyed by the
// destination phone.
type Doctor struct {
	RegistrationID string
	SessionID      string
	JID            types.JID
	Name           string
	Link           string
	State          DoctorState
	RegisteredAt   time.Time
	ResolvedAt     time.Time
}

// TextSender is the slice of the lifecycle manager the workflow needs.
type TextSender interface {
	Send(ctx context.Context, sessionID string, to types.JID, text string) error
}

// Confirmations owns the doctor map and advances it on inbound replies.
// The mutex is held across the whole transition so a burst of replies for
// the same doctor resolves exactly once.
type Confirmations struct {
	mu      sync.Mutex
	doctors map[string]*Doctor

	sender   TextSender
	Realtime ws.RealtimePublisher
}

func NewConfirmations(sender TextSender) *Confirmations {
	return &Confirmations{
		doctors: make(map[string]*Doctor),
		sender:  sender,
	}
}

// Register starts (or restarts) the workflow for a phone: it sends the
// confirmation prompt and only then installs the record, so a failed send
// never leaks an orphaned pending entry.
func (c *Confirmations) Register(ctx context.Context, sessionID string, to types.JID, name, link string) (*Doctor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prompt := fmt.Sprintf(promptMessage, name)
	if err := c.sender.Send(ctx, sessionID, to, prompt); err != nil {
		return nil, err
	}

	doctor := &Doctor{
		RegistrationID: uuid.NewString(),
		SessionID:      sessionID,
		JID:            to,
		Name:           name,
		Link:           link,
		State:          DoctorAwaitConfirmation,
		RegisteredAt:   time.Now().UTC(),
	}
	c.doctors[to.User] = doctor

	if err := model.InsertDoctorRegistration(doctor.RegistrationID, sessionID, to.String(), name, link); err != nil {
		log.Printf("Warning: failed to record doctor registration %s: %v", doctor.RegistrationID, err)
	}

	c.publish(ws.EventDoctorRegistered, doctor)
	log.Printf("👨‍⚕️ Cadastro registrado para %s (%s), aguardando confirmação", name, to.User)
	return doctor, nil
}

// Get returns a snapshot of the doctor record for a phone.
func (c *Confirmations) Get(jid types.JID) (Doctor, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.doctors[jid.User]
	if !ok {
		return Doctor{}, false
	}
	return *d, true
}

// OnMessageEvent adapts protocol message events into the workflow. Group
// chats carry no confirmation semantics and are skipped; self-originated
// events were already filtered by the manager.
func (c *Confirmations) OnMessageEvent(sessionID string, evt *events.Message) {
	if evt.Info.Chat.Server != types.DefaultUserServer {
		return
	}

	text := extractText(evt)
	if text == "" {
		return
	}

	if err := c.HandleInboundText(context.Background(), sessionID, evt.Info.Chat, text); err != nil {
		log.Printf("Warning: failed to handle reply from %s: %v", evt.Info.Chat.User, err)
	}
}

// HandleInboundText advances the state machine for one inbound reply.
// No-op unless the phone has a pending confirmation. Matching is
// case-insensitive substring containment; when a reply carries both
// tokens, affirmative wins.
func (c *Confirmations) HandleInboundText(ctx context.Context, sessionID string, from types.JID, rawText string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doctor, ok := c.doctors[from.User]
	if !ok || doctor.State != DoctorAwaitConfirmation {
		return nil
	}

	text := strings.ToLower(strings.TrimSpace(rawText))

	switch {
	case strings.Contains(text, "sim"):
		reply := fmt.Sprintf(linkMessage, doctor.Link)
		if err := c.sender.Send(ctx, doctor.SessionID, doctor.JID, reply); err != nil {
			// Leave the record pending so the next reply can retry.
			return err
		}
		c.resolve(doctor, model.RegistrationConfirmed)
		log.Printf("✓ Cadastro confirmado: %s (%s)", doctor.Name, from.User)

	case strings.Contains(text, "não") || strings.Contains(text, "nao"):
		if err := c.sender.Send(ctx, doctor.SessionID, doctor.JID, sorryMessage); err != nil {
			return err
		}
		c.resolve(doctor, model.RegistrationDeclined)
		log.Printf("✗ Cadastro recusado: %s (%s)", doctor.Name, from.User)

	default:
		// Unrecognized reply; the record stays pending indefinitely.
	}

	return nil
}

func (c *Confirmations) resolve(doctor *Doctor, outcome string) {
	doctor.State = DoctorIdle
	doctor.ResolvedAt = time.Now().UTC()

	if err := model.ResolveDoctorRegistration(doctor.RegistrationID, outcome, doctor.ResolvedAt); err != nil {
		log.Printf("Warning: failed to resolve doctor registration %s: %v", doctor.RegistrationID, err)
	}

	c.publish(ws.EventDoctorResolved, doctor)
}

func (c *Confirmations) publish(event string, doctor *Doctor) {
	if c.Realtime == nil {
		return
	}

	c.Realtime.Publish(ws.WsEvent{
		Event: event,
		Data: ws.DoctorEventData{
			RegistrationID: doctor.RegistrationID,
			SessionID:      doctor.SessionID,
			Phone:          doctor.JID.User,
			DoctorName:     doctor.Name,
			State:          string(doctor.State),
		},
	})
}

func extractText(evt *events.Message) string {
	if evt.Message == nil {
		return ""
	}
	if conv := evt.Message.GetConversation(); conv != "" {
		return conv
	}
	return evt.Message.GetExtendedTextMessage().GetText()
}
