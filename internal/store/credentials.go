package store

import (
	"context"
	"fmt"
	"sync"

	"gowa-medtoken/internal/model"

	wstore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
)

// Credentials persists one device record per logical session in the
// whatsmeow SQL store. The sessionID -> JID mapping lives in the app DB;
// the device record itself (keys, identity, registration metadata) is
// owned by whatsmeow.
type Credentials struct {
	container *sqlstore.Container

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewCredentials(container *sqlstore.Container) *Credentials {
	return &Credentials{
		container: container,
		locks:     make(map[string]*sync.Mutex),
	}
}

// lockFor serializes writes per sessionID. Saves and erases for different
// sessions never contend.
func (s *Credentials) lockFor(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[sessionID] = l
	}
	return l
}

// Load returns the device record for a session, or a fresh unpaired device
// when no credential material exists.
func (s *Credentials) Load(ctx context.Context, sessionID string) (*wstore.Device, error) {
	jidRaw, err := model.GetSessionJID(sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session mapping: %w", err)
	}

	if jidRaw != "" {
		jid, err := types.ParseJID(jidRaw)
		if err == nil {
			device, err := s.container.GetDevice(ctx, jid)
			if err != nil {
				return nil, fmt.Errorf("load device: %w", err)
			}
			if device != nil {
				return device, nil
			}
		}
		// Mapping points at a device that no longer exists; fall through
		// to a fresh identity.
	}

	return s.container.NewDevice(), nil
}

// Save flushes the device record. Idempotent; whatsmeow also saves
// internally on credential updates, this guarantees durability before the
// session is used any further.
func (s *Credentials) Save(ctx context.Context, sessionID string, device *wstore.Device) error {
	if device == nil || device.ID == nil {
		return nil
	}

	l := s.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	if err := device.Save(ctx); err != nil {
		return fmt.Errorf("save device: %w", err)
	}
	return nil
}

// Erase removes all persisted material for a session. Called on terminal
// logout; the next Load hands out a fresh identity.
func (s *Credentials) Erase(ctx context.Context, sessionID string, device *wstore.Device) error {
	l := s.lockFor(sessionID)
	l.Lock()
	defer l.Unlock()

	if device != nil && device.ID != nil {
		if err := s.container.DeleteDevice(ctx, device); err != nil {
			return fmt.Errorf("delete device: %w", err)
		}
	}

	return model.UpdateSessionOnLoggedOut(sessionID)
}
