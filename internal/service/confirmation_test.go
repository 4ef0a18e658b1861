package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	"google.golang.org/protobuf/proto"
)

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	sendErr error
}

func (f *fakeSender) Send(ctx context.Context, sessionID string, to types.JID, text string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{To: to, Text: text})
	f.mu.Unlock()
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func drJID() types.JID {
	return types.NewJID("5511999999999", types.DefaultUserServer)
}

func TestRegisterSendsPromptAndInstallsRecord(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)

	doctor, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)
	require.Equal(t, DoctorAwaitConfirmation, doctor.State)
	require.NotEmpty(t, doctor.RegistrationID)

	sent := sender.messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Dr. A")
	assert.Contains(t, sent[0].Text, "SIM")

	got, ok := c.Get(drJID())
	require.True(t, ok)
	assert.Equal(t, "http://x/y", got.Link)
}

func TestRegisterIsAtomicOnSendFailure(t *testing.T) {
	sender := &fakeSender{sendErr: ErrSessionUnavailable}
	c := NewConfirmations(sender)

	_, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.ErrorIs(t, err, ErrSessionUnavailable)

	// no orphaned await_confirmation record
	_, ok := c.Get(drJID())
	assert.False(t, ok)
}

func TestAffirmativeReplySendsLink(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)
	_, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)

	require.NoError(t, c.HandleInboundText(context.Background(), "default", drJID(), "Sim, confirmo"))

	sent := sender.messages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Text, "http://x/y")

	got, _ := c.Get(drJID())
	assert.Equal(t, DoctorIdle, got.State)
}

func TestNegativeReplySendsApology(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)
	_, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)

	require.NoError(t, c.HandleInboundText(context.Background(), "default", drJID(), "  NÃO quero  "))

	sent := sender.messages()
	require.Len(t, sent, 2)
	assert.NotContains(t, sent[1].Text, "http://x/y")

	got, _ := c.Get(drJID())
	assert.Equal(t, DoctorIdle, got.State)
}

func TestNegativeReplyWithoutAccent(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)
	_, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)

	require.NoError(t, c.HandleInboundText(context.Background(), "default", drJID(), "nao"))

	got, _ := c.Get(drJID())
	assert.Equal(t, DoctorIdle, got.State)
}

func TestAffirmativeWinsWhenBothTokensPresent(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)
	_, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)

	require.NoError(t, c.HandleInboundText(context.Background(), "default", drJID(), "sim, não, sei lá"))

	sent := sender.messages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Text, "http://x/y")
}

func TestUnrecognizedReplyKeepsRecordPending(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)
	_, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)

	require.NoError(t, c.HandleInboundText(context.Background(), "default", drJID(), "quem é você?"))

	require.Len(t, sender.messages(), 1)
	got, _ := c.Get(drJID())
	assert.Equal(t, DoctorAwaitConfirmation, got.State)
}

func TestResolvedRecordIgnoresFurtherReplies(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)
	_, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)

	require.NoError(t, c.HandleInboundText(context.Background(), "default", drJID(), "sim"))
	require.NoError(t, c.HandleInboundText(context.Background(), "default", drJID(), "sim"))

	// prompt + link only; the second affirmative is a no-op
	require.Len(t, sender.messages(), 2)
}

func TestUnknownPhoneIsNoOp(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)

	require.NoError(t, c.HandleInboundText(context.Background(), "default", drJID(), "sim"))
	require.Empty(t, sender.messages())
}

func TestReplySendFailureLeavesRecordPending(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)
	_, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)

	sender.sendErr = ErrDeliveryFailed
	err = c.HandleInboundText(context.Background(), "default", drJID(), "sim")
	require.ErrorIs(t, err, ErrDeliveryFailed)

	got, _ := c.Get(drJID())
	assert.Equal(t, DoctorAwaitConfirmation, got.State)

	// next reply resolves normally
	sender.sendErr = nil
	require.NoError(t, c.HandleInboundText(context.Background(), "default", drJID(), "sim"))
	got, _ = c.Get(drJID())
	assert.Equal(t, DoctorIdle, got.State)
}

func TestOnMessageEventSkipsGroupChats(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)
	_, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)

	groupEvt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{
				Chat: types.NewJID("1234-5678", types.GroupServer),
			},
		},
		Message: &waE2E.Message{Conversation: proto.String("sim")},
	}
	c.OnMessageEvent("default", groupEvt)

	require.Len(t, sender.messages(), 1)
}

func TestOnMessageEventReadsExtendedText(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)
	_, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)

	evt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: drJID()},
		},
		Message: &waE2E.Message{
			ExtendedTextMessage: &waE2E.ExtendedTextMessage{
				Text: proto.String("Sim, confirmo"),
			},
		},
	}
	c.OnMessageEvent("default", evt)

	sent := sender.messages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Text, "http://x/y")
}

func TestEndToEndRegistrationScenario(t *testing.T) {
	sender := &fakeSender{}
	c := NewConfirmations(sender)

	doctor, err := c.Register(context.Background(), "default", drJID(), "Dr. A", "http://x/y")
	require.NoError(t, err)
	require.Equal(t, DoctorAwaitConfirmation, doctor.State)

	evt := &events.Message{
		Info: types.MessageInfo{
			MessageSource: types.MessageSource{Chat: drJID()},
		},
		Message: &waE2E.Message{Conversation: proto.String("Sim, confirmo")},
	}
	c.OnMessageEvent("default", evt)

	sent := sender.messages()
	require.Len(t, sent, 2)
	assert.Contains(t, sent[1].Text, "http://x/y")
	assert.NotContains(t, sent[1].Text, "não foi concluído")

	got, _ := c.Get(drJID())
	assert.Equal(t, DoctorIdle, got.State)
}
