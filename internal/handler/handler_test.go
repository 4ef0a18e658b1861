package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gowa-medtoken/internal/model"
	"gowa-medtoken/internal/service"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	wstore "go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

type stubClient struct {
	mu        sync.Mutex
	sent      []stubMessage
	connected bool
	qrChan    chan whatsmeow.QRChannelItem
}

type stubMessage struct {
	To   types.JID
	Text string
}

func newStubClient() *stubClient {
	return &stubClient{qrChan: make(chan whatsmeow.QRChannelItem, 4)}
}

func (s *stubClient) Connect() error {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()
	return nil
}

func (s *stubClient) Disconnect() {
	s.mu.Lock()
	s.connected = false
	s.mu.Unlock()
}

func (s *stubClient) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func (s *stubClient) IsLoggedIn() bool { return true }

func (s *stubClient) AddEventHandler(whatsmeow.EventHandler) uint32 { return 0 }

func (s *stubClient) GetQRChannel(ctx context.Context) (<-chan whatsmeow.QRChannelItem, error) {
	return s.qrChan, nil
}

func (s *stubClient) SendMessage(ctx context.Context, to types.JID, msg *waE2E.Message, extra ...whatsmeow.SendRequestExtra) (whatsmeow.SendResponse, error) {
	s.mu.Lock()
	s.sent = append(s.sent, stubMessage{To: to, Text: msg.GetConversation()})
	s.mu.Unlock()
	return whatsmeow.SendResponse{}, nil
}

func (s *stubClient) SendPresence(ctx context.Context, presence types.Presence) error { return nil }

func (s *stubClient) Logout(ctx context.Context) error { return nil }

func (s *stubClient) messages() []stubMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]stubMessage, len(s.sent))
	copy(out, s.sent)
	return out
}

type stubCreds struct {
	paired bool
}

func (s *stubCreds) Load(ctx context.Context, sessionID string) (*wstore.Device, error) {
	device := &wstore.Device{}
	if s.paired {
		jid := types.NewJID("5511888888888", types.DefaultUserServer)
		device.ID = &jid
	}
	return device, nil
}

func (s *stubCreds) Save(ctx context.Context, sessionID string, device *wstore.Device) error {
	return nil
}

func (s *stubCreds) Erase(ctx context.Context, sessionID string, device *wstore.Device) error {
	return nil
}

type gateway struct {
	handler *Handler
	manager *service.Manager

	mu      sync.Mutex
	clients []*stubClient
}

func newGateway(t *testing.T, paired bool) *gateway {
	t.Helper()

	g := &gateway{}
	factory := func(device *wstore.Device) model.WAClient {
		client := newStubClient()
		g.mu.Lock()
		g.clients = append(g.clients, client)
		g.mu.Unlock()
		return client
	}

	g.manager = service.NewManager(&stubCreds{paired: paired}, factory, service.DefaultReconnectPolicy())
	confirmations := service.NewConfirmations(g.manager)
	g.manager.SetInboundHandler(confirmations.OnMessageEvent)
	g.handler = New(g.manager, confirmations)
	return g
}

func (g *gateway) client() *stubClient {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.clients) == 0 {
		return newStubClient()
	}
	return g.clients[len(g.clients)-1]
}

func (g *gateway) connect(t *testing.T) {
	t.Helper()
	require.NoError(t, g.manager.Start(context.Background(), DefaultSessionID))
	g.manager.HandleEvent(DefaultSessionID, &events.Connected{})
}

func request(method, target, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestSendTokenRejectsMissingFields(t *testing.T) {
	g := newGateway(t, true)
	g.connect(t)

	c, rec := request(http.MethodPost, "/enviar", `{"telefone": "5511999999999"}`)
	require.NoError(t, g.handler.SendToken(c))

	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), "VALIDATION_ERROR")
	assert.Empty(t, g.client().messages())
}

func TestSendTokenRejectsInvalidPhone(t *testing.T) {
	g := newGateway(t, true)
	g.connect(t)

	c, rec := request(http.MethodPost, "/enviar", `{"telefone": "not-a-phone", "token": "123456"}`)
	require.NoError(t, g.handler.SendToken(c))

	assert.Equal(t, 400, rec.Code)
	assert.Contains(t, rec.Body.String(), "INVALID_PHONE")
	assert.Empty(t, g.client().messages())
}

func TestSendTokenWithoutActiveSession(t *testing.T) {
	g := newGateway(t, true)

	c, rec := request(http.MethodPost, "/enviar", `{"telefone": "+5511999999999", "token": "123456"}`)
	require.NoError(t, g.handler.SendToken(c))

	assert.Equal(t, 503, rec.Code)
	assert.Contains(t, rec.Body.String(), "SESSION_UNAVAILABLE")
	assert.Contains(t, rec.Body.String(), "Escaneie o QR code")
}

func TestSendTokenDeliversMessage(t *testing.T) {
	g := newGateway(t, true)
	g.connect(t)

	c, rec := request(http.MethodPost, "/enviar", `{"telefone": "+55 (11) 99999-9999", "token": "987654"}`)
	require.NoError(t, g.handler.SendToken(c))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"to":"5511999999999"`)

	sent := g.client().messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "5511999999999", sent[0].To.User)
	assert.Equal(t, types.DefaultUserServer, sent[0].To.Server)
	assert.Contains(t, sent[0].Text, "987654")
}

func TestRegisterDoctorRejectsMissingFields(t *testing.T) {
	g := newGateway(t, true)
	g.connect(t)

	c, rec := request(http.MethodPost, "/cadastro-medico", `{"telefone": "5511999999999", "link": "http://x/y"}`)
	require.NoError(t, g.handler.RegisterDoctor(c))

	assert.Equal(t, 400, rec.Code)
	assert.Empty(t, g.client().messages())
}

func TestRegisterDoctorWithoutActiveSession(t *testing.T) {
	g := newGateway(t, true)

	c, rec := request(http.MethodPost, "/cadastro-medico", `{"telefone": "5511999999999", "nome_medico": "Dr. A", "link": "http://x/y"}`)
	require.NoError(t, g.handler.RegisterDoctor(c))

	assert.Equal(t, 503, rec.Code)

	// failed registration leaves no pending record behind
	_, ok := g.handler.Confirm.Get(types.NewJID("5511999999999", types.DefaultUserServer))
	assert.False(t, ok)
}

func TestRegisterDoctorSendsPrompt(t *testing.T) {
	g := newGateway(t, true)
	g.connect(t)

	c, rec := request(http.MethodPost, "/cadastro-medico", `{"telefone": "5511999999999", "nome_medico": "Dr. A", "link": "http://x/y"}`)
	require.NoError(t, g.handler.RegisterDoctor(c))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), "registrationId")
	assert.Contains(t, rec.Body.String(), "await_confirmation")

	sent := g.client().messages()
	require.Len(t, sent, 1)
	assert.Contains(t, sent[0].Text, "Dr. A")
	assert.NotContains(t, sent[0].Text, "http://x/y")
}

func TestGetQRNotAvailable(t *testing.T) {
	g := newGateway(t, true)
	g.connect(t)

	c, rec := request(http.MethodGet, "/qr", "")
	require.NoError(t, g.handler.GetQR(c))

	assert.Equal(t, 404, rec.Code)
	assert.Contains(t, rec.Body.String(), "QR ainda nao gerado")
}

func TestGetQRServesImage(t *testing.T) {
	g := newGateway(t, false)
	require.NoError(t, g.manager.Start(context.Background(), DefaultSessionID))

	g.client().qrChan <- whatsmeow.QRChannelItem{Event: "code", Code: "2@pairing-token"}

	require.Eventually(t, func() bool {
		_, ok := g.manager.CurrentQR(DefaultSessionID)
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	c, rec := request(http.MethodGet, "/qr", "")
	require.NoError(t, g.handler.GetQR(c))

	assert.Equal(t, 200, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestGetStatusUnknownSession(t *testing.T) {
	g := newGateway(t, true)

	c, rec := request(http.MethodGet, "/status/ghost", "")
	c.SetParamNames("sessionId")
	c.SetParamValues("ghost")
	require.NoError(t, g.handler.GetStatus(c))

	assert.Equal(t, 404, rec.Code)
	assert.Contains(t, rec.Body.String(), "SESSION_NOT_FOUND")
}

func TestLogoutUnknownSession(t *testing.T) {
	g := newGateway(t, true)

	c, rec := request(http.MethodPost, "/logout/ghost", "")
	c.SetParamNames("sessionId")
	c.SetParamValues("ghost")
	require.NoError(t, g.handler.Logout(c))

	assert.Equal(t, 404, rec.Code)
}

func TestListSessions(t *testing.T) {
	g := newGateway(t, true)
	g.connect(t)

	c, rec := request(http.MethodGet, "/sessions", "")
	require.NoError(t, g.handler.ListSessions(c))

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `"total":1`)
	assert.Contains(t, rec.Body.String(), DefaultSessionID)
}
