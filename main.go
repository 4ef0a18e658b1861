package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"gowa-medtoken/config"
	"gowa-medtoken/database"
	"gowa-medtoken/internal/handler"
	"gowa-medtoken/internal/helper"
	"gowa-medtoken/internal/service"
	appstore "gowa-medtoken/internal/store"
	"gowa-medtoken/internal/ws"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	wstore "go.mau.fi/whatsmeow/store"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"
)

func main() {

	// Load .env (ignore error when the file is absent, e.g. in production)
	_ = godotenv.Load()

	cfg := config.Load()

	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}
	database.InitWhatsmeow(cfg.DatabaseURL)
	database.InitAppDB(cfg.AppDatabaseURL)

	runCreateSchema := false
	if len(os.Args) > 1 && os.Args[1] == "--createschema" {
		runCreateSchema = true
	}
	if runCreateSchema {
		helper.InitCustomSchema()
	}

	// Linked-device name shown on the phone; global whatsmeow setting.
	wstore.DeviceProps.Os = proto.String(cfg.DeviceName)

	// Realtime hub
	hub := ws.NewHub()
	go hub.Run()

	// Session lifecycle manager
	policy := service.ReconnectPolicy{
		MaxAttempts:        cfg.ReconnectMaxAttempts,
		Backoff:            cfg.ReconnectBackoff,
		MaxBackoff:         2 * time.Minute,
		RestartAfterLogout: cfg.ReconnectRestartAfterLogout,
	}
	creds := appstore.NewCredentials(database.Container)
	manager := service.NewManager(creds, service.NewWhatsmeowClientFactory(), policy)
	manager.Realtime = hub

	// Doctor confirmation workflow, fed by inbound messages
	confirmations := service.NewConfirmations(manager)
	confirmations.Realtime = hub
	manager.SetInboundHandler(confirmations.OnMessageEvent)

	// Reconnect every session known to the DB, then make sure the default
	// session exists.
	log.Println("Loading existing sessions...")
	if err := manager.LoadAllSessions(context.Background()); err != nil {
		log.Printf("Warning: failed to load sessions: %v", err)
	}
	if _, err := manager.GetSession(handler.DefaultSessionID); err != nil {
		if err := manager.Start(context.Background(), handler.DefaultSessionID); err != nil {
			log.Printf("Warning: failed to start default session: %v", err)
		}
	}

	// Setup Echo
	e := echo.New()
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: cfg.CORSAllowOrigins,
		AllowMethods: []string{
			echo.GET,
			echo.POST,
			echo.DELETE,
			echo.OPTIONS,
		},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
		},
	}))

	e.Use(middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(cfg.RateLimitPerSecond),
				Burst:     cfg.RateLimitBurst,
				ExpiresIn: time.Duration(cfg.RateLimitWindowMin) * time.Minute,
			},
		),
	}))

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		message := "Internal Server Error"

		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			message = fmt.Sprintf("%v", he.Message)
		}
		response := map[string]interface{}{
			"success": false,
			"error":   message,
		}
		switch code {
		case http.StatusMethodNotAllowed:
			response["message"] = "Method not allowed for this endpoint"
		case http.StatusNotFound:
			response["message"] = "Endpoint not found"
		}

		c.JSON(code, response)
	}

	h := handler.New(manager, confirmations)

	// Health check
	e.GET("/", func(c echo.Context) error {
		return c.JSON(200, map[string]interface{}{
			"success": true,
			"message": "WhatsApp token gateway is running",
			"version": "1.0.0",
		})
	})

	// Gateway routes
	e.POST("/enviar", h.SendToken)
	e.POST("/cadastro-medico", h.RegisterDoctor)
	e.GET("/qr", h.GetQR)
	e.GET("/qr/:sessionId", h.GetQR)

	// Session management
	e.GET("/sessions", h.ListSessions)
	e.POST("/sessions/:sessionId/start", h.StartSession)
	e.GET("/status/:sessionId", h.GetStatus)
	e.POST("/logout/:sessionId", h.Logout)

	// Realtime events
	e.GET("/ws", handler.WebSocketHandler(hub))

	addr := cfg.Host + ":" + cfg.Port
	log.Printf("🚀 Servidor iniciado em %s", addr)
	log.Fatal(e.Start(addr))
}
