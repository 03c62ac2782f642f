package server

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"casinolab/internal/metrics"
)

func (s *FiberServer) RegisterFiberRoutes() {
	s.App.Use(recover.New())
	s.App.Use(metrics.Middleware())
	s.App.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORSAllowOrigins,
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Accept,Authorization,Content-Type,X-Admin-User",
		AllowCredentials: false, // credentials require explicit origins
		MaxAge:           300,
	}))

	s.App.Get("/health", s.healthHandler)
	s.App.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	rate := s.cfg.RateLimitPerMinute
	if rate <= 0 {
		rate = 100
	}
	api := s.App.Group("/api/v1", limiter.New(limiter.Config{
		Max:        rate,
		Expiration: 1 * time.Minute,
	}))

	crash := api.Group("/crash")
	crash.Get("/state", s.crashStateHandler)
	crash.Get("/history", s.crashHistoryHandler)
	crash.Post("/bet", s.crashBetHandler)
	crash.Post("/cashout", s.crashCashoutHandler)

	api.Post("/games/:game/bet", s.instantBetHandler)

	fair := api.Group("/fairness")
	fair.Get("/rounds/:roundId", s.roundProofHandler)
	fair.Get("/salts", s.saltsHandler)
	fair.Post("/verify", s.verifyHandler)

	api.Get("/user/:userId/balance", s.getUserBalanceHandler)
	api.Post("/user/:userId/balance", s.setUserBalanceHandler)
	api.Get("/user/:userId/outcomes", s.userOutcomesHandler)

	api.Get("/chat/:room/messages", s.chatMessagesHandler)

	s.App.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	s.App.Get("/ws", websocket.New(s.gameWebSocketHandler, websocket.Config{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
	}))
}
