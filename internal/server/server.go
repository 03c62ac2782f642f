package server

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"casinolab/internal/cache"
	"casinolab/internal/config"
	"casinolab/internal/database"
	"casinolab/internal/game"
	"casinolab/internal/ledger"
	"casinolab/internal/rng"
)

// CrashGame is the crash round as the HTTP layer uses it.
type CrashGame interface {
	game.CrashService
	History() []game.HistoryEntry
}

// Deps are the collaborators of the HTTP server. DB and Cache may be nil.
type Deps struct {
	Config   config.Config
	DB       database.Service
	Cache    cache.Service
	Ledger   ledger.Ledger
	Hub      *game.Hub
	Crash    CrashGame
	Casino   game.InstantService
	Fairness *game.FairnessLedger
	Chat     game.ChatStore
}

type FiberServer struct {
	*fiber.App

	cfg        config.Config
	db         database.Service
	cache      cache.Service
	ledger     ledger.Ledger
	hub        *game.Hub
	crash      CrashGame
	casino     game.InstantService
	fairness   *game.FairnessLedger
	chat       game.ChatStore
	dispatcher *game.Dispatcher

	// lifecycle hooks installed by New
	onStart []func()
	onStop  []func()
}

// NewWithDeps builds the HTTP app around already constructed parts. Nothing
// is started.
func NewWithDeps(d Deps) *FiberServer {
	s := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader: "casinolab",
			AppName:      "casinolab",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  120 * time.Second,
		}),
		cfg:      d.Config,
		db:       d.DB,
		cache:    d.Cache,
		ledger:   d.Ledger,
		hub:      d.Hub,
		crash:    d.Crash,
		casino:   d.Casino,
		fairness: d.Fairness,
		chat:     d.Chat,
	}
	s.dispatcher = game.NewDispatcher(d.Hub, d.Crash, d.Casino, d.Chat)
	s.RegisterFiberRoutes()
	return s
}

// New wires the whole service from configuration: storage, ledger, the
// crash loop, instant games and the socket hub.
func New(cfg config.Config) (*FiberServer, error) {
	var (
		db    database.Service
		redis cache.Service
		err   error
	)

	db, err = database.New(cfg.Database)
	if err != nil {
		log.Printf("[SERVER] Postgres unavailable, history and chat stay in memory: %v", err)
		db = nil
	} else if cfg.Database.AutoMigrate {
		if err := database.RunMigrations(db.DB(), cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrations: %w", err)
		}
	}

	var l ledger.Ledger
	switch cfg.Ledger.Backend {
	case "redis":
		redis, err = cache.New(cfg.Redis)
		if err != nil {
			if db != nil {
				db.Close()
			}
			return nil, fmt.Errorf("redis ledger: %w", err)
		}
		l = ledger.NewRedis(redis.GetClient(), cfg.Ledger.StartingBalance)
	default:
		log.Println("[SERVER] Using in-memory ledger, balances reset on restart")
		l = ledger.NewMemory(cfg.Ledger.StartingBalance)
	}

	var (
		recorder *game.Recorder
		chat     game.ChatStore = game.NewMemoryChat()
	)
	if db != nil {
		recorder = game.NewRecorder(db)
		chat = db
	}

	src := rng.New()
	fairness, err := game.NewFairnessLedger(src, cfg.Crash.SaltRotation, cfg.Fairness.CacheSize)
	if err != nil {
		if redis != nil {
			redis.Close()
		}
		if db != nil {
			db.Close()
		}
		return nil, fmt.Errorf("fairness ledger: %w", err)
	}

	hub := game.NewHub(cfg.ChatRooms)
	manager := game.NewManager(game.ManagerConfig{
		BettingTime:    cfg.Crash.BettingTime,
		Cooldown:       cfg.Crash.Cooldown,
		TickInterval:   cfg.Crash.TickInterval,
		HistorySize:    cfg.Crash.HistorySize,
		MinBet:         cfg.Crash.MinBet,
		MaxBet:         cfg.Crash.MaxBet,
		RequestTimeout: cfg.Crash.RequestTimeout,
	}, hub, l, fairness, recorder)
	casino := game.NewDefaultCasino(l, src, recorder, cfg.Crash.MinBet, cfg.Crash.MaxBet)

	s := NewWithDeps(Deps{
		Config:   cfg,
		DB:       db,
		Cache:    redis,
		Ledger:   l,
		Hub:      hub,
		Crash:    manager,
		Casino:   casino,
		Fairness: fairness,
		Chat:     chat,
	})

	s.onStart = []func(){
		func() { go hub.Run() },
		recorder.Start,
		manager.Start,
	}
	// manager first so its void refunds and salt reveal reach the recorder
	s.onStop = []func(){
		manager.Stop,
		hub.Stop,
		recorder.Stop,
	}
	return s, nil
}

// Start launches the background loops.
func (s *FiberServer) Start() {
	for _, fn := range s.onStart {
		fn()
	}
	log.Println("[SERVER] Crash loop, hub and recorder started")
}

// Shutdown stops the HTTP listener, then the game loops, then storage.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	err := s.App.ShutdownWithTimeout(5 * time.Second)
	for _, fn := range s.onStop {
		fn()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}
	return err
}
