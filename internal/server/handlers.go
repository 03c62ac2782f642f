package server

import (
	"context"
	"log"
	"slices"

	"github.com/gofiber/fiber/v2"

	"casinolab/internal/game"
)

const (
	DEFAULT_LIST_LIMIT = 20
	MAX_LIST_LIMIT     = 100
)

func statusFor(reason string) int {
	switch reason {
	case "not_found", "unknown_room", "game_unavailable":
		return fiber.StatusNotFound
	case "not_authorized":
		return fiber.StatusForbidden
	case "busy":
		return fiber.StatusServiceUnavailable
	case "internal", "entropy_unavailable":
		return fiber.StatusInternalServerError
	}
	return fiber.StatusBadRequest
}

// errorResponse renders err as {error, reason[, fields]}. Server faults are
// logged and their details withheld.
func errorResponse(c *fiber.Ctx, err error) error {
	reason := game.Reason(err)
	status := statusFor(reason)
	body := fiber.Map{"error": err.Error(), "reason": reason}
	if status == fiber.StatusInternalServerError {
		log.Printf("[SERVER] %s %s failed: %v", c.Method(), c.Path(), err)
		body["error"] = "internal error"
	}
	if fields := game.FormatValidationError(err); fields != nil {
		if _, generic := fields["error"]; !generic {
			body["fields"] = fields
		}
	}
	return c.Status(status).JSON(body)
}

func badBody(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  "Invalid request body",
		"reason": "invalid_parameters",
	})
}

func listLimit(c *fiber.Ctx, def int) int {
	limit := c.QueryInt("limit", def)
	if limit <= 0 {
		return def
	}
	return min(limit, MAX_LIST_LIMIT)
}

func (s *FiberServer) healthHandler(c *fiber.Ctx) error {
	disabled := map[string]string{"status": "disabled"}
	dbHealth, cacheHealth := disabled, disabled
	if s.db != nil {
		dbHealth = s.db.Health()
	}
	if s.cache != nil {
		cacheHealth = s.cache.Health()
	}
	snap := s.crash.Snapshot()
	return c.JSON(fiber.Map{
		"database": dbHealth,
		"cache":    cacheHealth,
		"game": fiber.Map{
			"status":            "running",
			"round_id":          snap.RoundID,
			"phase":             snap.Phase,
			"connected_clients": s.hub.GetClientCount(),
		},
	})
}

// Crash game

func (s *FiberServer) crashStateHandler(c *fiber.Ctx) error {
	return c.JSON(s.crash.Snapshot())
}

func (s *FiberServer) crashHistoryHandler(c *fiber.Ctx) error {
	resp := fiber.Map{"history": s.crash.History()}
	if s.db != nil {
		rounds, err := s.db.RecentRounds(c.UserContext(), listLimit(c, DEFAULT_LIST_LIMIT))
		if err != nil {
			return errorResponse(c, err)
		}
		resp["rounds"] = rounds
	}
	return c.JSON(resp)
}

func (s *FiberServer) crashBetHandler(c *fiber.Ctx) error {
	var req game.BetRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := game.ValidateStruct(req); err != nil {
		return errorResponse(c, err)
	}

	resp, err := s.crash.PlaceBet(c.UserContext(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(resp)
}

func (s *FiberServer) crashCashoutHandler(c *fiber.Ctx) error {
	var req game.CashoutRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := game.ValidateStruct(req); err != nil {
		return errorResponse(c, err)
	}

	resp, err := s.crash.Cashout(c.UserContext(), req)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(resp)
}

// Instant games

func (s *FiberServer) instantBetHandler(c *fiber.Ctx) error {
	var body struct {
		UserID string          `json:"user_id"`
		Amount float64         `json:"amount"`
		Params game.GameParams `json:"params"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badBody(c)
	}

	resp, err := s.casino.SubmitBet(c.UserContext(), game.SubmitBetRequest{
		UserID: body.UserID,
		Game:   game.GameType(c.Params("game")),
		Amount: body.Amount,
		Params: body.Params,
	})
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(resp)
}

// Fairness

// lookupProof serves recent rounds from the in-memory cache and older ones
// from Postgres.
func (s *FiberServer) lookupProof(ctx context.Context, roundID string) (game.RoundProof, error) {
	if p, err := s.fairness.Proof(roundID); err == nil {
		return p, nil
	}
	if s.db == nil {
		return game.RoundProof{}, game.ErrRoundNotFound
	}
	r, err := s.db.GetRound(ctx, roundID)
	if err != nil {
		return game.RoundProof{}, err
	}
	p := game.RoundProof{
		RoundID:        r.RoundID,
		Commitment:     r.Commitment,
		Seed:           r.Seed,
		SaltCommitment: r.SaltCommitment,
		CrashPoint:     r.CrashPoint,
		CrashedAt:      r.CrashedAt,
	}
	for _, reveal := range s.allSalts(ctx) {
		if reveal.Commitment == p.SaltCommitment {
			p.Salt = reveal.Salt
			break
		}
	}
	return p, nil
}

// allSalts merges salts retired by this process with those persisted by
// earlier runs, newest first.
func (s *FiberServer) allSalts(ctx context.Context) []game.SaltReveal {
	salts := s.fairness.Salts()
	if s.db == nil {
		return salts
	}
	stored, err := s.db.ListSaltReveals(ctx, MAX_LIST_LIMIT)
	if err != nil {
		log.Printf("[FAIR] Loading stored salts: %v", err)
		return salts
	}
	for _, r := range stored {
		known := slices.ContainsFunc(salts, func(x game.SaltReveal) bool { return x.Commitment == r.Commitment })
		if !known {
			salts = append(salts, r)
		}
	}
	return salts
}

func (s *FiberServer) roundProofHandler(c *fiber.Ctx) error {
	p, err := s.lookupProof(c.UserContext(), c.Params("roundId"))
	if err != nil {
		return errorResponse(c, err)
	}
	resp := fiber.Map{"proof": p}
	if p.Salt != "" {
		resp["verification"] = game.VerifyRound(p.Seed, p.Salt, p.Commitment, p.SaltCommitment, p.CrashPoint)
	}
	return c.JSON(resp)
}

func (s *FiberServer) saltsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"active_commitment": s.fairness.ActiveSaltCommitment(),
		"salts":             s.allSalts(c.UserContext()),
	})
}

type verifyRequest struct {
	Seed           string  `json:"seed" validate:"required"`
	Salt           string  `json:"salt" validate:"required"`
	Commitment     string  `json:"commitment"`
	SaltCommitment string  `json:"salt_commitment"`
	CrashPoint     float64 `json:"crash_point" validate:"gte=1"`
}

func (s *FiberServer) verifyHandler(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(c)
	}
	if err := game.ValidateStruct(req); err != nil {
		return errorResponse(c, err)
	}
	v := game.VerifyRound(req.Seed, req.Salt, req.Commitment, req.SaltCommitment, req.CrashPoint)
	return c.JSON(fiber.Map{"valid": v.Valid(), "verification": v})
}

// Users

func (s *FiberServer) getUserBalanceHandler(c *fiber.Ctx) error {
	userID := c.Params("userId")
	balance, err := s.ledger.Balance(c.UserContext(), userID)
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": balance,
	})
}

// setUserBalanceHandler sets a balance. Only ADMIN_USERS may call it.
func (s *FiberServer) setUserBalanceHandler(c *fiber.Ctx) error {
	if !s.cfg.IsAdmin(c.Get("X-Admin-User")) {
		return errorResponse(c, game.ErrNotAuthorized)
	}

	userID := c.Params("userId")
	var body struct {
		Balance float64 `json:"balance" validate:"gte=0"`
	}
	if err := c.BodyParser(&body); err != nil {
		return badBody(c)
	}
	if err := game.ValidateStruct(body); err != nil {
		return errorResponse(c, err)
	}

	if err := s.ledger.SetBalance(c.UserContext(), userID, body.Balance); err != nil {
		return errorResponse(c, err)
	}
	log.Printf("[LEDGER] %s set balance of %s to %.2f", c.Get("X-Admin-User"), userID, body.Balance)

	return c.JSON(fiber.Map{
		"user_id": userID,
		"balance": body.Balance,
		"message": "Balance updated successfully",
	})
}

func (s *FiberServer) userOutcomesHandler(c *fiber.Ctx) error {
	if s.db == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":  "bet history needs Postgres",
			"reason": "history_unavailable",
		})
	}
	outcomes, err := s.db.UserOutcomes(c.UserContext(), c.Params("userId"), listLimit(c, DEFAULT_LIST_LIMIT))
	if err != nil {
		return errorResponse(c, err)
	}
	return c.JSON(fiber.Map{"outcomes": outcomes})
}

// Chat

func (s *FiberServer) chatMessagesHandler(c *fiber.Ctx) error {
	room := c.Params("room")
	if !slices.Contains(s.hub.Rooms(), room) {
		return errorResponse(c, game.ErrUnknownRoom)
	}
	msgs, err := s.chat.RecentChatMessages(c.UserContext(), room, listLimit(c, game.CHAT_HISTORY_LIMIT))
	if err != nil {
		return errorResponse(c, err)
	}
	if msgs == nil {
		msgs = []game.ChatMessage{}
	}
	return c.JSON(fiber.Map{"room": room, "messages": msgs})
}
