package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelGame   = "game"
	LabelResult = "result"
	LabelMethod = "method"
	LabelPath   = "path"
	LabelStatus = "status"
	LabelReason = "reason"
)

// HTTP Metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "casino_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{LabelMethod, LabelPath},
	)
)

// Game Metrics
var (
	BetsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_bets_total",
			Help: "Settled bets by game and result",
		},
		[]string{LabelGame, LabelResult},
	)

	BetsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_bets_rejected_total",
			Help: "Rejected bets by game and reason",
		},
		[]string{LabelGame, LabelReason},
	)

	StakedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_staked_total",
			Help: "Total amount staked",
		},
		[]string{LabelGame},
	)

	PaidTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "casino_paid_total",
			Help: "Total amount paid out",
		},
		[]string{LabelGame},
	)

	CrashRounds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casino_crash_rounds_total",
			Help: "Completed crash rounds",
		},
	)

	CrashPoints = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "casino_crash_point",
			Help:    "Distribution of crash points",
			Buckets: []float64{1, 1.5, 2, 5, 10, 100, 150, 200, 500, 1000},
		},
	)
)

// Realtime Metrics
var (
	ConnectedClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "casino_ws_clients",
			Help: "Currently connected websocket clients",
		},
	)

	DroppedMessages = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casino_ws_dropped_messages_total",
			Help: "Outbound messages dropped because a queue was full",
		},
	)

	RecorderDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "casino_recorder_dropped_total",
			Help: "History records dropped because the recorder queue was full",
		},
	)
)

// RecordBet counts one settled bet.
func RecordBet(game string, stake, payout float64) {
	result := "loss"
	if payout > 0 {
		result = "win"
	}
	BetsTotal.WithLabelValues(game, result).Inc()
	StakedTotal.WithLabelValues(game).Add(stake)
	if payout > 0 {
		PaidTotal.WithLabelValues(game).Add(payout)
	}
}

// Middleware collects HTTP request metrics. Routes are labelled by their
// pattern so path parameters do not blow up cardinality.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path

		HTTPRequestsTotal.WithLabelValues(c.Method(), path, strconv.Itoa(status)).Inc()
		HTTPRequestDuration.WithLabelValues(c.Method(), path).Observe(time.Since(start).Seconds())
		return err
	}
}
