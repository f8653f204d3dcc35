// Backtest API server: submits replay jobs over ClickHouse history and
// exposes on-demand live scans.
package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"math"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"zone-backtest/services/candles"
	ch "zone-backtest/services/clickhouse"
	"zone-backtest/services/config"
	"zone-backtest/services/engine"
	"zone-backtest/services/fetcher"
	"zone-backtest/services/live"
)

type jobStatus string

const (
	jobRunning jobStatus = "running"
	jobDone    jobStatus = "done"
	jobFailed  jobStatus = "failed"
)

type job struct {
	ID         string    `json:"id"`
	Status     jobStatus `json:"status"`
	ConfigHash string    `json:"config_sha256"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	Summary    *summary  `json:"summary,omitempty"`
}

type summary struct {
	Trades         int       `json:"trades"`
	WinRate        float64   `json:"win_rate"`
	ProfitFactor   jsonFloat `json:"profit_factor"`
	MaxDrawdown    float64   `json:"max_drawdown"`
	TradesPerMonth float64   `json:"trades_per_month"`
	FinalEquity    string    `json:"final_equity"`
	SkippedBars    int       `json:"skipped_bars"`
}

// jsonFloat serializes non-finite values explicitly instead of failing the
// whole response. A run with no losing trade reports an infinite profit
// factor, which encoding/json otherwise rejects.
type jsonFloat float64

func (f jsonFloat) MarshalJSON() ([]byte, error) {
	switch v := float64(f); {
	case math.IsInf(v, 1):
		return []byte(`"inf"`), nil
	case math.IsInf(v, -1):
		return []byte(`"-inf"`), nil
	case math.IsNaN(v):
		return []byte("null"), nil
	default:
		return json.Marshal(v)
	}
}

type server struct {
	cfg     *config.Config
	cfgHash string
	store   *ch.Store
	scanner *live.Scanner
	logger  *zap.Logger

	mu   sync.RWMutex
	jobs map[string]*job
}

// configHash fingerprints the strategy configuration so two job results
// are comparable at a glance.
func configHash(cfg *config.Config) string {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func main() {
	cfgPath := flag.String("config", "", "Strategy config YAML (defaults used when empty)")
	addr := flag.String("addr", ":8090", "HTTP listen address")
	chAddr := flag.String("ch-addr", "localhost:9000", "ClickHouse native address")
	chDB := flag.String("ch-db", "forex", "ClickHouse database")
	chTable := flag.String("ch-table", "candles", "ClickHouse table")
	chUser := flag.String("ch-user", "default", "ClickHouse user")
	chPass := flag.String("ch-pass", "", "ClickHouse password")
	feedURL := flag.String("feed-url", "http://localhost:8080", "Candle feed base URL for live scans")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	store, err := ch.Open(ctx, ch.Options{
		Addr: *chAddr, Database: *chDB, Table: *chTable, Username: *chUser, Password: *chPass,
	})
	cancel()
	if err != nil {
		logger.Fatal("clickhouse", zap.Error(err))
	}
	defer store.Close()

	s := &server{
		cfg:     cfg,
		cfgHash: configHash(cfg),
		store:   store,
		scanner: live.NewScanner(cfg, fetcher.New(*feedURL, logger), logger),
		logger:  logger,
		jobs:    make(map[string]*job),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	api := r.Group("/api/v1")
	api.POST("/backtests", s.submitBacktest)
	api.GET("/backtests/:id", s.getBacktest)
	api.GET("/scan", s.scan)

	srv := &http.Server{Addr: *addr, Handler: r}
	go func() {
		logger.Info("listening", zap.String("addr", *addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("serve", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

type backtestRequest struct {
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

func (s *server) submitBacktest(c *gin.Context) {
	var req backtestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fromMs, err1 := parseUTC(req.From)
	toMs, err2 := parseUTC(req.To)
	if err1 != nil || err2 != nil || toMs <= fromMs {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from/to must be 'YYYY-MM-DD HH:MM:SS' UTC with from < to"})
		return
	}

	j := &job{ID: uuid.New().String(), Status: jobRunning, ConfigHash: s.cfgHash, StartedAt: time.Now().UTC()}
	s.mu.Lock()
	s.jobs[j.ID] = j
	s.mu.Unlock()

	go s.run(j, fromMs, toMs)
	c.JSON(http.StatusAccepted, j)
}

func (s *server) run(j *job, fromMs, toMs int64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	base := candles.Timeframe(s.cfg.BaseTimeframe)
	data := make(map[string][]candles.Candle, len(s.cfg.Pairs))
	for _, pair := range s.cfg.Pairs {
		bars, err := s.store.QueryCandles(ctx, pair, base, fromMs, toMs)
		if err != nil {
			s.fail(j, err)
			return
		}
		data[pair] = bars
	}

	res, err := engine.RunBacktest(s.cfg, data, s.logger)
	if err != nil {
		s.fail(j, err)
		return
	}

	s.mu.Lock()
	j.Status = jobDone
	j.Summary = &summary{
		Trades:         res.Metrics.TotalTrades,
		WinRate:        res.Metrics.WinRate,
		ProfitFactor:   jsonFloat(res.Metrics.ProfitFactor),
		MaxDrawdown:    res.Metrics.MaxDrawdown,
		TradesPerMonth: res.Metrics.TradesPerMonth,
		FinalEquity:    res.FinalEquity.String(),
		SkippedBars:    res.SkippedBars,
	}
	s.mu.Unlock()
}

func (s *server) fail(j *job, err error) {
	s.logger.Error("backtest job failed", zap.String("id", j.ID), zap.Error(err))
	s.mu.Lock()
	j.Status = jobFailed
	j.Error = err.Error()
	s.mu.Unlock()
}

func (s *server) getBacktest(c *gin.Context) {
	s.mu.RLock()
	j, ok := s.jobs[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown job"})
		return
	}
	c.JSON(http.StatusOK, j)
}

func (s *server) scan(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Minute)
	defer cancel()

	out := make(map[string]gin.H)
	for pair, r := range s.scanner.ScanOnce(ctx) {
		if r.Err != nil {
			out[pair] = gin.H{"error": r.Err.Error()}
			continue
		}
		sig := r.Signal
		if sig.Direction == engine.DirectionNone {
			out[pair] = gin.H{"direction": sig.Direction.String()}
			continue
		}
		out[pair] = gin.H{
			"direction":   sig.Direction.String(),
			"confidence":  sig.Confidence,
			"entry":       sig.Entry.String(),
			"stop":        sig.Stop.String(),
			"target":      sig.Target.String(),
			"risk_reward": sig.RiskReward.StringFixed(2),
			"timestamp":   sig.Timestamp,
		}
	}
	c.JSON(http.StatusOK, out)
}

func parseUTC(s string) (int64, error) {
	t, err := time.Parse("2006-01-02 15:04:05", s)
	if err != nil {
		return 0, err
	}
	return t.UTC().UnixMilli(), nil
}
