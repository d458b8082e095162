package livehttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"kestrel/internal/logger"
	"kestrel/internal/store/tradelog"
	"kestrel/internal/strategy"
	"kestrel/internal/trader"

	"github.com/gin-gonic/gin"
)

// SignalSource exposes the most recent evaluation outcome for read-only
// status endpoints.
type SignalSource interface {
	LastSignal() (strategy.Signal, time.Time, bool)
}

// Server exposes the read-only live status API.
type Server struct {
	addr   string
	router *gin.Engine
}

type ServerConfig struct {
	Addr    string
	Book    *trader.Book
	Trades  *tradelog.Store
	Signals SignalSource
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Book == nil {
		return nil, errors.New("live http server requires a position book")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9991"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api/live")
	api.GET("/status", statusHandler(cfg.Book, cfg.Signals))
	api.GET("/trades", tradesHandler(cfg.Trades))
	api.GET("/summary", summaryHandler(cfg.Trades))

	return &Server{addr: cfg.Addr, router: router}, nil
}

func statusHandler(book *trader.Book, signals SignalSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		positions := make([]trader.Position, 0)
		for _, symbol := range book.OpenSymbols() {
			if pos, ok := book.Position(symbol); ok {
				positions = append(positions, pos)
			}
		}
		payload := gin.H{
			"balance":   book.Balance(),
			"positions": positions,
		}
		if signals != nil {
			if sig, at, ok := signals.LastSignal(); ok {
				payload["last_signal"] = gin.H{
					"action":     sig.Action,
					"leverage":   sig.Leverage,
					"confidence": sig.Confidence,
					"momentum":   sig.Snapshot.Momentum,
					"price":      sig.Snapshot.Price,
					"at":         at,
				}
			}
		}
		c.JSON(http.StatusOK, payload)
	}
}

func tradesHandler(trades *tradelog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if trades == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade log disabled"})
			return
		}
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
		rows, err := trades.RecentTrades(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"trades": rows})
	}
}

func summaryHandler(trades *tradelog.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		if trades == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "trade log disabled"})
			return
		}
		days, _ := strconv.Atoi(c.DefaultQuery("days", "7"))
		if days <= 0 {
			days = 7
		}
		since := time.Now().AddDate(0, 0, -days)
		sum, err := trades.SummarySince(c.Request.Context(), since)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"since": since, "summary": sum})
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
