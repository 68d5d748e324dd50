package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"timebank/internal/cache"
	"timebank/internal/services"
)

type Server struct {
	http.Server
	ledger      *services.LedgerService
	timers      *services.TimerService
	imports     *services.ImportService
	reports     *services.ReportService
	tags        *services.TagService
	rateLimiter *rateLimiter

	// balanceCache keeps derived wallet balances off the database between
	// writes. Entry writes invalidate the wallet's key.
	balanceCache     *cache.LRUCache[string]
	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// Simple in-memory rate limiter
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

// startCleanup runs periodic cleanup to remove stale client entries
func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanupStaleEntries removes client entries older than 10 minutes
func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// stop gracefully shuts down the rate limiter cleanup goroutine
func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		if rl.stopCleanup != nil {
			close(rl.stopCleanup)
		}
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]

	if !exists {
		rl.clients[clientIP] = &clientInfo{
			lastRequest: now,
			requests:    1,
		}
		return true
	}

	// Reset counter if more than 1 minute has passed
	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	// Allow up to 60 requests per minute
	client.requests++
	client.lastRequest = now

	return client.requests <= 60
}

// NewServer configures routes, returning a ready-to-run http.Server.
// Authentication happens upstream: handlers trust the X-User-ID header.
func NewServer(addr string, ledger *services.LedgerService, timers *services.TimerService, imports *services.ImportService, reports *services.ReportService, tags *services.TagService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:           ledger,
		timers:           timers,
		imports:          imports,
		reports:          reports,
		tags:             tags,
		rateLimiter:      newRateLimiter(),
		balanceCache:     cache.NewLRUCache[string](500, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("POST /wallets/{walletID}/credits", s.withRequestLog(s.handleRecordCredit))
	mux.HandleFunc("POST /wallets/{walletID}/debits", s.withRequestLog(s.handleRecordDebit))
	mux.HandleFunc("POST /wallets/{walletID}/adjustments", s.withRequestLog(s.handleRecordAdjustment))
	mux.HandleFunc("GET /wallets/{walletID}/balance", s.withRequestLog(s.handleWalletBalance))
	mux.HandleFunc("GET /wallets/{walletID}/entries", s.withRequestLog(s.handleWalletEntries))

	mux.HandleFunc("POST /timers", s.withRequestLog(s.handleStartTimer))
	mux.HandleFunc("GET /timers", s.withRequestLog(s.handleListTimers))
	mux.HandleFunc("GET /timers/active", s.withRequestLog(s.handleActiveTimer))
	mux.HandleFunc("POST /timers/{timerID}/pause", s.withRequestLog(s.handlePauseTimer))
	mux.HandleFunc("POST /timers/{timerID}/resume", s.withRequestLog(s.handleResumeTimer))
	mux.HandleFunc("POST /timers/{timerID}/stop", s.withRequestLog(s.handleStopTimer))
	mux.HandleFunc("POST /timers/{timerID}/cancel", s.withRequestLog(s.handleCancelTimer))
	mux.HandleFunc("POST /timers/{timerID}/confirm", s.withRequestLog(s.handleConfirmTimer))
	mux.HandleFunc("PATCH /timers/{timerID}", s.withRequestLog(s.handleUpdateTimerDetails))
	mux.HandleFunc("PUT /timers/{timerID}/cycles", s.withRequestLog(s.handleUpdateTimerCycles))

	mux.HandleFunc("POST /imports", s.withRequestLog(s.handleCreatePlan))
	mux.HandleFunc("GET /imports/{planID}", s.withRequestLog(s.handleGetPlan))
	mux.HandleFunc("POST /imports/{planID}/confirm", s.withRequestLog(s.handleConfirmPlan))
	mux.HandleFunc("POST /imports/{planID}/cancel", s.withRequestLog(s.handleCancelPlan))
	mux.HandleFunc("POST /imports/{planID}/rows", s.withRequestLog(s.handleAddPlanRow))
	mux.HandleFunc("PATCH /imports/{planID}/rows/{rowID}", s.withRequestLog(s.handleUpdatePlanRow))
	mux.HandleFunc("DELETE /imports/{planID}/rows/{rowID}", s.withRequestLog(s.handleDeletePlanRow))

	mux.HandleFunc("GET /reports/entries", s.withRequestLog(s.handleReportEntries))
	mux.HandleFunc("GET /reports/summary", s.withRequestLog(s.handleReportSummary))
	mux.HandleFunc("GET /reports/by-wallet", s.withRequestLog(s.handleReportByWallet))

	mux.HandleFunc("GET /tags", s.withRequestLog(s.handleListTags))
	mux.HandleFunc("POST /tags", s.withRequestLog(s.handleCreateTag))
	mux.HandleFunc("DELETE /tags/{tagID}", s.withRequestLog(s.handleDeleteTag))

	return s
}

// startCacheCleanup periodically drops expired balance entries
func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if cleaned := s.balanceCache.CleanExpired(); cleaned > 0 {
				slog.Debug("Cache cleanup completed", "balances_removed", cleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.stopCacheCleanup != nil {
			close(s.stopCacheCleanup)
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// withRequestLog adds request IDs, rate limiting, and request logging.
func (s *Server) withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Extract client IP (considering proxies)
		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		// Generate request ID for tracing
		requestID := generateRequestID()

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Apply rate limiting to mutating requests
		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")

		// Capture status code for the completion log
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		logLevel := slog.LevelInfo
		if rw.statusCode >= 500 {
			logLevel = slog.LevelError
		} else if rw.statusCode >= 400 {
			logLevel = slog.LevelWarn
		}
		slog.Log(ctx, logLevel, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type contextKey string

const requestIDKey contextKey = "request_id"

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// generateRequestID creates a unique request ID for tracing
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to timestamp if random fails
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
