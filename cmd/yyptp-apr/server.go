package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/circuitbreaker"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/config"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/metrics"
	"github.com/yy-analytics/yyptp-apr-calculation/internal/model"
)

const version = "1.0.0"

// Where an answer came from, reported in the response meta.
const (
	sourceFresh    = "fresh"
	sourceCache    = "cache"
	sourceFallback = "fallback"
)

var errBreakerOpen = errors.New("circuit breaker rejected result and no fallback is available")

// Runner computes one APR result.
type Runner interface {
	Run(ctx context.Context) (model.Result, error)
}

// Server represents the External Adapter server instance
type Server struct {
	config config.Config

	runner Runner

	// HTTP server instance
	server *http.Server

	// Circuit breaker for implausible results
	breaker *circuitbreaker.CircuitBreaker

	metrics  *metrics.Collector
	gatherer prometheus.Gatherer

	rateLimit *rate.Limiter
	startTime time.Time

	// computeMu serializes computations so concurrent requests share one run.
	computeMu sync.Mutex

	// cacheMu guards the fields below and is never held across a computation.
	cacheMu   sync.RWMutex
	cached    model.Result
	cachedAt  time.Time
	hasCached bool
}

// NewServer creates a new server instance. m and gatherer may be nil.
func NewServer(cfg config.Config, runner Runner, m *metrics.Collector, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		config:    cfg,
		runner:    runner,
		metrics:   m,
		gatherer:  gatherer,
		rateLimit: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		startTime: time.Now(),
	}

	s.breaker = circuitbreaker.New(circuitbreaker.Thresholds{
		MaxAPR:          cfg.MaxAPR,
		MaxAPRChange:    cfg.MaxAPRChange,
		MaxSkippedPools: cfg.MaxSkippedPools,
	}).WithResetDelay(cfg.CircuitResetDelay).
		WithTripCallback(func(reason string, result model.Result) {
			logrus.WithFields(logrus.Fields{
				"block":  result.Block,
				"reason": reason,
			}).Warn("Serving last good APR while the circuit is open")
		})

	logrus.WithFields(logrus.Fields{
		"port":       cfg.Port,
		"rate_limit": cfg.RateLimit,
		"rate_burst": cfg.RateBurst,
		"cache_ttl":  cfg.CacheTTL,
		"max_apr":    cfg.MaxAPR,
	}).Info("Server initialized")

	return s
}

// Handler returns the adapter's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRequest)             // Main Chainlink EA endpoint
	mux.HandleFunc("/health", s.handleHealth)         // Health check endpoint
	mux.HandleFunc("/metrics", s.handleMetrics)       // Prometheus metrics endpoint
	mux.HandleFunc("/status", s.handleStatus)         // Service status endpoint
	mux.HandleFunc("/circuit", s.handleCircuitStatus) // Circuit breaker status/control
	return mux
}

// Start serves until ctx is done, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         ":" + s.config.Port,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.config.RunTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logrus.Infof("Server starting on port %s", s.config.Port)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logrus.Info("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownGrace)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}

	logrus.Info("Server stopped")
	return nil
}

// handleHealth is a simple health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"version":   version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// handleMetrics exposes Prometheus metrics
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.gatherer == nil {
		http.Error(w, "Metrics disabled", http.StatusServiceUnavailable)
		return
	}
	promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// handleStatus provides detailed service status information
func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	status := map[string]interface{}{
		"status":  "operational",
		"uptime":  time.Since(s.startTime).String(),
		"version": version,
		"configuration": map[string]interface{}{
			"rpc_url":      s.config.RPCURL,
			"reward_share": s.config.RewardShare,
			"workers":      s.config.Workers,
			"strict":       s.config.Strict,
			"cache_ttl":    s.config.CacheTTL.String(),
		},
		"circuit_state": s.breaker.GetState().String(),
	}

	if last, at, ok := s.cachedResult(); ok {
		status["last_block"] = last.Block
		status["last_computed"] = at.UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, status)
}

// handleCircuitStatus allows viewing and controlling the circuit breaker
func (s *Server) handleCircuitStatus(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{}

	// Allow reset operation via POST
	if r.Method == http.MethodPost {
		if r.URL.Query().Get("action") != "reset" {
			http.Error(w, "Unknown action", http.StatusBadRequest)
			return
		}
		s.breaker.Reset()
		s.metrics.BreakerState(int(s.breaker.GetState()))
		response["message"] = "Circuit breaker reset"
	}

	response["circuit"] = s.breaker.Status()
	if last, ok := s.breaker.LastGood(); ok {
		response["last_good_block"] = last.Block
		response["last_good_timestamp"] = time.Unix(last.CollectedAt, 0).UTC().Format(time.RFC3339)
	}

	writeJSON(w, http.StatusOK, response)
}

// ChainlinkRequest matches the standard Chainlink External Adapter request format
type ChainlinkRequest struct {
	ID       string                 `json:"id"`
	JobRunID string                 `json:"jobRunId"`
	Data     map[string]interface{} `json:"data"`
	Meta     map[string]interface{} `json:"meta,omitempty"`
}

// ChainlinkResponse matches the standard Chainlink External Adapter response format
type ChainlinkResponse struct {
	JobRunID   string                 `json:"jobRunId,omitempty"`
	StatusCode int                    `json:"statusCode"`
	Status     string                 `json:"status"`
	Data       map[string]interface{} `json:"data"`
	Error      string                 `json:"error,omitempty"`
}

// handleRequest processes the Chainlink External Adapter request
func (s *Server) handleRequest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	// Only accept POST requests
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if !s.rateLimit.Allow() {
		s.errorResponse(w, start, "", http.StatusTooManyRequests, "Rate limit exceeded")
		return
	}

	// Parse the Chainlink request
	var request ChainlinkRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		s.errorResponse(w, start, "", http.StatusBadRequest, "Invalid request body")
		return
	}

	result, source, err := s.latest(r.Context())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errBreakerOpen) {
			status = http.StatusServiceUnavailable
		}
		s.errorResponse(w, start, request.JobRunID, status, fmt.Sprintf("Error computing APR: %v", err))
		return
	}

	// Format the Chainlink EA response
	response := ChainlinkResponse{
		JobRunID:   request.JobRunID,
		StatusCode: http.StatusOK,
		Status:     "success",
		Data: map[string]interface{}{
			"result":        result.DiscountedPercent(),
			"aprNominal":    result.NominalPercent(),
			"aprDiscounted": result.DiscountedPercent(),
			"ratio":         result.ConversionRatio,
			"block":         result.Block,
			"skippedPools":  len(result.Skipped),
			"collectedAt":   result.CollectedAt,
			"timestamp":     time.Now().Unix(),
		},
	}

	// Add request ID if provided
	if request.ID != "" {
		response.Data["id"] = request.ID
	}

	// Add any additional parameters from the request
	for k, v := range request.Data {
		if _, taken := response.Data[k]; !taken && k != "jobRunId" {
			response.Data[k] = v
		}
	}

	// Add performance metadata
	if request.Meta == nil {
		request.Meta = make(map[string]interface{})
	}
	request.Meta["latencyMs"] = time.Since(start).Milliseconds()
	request.Meta["source"] = source
	request.Meta["ageSeconds"] = int64(result.Age(time.Now()).Seconds())
	response.Data["meta"] = request.Meta

	s.metrics.Request("success", time.Since(start))

	writeJSON(w, http.StatusOK, response)
}

// latest returns a cached result while it is fresh, otherwise computes a new one and passes it
// through the circuit breaker. A rejected result is replaced by the last accepted one.
func (s *Server) latest(ctx context.Context) (model.Result, string, error) {
	s.computeMu.Lock()
	defer s.computeMu.Unlock()

	if cached, at, ok := s.cachedResult(); ok && time.Since(at) < s.config.CacheTTL {
		return cached, sourceCache, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	result, err := s.runner.Run(ctx)
	if err != nil {
		return model.Result{}, "", err
	}

	source := sourceFresh
	checkErr := s.breaker.Check(result)
	s.metrics.BreakerState(int(s.breaker.GetState()))
	if checkErr != nil {
		logrus.WithError(checkErr).WithField("block", result.Block).Warn("Circuit breaker rejected result")

		lastGood, ok := s.breaker.LastGood()
		if !ok {
			return model.Result{}, "", fmt.Errorf("%w: %v", errBreakerOpen, checkErr)
		}
		logrus.WithField("block", lastGood.Block).Info("Using last known good result")
		result, source = lastGood, sourceFallback
	}

	s.cacheMu.Lock()
	s.cached = result
	s.cachedAt = time.Now()
	s.hasCached = true
	s.cacheMu.Unlock()

	return result, source, nil
}

func (s *Server) cachedResult() (model.Result, time.Time, bool) {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cached, s.cachedAt, s.hasCached
}

// errorResponse returns a formatted error response for Chainlink nodes
func (s *Server) errorResponse(w http.ResponseWriter, start time.Time, jobRunID string, statusCode int, errorMsg string) {
	logrus.Warn(errorMsg)

	s.metrics.Request("error", time.Since(start))

	writeJSON(w, statusCode, ChainlinkResponse{
		JobRunID:   jobRunID,
		StatusCode: statusCode,
		Status:     "errored",
		Error:      errorMsg,
		Data:       map[string]interface{}{"error": errorMsg},
	})
}

func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.WithError(err).Debug("Failed to write response")
	}
}
