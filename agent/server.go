package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/andydunstall/converge/gossip"
	"github.com/andydunstall/converge/pkg/log"
	"github.com/andydunstall/converge/store"
)

// Server is the agent HTTP server, which exposes the local read and write
// access to the shared state, plus endpoints for metrics, health and
// inspecting the node status.
type Server struct {
	store *store.Store

	gossiper *gossip.Gossip

	registry *prometheus.Registry

	httpServer *http.Server

	router *gin.Engine

	logger log.Logger
}

func NewServer(
	s *store.Store,
	gossiper *gossip.Gossip,
	registry *prometheus.Registry,
	logger log.Logger,
) *Server {
	logger = logger.WithSubsystem("agent")

	router := gin.New()
	server := &Server{
		store:    s,
		gossiper: gossiper,
		registry: registry,
		httpServer: &http.Server{
			Handler:  router,
			ErrorLog: logger.StdLogger(zapcore.WarnLevel),
		},
		router: router,
		logger: logger,
	}

	// Recover from panics.
	router.Use(gin.CustomRecoveryWithWriter(nil, server.panicRoute))

	server.registerRoutes(router)

	return server
}

func (s *Server) Serve(ln net.Listener) error {
	s.logger.Info(
		"starting agent server",
		zap.String("addr", ln.Addr().String()),
	)

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http serve: %w", err)
	}
	return nil
}

// Shutdown attempts to gracefully shutdown the server by waiting for
// pending requests to complete.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) registerRoutes(router *gin.Engine) {
	router.GET("/keys/:key", s.getKeyRoute)
	router.PUT("/keys/:key", s.putKeyRoute)
	router.DELETE("/keys/:key", s.deleteKeyRoute)

	router.GET("/health", s.healthRoute)

	status := router.Group("/status")
	status.GET("/store", s.storeStatusRoute)
	status.GET("/gossip", s.gossipStatusRoute)

	if s.registry != nil {
		router.GET("/metrics", s.metricsHandler())
	}
}

type putKeyRequest struct {
	// Value is any JSON value, stored as opaque bytes.
	Value json.RawMessage `json:"value"`

	// TTL is an optional expiry in milliseconds. When omitted the store's
	// default TTL applies.
	TTL *int64 `json:"ttl"`

	// TS optionally overrides the entry version, in Unix milliseconds.
	TS *int64 `json:"ts"`
}

type entryResponse struct {
	Value json.RawMessage `json:"value"`

	CreatedAt int64 `json:"created_at"`

	TTL int64 `json:"ttl,omitempty"`
}

func (s *Server) getKeyRoute(c *gin.Context) {
	entry, ok := s.store.Get(c.Param("key"))
	if !ok {
		c.Status(http.StatusNotFound)
		return
	}

	c.JSON(http.StatusOK, entryResponse{
		Value:     json.RawMessage(entry.Value),
		CreatedAt: entry.CreatedAt,
		TTL:       entry.TTL,
	})
}

func (s *Server) putKeyRoute(c *gin.Context) {
	var req putKeyRequest
	if err := c.BindJSON(&req); err != nil {
		c.Status(http.StatusBadRequest)
		return
	}
	if len(req.Value) == 0 {
		c.Status(http.StatusBadRequest)
		return
	}

	key := c.Param("key")

	if req.TS != nil {
		// The client supplied the entry version, so the write goes
		// through conflict resolution like a remote entry and may lose.
		var ttl int64
		if req.TTL != nil {
			ttl = *req.TTL
		}
		s.store.Merge(store.Entry{
			Key:       key,
			Value:     req.Value,
			CreatedAt: *req.TS,
			TTL:       ttl,
		})
		c.Status(http.StatusNoContent)
		return
	}

	var ttl time.Duration
	if req.TTL != nil {
		ttl = time.Duration(*req.TTL) * time.Millisecond
	}
	s.store.Put(key, req.Value, ttl)

	c.Status(http.StatusNoContent)
}

// deleteKeyRoute removes the key from the local store only. Deletes don't
// propagate to peers, so the key may be resurrected by a later
// reconciliation with a peer that still holds it.
func (s *Server) deleteKeyRoute(c *gin.Context) {
	s.store.Delete(c.Param("key"))
	c.Status(http.StatusNoContent)
}

func (s *Server) healthRoute(c *gin.Context) {
	c.Status(http.StatusOK)
}

func (s *Server) storeStatusRoute(c *gin.Context) {
	c.JSON(http.StatusOK, StoreStatus{
		Keys: s.store.Len(),
		Hash: strconv.FormatUint(s.store.Hash(), 16),
	})
}

func (s *Server) gossipStatusRoute(c *gin.Context) {
	if s.gossiper == nil {
		c.Status(http.StatusNotFound)
		return
	}
	c.JSON(http.StatusOK, s.gossiper.Status())
}

func (s *Server) panicRoute(c *gin.Context, err any) {
	s.logger.Error(
		"handler panic",
		zap.String("path", c.FullPath()),
		zap.Any("err", err),
	)
	c.AbortWithStatus(http.StatusInternalServerError)
}

func (s *Server) metricsHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(
		s.registry,
		promhttp.HandlerOpts{Registry: s.registry},
	)
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// StoreStatus contains the store state exposed for inspection.
type StoreStatus struct {
	// Keys is the number of entries in the store.
	Keys int `json:"keys"`

	// Hash is the store content hash, in hex. Two converged nodes report
	// the same hash.
	Hash string `json:"hash"`
}

func init() {
	// Disable Gin debug logs.
	gin.SetMode(gin.ReleaseMode)
}
