// Package webhook receives Telegram updates pushed to an HTTP route.
package webhook

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"botline/pkg/channel"
	"botline/pkg/config"
)

// SecretHeader carries the secret token configured with setWebhook.
const SecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// Source is an update source fed by POST requests. It only accepts updates
// while Run is active.
type Source struct {
	path   string
	secret string
	log    *slog.Logger

	mu   sync.RWMutex
	sink channel.Sink
}

func New(cfg config.WebhookConfig, log *slog.Logger) *Source {
	if log == nil {
		log = slog.Default()
	}

	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "/telegram/webhook"
	}

	return &Source{
		path:   path,
		secret: strings.TrimSpace(cfg.Secret),
		log:    log.With("component", "channel.webhook"),
	}
}

func (s *Source) Name() string {
	return "telegram.webhook"
}

// Path returns the route the source is mounted on.
func (s *Source) Path() string {
	return s.path
}

// Register mounts the webhook route on router.
func (s *Source) Register(router gin.IRouter) {
	router.POST(s.path, s.handle)
}

// Run attaches sink until ctx is done.
func (s *Source) Run(ctx context.Context, sink channel.Sink) error {
	if sink == nil {
		return errors.New("sink is required")
	}

	s.mu.Lock()
	s.sink = sink
	s.mu.Unlock()
	s.log.Info("Webhook source attached", "path", s.path)

	<-ctx.Done()

	s.mu.Lock()
	s.sink = nil
	s.mu.Unlock()
	return nil
}

// Attached reports whether a sink is receiving updates.
func (s *Source) Attached() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sink != nil
}

func (s *Source) handle(c *gin.Context) {
	requestID := requestid.Get(c)

	if s.secret != "" {
		got := c.GetHeader(SecretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.secret)) != 1 {
			s.log.Warn("Rejected webhook call with bad secret", "request_id", requestID, "remote", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid secret token"})
			return
		}
	}

	s.mu.RLock()
	sink := s.sink
	s.mu.RUnlock()
	if sink == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "not accepting updates"})
		return
	}

	body, err := c.GetRawData()
	if err != nil || len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}

	if err := sink(c.Request.Context(), body); err != nil {
		s.log.Error("Failed to accept update", "request_id", requestID, "error", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
		return
	}

	s.log.Debug("Accepted webhook update", "request_id", requestID, "bytes", len(body))
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
