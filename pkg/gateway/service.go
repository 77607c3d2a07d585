package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"

	"botline/pkg/bus"
	"botline/pkg/channel"
	"botline/pkg/config"
)

// Runner is the update consumer driven by the service, normally *bot.Bot.
type Runner interface {
	Run(ctx context.Context) error
}

// routeRegistrar is implemented by sources that receive updates over HTTP.
type routeRegistrar interface {
	Register(router gin.IRouter)
}

type Service struct {
	cfg     *config.Config
	log     *slog.Logger
	bus     *bus.MessageBus
	bot     Runner
	sources []channel.Source
	router  *gin.Engine

	mu            sync.RWMutex
	startedAt     time.Time
	botRunning    bool
	channelStates map[string]channelState
	eventCounts   map[bus.EventType]int
	lastFault     string
}

type channelState struct {
	Running bool   `json:"running"`
	Error   string `json:"error,omitempty"`
}

type statusResponse struct {
	Status        string                  `json:"status"`
	UptimeSeconds int64                   `json:"uptime_seconds"`
	Bot           bool                    `json:"bot_running"`
	Channels      map[string]channelState `json:"channels"`
	Events        map[bus.EventType]int   `json:"events,omitempty"`
	LastFault     string                  `json:"last_fault,omitempty"`
}

func NewService(cfg *config.Config, mb *bus.MessageBus, bot Runner, sources []channel.Source, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if mb == nil {
		return nil, errors.New("message bus is required")
	}
	if bot == nil {
		return nil, errors.New("bot is required")
	}
	if len(sources) == 0 {
		return nil, errors.New("at least one update source is required")
	}
	if log == nil {
		log = slog.Default()
	}

	channelStates := make(map[string]channelState, len(sources))
	for _, source := range sources {
		channelStates[source.Name()] = channelState{}
	}

	s := &Service{
		cfg:           cfg,
		log:           log.With("component", "gateway.service"),
		bus:           mb,
		bot:           bot,
		sources:       sources,
		channelStates: channelStates,
		eventCounts:   make(map[bus.EventType]int),
	}
	s.router = s.newRouter()

	return s, nil
}

// Router returns the HTTP handler serving status and webhook routes.
func (s *Service) Router() http.Handler {
	return s.router
}

func (s *Service) newRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestid.New())

	router.GET("/healthz", s.handleHealth)
	router.GET("/readyz", s.handleReady)

	for _, source := range s.sources {
		if registrar, ok := source.(routeRegistrar); ok {
			registrar.Register(router)
		}
	}

	return router
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	events, unsubscribe := s.bus.SubscribeEvents(ctx, 0)
	defer unsubscribe()
	go s.watchEvents(events)

	serverErrors := make(chan error, 1)
	go s.runServer(ctx, serverErrors)

	botErrors := make(chan error, 1)
	s.setBotRunning(true)
	go func() {
		err := s.bot.Run(ctx)
		s.setBotRunning(false)
		if err != nil {
			botErrors <- fmt.Errorf("run bot: %w", err)
		}
	}()

	errCh := make(chan error, len(s.sources))
	for _, source := range s.sources {
		s.setChannelState(source.Name(), channelState{Running: true})

		go func() {
			err := source.Run(ctx, s.sink(source.Name()))
			s.setChannelState(source.Name(), channelState{Running: false, Error: errorString(err)})
			if err != nil && !errors.Is(err, context.Canceled) {
				s.bus.PublishEvent(ctx, bus.Event{
					Type:   bus.EventTransportFault,
					Source: source.Name(),
					Error:  err.Error(),
				})
				errCh <- fmt.Errorf("run %s source: %w", source.Name(), err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrors:
		return err
	case err := <-botErrors:
		return err
	case err := <-errCh:
		return err
	}
}

// sink publishes raw payloads from one source onto the bus.
func (s *Service) sink(name string) channel.Sink {
	return func(ctx context.Context, payload []byte) error {
		data := append([]byte(nil), payload...)
		if !s.bus.PublishInbound(ctx, bus.Inbound{Source: name, Payload: data}) {
			return errors.New("message bus is not accepting updates")
		}
		return nil
	}
}

func (s *Service) watchEvents(events <-chan bus.Event) {
	for event := range events {
		s.mu.Lock()
		s.eventCounts[event.Type]++
		if event.Type == bus.EventTransportFault || event.Type == bus.EventActionFailed {
			s.lastFault = event.Error
		}
		s.mu.Unlock()

		logEvent(s.log, event)
	}
}

func (s *Service) runServer(ctx context.Context, errCh chan<- error) {
	addr := s.cfg.Gateway.Addr()
	server := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway server started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errCh <- fmt.Errorf("start gateway server: %w", err)
	}
}

func (s *Service) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, s.currentStatus("ok"))
}

func (s *Service) handleReady(c *gin.Context) {
	if !s.isReady() {
		c.JSON(http.StatusServiceUnavailable, s.currentStatus("not_ready"))
		return
	}
	c.JSON(http.StatusOK, s.currentStatus("ready"))
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	channels := make(map[string]channelState, len(s.channelStates))
	for name, state := range s.channelStates {
		channels[name] = state
	}

	var events map[bus.EventType]int
	if len(s.eventCounts) > 0 {
		events = make(map[bus.EventType]int, len(s.eventCounts))
		for eventType, n := range s.eventCounts {
			events[eventType] = n
		}
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Bot:           s.botRunning,
		Channels:      channels,
		Events:        events,
		LastFault:     s.lastFault,
	}
}

// isReady requires the bot loop and at least one source to be running.
func (s *Service) isReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.botRunning {
		return false
	}

	for _, state := range s.channelStates {
		if state.Running {
			return true
		}
	}
	return false
}

func (s *Service) setBotRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.botRunning = running
}

func (s *Service) setChannelState(name string, state channelState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channelStates[name] = state
}

func errorString(err error) string {
	if err == nil {
		return ""
	}

	return err.Error()
}
