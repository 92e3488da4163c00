// Package supervisor runs the gateway and the sync scheduler only while the
// device is bound to a tenant.
package supervisor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vbonduro/shopsync/internal/domain"
)

// DefaultPollInterval is how often the stored binding is re-read to notice
// changes made by another process, such as the CLI.
const DefaultPollInterval = 5 * time.Second

type bindingSource interface {
	Current(ctx context.Context) (*domain.DeviceConfig, error)
	Subscribe() <-chan struct{}
}

// Gateway serves until ctx is cancelled. *gateway.Server implements it.
type Gateway interface {
	ListenAndServe(ctx context.Context, addr string) error
}

// Scheduler is the periodic sync loop. *syncer.Scheduler implements it.
type Scheduler interface {
	Start(ctx context.Context)
	Stop()
}

type Options struct {
	Addr         string
	PollInterval time.Duration
}

type Supervisor struct {
	binding   bindingSource
	gateway   Gateway
	scheduler Scheduler
	opts      Options
	logger    *slog.Logger

	mu     sync.Mutex
	active *activation
}

// activation is one running gateway and scheduler pair for one binding.
type activation struct {
	key    string
	orgID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// exited reports whether the gateway returned on its own, for example
// because the listen address was taken. The pair is then restarted.
func (a *activation) exited() bool {
	select {
	case <-a.done:
		return true
	default:
		return false
	}
}

func New(binding bindingSource, gw Gateway, scheduler Scheduler, opts Options, logger *slog.Logger) *Supervisor {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	return &Supervisor{
		binding:   binding,
		gateway:   gw,
		scheduler: scheduler,
		opts:      opts,
		logger:    logger,
	}
}

// Run reconciles the running components with the binding until ctx is done,
// then stops them.
func (s *Supervisor) Run(ctx context.Context) error {
	changes := s.binding.Subscribe()
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	defer s.deactivate()

	s.reconcile(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			s.reconcile(ctx)
		case <-ticker.C:
			s.reconcile(ctx)
		}
	}
}

// Active reports whether a gateway and scheduler are running, and for which
// tenant.
func (s *Supervisor) Active() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", false
	}
	return s.active.orgID, true
}

func (s *Supervisor) reconcile(ctx context.Context) {
	cfg, err := s.binding.Current(ctx)
	if err != nil {
		s.logger.Error("failed to read device binding", "error", err)
		return
	}

	key := bindingKey(cfg)
	s.mu.Lock()
	current := ""
	if s.active != nil && !s.active.exited() {
		current = s.active.key
	}
	s.mu.Unlock()
	if key == current {
		return
	}

	s.deactivate()
	if cfg != nil {
		s.activate(ctx, cfg, key)
	}
}

func (s *Supervisor) activate(parent context.Context, cfg *domain.DeviceConfig, key string) {
	ctx, cancel := context.WithCancel(parent)
	a := &activation{key: key, orgID: cfg.OrgID, cancel: cancel, done: make(chan struct{})}

	s.scheduler.Start(ctx)
	go func() {
		defer close(a.done)
		if err := s.gateway.ListenAndServe(ctx, s.opts.Addr); err != nil {
			s.logger.Error("gateway stopped with error", "addr", s.opts.Addr, "error", err)
		}
	}()

	s.mu.Lock()
	s.active = a
	s.mu.Unlock()
	s.logger.Info("device services started", "org_id", cfg.OrgID, "device_id", cfg.DeviceID)
}

func (s *Supervisor) deactivate() {
	s.mu.Lock()
	a := s.active
	s.active = nil
	s.mu.Unlock()
	if a == nil {
		return
	}

	a.cancel()
	s.scheduler.Stop()
	<-a.done
	s.logger.Info("device services stopped", "org_id", a.orgID)
}

// bindingKey identifies a binding. Reprovisioning always yields a new key
// because the setup time changes.
func bindingKey(cfg *domain.DeviceConfig) string {
	if cfg == nil {
		return ""
	}
	return cfg.OrgID + "|" + cfg.DeviceID + "|" + cfg.AccessToken + "|" + cfg.SetupCompletedAt.Format(time.RFC3339Nano)
}
