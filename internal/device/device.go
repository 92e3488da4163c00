// Package device owns the singleton binding between this device and a tenant.
// Every other tenant-scoped component is inert until a binding exists.
package device

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/vbonduro/shopsync/internal/domain"
)

// Payload is the provisioning document handed to the device (typically a
// scanned QR code or a file exported from the dashboard).
type Payload struct {
	OrgID       string `json:"orgId"`
	OrgName     string `json:"orgName"`
	AccessToken string `json:"accessToken"`
	DeviceID    string `json:"deviceId"`
	CloudURL    string `json:"cloudUrl"`
	CloudKey    string `json:"cloudKey"`
}

// ParsePayload decodes a JSON provisioning payload.
func ParsePayload(r io.Reader) (Payload, error) {
	var p Payload
	if err := json.NewDecoder(r).Decode(&p); err != nil {
		return Payload{}, fmt.Errorf("%w: invalid provisioning payload: %v", domain.ErrBadRequest, err)
	}
	return p, nil
}

func (p Payload) validate() error {
	missing := []string{}
	for name, v := range map[string]string{
		"orgId": p.OrgID, "accessToken": p.AccessToken, "deviceId": p.DeviceID,
		"cloudUrl": p.CloudURL, "cloudKey": p.CloudKey,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: provisioning payload missing %s", domain.ErrBadRequest, strings.Join(missing, ", "))
	}

	u, err := url.Parse(p.CloudURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: cloudUrl must be an absolute http(s) URL", domain.ErrBadRequest)
	}
	return nil
}

// configRepository is the subset of store.DeviceStore the service requires.
type configRepository interface {
	Get(ctx context.Context) (*domain.DeviceConfig, error)
	Save(ctx context.Context, cfg *domain.DeviceConfig) error
	Clear(ctx context.Context) error
}

// Service provisions and clears the device binding and notifies subscribers
// of every change.
type Service struct {
	repo   configRepository
	logger *slog.Logger

	mu   sync.Mutex
	subs []chan struct{}
}

func NewService(repo configRepository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Current returns the binding, or nil when the device is unprovisioned.
func (s *Service) Current(ctx context.Context) (*domain.DeviceConfig, error) {
	return s.repo.Get(ctx)
}

// Require returns the binding or ErrDeviceNotConfigured.
func (s *Service) Require(ctx context.Context) (*domain.DeviceConfig, error) {
	cfg, err := s.repo.Get(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return nil, domain.ErrDeviceNotConfigured
	}
	return cfg, nil
}

// Provision replaces any existing binding with the one in p.
func (s *Service) Provision(ctx context.Context, p Payload) (*domain.DeviceConfig, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}

	cfg := &domain.DeviceConfig{
		OrgID:            strings.TrimSpace(p.OrgID),
		OrgName:          strings.TrimSpace(p.OrgName),
		AccessToken:      p.AccessToken,
		DeviceID:         strings.TrimSpace(p.DeviceID),
		CloudURL:         strings.TrimRight(strings.TrimSpace(p.CloudURL), "/"),
		CloudKey:         p.CloudKey,
		SetupCompletedAt: time.Now().UTC(),
	}
	if err := s.repo.Save(ctx, cfg); err != nil {
		return nil, err
	}

	s.logger.Info("device provisioned", "org_id", cfg.OrgID, "device_id", cfg.DeviceID)
	s.notify()
	return cfg, nil
}

// Logout clears the binding. Subscribers are told immediately so the gateway
// and synchronizer can stop.
func (s *Service) Logout(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return err
	}
	s.logger.Info("device logged out")
	s.notify()
	return nil
}

// Subscribe returns a channel that receives a value after every binding
// change. Notifications coalesce; a slow reader sees at least one.
func (s *Service) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()
	return ch
}

func (s *Service) notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
