// Package cloud is a typed client for the tenant backend's REST surface
// (PostgREST conventions: /rest/v1/<table> with column filters in the query).
package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vbonduro/shopsync/internal/domain"
)

const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second

	maxErrorBody = 512
)

type Options struct {
	ConnectTimeout time.Duration
	RequestTimeout time.Duration
	// Departments restricts pulled staff server-side. Empty pulls everyone.
	Departments []string
}

type Client struct {
	baseURL     string
	cloudKey    string
	deviceID    string
	deviceToken string
	departments []string
	http        *http.Client
	logger      *slog.Logger
}

// New builds a client for the tenant bound in cfg.
func New(cfg *domain.DeviceConfig, opts Options, logger *slog.Logger) *Client {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{Timeout: opts.ConnectTimeout}).DialContext
	transport.TLSHandshakeTimeout = opts.ConnectTimeout

	return &Client{
		baseURL:     strings.TrimRight(cfg.CloudURL, "/"),
		cloudKey:    cfg.CloudKey,
		deviceID:    cfg.DeviceID,
		deviceToken: cfg.AccessToken,
		departments: opts.Departments,
		http:        &http.Client{Transport: transport, Timeout: opts.RequestTimeout},
		logger:      logger,
	}
}

// FetchVehicles returns every vehicle of the tenant.
func (c *Client) FetchVehicles(ctx context.Context, orgID string) ([]domain.Vehicle, error) {
	q := url.Values{}
	q.Set("org_id", "eq."+orgID)
	q.Set("select", "*")

	var rows []vehicleRow
	if err := c.do(ctx, http.MethodGet, "vehicles", q, nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch vehicles: %w", err)
	}

	vehicles := make([]domain.Vehicle, 0, len(rows))
	for _, r := range rows {
		vehicles = append(vehicles, r.toDomain(orgID))
	}
	return vehicles, nil
}

// FetchStaff returns the tenant's staff, filtered to the configured departments.
func (c *Client) FetchStaff(ctx context.Context, orgID string) ([]domain.Mechanic, error) {
	q := url.Values{}
	q.Set("org_id", "eq."+orgID)
	q.Set("select", "*")
	if len(c.departments) > 0 {
		quoted := make([]string, 0, len(c.departments))
		for _, d := range c.departments {
			quoted = append(quoted, `"`+strings.ReplaceAll(d, `"`, `\"`)+`"`)
		}
		q.Set("department", "in.("+strings.Join(quoted, ",")+")")
	}

	var rows []staffRow
	if err := c.do(ctx, http.MethodGet, "staff", q, nil, nil, &rows); err != nil {
		return nil, fmt.Errorf("failed to fetch staff: %w", err)
	}

	staff := make([]domain.Mechanic, 0, len(rows))
	for _, r := range rows {
		staff = append(staff, r.toDomain(orgID))
	}
	return staff, nil
}

// UpsertMaintenance merges records by primary key. Repeating the call with the
// same records leaves the cloud unchanged.
func (c *Client) UpsertMaintenance(ctx context.Context, records []*domain.MaintenanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]maintenanceRow, 0, len(records))
	for _, r := range records {
		rows = append(rows, maintenanceRowFrom(r, c.deviceID))
	}

	q := url.Values{}
	q.Set("on_conflict", "id")
	headers := map[string]string{"Prefer": "resolution=merge-duplicates,return=minimal"}
	if err := c.do(ctx, http.MethodPost, "maintenance_records", q, headers, rows, nil); err != nil {
		return fmt.Errorf("failed to upsert maintenance records: %w", err)
	}
	return nil
}

// PatchVehicleStatus sets the status of a single vehicle.
func (c *Client) PatchVehicleStatus(ctx context.Context, orgID, vehicleID string, status domain.VehicleStatus) error {
	q := url.Values{}
	q.Set("id", "eq."+vehicleID)
	q.Set("org_id", "eq."+orgID)
	body := map[string]any{"status": status, "updated_at": time.Now().UTC()}
	headers := map[string]string{"Prefer": "return=minimal"}
	if err := c.do(ctx, http.MethodPatch, "vehicles", q, headers, body, nil); err != nil {
		return fmt.Errorf("failed to patch vehicle %s: %w", vehicleID, err)
	}
	return nil
}

// Ping reports whether the backend is reachable. Any HTTP response counts.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL+"/rest/v1/", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	_ = resp.Body.Close()
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("apikey", c.cloudKey)
	req.Header.Set("Authorization", "Bearer "+c.cloudKey)
	req.Header.Set("X-Device-Id", c.deviceID)
	req.Header.Set("X-Device-Token", c.deviceToken)
}

func (c *Client) do(ctx context.Context, method, table string, q url.Values, headers map[string]string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	endpoint := c.baseURL + "/rest/v1/" + table
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("cloud request", "method", method, "table", table, "status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: failed to decode response: %v", domain.ErrServerFault, err)
	}
	return nil
}

// statusError classifies a non-2xx response. 5xx and 429 are transient; any
// other status means the request itself was refused.
func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(snippet))
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: cloud returned status %d: %s", domain.ErrNetwork, resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: cloud returned status %d: %s", domain.ErrServerFault, resp.StatusCode, msg)
}
