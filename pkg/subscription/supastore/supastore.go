// Package supastore reads and writes subscription records through the
// Supabase PostgREST API using the service role key.
package supastore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tradedesk/pkg/subscription"
)

var (
	ErrMissingURL        = errors.New("supastore: SUPABASE_URL is required")
	ErrMissingServiceKey = errors.New("supastore: SUPABASE_SERVICE_ROLE_KEY is required")
	ErrUnexpectedStatus  = errors.New("supastore: unexpected response status")
)

// Config configures the PostgREST client.
type Config struct {
	URL        string        `env:"SUPABASE_URL"`
	ServiceKey string        `env:"SUPABASE_SERVICE_ROLE_KEY"`
	Table      string        `env:"SUPABASE_SUBSCRIPTIONS_TABLE" envDefault:"subscriptions"`
	Timeout    time.Duration `env:"SUPABASE_TIMEOUT" envDefault:"10s"`
}

// Store implements subscription.Store on a Supabase table.
type Store struct {
	endpoint string
	key      string
	client   *http.Client
}

var _ subscription.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Store) {
		if c != nil {
			s.client = c
		}
	}
}

func New(cfg Config, opts ...Option) (*Store, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, ErrMissingURL
	}
	if strings.TrimSpace(cfg.ServiceKey) == "" {
		return nil, ErrMissingServiceKey
	}
	table := cfg.Table
	if table == "" {
		table = "subscriptions"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	s := &Store{
		endpoint: strings.TrimRight(cfg.URL, "/") + "/rest/v1/" + url.PathEscape(table),
		key:      cfg.ServiceKey,
		client:   &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// row mirrors the table with every column optional so a malformed value
// degrades to its zero instead of failing the read.
type row struct {
	UserID        string  `json:"user_id"`
	Tier          *string `json:"tier"`
	Status        *string `json:"status"`
	ExpiresAt     *string `json:"expires_at"`
	CustomerID    *string `json:"customer_id"`
	ProviderSubID *string `json:"provider_sub_id"`
	Provider      *string `json:"provider"`
	EventAt       *string `json:"event_at"`
	CreatedAt     *string `json:"created_at"`
	UpdatedAt     *string `json:"updated_at"`
}

func (r row) record() (*subscription.Record, error) {
	id, err := uuid.Parse(r.UserID)
	if err != nil {
		return nil, fmt.Errorf("parse user id %q: %w", r.UserID, err)
	}
	rec := &subscription.Record{
		UserID:        id,
		Tier:          subscription.Tier(deref(r.Tier)),
		Status:        subscription.Status(deref(r.Status)),
		ExpiresAt:     subscription.ParseExpiry(deref(r.ExpiresAt)),
		CustomerID:    deref(r.CustomerID),
		ProviderSubID: deref(r.ProviderSubID),
		Provider:      deref(r.Provider),
		EventAt:       subscription.ParseExpiry(deref(r.EventAt)),
	}
	if t := subscription.ParseExpiry(deref(r.CreatedAt)); t != nil {
		rec.CreatedAt = *t
	}
	if t := subscription.ParseExpiry(deref(r.UpdatedAt)); t != nil {
		rec.UpdatedAt = *t
	}
	rec.Normalize()
	return rec, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*subscription.Record, error) {
	rec, err := s.selectOne(ctx, url.Values{"user_id": {"eq." + userID.String()}})
	if err != nil {
		return nil, fmt.Errorf("get subscription %s: %w", userID, err)
	}
	return rec, nil
}

func (s *Store) GetByCustomerID(ctx context.Context, customerID string) (*subscription.Record, error) {
	if customerID == "" {
		return nil, subscription.ErrRecordNotFound
	}
	rec, err := s.selectOne(ctx, url.Values{
		"customer_id": {"eq." + customerID},
		"order":       {"updated_at.desc"},
	})
	if err != nil {
		return nil, fmt.Errorf("get subscription by customer %s: %w", customerID, err)
	}
	return rec, nil
}

func (s *Store) selectOne(ctx context.Context, q url.Values) (*subscription.Record, error) {
	q.Set("select", "*")
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows []row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, fmt.Errorf("decode rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, subscription.ErrRecordNotFound
	}
	return rows[0].record()
}

type upsertRow struct {
	UserID        string     `json:"user_id"`
	Tier          string     `json:"tier"`
	Status        string     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at"`
	CustomerID    string     `json:"customer_id"`
	ProviderSubID string     `json:"provider_sub_id"`
	Provider      string     `json:"provider"`
	EventAt       *time.Time `json:"event_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (s *Store) Save(ctx context.Context, rec *subscription.Record) error {
	if rec == nil || rec.UserID == uuid.Nil {
		return subscription.ErrMissingUserReference
	}

	updatedAt := rec.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	body, err := json.Marshal([]upsertRow{{
		UserID:        rec.UserID.String(),
		Tier:          string(rec.Tier),
		Status:        string(rec.Status),
		ExpiresAt:     rec.ExpiresAt,
		CustomerID:    rec.CustomerID,
		ProviderSubID: rec.ProviderSubID,
		Provider:      rec.Provider,
		EventAt:       rec.EventAt,
		UpdatedAt:     updatedAt,
	}})
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint+"?on_conflict=user_id", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "resolution=merge-duplicates,return=minimal")

	resp, err := s.do(req)
	if err != nil {
		return fmt.Errorf("save subscription %s: %w", rec.UserID, err)
	}
	_ = resp.Body.Close()
	return nil
}

// do authenticates req and turns non-2xx answers into errors.
func (s *Store) do(req *http.Request) (*http.Response, error) {
	req.Header.Set("apikey", s.key)
	req.Header.Set("Authorization", "Bearer "+s.key)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %d %s", ErrUnexpectedStatus, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	return resp, nil
}
