// Package radioid keeps the callsign lookup store populated from the
// RadioID.net user registry, so decoded numeric IDs resolve to callsigns
// without hand-maintained files.
package radioid

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/mmlink/dvdecode/internal/database"
)

const (
	// RegistryURL is the published CSV of registered radio IDs.
	RegistryURL = "https://radioid.net/static/user.csv"

	DefaultSyncInterval = 24 * time.Hour
	requestTimeout      = 30 * time.Second
	maxRetries          = 3
	retryDelay          = 5 * time.Second
)

// Syncer periodically refreshes the identity store from the registry.
type Syncer struct {
	repo     *database.RadioUserRepository
	logger   *log.Logger
	interval time.Duration
	client   *http.Client
	url      string
}

// NewSyncer creates a syncer with the default interval. The logger may be
// nil.
func NewSyncer(repo *database.RadioUserRepository, logger *log.Logger, interval time.Duration) *Syncer {
	if interval <= 0 {
		interval = DefaultSyncInterval
	}
	return &Syncer{
		repo:     repo,
		logger:   logger,
		interval: interval,
		client:   &http.Client{Timeout: requestTimeout},
		url:      RegistryURL,
	}
}

// Start syncs immediately, then on every interval tick until the context is
// cancelled. Sync failures are logged and retried on the next tick.
func (s *Syncer) Start(ctx context.Context) {
	s.logf("radioid: syncing every %v", s.interval)
	if err := s.SyncNow(ctx); err != nil {
		s.logf("radioid: initial sync failed: %v", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logf("radioid: syncer stopping")
			return
		case <-ticker.C:
			if err := s.SyncNow(ctx); err != nil {
				s.logf("radioid: sync failed: %v", err)
			}
		}
	}
}

// SyncNow downloads the registry and imports it into the store.
func (s *Syncer) SyncNow(ctx context.Context) error {
	start := time.Now()

	var body io.ReadCloser
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		body, err = s.download(ctx)
		if err == nil {
			break
		}
		s.logf("radioid: download attempt %d/%d failed: %v", attempt, maxRetries, err)
		if attempt < maxRetries {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}
	if err != nil {
		return fmt.Errorf("radioid: download failed after %d attempts: %w", maxRetries, err)
	}
	defer body.Close()

	users, err := s.parse(body)
	if err != nil {
		return fmt.Errorf("radioid: %w", err)
	}
	if len(users) == 0 {
		return fmt.Errorf("radioid: registry contained no valid users")
	}

	if err := s.repo.UpsertBatch(users); err != nil {
		return fmt.Errorf("radioid: import: %w", err)
	}
	s.logf("radioid: imported %d users in %v", len(users), time.Since(start).Round(time.Millisecond))
	return nil
}

func (s *Syncer) download(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "dvdecode/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %s", resp.Status)
	}
	return resp.Body, nil
}

// parse reads the registry CSV. Lines that do not parse are skipped; the
// registry regularly carries a few malformed rows.
func (s *Syncer) parse(r io.Reader) ([]database.RadioUser, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	var users []database.RadioUser
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read registry line %d: %w", line, err)
		}
		line++
		if line == 1 {
			continue // header row
		}

		user, err := parseRecord(record)
		if err != nil {
			continue
		}
		users = append(users, user)
	}
	return users, nil
}

// parseRecord maps one registry row:
// RADIO_ID,CALLSIGN,FIRST_NAME,LAST_NAME,CITY,STATE,COUNTRY
func parseRecord(record []string) (database.RadioUser, error) {
	if len(record) < 7 {
		return database.RadioUser{}, fmt.Errorf("got %d fields, want 7", len(record))
	}
	id, err := strconv.ParseUint(strings.TrimSpace(record[0]), 10, 32)
	if err != nil || id == 0 {
		return database.RadioUser{}, fmt.Errorf("invalid radio ID %q", record[0])
	}
	callsign := strings.ToUpper(strings.TrimSpace(record[1]))
	if callsign == "" {
		return database.RadioUser{}, fmt.Errorf("empty callsign for ID %d", id)
	}

	return database.RadioUser{
		RadioID:   uint32(id),
		Callsign:  callsign,
		Name:      strings.TrimSpace(strings.TrimSpace(record[2]) + " " + strings.TrimSpace(record[3])),
		City:      strings.TrimSpace(record[4]),
		Country:   strings.TrimSpace(record[6]),
		UpdatedAt: time.Now(),
	}, nil
}

func (s *Syncer) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}
