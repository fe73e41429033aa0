package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/johnwmail/pastelite/internal/metrics"
	"github.com/johnwmail/pastelite/models"
	"github.com/johnwmail/pastelite/storage"
	"github.com/johnwmail/pastelite/utils"
)

// maxIDAttempts bounds regeneration when a fresh ID collides
const maxIDAttempts = 5

// MaxTTLSeconds caps ttl_seconds at 100 years. Larger values overflow
// time.Duration.
const MaxTTLSeconds int64 = 100 * 365 * 24 * 60 * 60

// PasteService handles paste business logic
type PasteService struct {
	store  storage.PasteStore
	logger *slog.Logger
	newID  func() (string, error)
}

// NewPasteService creates a new paste service
func NewPasteService(store storage.PasteStore, logger *slog.Logger) *PasteService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PasteService{
		store:  store,
		logger: logger,
		newID:  utils.NewID,
	}
}

// CreatePasteRequest represents a request to create a paste.
// Nil TTLSeconds means no expiry; nil MaxViews means unlimited views.
type CreatePasteRequest struct {
	Content    string
	TTLSeconds *int
	MaxViews   *int
}

// CreatePasteResponse represents the response from creating a paste
type CreatePasteResponse struct {
	ID        string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// RetrieveResult is what a successful view returns
type RetrieveResult struct {
	Content        string
	RemainingViews *int
	ExpiresAt      *time.Time
}

// Validate reports every problem with the request at once
func (r CreatePasteRequest) Validate() error {
	var details []string
	if strings.TrimSpace(r.Content) == "" {
		details = append(details, "content is required and must be a non-empty string")
	}
	if r.TTLSeconds != nil {
		switch ttl := int64(*r.TTLSeconds); {
		case ttl < 1:
			details = append(details, "ttl_seconds must be an integer >= 1")
		case ttl > MaxTTLSeconds:
			details = append(details, fmt.Sprintf("ttl_seconds must be at most %d", MaxTTLSeconds))
		}
	}
	if r.MaxViews != nil && *r.MaxViews < 1 {
		details = append(details, "max_views must be an integer >= 1")
	}
	if len(details) > 0 {
		return &ValidationError{Details: details}
	}
	return nil
}

// CreatePaste validates the request and persists a new paste with a fresh ID
func (s *PasteService) CreatePaste(ctx context.Context, req CreatePasteRequest, now time.Time) (*CreatePasteResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	// Millisecond precision survives every backend and the wire format.
	now = now.UTC().Truncate(time.Millisecond)
	paste := &models.Paste{
		Content:   req.Content,
		CreatedAt: now,
	}
	if req.TTLSeconds != nil {
		expiresAt := now.Add(time.Duration(*req.TTLSeconds) * time.Second)
		paste.ExpiresAt = &expiresAt
	}
	if req.MaxViews != nil {
		maxViews := *req.MaxViews
		paste.MaxViews = &maxViews
	}

	for attempt := 1; ; attempt++ {
		id, err := s.newID()
		if err != nil {
			return nil, fmt.Errorf("failed to generate id: %w", err)
		}
		paste.ID = id

		err = s.store.Store(ctx, paste)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrDuplicateID) && attempt < maxIDAttempts {
			s.logger.Warn("paste id collision, regenerating", "id", id, "attempt", attempt)
			continue
		}
		return nil, fmt.Errorf("%w: store paste: %w", ErrStorageUnavailable, err)
	}

	metrics.PastesCreated.Inc()
	s.logger.Debug("paste created", "id", paste.ID, "expires_at", paste.ExpiresAt, "max_views", paste.MaxViews)

	return &CreatePasteResponse{
		ID:        paste.ID,
		CreatedAt: paste.CreatedAt,
		ExpiresAt: paste.ExpiresAt,
	}, nil
}

// RetrievePaste serves a paste and consumes one view. Unknown, expired,
// exhausted and concurrently exhausted pastes all yield ErrNotFound.
func (s *PasteService) RetrievePaste(ctx context.Context, id string, now time.Time) (*RetrieveResult, error) {
	result, err := s.retrieve(ctx, id, now)
	switch {
	case err == nil:
		metrics.PasteViews.WithLabelValues(metrics.ViewServed).Inc()
	case errors.Is(err, ErrNotFound):
		metrics.PasteViews.WithLabelValues(metrics.ViewNotFound).Inc()
	default:
		metrics.PasteViews.WithLabelValues(metrics.ViewError).Inc()
	}
	return result, err
}

func (s *PasteService) retrieve(ctx context.Context, id string, now time.Time) (*RetrieveResult, error) {
	// Lookup and pre-check
	if _, err := s.PeekPaste(ctx, id, now); err != nil {
		return nil, err
	}

	// Commit the view
	paste, err := s.store.IncrementViewAndFetch(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: increment view %s: %w", ErrStorageUnavailable, id, err)
	}
	if paste == nil {
		return nil, ErrNotFound
	}

	// A concurrent reader may have taken the last view between the
	// pre-check and the increment.
	if paste.ViewOverrun() {
		s.logger.Debug("view limit reached by concurrent reader", "id", id)
		return nil, ErrNotFound
	}

	return &RetrieveResult{
		Content:        paste.Content,
		RemainingViews: paste.RemainingViews(),
		ExpiresAt:      paste.ExpiresAt,
	}, nil
}

// PeekPaste returns an available paste without consuming a view
func (s *PasteService) PeekPaste(ctx context.Context, id string, now time.Time) (*models.Paste, error) {
	if !utils.IsValidID(id) {
		return nil, ErrNotFound
	}
	paste, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: lookup %s: %w", ErrStorageUnavailable, id, err)
	}
	if !paste.IsAvailable(now) {
		return nil, ErrNotFound
	}
	return paste, nil
}

// Ping reports whether the storage backend is reachable
func (s *PasteService) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return nil
}
