package menu

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// RepositoryPort defines data access methods for menu entries.
type RepositoryPort interface {
	ListEntries(ctx context.Context) ([]Entry, error)
	GetEntry(ctx context.Context, id int64) (Entry, error)
	CreateEntry(ctx context.Context, e Entry) (Entry, error)
	UpdateEntry(ctx context.Context, e Entry) (Entry, error)
	DeleteEntry(ctx context.Context, id int64) error
}

// EntryCache stores the flat entry list between requests.
type EntryCache interface {
	Entries(ctx context.Context) ([]Entry, int64, bool, error)
	Store(ctx context.Context, ver int64, entries []Entry) error
	Bump(ctx context.Context) error
}

// Service handles menu business logic.
type Service struct {
	repo   RepositoryPort
	cache  EntryCache
	audit  shared.AuditSink
	logger *slog.Logger
	loads  singleflight.Group
}

// NewService builds Service instance. cache and audit may be nil.
func NewService(repo RepositoryPort, cache EntryCache, audit shared.AuditSink, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, cache: cache, audit: audit, logger: logger}
}

// VisibleTree returns the forest of entries the authority set may see.
func (s *Service) VisibleTree(ctx context.Context, set rbac.AuthoritySet) ([]*Node, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		return nil, err
	}
	return BuildVisibleTree(entries, set), nil
}

// GetEntry returns a single entry regardless of visibility.
func (s *Service) GetEntry(ctx context.Context, id int64) (Entry, error) {
	return s.repo.GetEntry(ctx, id)
}

// CreateEntry adds an entry under an existing parent or at the top level.
func (s *Service) CreateEntry(ctx context.Context, in Input) (Entry, error) {
	e := entryFromInput(0, in)
	if err := s.checkParent(ctx, e); err != nil {
		return Entry{}, err
	}
	created, err := s.repo.CreateEntry(ctx, e)
	if err != nil {
		return Entry{}, err
	}
	s.afterWrite(ctx, "menu.create", created)
	return created, nil
}

// UpdateEntry overwrites an entry.
func (s *Service) UpdateEntry(ctx context.Context, id int64, in Input) (Entry, error) {
	if _, err := s.repo.GetEntry(ctx, id); err != nil {
		return Entry{}, err
	}
	e := entryFromInput(id, in)
	if err := s.checkParent(ctx, e); err != nil {
		return Entry{}, err
	}
	updated, err := s.repo.UpdateEntry(ctx, e)
	if err != nil {
		return Entry{}, err
	}
	s.afterWrite(ctx, "menu.update", updated)
	return updated, nil
}

// DeleteEntry removes an entry.
func (s *Service) DeleteEntry(ctx context.Context, id int64) error {
	if err := s.repo.DeleteEntry(ctx, id); err != nil {
		return err
	}
	s.afterWrite(ctx, "menu.delete", Entry{ID: id})
	return nil
}

// entries reads through the cache; concurrent misses share one load. A fresh
// load is stored under the version observed before reading Postgres.
func (s *Service) entries(ctx context.Context) ([]Entry, error) {
	var ver int64
	cacheable := false
	if s.cache != nil {
		cached, v, ok, err := s.cache.Entries(ctx)
		switch {
		case err != nil:
			s.logger.Warn("menu cache read", slog.Any("error", err))
		case ok:
			return cached, nil
		default:
			ver, cacheable = v, true
		}
	}
	v, err, _ := s.loads.Do("entries:"+strconv.FormatInt(ver, 10), func() (any, error) {
		entries, err := s.repo.ListEntries(ctx)
		if err != nil {
			return nil, err
		}
		if cacheable {
			if err := s.cache.Store(ctx, ver, entries); err != nil {
				s.logger.Warn("menu cache store", slog.Any("error", err))
			}
		}
		return entries, nil
	})
	if err != nil {
		return nil, fmt.Errorf("menu: list entries: %w", err)
	}
	return v.([]Entry), nil
}

// checkParent rejects unknown parents and parent links that would close a cycle.
func (s *Service) checkParent(ctx context.Context, e Entry) error {
	if e.ParentID == nil {
		return nil
	}
	if e.ID != 0 && *e.ParentID == e.ID {
		return fmt.Errorf("%w: menu cannot be its own parent", shared.ErrValidation)
	}
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return err
	}
	parents := make(map[int64]*int64, len(entries))
	for _, existing := range entries {
		parents[existing.ID] = existing.ParentID
	}
	if _, ok := parents[*e.ParentID]; !ok {
		return fmt.Errorf("parent menu %d: %w", *e.ParentID, shared.ErrNotFound)
	}
	if e.ID == 0 {
		return nil
	}
	cursor := e.ParentID
	for steps := 0; cursor != nil && steps <= len(entries); steps++ {
		if *cursor == e.ID {
			return fmt.Errorf("%w: parent %d would create a cycle", shared.ErrValidation, *e.ParentID)
		}
		cursor = parents[*cursor]
	}
	return nil
}

func (s *Service) afterWrite(ctx context.Context, action string, e Entry) {
	if s.cache != nil {
		if err := s.cache.Bump(ctx); err != nil {
			s.logger.Warn("menu cache bump", slog.Any("error", err))
		}
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "menu",
		EntityID: strconv.FormatInt(e.ID, 10),
		Meta:     map[string]any{"label": e.Label},
	})
	if err != nil {
		s.logger.Warn("audit menu", slog.String("action", action), slog.Any("error", err))
	}
}

func entryFromInput(id int64, in Input) Entry {
	return Entry{
		ID:                 id,
		Label:              strings.TrimSpace(in.Label),
		Path:               strings.TrimSpace(in.Path),
		Icon:               strings.TrimSpace(in.Icon),
		RequiredPermission: strings.TrimSpace(in.RequiredPermission),
		ParentID:           in.ParentID,
		SortOrder:          in.SortOrder,
	}
}
