package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ImageStore removes stored promo images.
type ImageStore interface {
	Delete(ctx context.Context, path string) error
}

// Service implements the admin lifecycle of promos.
type Service struct {
	repo   Repository
	images ImageStore

	now      func() time.Time
	newID    func() string
	generate func() (string, error)
}

// NewService creates a promo admin Service.
func NewService(repo Repository, images ImageStore) *Service {
	return &Service{
		repo:     repo,
		images:   images,
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
		generate: GenerateCode,
	}
}

// Get returns the promo with the given ID.
func (s *Service) Get(ctx context.Context, id string) (*Promo, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns every promo.
func (s *Service) List(ctx context.Context) ([]Promo, error) {
	return s.repo.List(ctx)
}

// ListHome returns the promos currently promoted on the home page: active,
// flagged show_in_home and inside their date window.
func (s *Service) ListHome(ctx context.Context) ([]Promo, error) {
	promos, err := s.repo.ListHome(ctx)
	if err != nil {
		return nil, err
	}
	now := s.now()
	visible := make([]Promo, 0, len(promos))
	for _, p := range promos {
		if p.StartDate != nil && now.Before(*p.StartDate) {
			continue
		}
		if p.EndDate != nil && now.After(*p.EndDate) {
			continue
		}
		visible = append(visible, p)
	}
	return visible, nil
}

// Create builds a promo from draft, generating a code when none is given.
// Usage starts at zero regardless of the draft.
func (s *Service) Create(ctx context.Context, draft Patch) (*Promo, error) {
	p := draft.Apply(Promo{IsActive: true})
	if p.Code == "" {
		code, err := s.generate()
		if err != nil {
			return nil, errors.Wrap(err, "generate code")
		}
		p.Code = code
	}
	if err := Validate(&p); err != nil {
		return nil, err
	}

	now := s.now()
	p.ID = s.newID()
	p.UsageCount = 0
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.repo.Create(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "create promo")
	}
	return &p, nil
}

// Update applies patch to the stored promo. Fields absent from the patch
// keep their current value. A replaced image is removed from storage.
func (s *Service) Update(ctx context.Context, id string, patch Patch) (*Promo, error) {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	next := patch.Apply(*cur)
	if err := Validate(&next); err != nil {
		return nil, err
	}
	next.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, errors.Wrap(err, "update promo")
	}

	if cur.Image != "" && cur.Image != next.Image {
		s.deleteImage(ctx, cur.Image)
	}
	return &next, nil
}

// Delete removes the promo and its stored image.
func (s *Service) Delete(ctx context.Context, id string) error {
	cur, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete promo")
	}
	if cur.Image != "" {
		s.deleteImage(ctx, cur.Image)
	}
	return nil
}

// deleteImage is best effort: the row is already gone or updated.
func (s *Service) deleteImage(ctx context.Context, path string) {
	if s.images == nil {
		return
	}
	if err := s.images.Delete(ctx, path); err != nil {
		zctx.From(ctx).Warn("Failed to delete promo image",
			zap.String("path", path),
			zap.Error(err),
		)
	}
}
