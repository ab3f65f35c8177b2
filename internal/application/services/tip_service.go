package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/solarmaint/backend/internal/domain/entities"
	"github.com/solarmaint/backend/internal/domain/repositories"
	apperrors "github.com/solarmaint/backend/pkg/errors"
)

// TipInput is a tip create/update payload.
type TipInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Category string   `json:"category"`
	Tags     []string `json:"tags,omitempty"`
}

// TipService manages the knowledge-base tips.
type TipService struct {
	tips repositories.TipRepository
}

// NewTipService creates a new tip service.
func NewTipService(tips repositories.TipRepository) *TipService {
	return &TipService{tips: tips}
}

// Create adds a tip authored by the caller.
func (s *TipService) Create(ctx context.Context, identity entities.Identity, input TipInput) (*entities.Tip, error) {
	if input.Title == "" || input.Content == "" {
		return nil, apperrors.NewValidationError("title and content are required")
	}

	now := time.Now()
	tip := &entities.Tip{
		ID:        uuid.New().String(),
		Title:     input.Title,
		Content:   input.Content,
		Category:  input.Category,
		Tags:      input.Tags,
		AuthorID:  identity.UserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.tips.Create(ctx, tip); err != nil {
		return nil, err
	}
	return tip, nil
}

// Get returns a tip.
func (s *TipService) Get(ctx context.Context, id string) (*entities.Tip, error) {
	return s.tips.GetByID(ctx, id)
}

// List returns tips matching the filter.
func (s *TipService) List(ctx context.Context, filter repositories.TipFilter) ([]*entities.Tip, error) {
	return s.tips.List(ctx, filter)
}

// Update rewrites a tip. Only the author or an admin may edit.
func (s *TipService) Update(ctx context.Context, identity entities.Identity, id string, input TipInput) (*entities.Tip, error) {
	if input.Title == "" || input.Content == "" {
		return nil, apperrors.NewValidationError("title and content are required")
	}

	tip, err := s.tips.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if tip.AuthorID != identity.UserID && !identity.IsAdmin() {
		return nil, apperrors.NewForbiddenError("only the author or an admin may edit a tip")
	}

	tip.Title = input.Title
	tip.Content = input.Content
	tip.Category = input.Category
	tip.Tags = input.Tags
	tip.UpdatedAt = time.Now()

	if err := s.tips.Update(ctx, tip); err != nil {
		return nil, err
	}
	return tip, nil
}

// Delete removes a tip. Only the author or an admin may delete.
func (s *TipService) Delete(ctx context.Context, identity entities.Identity, id string) error {
	tip, err := s.tips.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if tip.AuthorID != identity.UserID && !identity.IsAdmin() {
		return apperrors.NewForbiddenError("only the author or an admin may delete a tip")
	}
	return s.tips.Delete(ctx, id)
}
