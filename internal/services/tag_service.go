package services

import (
	"context"
	"errors"
	"strings"

	"timebank/internal/core"
	"timebank/internal/storage"
)

var ErrEmptyTagName = errors.New("tag name is required")

// TagService manages the plain label vocabulary shared by ledger entries
// and timers.
type TagService struct {
	repo *storage.SQLiteRepository
}

func NewTagService(repo *storage.SQLiteRepository) *TagService {
	return &TagService{repo: repo}
}

func (s *TagService) List(ctx context.Context) ([]core.Tag, error) {
	return s.repo.Queries().ListTags(ctx)
}

// Create resolves the (trimmed) name to a tag, creating it when absent.
func (s *TagService) Create(ctx context.Context, name string) (core.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Tag{}, ErrEmptyTagName
	}
	id, err := s.repo.Queries().GetOrCreateTag(ctx, name)
	if err != nil {
		return core.Tag{}, err
	}
	return core.Tag{ID: id, Name: name}, nil
}

// Delete removes the tag; entries and timers keep their data, only the
// associations go away.
func (s *TagService) Delete(ctx context.Context, id int64) error {
	return s.repo.Queries().DeleteTag(ctx, id)
}
