package awards

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"runclub-backend/pkg/auth"
	"runclub-backend/pkg/database"
	"runclub-backend/pkg/models"
	"runclub-backend/pkg/utils"
)

const maxCategoryName = 100

// CategoryInput is the body of a category create or update.
type CategoryInput struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (in *CategoryInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.Name == "" {
		return utils.Validation("name is required")
	}
	if utf8.RuneCountInString(in.Name) > maxCategoryName {
		return utils.Validation("name must be at most 100 characters")
	}
	return nil
}

// Categories lists categories for the public page. It degrades to an empty
// list when the read times out or the table does not exist yet.
func (s *Service) Categories(ctx context.Context) []models.AwardCategory {
	ctx, cancel := context.WithTimeout(ctx, s.publicTimeout)
	defer cancel()

	list, err := s.store.ListCategories(ctx)
	if err != nil {
		s.log.WithError(err).Warn("Award categories unavailable, serving empty list")
		return []models.AwardCategory{}
	}
	if list == nil {
		list = []models.AwardCategory{}
	}
	return list
}

func (s *Service) CreateCategory(ctx context.Context, access *auth.Access, in CategoryInput) (c *models.AwardCategory, err error) {
	defer func() { s.record("category_create", err) }()
	if err := requireRole(access, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	c = &models.AwardCategory{Name: in.Name, Description: in.Description}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) UpdateCategory(ctx context.Context, access *auth.Access, in CategoryInput) (c *models.AwardCategory, err error) {
	defer func() { s.record("category_update", err) }()
	if err := requireRole(access, models.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.ID) == "" {
		return nil, utils.Validation("id is required")
	}
	if err := in.normalize(); err != nil {
		return nil, err
	}
	c = &models.AwardCategory{ID: strings.TrimSpace(in.ID), Name: in.Name, Description: in.Description}
	if err := s.store.UpdateCategory(ctx, c); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, utils.NotFound("Category not found")
		}
		return nil, err
	}
	return c, nil
}

// DeleteCategory refuses while any nomination references the category. The store
// checks and deletes atomically.
func (s *Service) DeleteCategory(ctx context.Context, access *auth.Access, id string) (err error) {
	defer func() { s.record("category_delete", err) }()
	if err := requireRole(access, models.RoleSuperAdmin); err != nil {
		return err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return utils.Validation("id is required")
	}
	err = s.store.DeleteCategory(ctx, id)
	switch {
	case errors.Is(err, database.ErrReferenced):
		return utils.Conflict("Cannot delete a category that has nominations")
	case errors.Is(err, database.ErrNotFound):
		return utils.NotFound("Category not found")
	}
	return err
}
