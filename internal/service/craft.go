package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/assacalos/megvie/internal/form"
	"github.com/assacalos/megvie/internal/model"
	"gorm.io/gorm"
)

type CraftService struct{ db *gorm.DB }

func NewCraftService(db *gorm.DB) *CraftService { return &CraftService{db: db} }

func (s *CraftService) List(ctx context.Context) ([]model.Craft, error) {
	crafts := []model.Craft{}
	if err := s.db.WithContext(ctx).Order("nom").Find(&crafts).Error; err != nil {
		return nil, fmt.Errorf("list crafts: %w", err)
	}
	return crafts, nil
}

func (s *CraftService) Create(ctx context.Context, v form.Values) (*model.Craft, error) {
	errs := form.Errors{}
	c := &model.Craft{Nom: v.Required("nom", errs)}
	assign(&c.Description, v.String("description", 0, errs))
	if err := invalid(errs); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, fmt.Errorf("insert craft: %w", err)
	}
	return c, nil
}

func (s *CraftService) Update(ctx context.Context, id uint, v form.Values) (*model.Craft, error) {
	var c model.Craft
	err := s.db.WithContext(ctx).First(&c, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query craft: %w", err)
	}

	errs := form.Errors{}
	if v.Has("nom") {
		c.Nom = v.Required("nom", errs)
	}
	assign(&c.Description, v.String("description", 0, errs))
	if err := invalid(errs); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(&c).Error; err != nil {
		return nil, fmt.Errorf("update craft: %w", err)
	}
	return &c, nil
}
