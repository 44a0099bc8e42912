package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/assacalos/megvie/internal/form"
	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ActionTypes = []string{"action_sociale", "attribution_marche", "accompagnement_projet"}

type ActionService struct{ db *gorm.DB }

func NewActionService(db *gorm.DB) *ActionService { return &ActionService{db: db} }

func (s *ActionService) Create(ctx context.Context, v form.Values) (*model.Action, error) {
	errs := form.Errors{}
	a := &model.Action{}
	memberID, err := requireMember(ctx, s.db, v, errs)
	if err != nil {
		return nil, err
	}
	a.FideleID = memberID
	if v.Required("date", errs) != "" {
		if d := v.Date("date", errs); d.Value != nil {
			a.Date = *d.Value
		}
	}
	s.bind(v, a, errs)
	if err := invalid(errs); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(a).Error; err != nil {
		return nil, fmt.Errorf("insert action: %w", err)
	}
	logger.From(ctx).Info("action.create", "id", a.ID, "fidele_id", a.FideleID)
	return s.find(ctx, a.ID)
}

func (s *ActionService) Update(ctx context.Context, id uint, v form.Values) (*model.Action, error) {
	a, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	errs := form.Errors{}
	if v.Has("date") && v.Required("date", errs) != "" {
		if d := v.Date("date", errs); d.Value != nil {
			a.Date = *d.Value
		}
	}
	s.bind(v, a, errs)
	if err := invalid(errs); err != nil {
		return nil, err
	}

	a.Fidele = nil
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(a).Error; err != nil {
		return nil, fmt.Errorf("update action: %w", err)
	}
	return s.find(ctx, id)
}

func (s *ActionService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.Action{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete action: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *ActionService) bind(v form.Values, a *model.Action, errs form.Errors) {
	assign(&a.Type, v.Enum("type", ActionTypes, errs))
	amount := v.Float("montant", errs)
	if amount.Value != nil && *amount.Value < 0 {
		errs.Add("montant", "The montant field must be at least 0.")
	}
	assign(&a.Montant, amount)
	assign(&a.Description, v.String("description", 0, errs))
}

func (s *ActionService) find(ctx context.Context, id uint) (*model.Action, error) {
	var a model.Action
	err := s.db.WithContext(ctx).Preload("Fidele").First(&a, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query action: %w", err)
	}
	return &a, nil
}
