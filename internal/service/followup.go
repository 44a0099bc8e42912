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

var (
	FollowUpStatuses = []string{"pas_interesse", "injoignable", "confirme", "visite_prochaine_fois"}
	ExchangeNatures  = []string{"physique", "telephonique"}
)

type FollowUpService struct{ db *gorm.DB }

func NewFollowUpService(db *gorm.DB) *FollowUpService { return &FollowUpService{db: db} }

func (s *FollowUpService) Create(ctx context.Context, v form.Values) (*model.FollowUp, error) {
	errs := form.Errors{}
	f := &model.FollowUp{}
	memberID, err := requireMember(ctx, s.db, v, errs)
	if err != nil {
		return nil, err
	}
	f.FideleID = memberID
	if v.Required("date", errs) != "" {
		if d := v.Date("date", errs); d.Value != nil {
			f.Date = *d.Value
		}
	}
	s.bind(v, f, errs)
	if err := invalid(errs); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(f).Error; err != nil {
		return nil, fmt.Errorf("insert follow-up: %w", err)
	}
	logger.From(ctx).Info("followup.create", "id", f.ID, "fidele_id", f.FideleID)
	return s.find(ctx, f.ID)
}

func (s *FollowUpService) Update(ctx context.Context, id uint, v form.Values) (*model.FollowUp, error) {
	f, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	errs := form.Errors{}
	if v.Has("date") {
		if v.Required("date", errs) != "" {
			if d := v.Date("date", errs); d.Value != nil {
				f.Date = *d.Value
			}
		}
	}
	s.bind(v, f, errs)
	if err := invalid(errs); err != nil {
		return nil, err
	}

	f.Fidele = nil
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(f).Error; err != nil {
		return nil, fmt.Errorf("update follow-up: %w", err)
	}
	return s.find(ctx, id)
}

func (s *FollowUpService) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&model.FollowUp{}, id)
	if res.Error != nil {
		return fmt.Errorf("delete follow-up: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *FollowUpService) bind(v form.Values, f *model.FollowUp, errs form.Errors) {
	assign(&f.Statut, v.Enum("statut", FollowUpStatuses, errs))
	assign(&f.NatureEchange, v.Enum("nature_echange", ExchangeNatures, errs))
	assign(&f.MotifEchange, v.String("motif_echange", 0, errs))
	assign(&f.ResumeEchange, v.String("resume_echange", 0, errs))
	assign(&f.Observation, v.String("observation", 0, errs))
	assign(&f.Commentaire, v.String("commentaire", 0, errs))
}

func (s *FollowUpService) find(ctx context.Context, id uint) (*model.FollowUp, error) {
	var f model.FollowUp
	err := s.db.WithContext(ctx).Preload("Fidele").First(&f, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query follow-up: %w", err)
	}
	return &f, nil
}

// requireMember reads fidele_id and checks that the member exists.
func requireMember(ctx context.Context, db *gorm.DB, v form.Values, errs form.Errors) (uint, error) {
	if v.Required("fidele_id", errs) == "" {
		return 0, nil
	}
	id := v.ID("fidele_id", errs)
	if id.Value == nil {
		return 0, nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&model.Member{}).Where("id = ?", *id.Value).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("check member: %w", err)
	}
	if n == 0 {
		errs.Add("fidele_id", "The selected fidele_id is invalid.")
		return 0, nil
	}
	return *id.Value, nil
}
