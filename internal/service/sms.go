package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/assacalos/megvie/internal/form"
	"github.com/assacalos/megvie/internal/logger"
	"github.com/assacalos/megvie/internal/metrics"
	"github.com/assacalos/megvie/internal/model"
	"github.com/assacalos/megvie/internal/normalize"
	"github.com/assacalos/megvie/internal/policy"
	"github.com/assacalos/megvie/internal/sms"
	"gorm.io/gorm"
)

const MaxSmsLength = 1600

type SmsService struct {
	db      *gorm.DB
	gateway sms.Gateway
	metrics *metrics.Metrics
}

// NewSmsService wires the dispatcher; m may be nil.
func NewSmsService(db *gorm.DB, gateway sms.Gateway, m *metrics.Metrics) *SmsService {
	return &SmsService{db: db, gateway: gateway, metrics: m}
}

// SendBulk texts every requested member that has a phone number on file.
// Per-recipient gateway failures are counted, never returned.
func (s *SmsService) SendBulk(ctx context.Context, sender *model.User, req model.BulkSmsRequest) (*model.BulkSmsResult, error) {
	if sender == nil {
		return nil, ErrUnauthenticated
	}
	if !policy.HasRole(sender, policy.SmsSenders...) {
		return nil, &ForbiddenError{Reason: "Accès refusé. Droits insuffisants pour envoyer des SMS."}
	}

	errs := form.Errors{}
	ids := dedupe(req.IDs())
	if len(ids) == 0 {
		errs.Add("member_ids", "The member_ids field is required.")
	}
	message := strings.TrimSpace(req.Message)
	switch {
	case message == "":
		errs.Add("message", "The message field is required.")
	case len([]rune(message)) > MaxSmsLength:
		errs.Add("message", fmt.Sprintf("The message field must not be greater than %d characters.", MaxSmsLength))
	}
	if err := invalid(errs); err != nil {
		return nil, err
	}

	var members []model.Member
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&members).Error; err != nil {
		return nil, fmt.Errorf("load sms recipients: %w", err)
	}
	byID := make(map[uint]*model.Member, len(members))
	for i := range members {
		byID[members[i].ID] = &members[i]
	}
	for i, id := range ids {
		if _, ok := byID[id]; !ok {
			errs.Add(fmt.Sprintf("member_ids.%d", i), fmt.Sprintf("The selected member_ids.%d is invalid.", i))
		}
	}
	if err := invalid(errs); err != nil {
		return nil, err
	}

	var phones []string
	for _, id := range ids {
		m := byID[id]
		if p := normalize.Phone(m.Contacts, m.Whatsapp); p != "" {
			phones = append(phones, p)
		}
	}

	res := &model.BulkSmsResult{
		Message:        "Envoi terminé.",
		RecipientCount: len(phones),
		SkippedNoPhone: len(ids) - len(phones),
	}
	for _, to := range phones {
		ok := s.gateway.Send(ctx, to, message)
		s.metrics.SMSSent(ok)
		if ok {
			res.Sent++
		} else {
			res.Failed++
		}
	}
	switch {
	case res.Failed == 0:
		res.Status = model.SmsSent
	case res.Sent == 0:
		res.Status = model.SmsFailed
	default:
		res.Status = model.SmsPartial
	}
	s.metrics.SMSBatch(res.Status)

	entry := model.SmsLog{UserID: sender.ID, Message: message, RecipientCount: res.RecipientCount, Status: res.Status}
	if err := s.db.WithContext(ctx).Create(&entry).Error; err != nil {
		// the messages are already out; report the batch anyway
		logger.From(ctx).Error("sms.log_failed", "err", err)
	}
	logger.From(ctx).Info("sms.bulk", "sender", sender.ID, "recipients", res.RecipientCount,
		"sent", res.Sent, "failed", res.Failed, "skipped", res.SkippedNoPhone, "status", res.Status)
	return res, nil
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
