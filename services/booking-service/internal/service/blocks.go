package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/apperr"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/identity"
	"github.com/md-rashed-zaman/instructorbook/services/booking-service/internal/model"
)

type BlockInput struct {
	InstructorID string
	Date         string
	StartTime    string
	EndTime      string
	Reason       string
}

type BlockService struct {
	Deps
}

func NewBlockService(deps Deps) *BlockService {
	return &BlockService{Deps: deps.withDefaults()}
}

// CreateBlock stores a one-off unavailable interval. Blocks may overlap each other.
func (s *BlockService) CreateBlock(ctx context.Context, p identity.Principal, in BlockInput) (model.BlockedPeriod, error) {
	instructorID := strings.TrimSpace(in.InstructorID)
	if instructorID == "" {
		return model.BlockedPeriod{}, apperr.ErrValidation.Withf("instructor_id is required")
	}
	if err := p.Require(p.CanManageAvailability(instructorID)); err != nil {
		return model.BlockedPeriod{}, err
	}
	date, err := availability.ParseDate(strings.TrimSpace(in.Date))
	if err != nil {
		return model.BlockedPeriod{}, err
	}
	start, err := availability.ToMinutes(strings.TrimSpace(in.StartTime))
	if err != nil {
		return model.BlockedPeriod{}, err
	}
	end, err := availability.ToMinutes(strings.TrimSpace(in.EndTime))
	if err != nil {
		return model.BlockedPeriod{}, err
	}
	if start >= end {
		return model.BlockedPeriod{}, apperr.ErrValidation.Withf("start_time %s must be before end_time %s", in.StartTime, in.EndTime)
	}

	b := model.BlockedPeriod{
		ID:           uuid.NewString(),
		InstructorID: instructorID,
		Date:         date,
		StartMinute:  start,
		EndMinute:    end,
		Reason:       strings.TrimSpace(in.Reason),
		CreatedAt:    s.now().UTC(),
	}
	if err := s.timed("create_block", func() error { return s.Store.CreateBlock(ctx, b) }); err != nil {
		return model.BlockedPeriod{}, err
	}
	s.invalidate(ctx, instructorID)
	s.Logger.Info("blocked period created", "block_id", b.ID, "instructor_id", instructorID, "date", in.Date)
	return b, nil
}

func (s *BlockService) DeleteBlock(ctx context.Context, p identity.Principal, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperr.ErrValidation.Withf("id is required")
	}
	b, err := s.Store.GetBlock(ctx, id)
	if err != nil {
		return err
	}
	if err := p.Require(p.CanManageAvailability(b.InstructorID)); err != nil {
		return err
	}
	if err := s.timed("delete_block", func() error {
		_, err := s.Store.DeleteBlock(ctx, id)
		return err
	}); err != nil {
		return err
	}
	s.invalidate(ctx, b.InstructorID)
	s.Logger.Info("blocked period deleted", "block_id", id, "instructor_id", b.InstructorID)
	return nil
}

func (s *BlockService) ListBlocks(ctx context.Context, p identity.Principal, instructorID, date string) ([]model.BlockedPeriod, error) {
	instructorID = strings.TrimSpace(instructorID)
	if instructorID == "" {
		return nil, apperr.ErrValidation.Withf("instructor_id is required")
	}
	if err := p.Require(p.CanManageAvailability(instructorID)); err != nil {
		return nil, err
	}
	d, err := availability.ParseDate(strings.TrimSpace(date))
	if err != nil {
		return nil, err
	}
	return s.Store.ListBlocks(ctx, instructorID, d)
}
