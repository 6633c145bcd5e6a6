package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"meetup/internal/domain"
)

// ActivityService backs the create-activity form submission. Listing, search
// and sort are rendered by the web frontend and are not served here.
type ActivityService struct {
	activities domain.ActivityRepository
}

func NewActivityService(activities domain.ActivityRepository) *ActivityService {
	return &ActivityService{activities: activities}
}

type ActivityCreateInput struct {
	Title           string
	Description     string
	Category        string
	DateTime        time.Time
	Location        string
	MaxParticipants int
}

func (s *ActivityService) CreateActivity(ctx context.Context, in ActivityCreateInput, userID int64) (*domain.Activity, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, errors.New("title is required")
	}
	if strings.TrimSpace(in.Location) == "" {
		return nil, errors.New("location is required")
	}
	if in.MaxParticipants <= 0 {
		return nil, errors.New("max participants must be positive")
	}
	if in.DateTime.IsZero() {
		return nil, errors.New("date and time are required")
	}

	a := &domain.Activity{
		UserID:          userID,
		Title:           strings.TrimSpace(in.Title),
		Description:     in.Description,
		Category:        in.Category,
		DateTime:        in.DateTime,
		Location:        strings.TrimSpace(in.Location),
		MaxParticipants: in.MaxParticipants,
		Status:          "active",
	}
	if err := s.activities.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}
