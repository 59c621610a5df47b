package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	"github.com/johnquangdev/meeting-minutes/internal/domain/repositories"
)

// meetingRepository implements the MeetingRepository interface
type meetingRepository struct {
	db *gorm.DB
}

// NewMeetingRepository creates a new meeting repository
func NewMeetingRepository(db *gorm.DB) repositories.MeetingRepository {
	return &meetingRepository{db: db}
}

// Create creates a new meeting
func (r *meetingRepository) Create(ctx context.Context, meeting *entities.Meeting) error {
	return r.db.WithContext(ctx).Create(meeting).Error
}

// FindByID retrieves a meeting by its ID
func (r *meetingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	var meeting entities.Meeting
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&meeting).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &meeting, nil
}

// Update updates an existing meeting
func (r *meetingRepository) Update(ctx context.Context, meeting *entities.Meeting) error {
	return r.db.WithContext(ctx).Save(meeting).Error
}

// Delete removes a meeting
func (r *meetingRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&entities.Meeting{}, "id = ?", id).Error
}

// List retrieves meetings with filters and pagination
func (r *meetingRepository) List(ctx context.Context, filters repositories.MeetingFilters) ([]*entities.Meeting, int64, error) {
	var meetings []*entities.Meeting
	var total int64

	query := r.db.WithContext(ctx).Model(&entities.Meeting{})

	if !filters.AllCompanies {
		query = query.Where("company_id = ?", filters.CompanyID)
	}
	if filters.ViewerID != uuid.Nil {
		shared, err := json.Marshal([]uuid.UUID{filters.ViewerID})
		if err != nil {
			return nil, 0, err
		}
		query = query.Where(
			"(creator_id = ? OR visibility = ? OR (visibility = ? AND shared_with @> ?::jsonb))",
			filters.ViewerID, entities.VisibilityCompany, entities.VisibilityShared, string(shared),
		)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = query.Order("created_at DESC")
	if filters.Limit > 0 {
		query = query.Limit(filters.Limit)
	}
	if filters.Offset > 0 {
		query = query.Offset(filters.Offset)
	}

	err := query.Find(&meetings).Error
	return meetings, total, err
}

// FindStaleProcessing retrieves meetings whose processing started before the cutoff
func (r *meetingRepository) FindStaleProcessing(ctx context.Context, startedBefore time.Time) ([]*entities.Meeting, error) {
	var meetings []*entities.Meeting
	err := r.db.WithContext(ctx).
		Where("status = ? AND processing_started_at < ?", entities.MeetingStatusProcessing, startedBefore).
		Find(&meetings).Error
	return meetings, err
}

// FindWithAudioBefore retrieves meetings older than the cutoff that still reference audio
func (r *meetingRepository) FindWithAudioBefore(ctx context.Context, createdBefore time.Time) ([]*entities.Meeting, error) {
	var meetings []*entities.Meeting
	err := r.db.WithContext(ctx).
		Where("audio_key IS NOT NULL AND created_at < ?", createdBefore).
		Where("status <> ?", entities.MeetingStatusProcessing).
		Find(&meetings).Error
	return meetings, err
}

// ClearAudio nulls audio_key for the given meetings
func (r *meetingRepository) ClearAudio(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := r.db.WithContext(ctx).
		Model(&entities.Meeting{}).
		Where("id IN ?", ids).
		Update("audio_key", nil)
	return result.RowsAffected, result.Error
}
