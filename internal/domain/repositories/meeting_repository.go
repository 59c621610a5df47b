package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
)

// MeetingRepository defines the interface for meeting data access
type MeetingRepository interface {
	// Create persists a new meeting
	Create(ctx context.Context, meeting *entities.Meeting) error

	// FindByID retrieves a meeting, nil when it does not exist
	FindByID(ctx context.Context, id uuid.UUID) (*entities.Meeting, error)

	// Update saves every column of the meeting
	Update(ctx context.Context, meeting *entities.Meeting) error

	// Delete removes the meeting row
	Delete(ctx context.Context, id uuid.UUID) error

	// List returns meetings of a company visible under the filters
	List(ctx context.Context, filters MeetingFilters) ([]*entities.Meeting, int64, error)

	// FindStaleProcessing returns meetings stuck in processing since before the cutoff
	FindStaleProcessing(ctx context.Context, startedBefore time.Time) ([]*entities.Meeting, error)

	// FindWithAudioBefore returns meetings created before the cutoff that still hold audio
	FindWithAudioBefore(ctx context.Context, createdBefore time.Time) ([]*entities.Meeting, error)

	// ClearAudio nulls the audio key of the given meetings
	ClearAudio(ctx context.Context, ids []uuid.UUID) (int64, error)
}

// MeetingFilters narrows List
type MeetingFilters struct {
	// CompanyID is required unless AllCompanies is set
	CompanyID    uuid.UUID
	AllCompanies bool
	// ViewerID limits results to what this user may see; uuid.Nil skips the check
	ViewerID uuid.UUID
	Status   *entities.MeetingStatus
	Limit    int
	Offset   int
}
