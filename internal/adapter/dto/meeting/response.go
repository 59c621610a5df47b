package meeting

import (
	"time"

	"github.com/johnquangdev/meeting-minutes/internal/adapter/dto/common"
	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
)

// MeetingResponse represents a meeting in responses
type MeetingResponse struct {
	ID                  string            `json:"id"`
	Title               string            `json:"title"`
	Participants        []string          `json:"participants"`
	Language            string            `json:"language"`
	CompanyID           string            `json:"company_id"`
	CreatorID           string            `json:"creator_id"`
	Visibility          string            `json:"visibility"`
	SharedWith          []string          `json:"shared_with"`
	Status              string            `json:"status"`
	Minutes             *entities.Minutes `json:"minutes,omitempty"`
	HasAudio            bool              `json:"has_audio"`
	AudioSize           int64             `json:"audio_size"`
	LastError           *string           `json:"last_error,omitempty"`
	Attempts            int               `json:"attempts"`
	ProcessingStartedAt *time.Time        `json:"processing_started_at,omitempty"`
	ProcessedAt         *time.Time        `json:"processed_at,omitempty"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// MeetingSummaryResponse is the list form of a meeting, without minutes
type MeetingSummaryResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Language   string    `json:"language"`
	CreatorID  string    `json:"creator_id"`
	Visibility string    `json:"visibility"`
	Status     string    `json:"status"`
	HasAudio   bool      `json:"has_audio"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListMeetingsResponse represents a paginated list of meetings
type ListMeetingsResponse struct {
	Meetings   []*MeetingSummaryResponse  `json:"meetings"`
	Pagination *common.PaginationResponse `json:"pagination"`
}

// CleanupAudioResponse reports how many recordings were removed
type CleanupAudioResponse struct {
	Removed int64 `json:"removed"`
}
