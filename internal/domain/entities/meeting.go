package entities

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// MeetingStatus is the processing state of a meeting
type MeetingStatus string

const (
	MeetingStatusPending    MeetingStatus = "pending"
	MeetingStatusProcessing MeetingStatus = "processing"
	MeetingStatusProcessed  MeetingStatus = "processed"
	MeetingStatusError      MeetingStatus = "error"
)

// error -> processing is only reachable through an explicit retry
var allowedTransitions = map[MeetingStatus][]MeetingStatus{
	MeetingStatusPending:    {MeetingStatusProcessing},
	MeetingStatusProcessing: {MeetingStatusProcessed, MeetingStatusError},
	MeetingStatusError:      {MeetingStatusProcessing},
}

// CanTransitionTo reports whether next is a legal successor of s
func (s MeetingStatus) CanTransitionTo(next MeetingStatus) bool {
	return slices.Contains(allowedTransitions[s], next)
}

// Visibility controls who besides the creator can read a meeting
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityCompany Visibility = "company"
	VisibilityShared  Visibility = "shared"
)

// IsValid checks the visibility value
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPrivate, VisibilityCompany, VisibilityShared:
		return true
	}
	return false
}

// Role is the caller's role as asserted by the access token
type Role string

const (
	RoleGeneralAdmin Role = "GeneralAdmin"
	RoleCompanyAdmin Role = "CompanyAdmin"
	RoleUser         Role = "User"
)

// IsValid checks if the role is known
func (r Role) IsValid() bool {
	switch r {
	case RoleGeneralAdmin, RoleCompanyAdmin, RoleUser:
		return true
	}
	return false
}

// Actor is the authenticated caller of a meeting operation
type Actor struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      Role
}

// IsAdminOf reports whether the actor administers the given company
func (a Actor) IsAdminOf(companyID uuid.UUID) bool {
	switch a.Role {
	case RoleGeneralAdmin:
		return true
	case RoleCompanyAdmin:
		return a.CompanyID == companyID
	}
	return false
}

// InvalidTransitionError is returned by the Mark* methods on an illegal move
type InvalidTransitionError struct {
	From MeetingStatus
	To   MeetingStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move meeting from %s to %s", e.From, e.To)
}

// Meeting is a recorded meeting and its minutes
type Meeting struct {
	ID           uuid.UUID                      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Title        string                         `json:"title" gorm:"type:varchar(255);not null"`
	Participants datatypes.JSONSlice[string]    `json:"participants" gorm:"type:jsonb;default:'[]'"`
	Language     string                         `json:"language" gorm:"type:varchar(10);default:'en';not null"`
	CompanyID    uuid.UUID                      `json:"company_id" gorm:"type:uuid;not null;index"`
	CreatorID    uuid.UUID                      `json:"creator_id" gorm:"type:uuid;not null;index"`
	Visibility   Visibility                     `json:"visibility" gorm:"type:varchar(20);default:'private';not null"`
	SharedWith   datatypes.JSONSlice[uuid.UUID] `json:"shared_with" gorm:"type:jsonb;default:'[]'"`
	Status       MeetingStatus                  `json:"status" gorm:"type:varchar(20);not null;default:'pending';index"`
	Minutes      *Minutes                       `json:"minutes,omitempty" gorm:"type:jsonb;serializer:json"`

	AudioKey  *string `json:"-" gorm:"type:text"`
	AudioSize int64   `json:"audio_size" gorm:"default:0"`
	AudioMIME string  `json:"audio_mime" gorm:"type:varchar(100)"`

	LastError           *string    `json:"last_error,omitempty" gorm:"type:text"`
	Attempts            int        `json:"attempts" gorm:"default:0"`
	ProcessingStartedAt *time.Time `json:"processing_started_at,omitempty"`
	ProcessedAt         *time.Time `json:"processed_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name for GORM
func (Meeting) TableName() string {
	return "meetings"
}

// NewMeeting creates a pending meeting owned by the actor
func NewMeeting(actor Actor, title string, participants []string, language string, visibility Visibility) *Meeting {
	if language == "" {
		language = "en"
	}
	if !visibility.IsValid() {
		visibility = VisibilityPrivate
	}
	cleaned := make([]string, 0, len(participants))
	for _, p := range participants {
		if p = strings.TrimSpace(p); p != "" {
			cleaned = append(cleaned, p)
		}
	}

	now := time.Now()
	return &Meeting{
		ID:           uuid.New(),
		Title:        strings.TrimSpace(title),
		Participants: cleaned,
		Language:     strings.ToLower(language),
		CompanyID:    actor.CompanyID,
		CreatorID:    actor.UserID,
		Visibility:   visibility,
		SharedWith:   []uuid.UUID{},
		Status:       MeetingStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (m *Meeting) transition(next MeetingStatus) error {
	if !m.Status.CanTransitionTo(next) {
		return &InvalidTransitionError{From: m.Status, To: next}
	}
	m.Status = next
	m.UpdatedAt = time.Now()
	return nil
}

// MarkAsProcessing starts a processing attempt
func (m *Meeting) MarkAsProcessing() error {
	if err := m.transition(MeetingStatusProcessing); err != nil {
		return err
	}
	now := time.Now()
	m.ProcessingStartedAt = &now
	m.ProcessedAt = nil
	m.LastError = nil
	m.Attempts++
	return nil
}

// MarkAsProcessed attaches the minutes and finishes processing
func (m *Meeting) MarkAsProcessed(minutes *Minutes) error {
	if err := m.transition(MeetingStatusProcessed); err != nil {
		return err
	}
	now := time.Now()
	m.Minutes = minutes
	m.ProcessedAt = &now
	m.LastError = nil
	return nil
}

// MarkAsFailed records the failure. A non-empty partial transcript is kept in
// the minutes so an operator can inspect it.
func (m *Meeting) MarkAsFailed(errMsg string, partialTranscript string) error {
	if err := m.transition(MeetingStatusError); err != nil {
		return err
	}
	m.LastError = &errMsg
	if partialTranscript != "" {
		if m.Minutes == nil {
			m.Minutes = &Minutes{}
			m.Minutes.Normalize()
		}
		m.Minutes.FullTranscript = partialTranscript
	}
	return nil
}

// IsProcessed checks if minutes are available
func (m *Meeting) IsProcessed() bool {
	return m.Status == MeetingStatusProcessed
}

// HasAudio reports whether the recording is still stored
func (m *Meeting) HasAudio() bool {
	return m.AudioKey != nil && *m.AudioKey != ""
}

// IsStale reports a processing attempt that started before the cutoff
func (m *Meeting) IsStale(cutoff time.Time) bool {
	return m.Status == MeetingStatusProcessing && m.ProcessingStartedAt != nil && m.ProcessingStartedAt.Before(cutoff)
}

// CanView applies the visibility rules for the actor
func (m *Meeting) CanView(a Actor) bool {
	if m.CanManage(a) {
		return true
	}
	if a.CompanyID != m.CompanyID {
		return false
	}
	switch m.Visibility {
	case VisibilityCompany:
		return true
	case VisibilityShared:
		return slices.Contains(m.SharedWith, a.UserID)
	}
	return false
}

// CanManage reports whether the actor may retry, share or delete the meeting
func (m *Meeting) CanManage(a Actor) bool {
	return a.UserID == m.CreatorID || a.IsAdminOf(m.CompanyID)
}

// ShareWith grants read access to another user of the company
func (m *Meeting) ShareWith(userID uuid.UUID) {
	if !slices.Contains(m.SharedWith, userID) {
		m.SharedWith = append(m.SharedWith, userID)
	}
	if m.Visibility == VisibilityPrivate {
		m.Visibility = VisibilityShared
	}
	m.UpdatedAt = time.Now()
}

// ClearAudio forgets the stored recording after it has been deleted
func (m *Meeting) ClearAudio() {
	m.AudioKey = nil
	m.UpdatedAt = time.Now()
}
