package presenter

import (
	"github.com/johnquangdev/meeting-minutes/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
)

// ToMeetingResponse converts a Meeting entity to MeetingResponse DTO
func ToMeetingResponse(m *entities.Meeting) *meeting.MeetingResponse {
	if m == nil {
		return nil
	}

	shared := make([]string, 0, len(m.SharedWith))
	for _, id := range m.SharedWith {
		shared = append(shared, id.String())
	}
	participants := []string(m.Participants)
	if participants == nil {
		participants = []string{}
	}

	return &meeting.MeetingResponse{
		ID:                  m.ID.String(),
		Title:               m.Title,
		Participants:        participants,
		Language:            m.Language,
		CompanyID:           m.CompanyID.String(),
		CreatorID:           m.CreatorID.String(),
		Visibility:          string(m.Visibility),
		SharedWith:          shared,
		Status:              string(m.Status),
		Minutes:             m.Minutes,
		HasAudio:            m.HasAudio(),
		AudioSize:           m.AudioSize,
		LastError:           m.LastError,
		Attempts:            m.Attempts,
		ProcessingStartedAt: m.ProcessingStartedAt,
		ProcessedAt:         m.ProcessedAt,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
}

// ToMeetingSummaries converts meetings to their list form
func ToMeetingSummaries(meetings []*entities.Meeting) []*meeting.MeetingSummaryResponse {
	out := make([]*meeting.MeetingSummaryResponse, 0, len(meetings))
	for _, m := range meetings {
		out = append(out, &meeting.MeetingSummaryResponse{
			ID:         m.ID.String(),
			Title:      m.Title,
			Language:   m.Language,
			CreatorID:  m.CreatorID.String(),
			Visibility: string(m.Visibility),
			Status:     string(m.Status),
			HasAudio:   m.HasAudio(),
			CreatedAt:  m.CreatedAt,
		})
	}
	return out
}
