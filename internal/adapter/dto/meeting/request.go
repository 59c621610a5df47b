package meeting

// CreateMeetingRequest holds the form fields of a multipart upload. The
// recording itself is the "audio" file part.
type CreateMeetingRequest struct {
	Title        string `form:"title" validate:"required,max=255"`
	Participants string `form:"participants" validate:"max=4000"` // comma separated
	Language     string `form:"language" validate:"omitempty,lang"`
	Visibility   string `form:"visibility" validate:"omitempty,oneof=private company shared"`
}

// ListMeetingsRequest represents query parameters for listing meetings
type ListMeetingsRequest struct {
	Status   string `query:"status" validate:"omitempty,oneof=pending processing processed error"`
	Page     int    `query:"page" validate:"omitempty,min=1"`
	PageSize int    `query:"page_size" validate:"omitempty,min=1,max=100"`
}

// RefineMinutesRequest asks for an edit of existing minutes
type RefineMinutesRequest struct {
	Instruction string `json:"instruction" validate:"required,max=4000"`
}

// ShareMeetingRequest grants a user read access
type ShareMeetingRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// CleanupAudioRequest removes recordings older than Days
type CleanupAudioRequest struct {
	Days int `json:"days" validate:"required,min=1"`
}
