package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-minutes/errors"
	"github.com/johnquangdev/meeting-minutes/internal/adapter/dto/common"
	dto "github.com/johnquangdev/meeting-minutes/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-minutes/internal/adapter/presenter"
	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	"github.com/johnquangdev/meeting-minutes/internal/infrastructure/export"
	ucerrors "github.com/johnquangdev/meeting-minutes/internal/usecase/errors"
	meetinguc "github.com/johnquangdev/meeting-minutes/internal/usecase/meeting"
)

// MeetingService is the meeting use case consumed by the handler
type MeetingService interface {
	Create(ctx context.Context, actor entities.Actor, in meetinguc.CreateInput, apiKey string) (*entities.Meeting, error)
	Retry(ctx context.Context, actor entities.Actor, id uuid.UUID, apiKey string) (*entities.Meeting, error)
	Refine(ctx context.Context, actor entities.Actor, id uuid.UUID, instruction, apiKey string) (*entities.Meeting, error)
	RegenerateFlowchart(ctx context.Context, actor entities.Actor, id uuid.UUID, apiKey string) (*entities.Meeting, error)
	Get(ctx context.Context, actor entities.Actor, id uuid.UUID) (*entities.Meeting, error)
	List(ctx context.Context, actor entities.Actor, in meetinguc.ListInput) ([]*entities.Meeting, int64, error)
	Share(ctx context.Context, actor entities.Actor, id, userID uuid.UUID) (*entities.Meeting, error)
	Delete(ctx context.Context, actor entities.Actor, id uuid.UUID) error
	CleanupAudio(ctx context.Context, actor entities.Actor, days int) (int64, error)
}

// Meeting handles meeting-related HTTP requests
type Meeting struct {
	svc            MeetingService
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewMeetingHandler creates a new meeting handler
func NewMeetingHandler(svc MeetingService, maxUploadBytes int64, logger *zap.Logger) *Meeting {
	return &Meeting{svc: svc, maxUploadBytes: maxUploadBytes, logger: logger}
}

// CreateMeeting handles POST /meetings
// @Summary      Upload a meeting recording
// @Description  Stores the recording and starts producing minutes in the background
// @Tags         Meetings
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        X-Api-Key     header    string  false  "Model API key"
// @Param        audio         formData  file    true   "Recording"
// @Param        title         formData  string  true   "Meeting title"
// @Param        participants  formData  string  false  "Comma separated participant names"
// @Param        language      formData  string  false  "Language code"
// @Param        visibility    formData  string  false  "private, company or shared"
// @Success      202  {object}  meeting.MeetingResponse
// @Failure      400  {object}  map[string]interface{}
// @Failure      412  {object}  map[string]interface{}  "Missing model API key"
// @Failure      413  {object}  map[string]interface{}
// @Router       /meetings [post]
func (h *Meeting) CreateMeeting(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req dto.CreateMeetingRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	fh, err := c.FormFile("audio")
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("audio file is required"))
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return HandleError(h.logger, c, errors.ErrMeetingAudioTooLarge(h.maxUploadBytes))
	}

	f, err := fh.Open()
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	defer f.Close()

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	m, err := h.svc.Create(c.Request().Context(), actor, meetinguc.CreateInput{
		Title:        req.Title,
		Participants: splitParticipants(req.Participants),
		Language:     req.Language,
		Visibility:   entities.Visibility(req.Visibility),
		Audio:        f,
		AudioSize:    fh.Size,
		AudioMIME:    contentType,
	}, apiKey(c))
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccessWithStatus(h.logger, c, http.StatusAccepted, presenter.ToMeetingResponse(m))
}

// ListMeetings handles GET /meetings
// @Summary      List meetings
// @Description  Lists the meetings visible to the caller
// @Tags         Meetings
// @Produce      json
// @Security     BearerAuth
// @Param        status     query     string  false  "pending, processing, processed or error"
// @Param        page       query     int     false  "Page number"  default(1)
// @Param        page_size  query     int     false  "Page size"    default(20)
// @Success      200  {object}  meeting.ListMeetingsResponse
// @Router       /meetings [get]
func (h *Meeting) ListMeetings(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req dto.ListMeetingsRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	in := meetinguc.ListInput{Limit: req.PageSize, Offset: (req.Page - 1) * req.PageSize}
	if req.Status != "" {
		status := entities.MeetingStatus(req.Status)
		in.Status = &status
	}

	meetings, total, err := h.svc.List(c.Request().Context(), actor, in)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	return HandleSuccess(h.logger, c, &dto.ListMeetingsResponse{
		Meetings:   presenter.ToMeetingSummaries(meetings),
		Pagination: common.NewPagination(req.Page, req.PageSize, total),
	})
}

// GetMeeting handles GET /meetings/:id
// @Summary      Get a meeting
// @Description  Returns the meeting with its minutes
// @Tags         Meetings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {object}  meeting.MeetingResponse
// @Failure      404  {object}  map[string]interface{}
// @Router       /meetings/{id} [get]
func (h *Meeting) GetMeeting(c echo.Context) error {
	actor, id, err := h.target(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	m, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToMeetingResponse(m))
}

// RetryMeeting handles POST /meetings/:id/retry
// @Summary      Retry processing
// @Description  Re-runs the pipeline on the stored recording of a failed meeting
// @Tags         Meetings
// @Produce      json
// @Security     BearerAuth
// @Param        X-Api-Key  header    string  false  "Model API key"
// @Param        id         path      string  true   "Meeting ID (UUID)"
// @Success      202  {object}  meeting.MeetingResponse
// @Failure      409  {object}  map[string]interface{}  "Meeting is not in error state"
// @Failure      410  {object}  map[string]interface{}  "Recording already removed"
// @Router       /meetings/{id}/retry [post]
func (h *Meeting) RetryMeeting(c echo.Context) error {
	actor, id, err := h.target(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	m, err := h.svc.Retry(c.Request().Context(), actor, id, apiKey(c))
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccessWithStatus(h.logger, c, http.StatusAccepted, presenter.ToMeetingResponse(m))
}

// RefineMinutes handles POST /meetings/:id/refine
// @Summary      Refine minutes
// @Description  Edits the minutes of a processed meeting following an instruction
// @Tags         Meetings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        X-Api-Key  header    string                        false  "Model API key"
// @Param        id         path      string                        true   "Meeting ID (UUID)"
// @Param        request    body      meeting.RefineMinutesRequest  true   "Instruction"
// @Success      200  {object}  meeting.MeetingResponse
// @Router       /meetings/{id}/refine [post]
func (h *Meeting) RefineMinutes(c echo.Context) error {
	actor, id, err := h.target(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req dto.RefineMinutesRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	m, err := h.svc.Refine(c.Request().Context(), actor, id, req.Instruction, apiKey(c))
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToMeetingResponse(m))
}

// RegenerateFlowchart handles POST /meetings/:id/flowchart
// @Summary      Regenerate flowchart
// @Description  Rebuilds the process diagram from the meeting transcript
// @Tags         Meetings
// @Produce      json
// @Security     BearerAuth
// @Param        X-Api-Key  header    string  false  "Model API key"
// @Param        id         path      string  true   "Meeting ID (UUID)"
// @Success      200  {object}  meeting.MeetingResponse
// @Router       /meetings/{id}/flowchart [post]
func (h *Meeting) RegenerateFlowchart(c echo.Context) error {
	actor, id, err := h.target(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	m, err := h.svc.RegenerateFlowchart(c.Request().Context(), actor, id, apiKey(c))
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToMeetingResponse(m))
}

// ShareMeeting handles POST /meetings/:id/share
// @Summary      Share a meeting
// @Description  Grants another user of the company read access
// @Tags         Meetings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id       path      string                       true  "Meeting ID (UUID)"
// @Param        request  body      meeting.ShareMeetingRequest  true  "User to share with"
// @Success      200  {object}  meeting.MeetingResponse
// @Router       /meetings/{id}/share [post]
func (h *Meeting) ShareMeeting(c echo.Context) error {
	actor, id, err := h.target(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req dto.ShareMeetingRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument("user_id must be a valid UUID"))
	}

	m, err := h.svc.Share(c.Request().Context(), actor, id, userID)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, presenter.ToMeetingResponse(m))
}

// DeleteMeeting handles DELETE /meetings/:id
// @Summary      Delete a meeting
// @Description  Deletes the meeting and its stored recording
// @Tags         Meetings
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {object}  map[string]interface{}
// @Router       /meetings/{id} [delete]
func (h *Meeting) DeleteMeeting(c echo.Context) error {
	actor, id, err := h.target(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	if err := h.svc.Delete(c.Request().Context(), actor, id); err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, map[string]interface{}{"deleted": id.String()})
}

// ExportMinutes handles GET /meetings/:id/export
// @Summary      Export minutes
// @Description  Downloads the minutes as an Excel workbook
// @Tags         Meetings
// @Produce      application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security     BearerAuth
// @Param        id   path      string  true  "Meeting ID (UUID)"
// @Success      200  {file}    binary
// @Router       /meetings/{id}/export [get]
func (h *Meeting) ExportMinutes(c echo.Context) error {
	actor, id, err := h.target(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	m, err := h.svc.Get(c.Request().Context(), actor, id)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	if m.Minutes == nil {
		return HandleError(h.logger, c, ucerrors.ErrNoMinutes)
	}

	data, err := export.MinutesXLSX(m)
	if err != nil {
		return HandleError(h.logger, c, errors.ErrReportExportFailed("xlsx", err))
	}

	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", "minutes-"+m.ID.String()+".xlsx"))
	return c.Blob(http.StatusOK, export.XLSXContentType, data)
}

// CleanupAudio handles POST /maintenance/cleanup-audio
// @Summary      Remove old recordings
// @Description  Deletes stored recordings older than the given number of days
// @Tags         Maintenance
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request  body      meeting.CleanupAudioRequest  true  "Retention window"
// @Success      200  {object}  meeting.CleanupAudioResponse
// @Failure      403  {object}  map[string]interface{}
// @Router       /maintenance/cleanup-audio [post]
func (h *Meeting) CleanupAudio(c echo.Context) error {
	actor, err := requireActor(c)
	if err != nil {
		return HandleError(h.logger, c, err)
	}

	var req dto.CleanupAudioRequest
	if err := c.Bind(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidPayload())
	}
	if err := c.Validate(&req); err != nil {
		return HandleError(h.logger, c, errors.ErrInvalidArgument(err.Error()))
	}

	removed, err := h.svc.CleanupAudio(c.Request().Context(), actor, req.Days)
	if err != nil {
		return HandleError(h.logger, c, err)
	}
	return HandleSuccess(h.logger, c, &dto.CleanupAudioResponse{Removed: removed})
}

func (h *Meeting) target(c echo.Context) (entities.Actor, uuid.UUID, error) {
	actor, err := requireActor(c)
	if err != nil {
		return actor, uuid.Nil, err
	}
	id, err := parseID(c)
	return actor, id, err
}

func splitParticipants(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
