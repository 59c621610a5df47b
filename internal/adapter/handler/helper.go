package handler

import (
	stdErrors "errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-minutes/errors"
	"github.com/johnquangdev/meeting-minutes/internal/domain/entities"
	httpmw "github.com/johnquangdev/meeting-minutes/internal/infrastructure/http/middleware"
	ucerrors "github.com/johnquangdev/meeting-minutes/internal/usecase/errors"
	"github.com/johnquangdev/meeting-minutes/pkg/ai"
)

// Response shapes
type success struct {
	Code    interface{} `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type errs struct {
	Code    interface{}       `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Info    string            `json:"info,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// getRequestID tries to read X-Request-ID from the request
func getRequestID(c echo.Context) string {
	if c == nil || c.Request() == nil {
		return ""
	}
	return c.Request().Header.Get(echo.HeaderXRequestID)
}

// HandleSuccess writes a standardized 200 response using provided logger
func HandleSuccess(logger *zap.Logger, c echo.Context, data interface{}) error {
	return HandleSuccessWithStatus(logger, c, http.StatusOK, data)
}

// HandleSuccessWithStatus writes a standardized success response with the
// given status
func HandleSuccessWithStatus(logger *zap.Logger, c echo.Context, status int, data interface{}) error {
	resp := success{
		Code:    int(errors.ErrorCode_HTTP_OK),
		Message: "success",
		Data:    data,
	}

	if logger != nil {
		logger.Info("http.response.success",
			zap.String("request_id", getRequestID(c)),
			zap.String("path", c.Path()),
			zap.Int("status", status),
		)
	}

	return c.JSON(status, resp)
}

// HandleError centralizes error handling and logging using provided logger.
// Use case errors are translated to AppErrors first.
func HandleError(logger *zap.Logger, c echo.Context, err error) error {
	reqID := getRequestID(c)

	var appErr errors.AppError
	if !stdErrors.As(err, &appErr) {
		appErr = toAppError(err, c.Param("id"))
	}

	if logger != nil {
		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("path", c.Path()),
			zap.Any("app_code", appErr.Code),
			zap.Error(err),
		}
		if appErr.HTTPCode >= http.StatusInternalServerError {
			logger.Error("http.response.error", fields...)
		} else {
			logger.Warn("http.response.error", fields...)
		}
	}

	info := ""
	if appErr.Raw != nil {
		info = appErr.Raw.Error()
	}

	body := errs{
		Code:    appErr.Code,
		Message: appErr.Message,
		Info:    info,
		Details: appErr.Details,
	}

	return c.JSON(appErr.HTTPCode, body)
}

// toAppError maps use case and provider errors onto API errors
func toAppError(err error, meetingID string) errors.AppError {
	var apiErr *ai.APIError
	switch {
	case stdErrors.Is(err, ucerrors.ErrMissingCredential):
		return errors.ErrAIMissingCredential()
	case stdErrors.Is(err, ucerrors.ErrEmptyAudio):
		return errors.ErrInvalidArgument("Audio payload is empty")
	case stdErrors.Is(err, ucerrors.ErrInvalidInput):
		return errors.ErrInvalidArgument(err.Error())
	case stdErrors.Is(err, ai.ErrAudioUnsupported):
		return errors.ErrInvalidArgument("Configured AI provider cannot take audio")
	case stdErrors.Is(err, ucerrors.ErrUnauthorized):
		return errors.ErrUnauthenticated()
	case stdErrors.Is(err, ucerrors.ErrForbidden):
		return errors.ErrPermissionDenied("meeting")
	case stdErrors.Is(err, ucerrors.ErrMeetingNotFound), stdErrors.Is(err, ucerrors.ErrNotFound):
		return errors.ErrMeetingNotFound(meetingID)
	case stdErrors.Is(err, ucerrors.ErrMeetingBusy):
		return errors.ErrMeetingBusy(meetingID)
	case stdErrors.Is(err, ucerrors.ErrInvalidTransition), stdErrors.Is(err, ucerrors.ErrNoMinutes):
		return errors.ErrMeetingInvalidState(meetingID, err)
	case stdErrors.Is(err, ucerrors.ErrAudioMissing):
		return errors.ErrMeetingAudioMissing(meetingID)
	case stdErrors.Is(err, ucerrors.ErrStorage):
		return errors.ErrStorageFailed("recording", err)
	case stdErrors.Is(err, ucerrors.ErrLockUnavailable):
		return errors.ErrCacheFailed("lock", err)
	case stdErrors.Is(err, ucerrors.ErrQueueFull):
		return errors.ErrAIServiceUnavailable("processing-queue")
	case stdErrors.Is(err, ucerrors.ErrExtractionFailed):
		return errors.ErrAIExtractionFailed(err)
	case stdErrors.Is(err, ucerrors.ErrMalformedResponse):
		return errors.ErrAIMalformedResponse(err)
	case stdErrors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests:
		return errors.ErrAIQuotaExceeded()
	case stdErrors.Is(err, ucerrors.ErrRemoteExhausted), stdErrors.As(err, &apiErr):
		appErr := errors.ErrAIServiceUnavailable("ai")
		appErr.Raw = err
		return appErr
	}
	return errors.ErrInternal(err)
}

// requireActor returns the authenticated caller
func requireActor(c echo.Context) (entities.Actor, error) {
	actor, ok := httpmw.ActorFrom(c)
	if !ok {
		return entities.Actor{}, errors.ErrUnauthenticated()
	}
	return actor, nil
}

// parseID reads the :id path parameter
func parseID(c echo.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return uuid.Nil, errors.ErrInvalidArgument("meeting ID must be a valid UUID")
	}
	return id, nil
}

// apiKey reads the caller's model key
func apiKey(c echo.Context) string {
	return c.Request().Header.Get(httpmw.APIKeyHeader)
}
