package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"meetrelay/internal/core/domain"
	"meetrelay/internal/core/ports"
	apperrors "meetrelay/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// MeetingMetrics counts directory writes. monitoring.PrometheusCollector
// implements it.
type MeetingMetrics interface {
	MeetingCreated()
}

type MeetingHandler struct {
	meetings ports.MeetingService
	metrics  MeetingMetrics
	logger   *zap.SugaredLogger
}

func NewMeetingHandler(meetings ports.MeetingService, metrics MeetingMetrics, logger *zap.SugaredLogger) *MeetingHandler {
	return &MeetingHandler{
		meetings: meetings,
		metrics:  metrics,
		logger:   logger,
	}
}

func (h *MeetingHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/meeting")
	{
		api.POST("/create-meeting", h.CreateMeeting)
		api.GET("/get-meeting/:meetingId", h.GetMeeting)

		// older clients
		api.POST("/createmeetingroom", h.CreateMeeting)
		api.GET("/checkmeetingroom/:meetingId", h.GetMeeting)
	}
}

type CreateMeetingRequest struct {
	HostName string `json:"hostName"`
}

type CreateMeetingResponse struct {
	MeetingID domain.MeetingID `json:"meetingId"`
}

// GetMeetingResponse carries the record as a JSON encoded string, which is
// what existing clients parse.
type GetMeetingResponse struct {
	MeetingRoom string `json:"meetingRoom"`
}

func (h *MeetingHandler) CreateMeeting(c *gin.Context) {
	var req CreateMeetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(apperrors.NewInvalidInputError("request body must be a JSON object with hostName"))
		return
	}

	record, err := h.meetings.CreateMeeting(c.Request.Context(), req.HostName)
	if err != nil {
		_ = c.Error(mapMeetingError(err))
		return
	}

	if h.metrics != nil {
		h.metrics.MeetingCreated()
	}
	h.logger.Infow("meeting created", "meeting_id", record.ID)

	c.JSON(http.StatusCreated, CreateMeetingResponse{MeetingID: record.ID})
}

func (h *MeetingHandler) GetMeeting(c *gin.Context) {
	id := domain.MeetingID(c.Param("meetingId"))

	record, err := h.meetings.GetMeeting(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(mapMeetingError(err).WithContext("meeting_id", id))
		return
	}

	raw, err := json.Marshal(record)
	if err != nil {
		_ = c.Error(apperrors.WrapError(err, apperrors.ErrCodeInternal, "failed to encode meeting", http.StatusInternalServerError))
		return
	}

	c.JSON(http.StatusOK, GetMeetingResponse{MeetingRoom: string(raw)})
}

func mapMeetingError(err error) *apperrors.AppError {
	switch {
	case errors.Is(err, domain.ErrInvalidHostName):
		return apperrors.NewInvalidInputError(err.Error()).WithCause(err)
	case errors.Is(err, domain.ErrMeetingNotFound):
		return apperrors.NewNotFoundError("meeting")
	case errors.Is(err, domain.ErrStoreUnavailable):
		return apperrors.NewServiceUnavailableError("meeting store unavailable").WithCause(err)
	case errors.Is(err, domain.ErrMeetingExists):
		return apperrors.NewServiceUnavailableError("could not allocate a meeting id").WithCause(err)
	default:
		return apperrors.NewInternalError("Internal server error").WithCause(err)
	}
}
