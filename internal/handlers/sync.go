package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appctx "github.com/Ramsey-B/iris/pkg/context"
	"github.com/Ramsey-B/iris/pkg/models"
	"github.com/Ramsey-B/iris/pkg/syncer"
	"github.com/Ramsey-B/iris/pkg/validation"
)

// SyncService is the part of the orchestrator the HTTP surface drives.
type SyncService interface {
	RunSync(ctx context.Context, correlationID string) syncer.SyncResult
	Status(ctx context.Context) (*syncer.Status, error)
	GetRun(ctx context.Context, id uuid.UUID) (*models.SyncRun, error)
}

// SyncHandler serves the sync trigger and its read views
type SyncHandler struct {
	service SyncService
	logger  ectologger.Logger
}

func NewSyncHandler(service SyncService, logger ectologger.Logger) *SyncHandler {
	return &SyncHandler{
		service: service,
		logger:  logger,
	}
}

// Register registers sync routes. trigger wraps only the run endpoint, so
// read views and the trigger can carry different role checks.
func (h *SyncHandler) Register(g *echo.Group, trigger ...echo.MiddlewareFunc) {
	g.POST("/run", h.RunSync, trigger...)
	g.GET("/status", h.GetStatus)
	g.GET("/runs/:id", h.GetRun)
}

// RunSyncRequest is the optional request body for triggering a sync
type RunSyncRequest struct {
	CorrelationID string `json:"correlation_id" validate:"omitempty,max=128,printascii"`
}

// RunSync runs one sync and returns its result. The body is always a
// SyncResult; the status code reflects its error kind. The run outlives the
// request if the client goes away.
func (h *SyncHandler) RunSync(c echo.Context) error {
	req, err := validation.BindRequest[RunSyncRequest](c)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	if req.CorrelationID == "" {
		req.CorrelationID = appctx.GetCorrelationID(ctx)
	}

	// a client that disconnects does not abort the run; the orchestrator's
	// max run duration is its only deadline
	result := h.service.RunSync(context.WithoutCancel(ctx), req.CorrelationID)

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"correlation_id": result.CorrelationID,
		"sync_run_id":    result.SyncRunID,
		"success":        result.Success,
	}).Debug("sync triggered over http")

	return c.JSON(statusForResult(result), result)
}

// GetStatus returns the connection and its recent runs
func (h *SyncHandler) GetStatus(c echo.Context) error {
	status, err := h.service.Status(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, status)
}

// GetRun returns one sync run by id
func (h *SyncHandler) GetRun(c echo.Context) error {
	idParam := c.Param("id")
	if err := validation.ValidateValue(idParam, "required,uuid"); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid sync run id %q", idParam)
	}

	run, err := h.service.GetRun(c.Request().Context(), uuid.MustParse(idParam))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, run)
}

func statusForResult(result syncer.SyncResult) int {
	if result.Success {
		return http.StatusOK
	}
	return statusForKind(result.ErrorKind)
}

func statusForKind(kind syncer.ErrorKind) int {
	switch kind {
	case syncer.KindNotConfigured, syncer.KindStorageUnavailable:
		return http.StatusServiceUnavailable
	case syncer.KindSyncInProgress:
		return http.StatusConflict
	case syncer.KindProviderUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// toHTTPError keeps status-coded errors and maps classified sync errors.
func toHTTPError(err error) error {
	if httperror.IsHTTPError(err) {
		return err
	}

	var syncErr *syncer.Error
	if errors.As(err, &syncErr) {
		return httperror.NewHTTPError(statusForKind(syncErr.Kind), syncErr.Message)
	}
	return err
}
