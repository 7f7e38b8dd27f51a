package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/cleanupusers/internal/middleware"
	"github.com/hitoshi/cleanupusers/internal/model"
	"github.com/hitoshi/cleanupusers/internal/worker/cleanup"
)

// ReportService は照合パスの実行と直近レポートの取得を行う。*cleanup.Job が満たす。
type ReportService interface {
	Latest() (*cleanup.Report, bool)
	RunOnce(ctx context.Context) (*cleanup.Report, error)
}

// ReportHandler は照合レポートのHTTPハンドラー。
type ReportHandler struct {
	service ReportService
	logger  *slog.Logger
}

// NewReportHandler はReportHandlerを生成する。
func NewReportHandler(service ReportService, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		service: service,
		logger:  logger,
	}
}

// Latest は直近に完了した照合パスのレポートを返す。
// GET /api/reports/latest
func (h *ReportHandler) Latest(w http.ResponseWriter, r *http.Request) {
	report, ok := h.service.Latest()
	if !ok {
		middleware.WriteErrorResponse(w, http.StatusNotFound, model.NewReportNotFoundError())
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// Run は照合パスを即時実行し、そのレポートを返す。
// POST /api/reports/run
func (h *ReportHandler) Run(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.RunOnce(r.Context())
	if err != nil {
		h.handleRunError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, report)
}

// handleRunError は照合パスのエラーを適切なHTTPステータスコードに変換する。
func (h *ReportHandler) handleRunError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, cleanup.ErrPassInProgress):
		middleware.WriteErrorResponse(w, http.StatusConflict, model.NewPassAlreadyRunningError())
	case cleanup.IsDirectoryFailure(err):
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewDirectoryFailedError(err.Error()))
	default:
		h.logger.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
	}
}
