package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"policyguard/internal/bootstrap/logging"
	domaincompliance "policyguard/internal/domain/compliance"
	"policyguard/internal/errs"
	"policyguard/internal/usecase/compliance"
)

const defaultMaxUploadBytes = 32 << 20

type complianceAPI interface {
	Scan(ctx context.Context, input compliance.ScanInput) (compliance.ScanResult, error)
	History(ctx context.Context, limit int) ([]compliance.ScanHistoryItem, error)
	ListViolations(ctx context.Context, limit int, scanID *uint64) ([]compliance.ViolationItem, error)
	Dashboard(ctx context.Context, scanID *uint64) (compliance.Dashboard, error)
	RiskAnalysis(ctx context.Context, scanID *uint64) (compliance.RiskAnalysis, error)
	BuildReport(ctx context.Context, scanID *uint64) (compliance.Report, error)
	SystemStatus(ctx context.Context) (compliance.SystemStatus, error)
	UpdateSystemConfig(ctx context.Context, update domaincompliance.SystemConfigUpdate) (domaincompliance.SystemConfig, error)
	SuggestRemediation(ctx context.Context, violationID uint64) (compliance.Remediation, error)
}

type apiOptions struct {
	MaxUploadBytes int64
}

type apiHandler struct {
	svc     complianceAPI
	options apiOptions
}

type apiErrorResponse struct {
	Error string `json:"error"`
}

type systemPatchRequest struct {
	AutoScanEnabled     *bool `json:"auto_scan_enabled"`
	ScanIntervalMinutes *int  `json:"scan_interval_minutes"`
}

func newAPIHandler(svc complianceAPI, options apiOptions) http.Handler {
	if options.MaxUploadBytes <= 0 {
		options.MaxUploadBytes = defaultMaxUploadBytes
	}
	h := &apiHandler{svc: svc, options: options}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/", h.handleIndex)
	r.Post("/scan", h.handleScan)
	r.Get("/history", h.handleHistory)
	r.Get("/dashboard", h.handleDashboard)
	r.Get("/dashboard/violations", h.handleViolations)
	r.Get("/risk", h.handleRisk)
	r.Post("/reports", h.handleReport)
	r.Get("/system", h.handleSystemGet)
	r.Patch("/system", h.handleSystemPatch)
	r.Get("/violations/{id}/remediation", h.handleRemediation)
	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ctx := logging.WithAttrs(
			r.Context(),
			slog.String("component", "cmd.serve"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		next.ServeHTTP(ww, r.WithContext(ctx))

		logging.Info(ctx, "http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", ww.Status()),
			slog.Duration("elapsed", time.Since(started)),
		)
	})
}

func (h *apiHandler) handleIndex(w http.ResponseWriter, _ *http.Request) {
	writeAPIJSON(w, http.StatusOK, map[string]string{"service": "policyguard", "status": "ok"})
}

func (h *apiHandler) handleScan(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.options.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.options.MaxUploadBytes); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	policyFile, policyHeader, err := r.FormFile("policy")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "policy file is required")
		return
	}
	defer policyFile.Close()
	policy, err := io.ReadAll(policyFile)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, "failed to read policy file")
		return
	}

	input := compliance.ScanInput{
		PolicyFileName: policyHeader.Filename,
		PolicyContent:  policy,
		DatabaseURI:    strings.TrimSpace(r.FormValue("db_uri")),
		Severity:       strings.TrimSpace(r.FormValue("severity")),
	}

	dataFile, dataHeader, err := r.FormFile("data")
	switch {
	case err == nil:
		defer dataFile.Close()
		input.DataFileName = dataHeader.Filename
		input.DataFile = dataFile
	case errors.Is(err, http.ErrMissingFile):
	default:
		writeAPIError(w, http.StatusBadRequest, "failed to read data file")
		return
	}

	result, err := h.svc.Scan(r.Context(), input)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, newScanResultView(result))
}

func (h *apiHandler) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.History(r.Context(), limit)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, items)
}

func (h *apiHandler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	scanID, err := queryScanID(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	dashboard, err := h.svc.Dashboard(r.Context(), scanID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, dashboard)
}

func (h *apiHandler) handleViolations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit")
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	scanID, err := queryScanID(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, err := h.svc.ListViolations(r.Context(), limit, scanID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, items)
}

func (h *apiHandler) handleRisk(w http.ResponseWriter, r *http.Request) {
	scanID, err := queryScanID(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	analysis, err := h.svc.RiskAnalysis(r.Context(), scanID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, analysis)
}

func (h *apiHandler) handleReport(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("format")
	if raw == "" {
		raw = formatJSON
	}
	format, err := parseOutputFormat(raw, formatJSON, formatYAML)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}
	scanID, err := queryScanID(r)
	if err != nil {
		writeAPIError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.svc.BuildReport(r.Context(), scanID)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}

	contentType := "application/json"
	if format == formatYAML {
		contentType = "application/yaml"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="compliance_report.%s"`, format))
	w.WriteHeader(http.StatusOK)
	if err := writeStructured(w, format, report); err != nil {
		logging.Error(r.Context(), "write report failed", slog.Any("err", errs.Loggable(err)))
	}
}

func (h *apiHandler) handleSystemGet(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.SystemStatus(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, status)
}

func (h *apiHandler) handleSystemPatch(w http.ResponseWriter, r *http.Request) {
	var body systemPatchRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid json body: "+err.Error())
		return
	}

	if _, err := h.svc.UpdateSystemConfig(r.Context(), domaincompliance.SystemConfigUpdate{
		AutoScanEnabled:     body.AutoScanEnabled,
		ScanIntervalMinutes: body.ScanIntervalMinutes,
	}); err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	h.handleSystemGet(w, r)
}

func (h *apiHandler) handleRemediation(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		writeAPIError(w, http.StatusBadRequest, "violation id must be a positive integer")
		return
	}
	remediation, err := h.svc.SuggestRemediation(r.Context(), id)
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeAPIJSON(w, http.StatusOK, remediation)
}

// statusForError maps domain failures to HTTP status codes.
func statusForError(err error) int {
	switch {
	case errs.IsAny(err, domaincompliance.BadInputErrors...):
		return http.StatusBadRequest
	case errors.Is(err, domaincompliance.ErrNoRulesExtracted):
		return http.StatusUnprocessableEntity
	case errs.IsAny(err, domaincompliance.ErrNotFound, domaincompliance.ErrNoViolations):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		logging.Error(ctx, "request failed", slog.Any("err", errs.Loggable(err)))
		writeAPIError(w, status, "internal error")
		return
	}
	writeAPIError(w, status, err.Error())
}

func queryInt(r *http.Request, key string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", key)
	}
	return value, nil
}

func queryScanID(r *http.Request) (*uint64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("scan_id"))
	if raw == "" {
		return nil, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || value == 0 {
		return nil, errors.New("scan_id must be a positive integer")
	}
	return &value, nil
}

func writeAPIError(w http.ResponseWriter, status int, message string) {
	writeAPIJSON(w, status, apiErrorResponse{Error: message})
}

func writeAPIJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

