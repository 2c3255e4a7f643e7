package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"coldrig-monitor/internal/auth"
	"coldrig-monitor/internal/monitoring/application"
	monitoring "coldrig-monitor/internal/monitoring/domain"
	"coldrig-monitor/internal/observability/metrics"
	"coldrig-monitor/internal/report"
	rules "coldrig-monitor/internal/rules/domain"
)

const timeLayout = time.RFC3339

// SourceOpener builds a record source for a file-replay session. Sessions
// created without a data file run in push mode and receive records through
// the ingest endpoint.
type SourceOpener func(dataFile, workstationID string) (monitoring.RecordSource, error)

// Handler provides the monitoring session HTTP endpoints.
type Handler struct {
	registry   *application.Registry
	rules      []rules.Rule
	openSource SourceOpener
}

// NewHandler constructs a handler.
func NewHandler(registry *application.Registry, ruleSet []rules.Rule, openSource SourceOpener) (*Handler, error) {
	if registry == nil {
		return nil, errors.New("sessions handler: nil registry")
	}
	return &Handler{registry: registry, rules: ruleSet, openSource: openSource}, nil
}

// ServeHTTP handles /api/v1/sessions and subroutes.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/api/v1/sessions":
		switch r.Method {
		case http.MethodGet:
			h.handleList(w, r)
		case http.MethodPost:
			h.handleStart(w, r)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	case strings.HasPrefix(r.URL.Path, "/api/v1/sessions/"):
		h.handleSession(w, r)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type startRequest struct {
	WorkstationID string `json:"workstation_id"`
	DataFile      string `json:"data_file"`
	RecentAlarms  int    `json:"recent_alarms"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.WorkstationID == "" {
		http.Error(w, "workstation_id is required", http.StatusBadRequest)
		return
	}

	var source monitoring.RecordSource
	if req.DataFile != "" {
		if h.openSource == nil {
			http.Error(w, "file replay not configured", http.StatusBadRequest)
			return
		}
		opened, err := h.openSource(req.DataFile, req.WorkstationID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		source = opened
	}

	id, err := h.registry.StartSession(application.StartConfig{
		WorkstationID: req.WorkstationID,
		Rules:         h.rules,
		Source:        source,
		RecentAlarms:  req.RecentAlarms,
	})
	if err != nil {
		var cfgErr *rules.ConfigError
		if errors.As(err, &cfgErr) {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(startResponse{SessionID: id})
}

func (h *Handler) handleList(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.registry.List())
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sessions/")
	parts := strings.Split(rest, "/")

	id := parts[0]
	if id == "" {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleStatus(w, r, id)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		h.handleRemove(w, r, id)
	case len(parts) == 2 && parts[1] == "stop" && r.Method == http.MethodPost:
		h.handleStop(w, r, id)
	case len(parts) == 2 && parts[1] == "alarms" && r.Method == http.MethodGet:
		h.handleAlarms(w, r, id)
	case len(parts) == 2 && parts[1] == "ingest" && r.Method == http.MethodPost:
		h.handleIngest(w, r, id)
	case len(parts) == 2 && parts[1] == "report" && r.Method == http.MethodGet:
		h.handleReport(w, r, id)
	case len(parts) == 4 && parts[1] == "alarms" && r.Method == http.MethodPost:
		h.handleAlarmAction(w, r, id, parts[2], parts[3])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleStatus(w http.ResponseWriter, _ *http.Request, id string) {
	snapshot, err := h.registry.Status(id)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

func (h *Handler) handleStop(w http.ResponseWriter, _ *http.Request, id string) {
	stopped, err := h.registry.StopSession(id)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]bool{"stopped": stopped})
}

func (h *Handler) handleRemove(w http.ResponseWriter, _ *http.Request, id string) {
	if err := h.registry.RemoveSession(id); err != nil {
		respondRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleAlarms(w http.ResponseWriter, r *http.Request, id string) {
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(timeLayout, raw)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	alarms, err := h.registry.Alarms(id, since)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(alarms)
}

type ingestRequest struct {
	Timestamp time.Time          `json:"ts"`
	Values    map[string]float64 `json:"values"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.registry.Get(id)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Timestamp.IsZero() || len(req.Values) == 0 {
		http.Error(w, "ts and values are required", http.StatusBadRequest)
		return
	}
	rec := monitoring.Record{
		Timestamp:     req.Timestamp,
		WorkstationID: session.WorkstationID(),
		Values:        req.Values,
		FilePos:       -1,
	}
	if err := session.Ingest(rec); err != nil {
		respondRegistryError(w, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request, id string) {
	session, err := h.registry.Get(id)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}

	snapshot := session.Status()
	alarms := session.Alarms(time.Time{})

	started := time.Now()
	var payload []byte
	var contentType, filename string
	switch format {
	case "pdf":
		payload, err = report.BuildSessionPDF(snapshot, alarms)
		contentType = "application/pdf"
		filename = "session-" + id + ".pdf"
	case "xlsx":
		payload, err = report.BuildSessionXLSX(snapshot, alarms)
		contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
		filename = "session-" + id + ".xlsx"
	default:
		http.Error(w, "format must be pdf or xlsx", http.StatusBadRequest)
		return
	}
	if err != nil {
		metrics.ObserveReportExport(format, metrics.ResultError, time.Since(started))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	metrics.ObserveReportExport(format, metrics.ResultSuccess, time.Since(started))

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	_, _ = w.Write(payload)
}

type alarmActionRequest struct {
	User string `json:"user"`
}

func (h *Handler) handleAlarmAction(w http.ResponseWriter, r *http.Request, id, alarmID, action string) {
	session, err := h.registry.Get(id)
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	var req alarmActionRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	user := req.User
	if user == "" {
		user = auth.SubjectFromContext(r.Context())
	}

	var alarm *monitoring.AlarmEvent
	switch action {
	case "ack":
		alarm, err = session.AckAlarm(alarmID, user)
	case "resolve":
		alarm, err = session.ResolveAlarm(alarmID, user)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		respondRegistryError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(alarm)
}

func respondRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, application.ErrSessionNotFound), errors.Is(err, application.ErrAlarmNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, application.ErrInvalidState):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
