package httpadapter

import (
	"encoding/json"
	"errors"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/compass-docsync/internal/adapters/export"
	"github.com/kirillkom/compass-docsync/internal/adapters/view"
	"github.com/kirillkom/compass-docsync/internal/config"
	"github.com/kirillkom/compass-docsync/internal/core/domain"
	"github.com/kirillkom/compass-docsync/internal/core/ports"
	"github.com/kirillkom/compass-docsync/internal/observability/metrics"
)

const (
	serviceName = "api"

	maxUploadBytes     = 64 << 20
	multipartMemory    = 8 << 20
	backpressureWait   = 250 * time.Millisecond
	deleteAlertPrefix  = "Error deleting document: "
	exportFilename     = "documents.xlsx"
	refreshReasonRetry = "manual"
)

var errSyncNotConfigured = errors.New("synchronizer is not configured")

// Services groups what the view API reads from and drives.
type Services struct {
	Collection ports.DocumentCollection
	Sync       ports.Synchronizer
	Uploads    ports.Uploader
	Links      ports.DownloadLinker
	// Documents is consulted for ids missing from the local collection.
	Documents ports.DocumentFetcher
	Formatter *view.Formatter
	Metrics   *metrics.HTTPServerMetrics
	Logger    *slog.Logger
}

type Router struct {
	cfg        config.Config
	collection ports.DocumentCollection
	sync       ports.Synchronizer
	uploads    ports.Uploader
	links      ports.DownloadLinker
	documents  ports.DocumentFetcher
	formatter  *view.Formatter
	metrics    *metrics.HTTPServerMetrics
	logger     *slog.Logger
}

func NewRouter(cfg config.Config, services Services) *Router {
	if services.Formatter == nil {
		services.Formatter = view.DefaultFormatter()
	}
	if services.Logger == nil {
		services.Logger = slog.Default()
	}
	return &Router{
		cfg:        cfg,
		collection: services.Collection,
		sync:       services.Sync,
		uploads:    services.Uploads,
		links:      services.Links,
		documents:  services.Documents,
		formatter:  services.Formatter,
		metrics:    services.Metrics,
		logger:     services.Logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocument)
	mux.HandleFunc("DELETE /v1/documents/{id}", rt.deleteDocument)
	mux.HandleFunc("GET /v1/documents/{id}/download", rt.downloadDocument)
	mux.HandleFunc("GET /v1/upload", rt.uploadState)
	mux.HandleFunc("POST /v1/upload/dismiss", rt.dismissUpload)
	mux.HandleFunc("POST /v1/refresh", rt.refresh)
	mux.HandleFunc("GET /v1/export.xlsx", rt.exportWorkbook)
	mux.Handle("/mcp", newMCPHandler(rt))
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	var onReject func(string)
	if rt.metrics != nil {
		onReject = func(reason string) { rt.metrics.RecordRejected(serviceName, reason) }
	}

	var handler http.Handler = mux
	handler = backpressureMiddlewareWithReject(handler, rt.cfg.APIMaxInFlight, backpressureWait, onReject)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listResponse struct {
	view.ListView
	Upload *domain.UploadState `json:"upload,omitempty"`
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	filter, err := domain.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, err)
		return
	}

	resp := listResponse{
		ListView: rt.formatter.RenderList(rt.collection.Snapshot(), filter, queryBool(r, "ocr")),
	}
	if rt.uploads != nil {
		state := rt.uploads.State()
		resp.Upload = &state
	}
	writeJSON(w, http.StatusOK, resp)
}

type documentResponse struct {
	Document domain.Document `json:"document"`
	Card     view.Card       `json:"card"`
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	doc, ok := rt.collection.Find(id)
	if !ok {
		if rt.documents == nil {
			writeError(w, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New("id="+id)))
			return
		}
		fetched, err := rt.documents.GetDocument(r.Context(), id)
		if err != nil {
			writeError(w, err)
			return
		}
		doc = *fetched
	}

	writeJSON(w, http.StatusOK, documentResponse{
		Document: doc,
		Card:     rt.formatter.RenderCard(doc, queryBool(r, "ocr")),
	})
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))

	err := rt.collection.Remove(r.Context(), id)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
	case domain.IsKind(err, domain.ErrDeleteFailed):
		// The collection has already been refreshed; the alert must be acknowledged by the user.
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error": err.Error(),
			"alert": deleteAlertPrefix + deleteCause(err),
		})
	default:
		writeError(w, err)
	}
}

func (rt *Router) downloadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.links == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "downloads are not configured"})
		return
	}
	link, err := rt.links.DownloadLink(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if queryBool(r, "redirect") {
		http.Redirect(w, r, link.URL, http.StatusFound)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if rt.uploads == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": "uploads are not configured"})
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}

	files, closeFiles, err := openUploads(headers)
	defer closeFiles()
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	state, err := rt.uploads.Accept(r.Context(), files)
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]any{
			"error":  domain.UserMessage(err, err.Error()),
			"upload": state,
		})
		return
	}
	writeJSON(w, http.StatusAccepted, state)
}

func (rt *Router) uploadState(w http.ResponseWriter, _ *http.Request) {
	if rt.uploads == nil {
		writeJSON(w, http.StatusOK, domain.UploadState{Phase: domain.PhaseIdle})
		return
	}
	writeJSON(w, http.StatusOK, rt.uploads.State())
}

func (rt *Router) dismissUpload(w http.ResponseWriter, _ *http.Request) {
	if rt.uploads == nil {
		writeJSON(w, http.StatusOK, domain.UploadState{Phase: domain.PhaseIdle})
		return
	}
	writeJSON(w, http.StatusOK, rt.uploads.Dismiss())
}

func (rt *Router) refresh(w http.ResponseWriter, r *http.Request) {
	if rt.sync == nil {
		writeJSON(w, http.StatusNotImplemented, map[string]string{"error": errSyncNotConfigured.Error()})
		return
	}
	if err := rt.sync.RefreshNow(r.Context(), refreshReasonRetry); err != nil {
		// The collection keeps its documents; the error banner is part of the view.
		rt.logger.Warn("manual_refresh_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
	}
	writeJSON(w, http.StatusOK, rt.formatter.RenderList(rt.collection.Snapshot(), domain.FilterAll, false))
}

func (rt *Router) exportWorkbook(w http.ResponseWriter, r *http.Request) {
	filter, err := domain.ParseFilter(r.URL.Query().Get("filter"))
	if err != nil {
		writeError(w, err)
		return
	}

	state := rt.collection.Snapshot()
	docs := domain.FilterByType(state.Documents, filter)

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	if err := export.WriteWorkbook(w, docs, domain.CountByType(state.Documents), rt.formatter); err != nil {
		rt.logger.Error("export_failed", "request_id", requestIDFromContext(r.Context()), "error", err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordExport(serviceName, string(filter), len(docs))
	}
}

func openUploads(headers []*multipart.FileHeader) ([]domain.UploadFile, func(), error) {
	files := make([]domain.UploadFile, 0, len(headers))
	closers := make([]multipart.File, 0, len(headers))
	closeAll := func() {
		for _, f := range closers {
			_ = f.Close()
		}
	}

	for _, header := range headers {
		body, err := header.Open()
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, body)
		files = append(files, domain.UploadFile{
			Name:        header.Filename,
			Size:        header.Size,
			ContentType: header.Header.Get("Content-Type"),
			Body:        body,
		})
	}
	return files, closeAll, nil
}

// deleteCause is the innermost message of a failed delete, as a user would read it.
func deleteCause(err error) string {
	if msg := domain.UserMessage(err, ""); msg != "" {
		return msg
	}
	var statusErr interface{ HTTPStatus() int }
	if errors.As(err, &statusErr) {
		return "Request failed with status code " + strconv.Itoa(statusErr.HTTPStatus())
	}
	return "Network Error"
}

func queryBool(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
