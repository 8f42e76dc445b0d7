package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
	"github.com/kirillkom/pdf-rag-assistant/internal/observability/metrics"
)

type Options struct {
	Service string

	// RateLimitRPS <= 0 disables the rate limiter; MaxConcurrent <= 0
	// disables the backpressure gate.
	RateLimitRPS     float64
	RateLimitBurst   int
	MaxConcurrent    int
	BackpressureWait time.Duration

	Metrics *metrics.HTTPServerMetrics
}

type Router struct {
	ingest  ports.DocumentIngestor
	query   ports.CorpusQueryService
	reader  ports.DocumentReader
	options Options
}

func NewRouter(
	ingest ports.DocumentIngestor,
	query ports.CorpusQueryService,
	reader ports.DocumentReader,
	options Options,
) *Router {
	if options.Service == "" {
		options.Service = "api"
	}
	return &Router{
		ingest:  ingest,
		query:   query,
		reader:  reader,
		options: options,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/{id}", rt.getDocumentByID)
	mux.HandleFunc("GET /v1/documents/{id}/markdown", rt.getDocumentMarkdown)
	mux.HandleFunc("GET /v1/documents/{id}/pages/{page}/images", rt.getPageImages)
	mux.HandleFunc("POST /v1/rag/query", rt.queryRAG)
	mux.HandleFunc("POST /v1/rag/context", rt.contextRAG)
	mux.HandleFunc("GET /v1/stats", rt.stats)

	var handler http.Handler = mux
	handler = newOpenAPIValidator()(handler)
	if rt.options.MaxConcurrent > 0 {
		handler = backpressureMiddleware(handler, rt.options.MaxConcurrent, rt.options.BackpressureWait)
	}
	if rt.options.RateLimitRPS > 0 {
		handler = rateLimitMiddleware(handler, rt.options.RateLimitRPS, rt.options.RateLimitBurst)
	}
	if rt.options.Metrics != nil {
		handler = rt.options.Metrics.Middleware(rt.options.Service, handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.ingest.Upload(
		r.Context(),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, _ = strconv.Atoi(raw)
	}
	docs, err := rt.reader.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.reader.GetByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) getDocumentMarkdown(w http.ResponseWriter, r *http.Request) {
	md, err := rt.reader.Markdown(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}

func (rt *Router) getPageImages(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.PathValue("page"))
	if err != nil || page < 1 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page must be a positive integer"})
		return
	}

	images, err := rt.reader.PageImages(r.Context(), r.PathValue("id"), page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if images == nil {
		images = []domain.ImageDescriptor{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"images": images})
}

type ragRequest struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k"`
}

func (rt *Router) decodeRAGRequest(w http.ResponseWriter, r *http.Request) (ragRequest, bool) {
	var req ragRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, false
	}
	if strings.TrimSpace(req.Question) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "question is required"})
		return req, false
	}
	return req, true
}

func (rt *Router) queryRAG(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeRAGRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	answer, err := rt.query.Ask(r.Context(), req.Question, req.TopK)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordRetrieval("query", answer.Sources, time.Since(start))

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) contextRAG(w http.ResponseWriter, r *http.Request) {
	req, ok := rt.decodeRAGRequest(w, r)
	if !ok {
		return
	}

	start := time.Now()
	bundle, err := rt.query.AnswerContext(r.Context(), req.Question, req.TopK)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rt.recordRetrieval("context", bundle.Sources, time.Since(start))

	writeJSON(w, http.StatusOK, bundle)
}

func (rt *Router) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := rt.reader.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (rt *Router) recordRetrieval(endpoint string, sources []domain.SourceBlock, duration time.Duration) {
	if rt.options.Metrics == nil {
		return
	}
	imageCount := 0
	for _, src := range sources {
		imageCount += len(src.Images)
	}
	rt.options.Metrics.RecordRetrieval(rt.options.Service, endpoint, len(sources), imageCount, duration)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
