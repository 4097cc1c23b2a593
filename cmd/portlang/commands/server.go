package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/victortavares4/dsl-investments/internal/engine"
	"github.com/victortavares4/dsl-investments/internal/store"
	"github.com/victortavares4/dsl-investments/pkg/export"
	"github.com/victortavares4/dsl-investments/pkg/observability"
	"github.com/victortavares4/dsl-investments/pkg/portlang"
	"github.com/victortavares4/dsl-investments/pkg/portlang/printer"
	"github.com/victortavares4/dsl-investments/pkg/report"
	"github.com/victortavares4/dsl-investments/pkg/version"
)

const (
	serverShutdownTimeout    = 10 * time.Second
	serverReadHeaderTimeout  = 5 * time.Second
	defaultRunsLimit         = 50
	contentTypeJSON          = "application/json"
	defaultServerDocumentRef = "request.port"
)

// Sentinel errors for API request validation.
var (
	ErrEmptySource  = errors.New("source is required and must not be empty")
	ErrInvalidQuery = errors.New("invalid query parameter")
)

// DocumentRequest is the body of the document endpoints.
type DocumentRequest struct {
	Name   string `json:"name,omitempty"`
	Source string `json:"source"`
	Format string `json:"format,omitempty"`
}

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error       string                `json:"error"`
	Diagnostics []portlang.Diagnostic `json:"diagnostics,omitempty"`
}

var exportContentTypes = map[export.Format]string{
	export.FormatJSON:    contentTypeJSON,
	export.FormatCompact: contentTypeJSON,
	export.FormatYAML:    "application/yaml",
	export.FormatTOML:    "application/toml",
	export.FormatBinary:  "application/octet-stream",
}

var reportContentTypes = map[report.Format]string{
	report.FormatText:     "text/plain; charset=utf-8",
	report.FormatMarkdown: "text/markdown; charset=utf-8",
	report.FormatHTML:     "text/html; charset=utf-8",
}

func newServerCommand(g *Globals) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Start the portlang HTTP API",
		Long: `Start an HTTP server exposing portlang over JSON:

  POST /api/check        validate a document and list diagnostics
  POST /api/export       export a valid document (?format=json|compact|yaml|toml|binary)
  POST /api/report       render a report (?format=text|markdown|html)
  POST /api/format       canonical form of a document
  GET  /api/runs         recorded runs (?limit, document, outcome, since)
  GET  /api/runs/{id}    one recorded run
  GET  /healthz, /readyz liveness and readiness
  GET  /metrics          Prometheus metrics`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := openSession(g, sessionOptions{mode: observability.ModeServe, withStore: true, prometheus: true})
			if err != nil {
				return err
			}
			defer closeSession(sess)

			if host != "" {
				sess.cfg.Server.Host = host
			}

			if port != 0 {
				sess.cfg.Server.Port = port
			}

			red, err := observability.NewREDMetrics(sess.providers.Meter)
			if err != nil {
				return err
			}

			api := &apiServer{
				runner:  sess.runner,
				store:   sess.store,
				logger:  sess.logger,
				maxBody: sess.cfg.Server.MaxBodyBytes,
			}

			srv := &http.Server{
				Addr:              sess.cfg.Server.Addr(),
				Handler:           newServerMux(api, sess.providers.Tracer, red, sess.providers.MetricsHandler),
				ReadTimeout:       sess.cfg.Server.ReadTimeout,
				ReadHeaderTimeout: serverReadHeaderTimeout,
				WriteTimeout:      sess.cfg.Server.WriteTimeout,
				IdleTimeout:       sess.cfg.Server.IdleTimeout,
			}

			return serve(cmd.Context(), srv, sess.logger)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "address to bind (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides server.port)")

	return cmd
}

// serve runs srv until ctx is canceled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *slog.Logger) error {
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("portlang server starting", "addr", "http://"+srv.Addr)

		err := srv.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return fmt.Errorf("listen: %w", err)
	})

	group.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownTimeout)
		defer cancel()

		logger.Info("portlang server stopping")

		err := srv.Shutdown(shutdownCtx)
		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}

		return nil
	})

	return group.Wait()
}

// newServerMux creates the HTTP mux with all routes wrapped in the tracing
// and RED metrics middleware. A nil metrics handler leaves /metrics unrouted.
func newServerMux(api *apiServer, tracer trace.Tracer, red *observability.REDMetrics, metrics http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/check", api.handleCheck)
	mux.HandleFunc("POST /api/export", api.handleExport)
	mux.HandleFunc("POST /api/report", api.handleReport)
	mux.HandleFunc("POST /api/format", api.handleFormat)
	mux.HandleFunc("GET /api/runs", api.handleRuns)
	mux.HandleFunc("GET /api/runs/{id}", api.handleRun)
	mux.Handle("GET /healthz", observability.HealthHandler(version.Version))
	mux.Handle("GET /readyz", observability.ReadyHandler(api.ready))

	if metrics != nil {
		mux.Handle("GET /metrics", metrics)
	}

	return observability.HTTPMiddleware(tracer, red, mux)
}

type apiServer struct {
	runner  *engine.Runner
	store   store.Store
	logger  *slog.Logger
	maxBody int64
}

func (a *apiServer) ready(ctx context.Context) error {
	if a.store == nil {
		return nil
	}

	return a.store.Ping(ctx)
}

func (a *apiServer) handleCheck(rw http.ResponseWriter, hr *http.Request) {
	out, ok := a.compileRequest(rw, hr, nil)
	if !ok {
		return
	}

	writeJSONResponse(hr.Context(), rw, http.StatusOK, newCheckResult(out))
}

func (a *apiServer) handleExport(rw http.ResponseWriter, hr *http.Request) {
	var req DocumentRequest

	out, ok := a.compileRequest(rw, hr, &req)
	if !ok {
		return
	}

	format, err := export.ParseFormat(requestFormat(hr, req, string(export.FormatJSON)))
	if err != nil {
		writeError(hr.Context(), rw, http.StatusBadRequest, err, nil)

		return
	}

	doc, ok := a.document(rw, hr, out)
	if !ok {
		return
	}

	data, err := export.Marshal(doc, format)
	if err != nil {
		writeError(hr.Context(), rw, http.StatusInternalServerError, err, nil)

		return
	}

	writeBody(hr.Context(), rw, exportContentTypes[format], data)
}

func (a *apiServer) handleReport(rw http.ResponseWriter, hr *http.Request) {
	var req DocumentRequest

	out, ok := a.compileRequest(rw, hr, &req)
	if !ok {
		return
	}

	format, err := report.ParseFormat(requestFormat(hr, req, string(report.FormatHTML)))
	if err != nil {
		writeError(hr.Context(), rw, http.StatusBadRequest, err, nil)

		return
	}

	doc, ok := a.document(rw, hr, out)
	if !ok {
		return
	}

	var buf bytes.Buffer

	err = report.Render(&buf, doc, format, report.Options{})
	if err != nil {
		writeError(hr.Context(), rw, http.StatusInternalServerError, err, nil)

		return
	}

	writeBody(hr.Context(), rw, reportContentTypes[format], buf.Bytes())
}

func (a *apiServer) handleFormat(rw http.ResponseWriter, hr *http.Request) {
	var req DocumentRequest

	if !a.decode(rw, hr, &req) {
		return
	}

	formatted, err := printer.Format(req.Source)
	if err != nil {
		writeError(hr.Context(), rw, http.StatusUnprocessableEntity, portlang.ErrBlocked,
			[]portlang.Diagnostic{portlang.FatalDiagnostic(err)})

		return
	}

	writeBody(hr.Context(), rw, "text/plain; charset=utf-8", formatted)
}

func (a *apiServer) handleRuns(rw http.ResponseWriter, hr *http.Request) {
	if a.store == nil {
		writeError(hr.Context(), rw, http.StatusServiceUnavailable, ErrHistoryDisabled, nil)

		return
	}

	filter, err := runsFilter(hr)
	if err != nil {
		writeError(hr.Context(), rw, http.StatusBadRequest, err, nil)

		return
	}

	runs, err := a.store.List(hr.Context(), filter)
	if err != nil {
		writeError(hr.Context(), rw, http.StatusInternalServerError, err, nil)

		return
	}

	if runs == nil {
		runs = []*store.Run{}
	}

	writeJSONResponse(hr.Context(), rw, http.StatusOK, runs)
}

func (a *apiServer) handleRun(rw http.ResponseWriter, hr *http.Request) {
	if a.store == nil {
		writeError(hr.Context(), rw, http.StatusServiceUnavailable, ErrHistoryDisabled, nil)

		return
	}

	run, err := a.store.Get(hr.Context(), hr.PathValue("id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(hr.Context(), rw, http.StatusNotFound, err, nil)

		return
	}

	if err != nil {
		writeError(hr.Context(), rw, http.StatusInternalServerError, err, nil)

		return
	}

	writeJSONResponse(hr.Context(), rw, http.StatusOK, run)
}

// decode reads a DocumentRequest, answering 400 or 413 itself on failure.
func (a *apiServer) decode(rw http.ResponseWriter, hr *http.Request, req *DocumentRequest) bool {
	body := http.MaxBytesReader(rw, hr.Body, a.maxBody)

	err := json.NewDecoder(body).Decode(req)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(hr.Context(), rw, http.StatusRequestEntityTooLarge, err, nil)

			return false
		}

		writeError(hr.Context(), rw, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err), nil)

		return false
	}

	if req.Source == "" {
		writeError(hr.Context(), rw, http.StatusBadRequest, ErrEmptySource, nil)

		return false
	}

	return true
}

// compileRequest decodes the body into req (a scratch value when nil) and
// compiles it. Run recording failures are logged, not returned.
func (a *apiServer) compileRequest(rw http.ResponseWriter, hr *http.Request, req *DocumentRequest) (*engine.Outcome, bool) {
	if req == nil {
		req = &DocumentRequest{}
	}

	if !a.decode(rw, hr, req) {
		return nil, false
	}

	name := req.Name
	if name == "" {
		name = defaultServerDocumentRef
	}

	out, err := a.runner.Compile(hr.Context(), name, req.Source)
	if errors.Is(err, engine.ErrSourceTooLarge) {
		writeError(hr.Context(), rw, http.StatusRequestEntityTooLarge, err, nil)

		return nil, false
	}

	if err != nil && out == nil {
		writeError(hr.Context(), rw, http.StatusInternalServerError, err, nil)

		return nil, false
	}

	if err != nil {
		a.logger.WarnContext(hr.Context(), "run not recorded", "error", err)
	}

	return out, true
}

// document converts a compiled outcome, answering 422 with the diagnostics
// when the document is blocked.
func (a *apiServer) document(rw http.ResponseWriter, hr *http.Request, out *engine.Outcome) (*export.Document, bool) {
	if out.Blocked() {
		writeError(hr.Context(), rw, http.StatusUnprocessableEntity, portlang.ErrBlocked, out.Diagnostics)

		return nil, false
	}

	th := a.runner.Thresholds()

	doc, err := out.Document(export.Meta{Thresholds: &th})
	if err != nil {
		writeError(hr.Context(), rw, http.StatusInternalServerError, err, nil)

		return nil, false
	}

	return doc, true
}

// requestFormat prefers the ?format= query parameter over the body field.
func requestFormat(hr *http.Request, req DocumentRequest, fallback string) string {
	if f := hr.URL.Query().Get("format"); f != "" {
		return f
	}

	if req.Format != "" {
		return req.Format
	}

	return fallback
}

func runsFilter(hr *http.Request) (store.Filter, error) {
	q := hr.URL.Query()

	filter := store.Filter{
		Document: q.Get("document"),
		Outcome:  q.Get("outcome"),
		Limit:    defaultRunsLimit,
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			return store.Filter{}, fmt.Errorf("%w: limit=%q", ErrInvalidQuery, raw)
		}

		filter.Limit = limit
	}

	if raw := q.Get("since"); raw != "" {
		since, err := time.ParseDuration(raw)
		if err != nil {
			return store.Filter{}, fmt.Errorf("%w: since=%q", ErrInvalidQuery, raw)
		}

		filter.Since = time.Now().Add(-since)
	}

	return filter, nil
}

// writeJSONResponse encodes value as JSON with the given status.
func writeJSONResponse(ctx context.Context, rw http.ResponseWriter, status int, value any) {
	rw.Header().Set("Content-Type", contentTypeJSON)
	rw.WriteHeader(status)

	encodeErr := json.NewEncoder(rw).Encode(value)
	if encodeErr != nil {
		slog.Default().ErrorContext(ctx, "failed to encode JSON response", "error", encodeErr)
	}
}

func writeError(ctx context.Context, rw http.ResponseWriter, status int, err error, diags []portlang.Diagnostic) {
	writeJSONResponse(ctx, rw, status, ErrorResponse{Error: err.Error(), Diagnostics: diags})
}

func writeBody(ctx context.Context, rw http.ResponseWriter, contentType string, data []byte) {
	rw.Header().Set("Content-Type", contentType)
	rw.WriteHeader(http.StatusOK)

	_, err := rw.Write(data)
	if err != nil {
		slog.Default().ErrorContext(ctx, "failed to write response", "error", err)
	}
}
