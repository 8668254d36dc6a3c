package server

import (
	"context"
	"embed"
	stderrors "errors"
	"fmt"
	"html/template"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"jobapplicator/internal/common"
	"jobapplicator/internal/errors"
	"jobapplicator/internal/formatters"
	"jobapplicator/internal/types"
	"jobapplicator/internal/utils"

	"go.opentelemetry.io/otel/attribute"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

const (
	defaultUIDomains    = "greenhouse.io, lever.co, workday.com"
	defaultUIExperience = 3
	maxMultipartMemory  = 8 << 20
	noApplicationsMsg   = "No applications processed"
	missingFieldsMsg    = "Please fill in all required fields"
)

// runForm mirrors the fields of the HTML form.
type runForm struct {
	Name       string
	Email      string
	Phone      string
	Title      string
	Location   string
	Experience int
	Keywords   string
	Domains    string
}

type pageData struct {
	Version      string
	Form         runForm
	AuthRequired bool
	Result       *common.RunResult
	ExportURL    string
	Error        string
}

// indexHandler serves the run form
func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, pageData{
		Form: runForm{Experience: defaultUIExperience, Domains: defaultUIDomains},
	})
}

// runHandler triggers one run from the HTML form or a JSON payload
func (s *Server) runHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.Observability.Tracer("jobapplicator.api").Start(r.Context(), "api.run")
	defer span.End()

	api := isJSONRequest(r)
	span.SetAttributes(attribute.Bool("request.json", api))

	var req types.RunRequest
	var form runForm
	if api {
		if err := parseJSONRequest(r, &req); err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			writeErrorResponse(w, "Invalid request body", err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		parsed, parsedForm, cleanup, err := s.parseRunForm(r)
		if cleanup != nil {
			defer cleanup()
		}
		form = parsedForm
		if err != nil {
			span.RecordError(err)
			span.SetAttributes(attribute.String("error.type", "validation"))
			s.render(w, http.StatusBadRequest, pageData{Form: form, Error: err.Error()})
			return
		}
		req = parsed
	}

	common.ApplyRunDefaults(&req, s.defaultOutputDir())
	if err := common.ValidateRunRequest(&req); err != nil {
		span.RecordError(err)
		span.SetAttributes(attribute.String("error.type", "validation"))
		s.respondError(w, api, form, "Invalid run request", err.Error(), http.StatusBadRequest)
		return
	}

	span.SetAttributes(
		attribute.StringSlice("run.domains", req.Domains),
		attribute.String("run.title", req.Criteria.Title),
	)

	if s.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.RunTimeout)
		defer cancel()
	}

	result, err := s.Runner.Run(ctx, req)
	status, message := http.StatusOK, ""
	switch {
	case err == nil:
	case errors.IsType(err, errors.ErrorTypeSource):
		// Nothing to apply to is a normal, empty result
		message = noApplicationsMsg
		s.Logger.Info("Run found no listings", "error", err.Error())
	case errors.IsType(err, errors.ErrorTypeValidation):
		s.respondError(w, api, form, "Invalid run request", err.Error(), http.StatusBadRequest)
		return
	case result != nil && len(result.Outcomes) > 0:
		// Interrupted run: show what was recorded
		message = fmt.Sprintf("Run stopped early: %v", err)
		s.Logger.Warn("Run ended early", "error", err.Error(), "outcomes", len(result.Outcomes))
	default:
		span.RecordError(err)
		s.Logger.LogError(err, "Run failed")
		s.respondError(w, api, form, "Run failed", err.Error(), http.StatusInternalServerError)
		return
	}

	if result == nil {
		result = &common.RunResult{Outcomes: []types.ApplicationOutcome{}}
	}
	if len(result.Outcomes) == 0 && message == "" {
		message = noApplicationsMsg
	}

	exportURL := ""
	if len(result.Outcomes) > 0 {
		s.Runs.Put(result)
		exportURL = "/runs/" + result.Summary.RunID + "/export.csv"
	}

	span.SetAttributes(
		attribute.String("run.id", result.Summary.RunID),
		attribute.Int("run.outcomes", len(result.Outcomes)),
	)

	if api {
		outcomes := result.Outcomes
		if outcomes == nil {
			outcomes = []types.ApplicationOutcome{}
		}
		writeJSON(w, status, RunResponse{
			Summary:   result.Summary,
			Outcomes:  outcomes,
			ExportURL: exportURL,
			Message:   message,
		})
		return
	}

	data := pageData{Form: form, Result: result, ExportURL: exportURL}
	if message != noApplicationsMsg {
		data.Error = message
	}
	s.render(w, status, data)
}

// exportHandler downloads the outcome table of a stored run
func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	result, ok := s.Runs.Get(id)
	if !ok {
		writeErrorResponse(w, "Run not found", fmt.Sprintf("no stored run with id %q", id), http.StatusNotFound)
		return
	}

	prefix := "successful_applications"
	if s.AppConfig != nil && s.AppConfig.Tracker.FilePrefix != "" {
		prefix = s.AppConfig.Tracker.FilePrefix
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": fmt.Sprintf("%s_%s.csv", prefix, id),
	}))
	if err := formatters.WriteOutcomesCSV(w, result.Outcomes); err != nil {
		s.Logger.LogError(err, "Failed to write CSV export", "run_id", id)
	}
}

// parseRunForm reads the HTML form and stores the uploaded resume in a
// temporary directory that the returned cleanup removes.
func (s *Server) parseRunForm(r *http.Request) (types.RunRequest, runForm, func(), error) {
	var req types.RunRequest

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		if !stderrors.Is(err, http.ErrNotMultipart) {
			return req, runForm{}, nil, formReadError(err)
		}
		if err := r.ParseForm(); err != nil {
			return req, runForm{}, nil, formReadError(err)
		}
	}

	form := runForm{
		Name:     strings.TrimSpace(r.FormValue("name")),
		Email:    strings.TrimSpace(r.FormValue("email")),
		Phone:    strings.TrimSpace(r.FormValue("phone")),
		Title:    strings.TrimSpace(r.FormValue("title")),
		Location: strings.TrimSpace(r.FormValue("location")),
		Keywords: strings.TrimSpace(r.FormValue("keywords")),
		Domains:  strings.TrimSpace(r.FormValue("domains")),
	}

	if raw := strings.TrimSpace(r.FormValue("experience")); raw != "" {
		years, err := strconv.Atoi(raw)
		if err != nil || years < 0 {
			return req, form, nil, fmt.Errorf("years of experience must be a whole number, got %q", raw)
		}
		form.Experience = years
	}

	domains := common.SplitDomains(form.Domains)
	if form.Name == "" || form.Email == "" || form.Phone == "" || form.Title == "" || form.Location == "" || len(domains) == 0 {
		return req, form, nil, stderrors.New(missingFieldsMsg)
	}

	resumePath, cleanup, err := saveResume(r)
	if err != nil {
		return req, form, cleanup, err
	}

	req = types.RunRequest{
		Profile: types.UserProfile{
			Name:            form.Name,
			Email:           form.Email,
			Phone:           form.Phone,
			ResumePath:      resumePath,
			YearsExperience: form.Experience,
		},
		Criteria: types.SearchCriteria{
			Title:      form.Title,
			Location:   form.Location,
			Experience: form.Experience,
			Keywords:   common.SplitDomains(form.Keywords),
		},
		Domains: domains,
	}
	return req, form, cleanup, nil
}

// saveResume copies the uploaded resume to a temporary file.
func saveResume(r *http.Request) (string, func(), error) {
	file, header, err := r.FormFile("resume")
	if err != nil {
		if stderrors.Is(err, http.ErrMissingFile) {
			return "", nil, stderrors.New(missingFieldsMsg)
		}
		return "", nil, formReadError(err)
	}
	defer func() { _ = file.Close() }()

	name := filepath.Base(header.Filename)
	if !utils.IsResumeFile(name) {
		return "", nil, fmt.Errorf("resume %q must be a PDF, Word, RTF, ODT or text document", name)
	}

	dir, err := os.MkdirTemp("", "jobapplicator-resume-*")
	if err != nil {
		return "", nil, fmt.Errorf("failed to store resume: %w", err)
	}
	cleanup := func() { _ = os.RemoveAll(dir) }

	path := filepath.Join(dir, name)
	out, err := os.Create(path)
	if err != nil {
		return "", cleanup, fmt.Errorf("failed to store resume: %w", err)
	}
	if _, err := io.Copy(out, file); err != nil {
		_ = out.Close()
		return "", cleanup, fmt.Errorf("failed to store resume: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", cleanup, fmt.Errorf("failed to store resume: %w", err)
	}
	return path, cleanup, nil
}

func formReadError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if stderrors.As(err, &maxBytesErr) {
		return fmt.Errorf("request body too large (limit is %d bytes)", maxBytesErr.Limit)
	}
	return fmt.Errorf("failed to read form: %w", err)
}

// respondError answers API clients with JSON and browsers with the form page.
func (s *Server) respondError(w http.ResponseWriter, api bool, form runForm, title, message string, status int) {
	if api {
		writeErrorResponse(w, title, message, status)
		return
	}
	s.render(w, status, pageData{Form: form, Error: fmt.Sprintf("%s: %s", title, message)})
}

func (s *Server) render(w http.ResponseWriter, status int, data pageData) {
	data.Version = s.Version
	data.AuthRequired = len(s.APIKeys) > 0

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pages.ExecuteTemplate(w, "index", data); err != nil {
		s.Logger.LogError(err, "Failed to render page")
	}
}

func (s *Server) defaultOutputDir() string {
	if s.AppConfig == nil {
		return ""
	}
	return s.AppConfig.Tracker.OutputDir
}
