package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	json "github.com/goccy/go-json"

	"github.com/KaramelBytes/insightloom/internal/analysis"
	"github.com/KaramelBytes/insightloom/internal/export"
	"github.com/KaramelBytes/insightloom/internal/narrate"
)

type columnPayload struct {
	Name   string `json:"name"`
	Values []any  `json:"values"`
}

// TableRequest is the body of every /v1 endpoint. Mapping, Options and Depth
// are optional; Options fields not given keep the server defaults. Depth is
// applied after Options and overrides top_k and bottom_k.
type TableRequest struct {
	Columns []columnPayload   `json:"columns"`
	Mapping map[string]string `json:"mapping,omitempty"`
	Options json.RawMessage   `json:"options,omitempty"`
	Depth   string            `json:"depth,omitempty"`
}

type profileResponse struct {
	Profiles []analysis.ColumnProfile `json:"profiles"`
	Mapping  analysis.RoleMapping     `json:"mapping"`
}

type analyzeResponse struct {
	RunID    string                    `json:"run_id"`
	Counts   map[analysis.Category]int `json:"counts"`
	Insights []export.Record           `json:"insights"`
	Result   *analysis.Result          `json:"result"`
}

type insufficientResponse struct {
	RunID      string                    `json:"run_id"`
	Validation analysis.ValidationResult `json:"validation"`
	Profiles   []analysis.ColumnProfile  `json:"profiles"`
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request) (*analysis.Table, analysis.RoleMapping, analysis.Options, *APIError) {
	opt := s.opts
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, opt, &APIError{StatusCode: http.StatusRequestEntityTooLarge, ErrorCode: CodeBadRequest, Message: err.Error()}
		}
		return nil, nil, opt, badRequest(fmt.Sprintf("read body: %v", err))
	}
	var req TableRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, nil, opt, badRequest(fmt.Sprintf("invalid JSON body: %v", err))
	}
	if len(req.Columns) == 0 {
		return nil, nil, opt, badRequest("columns must not be empty")
	}
	if len(req.Options) > 0 {
		var err error
		if opt, err = decodeOptions(req.Options, opt); err != nil {
			var ce *analysis.ConfigurationError
			if errors.As(err, &ce) {
				return nil, nil, opt, toAPIError(err)
			}
			return nil, nil, opt, badRequest(err.Error())
		}
	}
	if req.Depth != "" {
		d, err := analysis.ParseDepth(req.Depth)
		if err != nil {
			return nil, nil, opt, toAPIError(err)
		}
		opt = opt.WithDepth(d)
	}

	t := &analysis.Table{Columns: make([]analysis.Column, len(req.Columns))}
	for i, c := range req.Columns {
		t.Columns[i] = analysis.Column{Name: c.Name, Values: c.Values}
	}
	var override analysis.RoleMapping
	if len(req.Mapping) > 0 {
		override = make(analysis.RoleMapping, len(req.Mapping))
		for col, role := range req.Mapping {
			r, ok := analysis.ParseRole(role)
			if !ok {
				// left as given so validation reports it against the column
				r = analysis.Role(role)
			}
			override[col] = r
		}
	}
	return t, override, opt, nil
}

// decodeOptions overlays raw on base. Keys that name no option are reported
// as a ConfigurationError rather than silently ignored.
func decodeOptions(raw json.RawMessage, base analysis.Options) (analysis.Options, error) {
	if key, err := unknownOptionKey(raw, reflect.TypeOf(base), ""); err != nil {
		return base, fmt.Errorf("invalid options: %w", err)
	} else if key != "" {
		return base, &analysis.ConfigurationError{Option: key, Value: "(unknown option)", Rule: "known option name"}
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&base); err != nil {
		return base, fmt.Errorf("invalid options: %w", err)
	}
	return base, nil
}

// unknownOptionKey returns the dotted path of the first key in raw, in sorted
// order, that has no matching json tag in t.
func unknownOptionKey(raw json.RawMessage, t reflect.Type, prefix string) (string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return "", err
	}
	fields := map[string]reflect.Type{}
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name != "" && name != "-" {
			fields[name] = f.Type
		}
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		ft, ok := fields[k]
		if !ok {
			return prefix + k, nil
		}
		if ft.Kind() == reflect.Struct {
			if key, err := unknownOptionKey(obj[k], ft, prefix+k+"."); key != "" || err != nil {
				return key, err
			}
		}
	}
	return "", nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, endpoint string, e *APIError) {
	outcome := "bad_request"
	if e.StatusCode >= 500 {
		outcome = "error"
		s.log.ErrorContext(r.Context(), "pipeline failed", "endpoint", endpoint, "error", e.Message)
	}
	s.metrics.runs.WithLabelValues(endpoint, outcome).Inc()
	_ = render.Render(w, r, e)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	t, _, opt, apiErr := s.decode(w, r)
	if apiErr != nil {
		s.fail(w, r, "profile", apiErr)
		return
	}
	start := time.Now()
	profiles, err := analysis.Profile(t, opt)
	if err != nil {
		s.fail(w, r, "profile", toAPIError(err))
		return
	}
	s.metrics.observe("profile", "ok", time.Since(start).Seconds())
	render.JSON(w, r, profileResponse{Profiles: profiles, Mapping: analysis.DefaultMapping(profiles)})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	t, override, opt, apiErr := s.decode(w, r)
	if apiErr != nil {
		s.fail(w, r, "validate", apiErr)
		return
	}
	start := time.Now()
	profiles, err := analysis.Profile(t, opt)
	if err != nil {
		s.fail(w, r, "validate", toAPIError(err))
		return
	}
	v := analysis.Validate(profiles, override, opt)
	s.metrics.observe("validate", outcome(v.Sufficient), time.Since(start).Seconds())
	render.JSON(w, r, v)
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	t, override, opt, apiErr := s.decode(w, r)
	if apiErr != nil {
		s.fail(w, r, "analyze", apiErr)
		return
	}
	runID := middleware.GetReqID(r.Context())
	start := time.Now()
	res, err := analysis.Run(t, override, opt)
	if err != nil {
		s.fail(w, r, "analyze", toAPIError(err))
		return
	}
	elapsed := time.Since(start)
	s.metrics.observe("analyze", outcome(res.Sufficient()), elapsed.Seconds())
	s.log.InfoContext(r.Context(), "analysis finished",
		"rows", t.Rows(),
		"columns", len(t.Columns),
		"sufficient", res.Sufficient(),
		"insights", len(res.Insights),
		"duration", elapsed)

	if !res.Sufficient() {
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, insufficientResponse{RunID: runID, Validation: res.Validation, Profiles: res.Profiles})
		return
	}
	counts := res.Counts()
	s.metrics.countInsights(counts)
	narrations, _ := narrate.TemplateNarrator{}.Narrate(r.Context(), res)
	render.JSON(w, r, analyzeResponse{
		RunID:    runID,
		Counts:   counts,
		Insights: export.Records(export.Report{Result: res, Narrations: narrations}),
		Result:   res,
	})
}

func outcome(sufficient bool) string {
	if sufficient {
		return "sufficient"
	}
	return "insufficient"
}
