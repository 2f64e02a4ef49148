// Package hyp3test runs an in-process fake of the HyP3 API for tests. It
// implements the job endpoints with an in-memory store, cursor pagination,
// and scripted status sequences for driving watch loops.
package hyp3test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

const timeFormat = "2006-01-02T15:04:05Z07:00"

// Server is a fake HyP3 deployment. Job records are plain JSON object maps
// so tests can shape them freely.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	records       map[string]map[string]any
	order         []string
	sequences     map[string][]string
	getCalls      map[string]int
	pageSize      int
	user          map[string]any
	submissions   []map[string]any
	lastUserAgent string
}

// New starts a fake API server and tears it down with the test.
func New(t *testing.T) *Server {
	t.Helper()

	s := &Server{
		records:   make(map[string]map[string]any),
		sequences: make(map[string][]string),
		getCalls:  make(map[string]int),
		user: map[string]any{
			"user_id":   "test-user",
			"job_names": []any{},
			"quota":     map[string]any{"max_jobs_per_month": 1000, "remaining": 1000},
		},
	}

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s.mu.Lock()
			s.lastUserAgent = req.UserAgent()
			s.mu.Unlock()
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/jobs", s.handleFindJobs)
	r.Post("/jobs", s.handleSubmitJobs)
	r.Get("/jobs/{jobID}", s.handleGetJob)
	r.Patch("/jobs/{jobID}", s.handleUpdateJob)
	r.Get("/user", s.handleUser)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// JobOptions shapes a fake job record. Zero values get sensible defaults: a
// fresh uuid, RTC_GAMMA, RUNNING, and a request time of now.
type JobOptions struct {
	JobID           string
	JobType         string
	Status          string
	Name            string
	UserID          string
	RequestTime     time.Time
	JobParameters   map[string]any
	Files           []map[string]any
	BrowseImages    []string
	ThumbnailImages []string
	ExpirationTime  *time.Time
}

// NewJobRecord builds a job record map from opts.
func NewJobRecord(opts JobOptions) map[string]any {
	if opts.JobID == "" {
		opts.JobID = uuid.NewString()
	}
	if opts.JobType == "" {
		opts.JobType = "RTC_GAMMA"
	}
	if opts.Status == "" {
		opts.Status = "RUNNING"
	}
	if opts.UserID == "" {
		opts.UserID = "test-user"
	}
	if opts.RequestTime.IsZero() {
		opts.RequestTime = time.Now().UTC().Truncate(time.Second)
	}
	if opts.JobParameters == nil {
		opts.JobParameters = map[string]any{"granules": []any{"granule1"}}
	}

	rec := map[string]any{
		"job_id":         opts.JobID,
		"job_type":       opts.JobType,
		"status_code":    opts.Status,
		"user_id":        opts.UserID,
		"request_time":   opts.RequestTime.Format(timeFormat),
		"job_parameters": opts.JobParameters,
	}
	if opts.Name != "" {
		rec["name"] = opts.Name
	}
	if opts.Files != nil {
		files := make([]any, len(opts.Files))
		for i, f := range opts.Files {
			files[i] = f
		}
		rec["files"] = files
	}
	if opts.BrowseImages != nil {
		rec["browse_images"] = toAnySlice(opts.BrowseImages)
	}
	if opts.ThumbnailImages != nil {
		rec["thumbnail_images"] = toAnySlice(opts.ThumbnailImages)
	}
	if opts.ExpirationTime != nil {
		rec["expiration_time"] = opts.ExpirationTime.Format(timeFormat)
	}
	return rec
}

// AddJob stores a record and returns its job id.
func (s *Server) AddJob(record map[string]any) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := record["job_id"].(string)
	s.records[id] = record
	s.order = append(s.order, id)
	return id
}

// SetStatusSequence scripts the statuses returned by successive single-job
// fetches: each GET /jobs/{id} pops the next status before responding, and
// the last one sticks.
func (s *Server) SetStatusSequence(jobID string, statuses ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences[jobID] = statuses
}

// SetPageSize turns on cursor pagination for GET /jobs. Zero disables it.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// SetUser replaces the GET /user response.
func (s *Server) SetUser(user map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// GetJobCalls reports how many times the job was fetched by id.
func (s *Server) GetJobCalls(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls[jobID]
}

// LastUserAgent reports the User-Agent of the most recent request.
func (s *Server) LastUserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUserAgent
}

// Submissions returns every POST /jobs request body seen, decoded.
func (s *Server) Submissions() []map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]map[string]any, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// --- handlers ---

func (s *Server) handleFindJobs(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := r.URL.Query()
	cursor, _ := strconv.Atoi(q.Get("cursor"))

	var matched []map[string]any
	for _, id := range s.order {
		if recordMatches(s.records[id], q) {
			matched = append(matched, s.records[id])
		}
	}
	if matched == nil {
		matched = []map[string]any{}
	}
	if cursor > len(matched) {
		cursor = len(matched)
	}

	end := len(matched)
	next := ""
	if s.pageSize > 0 && end-cursor > s.pageSize {
		end = cursor + s.pageSize
		nextQuery := url.Values{}
		for k, vs := range q {
			nextQuery[k] = vs
		}
		nextQuery.Set("cursor", strconv.Itoa(end))
		next = s.URL + "/jobs?" + nextQuery.Encode()
	}

	resp := map[string]any{"jobs": matched[cursor:end]}
	if next != "" {
		resp["next"] = next
	}
	writeJSON(w, http.StatusOK, resp)
}

func recordMatches(rec map[string]any, q url.Values) bool {
	for param, field := range map[string]string{
		"name":        "name",
		"status_code": "status_code",
		"job_type":    "job_type",
		"user_id":     "user_id",
	} {
		if want := q.Get(param); want != "" {
			if got, _ := rec[field].(string); got != want {
				return false
			}
		}
	}

	requestTime, err := time.Parse(time.RFC3339, rec["request_time"].(string))
	if err != nil {
		return false
	}
	if start := q.Get("start"); start != "" {
		t, err := time.Parse(time.RFC3339, start)
		if err != nil || requestTime.Before(t) {
			return false
		}
	}
	if end := q.Get("end"); end != "" {
		t, err := time.Parse(time.RFC3339, end)
		if err != nil || requestTime.After(t) {
			return false
		}
	}
	return true
}

func (s *Server) handleSubmitJobs(w http.ResponseWriter, r *http.Request) {
	var envelope struct {
		Jobs []struct {
			JobType       string         `json:"job_type"`
			Name          string         `json:"name"`
			JobParameters map[string]any `json:"job_parameters"`
		} `json:"jobs"`
		ValidateOnly bool `json:"validate_only"`
	}
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "invalid request body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range envelope.Jobs {
		submission := map[string]any{"job_type": sub.JobType, "job_parameters": sub.JobParameters}
		if sub.Name != "" {
			submission["name"] = sub.Name
		}
		s.submissions = append(s.submissions, submission)
	}

	for _, sub := range envelope.Jobs {
		if len(sub.Name) > 20 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "name too long"})
			return
		}
		if sub.JobType == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "job_type is required"})
			return
		}
	}

	if envelope.ValidateOnly {
		writeJSON(w, http.StatusOK, map[string]any{"jobs": []any{}})
		return
	}

	created := make([]map[string]any, 0, len(envelope.Jobs))
	for _, sub := range envelope.Jobs {
		rec := NewJobRecord(JobOptions{
			JobType:       sub.JobType,
			Name:          sub.Name,
			Status:        "PENDING",
			UserID:        s.user["user_id"].(string),
			JobParameters: sub.JobParameters,
		})
		id := rec["job_id"].(string)
		s.records[id] = rec
		s.order = append(s.order, id)
		created = append(created, rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": created})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	s.mu.Lock()
	defer s.mu.Unlock()

	s.getCalls[jobID]++

	rec, ok := s.records[jobID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "job not found"})
		return
	}

	if seq := s.sequences[jobID]; len(seq) > 0 {
		rec["status_code"] = seq[0]
		if len(seq) > 1 {
			s.sequences[jobID] = seq[1:]
		}
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUpdateJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	var update struct {
		Name *string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "invalid request body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[jobID]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"detail": "job not found"})
		return
	}
	if update.Name != nil {
		if len(*update.Name) > 20 {
			writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "name too long"})
			return
		}
		if *update.Name == "" {
			delete(rec, "name")
		} else {
			rec["name"] = *update.Name
		}
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.user)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
