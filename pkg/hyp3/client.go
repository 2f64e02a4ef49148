package hyp3

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/asfhyp3/hyp3-go/internal/auth"
)

// Version is the SDK release, reported in the User-Agent of every request.
const Version = "0.3.0"

const (
	// ProductionAPI is the public HyP3 deployment.
	ProductionAPI = "https://hyp3-api.asf.alaska.edu"
	// TestAPI is ASF's staging deployment.
	TestAPI = "https://hyp3-test-api.asf.alaska.edu"
)

const defaultTimeout = 30 * time.Second

// Client talks to one HyP3 deployment over an authenticated session. It is
// safe for sequential reuse; concurrent use from multiple goroutines is not
// part of its contract.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// ClientConfig configures a Client. Either Token or Username/Password must
// be set, unless HTTPClient supplies an already-authenticated client, in
// which case credentials are ignored.
type ClientConfig struct {
	// APIURL is the deployment to talk to. Defaults to ProductionAPI.
	APIURL string

	// Earthdata Login credentials.
	Username string
	Password string
	Token    string

	// Timeout bounds each individual request. Defaults to 30s. Watching a
	// job is many requests; this does not bound a watch.
	Timeout time.Duration

	// HTTPClient, when set, is used as the transport instead of running the
	// Earthdata login flow. Tests inject a fake-server client here.
	HTTPClient *http.Client
}

// NewClient builds a Client, authenticating with Earthdata unless an
// HTTPClient is injected.
func NewClient(ctx context.Context, cfg ClientConfig) (*Client, error) {
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = ProductionAPI
	}
	base, err := url.Parse(apiURL)
	if err != nil {
		return nil, fmt.Errorf("parsing api url: %w", err)
	}

	userAgent := "hyp3-go/" + Version

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient, err = auth.NewSession(ctx, auth.SessionConfig{
			Username:  cfg.Username,
			Password:  cfg.Password,
			Token:     cfg.Token,
			UserAgent: userAgent,
		})
		if err != nil {
			return nil, err
		}
	} else {
		httpClient = auth.WithUserAgent(httpClient, userAgent)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	httpClient.Timeout = timeout

	return &Client{baseURL: base, httpClient: httpClient}, nil
}

// URL returns the API base URL the client talks to.
func (c *Client) URL() string { return c.baseURL.String() }

// FindJobsParams filters a job search. Zero values mean "no filter". Naive
// caller expectations aside, Start and End are always sent UTC-normalized.
type FindJobsParams struct {
	Start      *time.Time
	End        *time.Time
	StatusCode Status
	Name       string
	JobType    string
	UserID     string
}

func (p FindJobsParams) values() url.Values {
	params := url.Values{}
	if p.Start != nil {
		params.Set("start", p.Start.UTC().Format(timeFormat))
	}
	if p.End != nil {
		params.Set("end", p.End.UTC().Format(timeFormat))
	}
	if p.StatusCode != "" {
		params.Set("status_code", string(p.StatusCode))
	}
	if p.Name != "" {
		params.Set("name", p.Name)
	}
	if p.JobType != "" {
		params.Set("job_type", p.JobType)
	}
	if p.UserID != "" {
		params.Set("user_id", p.UserID)
	}
	return params
}

// jobsPage is one page of a search or submission response.
type jobsPage struct {
	Jobs []Job  `json:"jobs"`
	Next string `json:"next,omitempty"`
}

// FindJobs returns every job matching params. The server paginates with a
// next cursor; FindJobs follows every page, so callers always get the whole
// result set as one batch.
func (c *Client) FindJobs(ctx context.Context, params FindJobsParams) (Batch, error) {
	ctx, span := startSpan(ctx, "hyp3.find_jobs")
	defer span.End()

	batch := Batch{}

	pageURL := c.endpoint("/jobs", params.values())
	for pageURL != "" {
		var page jobsPage
		if err := c.get(ctx, pageURL, &page); err != nil {
			recordError(span, err)
			return Batch{}, err
		}
		batch.Push(page.Jobs...)
		pageURL = page.Next
	}

	span.SetAttributes(attribute.Int("hyp3.job_count", batch.Len()))
	return batch, nil
}

// GetJob fetches the current server state of one job by id.
func (c *Client) GetJob(ctx context.Context, jobID string) (Job, error) {
	ctx, span := startSpan(ctx, "hyp3.get_job", attribute.String("hyp3.job_id", jobID))
	defer span.End()

	var job Job
	err := c.get(ctx, c.endpoint("/jobs/"+url.PathEscape(jobID), nil), &job)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			err = fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		recordError(span, err)
		return Job{}, err
	}
	return job, nil
}

// submitEnvelope is the POST /jobs request body.
type submitEnvelope struct {
	Jobs         []Submission `json:"jobs"`
	ValidateOnly bool         `json:"validate_only,omitempty"`
}

// SubmitJobs submits prepared jobs and returns the created jobs as a batch.
// Every submission is validated client-side first; a bad one fails the call
// before any network traffic.
func (c *Client) SubmitJobs(ctx context.Context, submissions ...Submission) (Batch, error) {
	ctx, span := startSpan(ctx, "hyp3.submit_jobs",
		attribute.Int("hyp3.job_count", len(submissions)))
	defer span.End()

	batch, err := c.submit(ctx, submissions, false)
	if err != nil {
		recordError(span, err)
	}
	return batch, err
}

// ValidateJobs asks the server to validate submissions without creating
// jobs.
func (c *Client) ValidateJobs(ctx context.Context, submissions ...Submission) error {
	ctx, span := startSpan(ctx, "hyp3.validate_jobs",
		attribute.Int("hyp3.job_count", len(submissions)))
	defer span.End()

	_, err := c.submit(ctx, submissions, true)
	if err != nil {
		recordError(span, err)
	}
	return err
}

func (c *Client) submit(ctx context.Context, submissions []Submission, validateOnly bool) (Batch, error) {
	for _, s := range submissions {
		if err := s.Validate(); err != nil {
			return Batch{}, err
		}
	}

	var page jobsPage
	err := c.post(ctx, c.endpoint("/jobs", nil), submitEnvelope{Jobs: submissions, ValidateOnly: validateOnly}, &page)
	if err != nil {
		return Batch{}, err
	}
	return NewBatch(page.Jobs...), nil
}

// SubmitRTCJob prepares and submits a single RTC_GAMMA job.
func (c *Client) SubmitRTCJob(ctx context.Context, granule string, opts RTCOptions) (Job, error) {
	return c.submitOne(ctx, PrepareRTCJob(granule, opts))
}

// SubmitInSARJob prepares and submits a single INSAR_GAMMA job.
func (c *Client) SubmitInSARJob(ctx context.Context, granule1, granule2 string, opts InSAROptions) (Job, error) {
	return c.submitOne(ctx, PrepareInSARJob(granule1, granule2, opts))
}

// SubmitInSARISCEBurstJob prepares and submits a single INSAR_ISCE_BURST job.
func (c *Client) SubmitInSARISCEBurstJob(ctx context.Context, granule1, granule2 string, opts InSARISCEBurstOptions) (Job, error) {
	return c.submitOne(ctx, PrepareInSARISCEBurstJob(granule1, granule2, opts))
}

// SubmitAutoRIFTJob prepares and submits a single AUTORIFT job.
func (c *Client) SubmitAutoRIFTJob(ctx context.Context, granule1, granule2, name string) (Job, error) {
	return c.submitOne(ctx, PrepareAutoRIFTJob(granule1, granule2, name))
}

func (c *Client) submitOne(ctx context.Context, submission Submission) (Job, error) {
	batch, err := c.SubmitJobs(ctx, submission)
	if err != nil {
		return Job{}, err
	}
	if batch.Len() == 0 {
		return Job{}, fmt.Errorf("%w: submission response contained no jobs", ErrMalformedResponse)
	}
	return batch.Job(0), nil
}

// Quota is the account's monthly job allowance. Remaining is nil for
// accounts without a quota.
type Quota struct {
	MaxJobsPerMonth *int `json:"max_jobs_per_month"`
	Remaining       *int `json:"remaining"`
}

// UserInfo is the GET /user response.
type UserInfo struct {
	UserID   string   `json:"user_id"`
	JobNames []string `json:"job_names"`
	Quota    Quota    `json:"quota"`
}

// MyInfo returns the authenticated user's account information.
func (c *Client) MyInfo(ctx context.Context) (UserInfo, error) {
	ctx, span := startSpan(ctx, "hyp3.my_info")
	defer span.End()

	var info UserInfo
	if err := c.get(ctx, c.endpoint("/user", nil), &info); err != nil {
		recordError(span, err)
		return UserInfo{}, err
	}
	return info, nil
}

// CheckQuota returns the number of jobs left in the user's monthly quota,
// or nil when the account has no quota.
func (c *Client) CheckQuota(ctx context.Context) (*int, error) {
	info, err := c.MyInfo(ctx)
	if err != nil {
		return nil, err
	}
	return info.Quota.Remaining, nil
}

// --- request plumbing ---

func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, rawURL string, body, out any) error {
	return c.send(ctx, http.MethodPost, rawURL, body, out)
}

func (c *Client) patch(ctx context.Context, rawURL string, body, out any) error {
	return c.send(ctx, http.MethodPatch, rawURL, body, out)
}

func (c *Client) send(ctx context.Context, method, rawURL string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkResponse(resp); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

// checkResponse maps non-2xx statuses to the error taxonomy: 4xx carries
// the server's detail text in an APIError, 5xx becomes a ServerError.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		return nil
	}

	if resp.StatusCode >= 500 {
		io.Copy(io.Discard, resp.Body)
		return &ServerError{StatusCode: resp.StatusCode}
	}

	var detail struct {
		Detail string `json:"detail"`
	}
	// Best effort: a 4xx without a JSON detail body still gets an APIError.
	_ = json.NewDecoder(resp.Body).Decode(&detail)
	return &APIError{StatusCode: resp.StatusCode, Detail: detail.Detail}
}
