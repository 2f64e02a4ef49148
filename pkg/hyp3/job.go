// Package hyp3 is a Go client for the HyP3 batch-processing API. It submits
// SAR processing jobs, polls them until completion, and downloads result
// products.
//
// All jobs submitted to HyP3 are publicly visible. For more information, see
// https://hyp3-docs.asf.alaska.edu/#public-visibility-of-jobs
package hyp3

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Status is a server-authoritative job state. The server only ever moves a
// job forward: PENDING -> RUNNING -> SUCCEEDED | FAILED.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusSucceeded Status = "SUCCEEDED"
	StatusFailed    Status = "FAILED"
)

// timeFormat is RFC 3339 at second precision, matching what the API emits
// and accepts.
const timeFormat = "2006-01-02T15:04:05Z07:00"

// File is one product artifact attached to a succeeded job.
type File struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
}

// Job is a snapshot of one remote processing job. Jobs are value types:
// refreshing a job produces a new Job, it never mutates in place. JobID is
// assigned by the server and is the job's identity; every other field is
// replaced wholesale on refresh.
//
// ExpirationTime is set only on succeeded jobs; the server garbage-collects
// product files after that instant.
type Job struct {
	JobID           string
	JobType         string
	RequestTime     time.Time
	StatusCode      Status
	UserID          string
	Name            string
	JobParameters   map[string]any
	Files           []File
	BrowseImages    []string
	ThumbnailImages []string
	ExpirationTime  *time.Time
}

// jobRecord is the wire form of a Job. Required fields are pointers so a
// missing field is distinguishable from a zero value.
type jobRecord struct {
	JobID           *string        `json:"job_id,omitempty"`
	JobType         *string        `json:"job_type,omitempty"`
	RequestTime     *string        `json:"request_time,omitempty"`
	StatusCode      *string        `json:"status_code,omitempty"`
	UserID          *string        `json:"user_id,omitempty"`
	Name            string         `json:"name,omitempty"`
	JobParameters   map[string]any `json:"job_parameters,omitempty"`
	Files           []File         `json:"files,omitempty"`
	BrowseImages    []string       `json:"browse_images,omitempty"`
	ThumbnailImages []string       `json:"thumbnail_images,omitempty"`
	ExpirationTime  *string        `json:"expiration_time,omitempty"`
}

// UnmarshalJSON parses a server job record. A record missing any of job_id,
// job_type, request_time, status_code, or user_id, or carrying a timestamp
// that is not RFC 3339, fails with an error wrapping ErrMalformedResponse.
func (j *Job) UnmarshalJSON(data []byte) error {
	var rec jobRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	required := map[string]*string{
		"job_id":       rec.JobID,
		"job_type":     rec.JobType,
		"request_time": rec.RequestTime,
		"status_code":  rec.StatusCode,
		"user_id":      rec.UserID,
	}
	for field, value := range required {
		if value == nil {
			return fmt.Errorf("%w: missing required field %q", ErrMalformedResponse, field)
		}
	}

	requestTime, err := time.Parse(time.RFC3339, *rec.RequestTime)
	if err != nil {
		return fmt.Errorf("%w: parsing request_time: %v", ErrMalformedResponse, err)
	}

	var expirationTime *time.Time
	if rec.ExpirationTime != nil {
		t, err := time.Parse(time.RFC3339, *rec.ExpirationTime)
		if err != nil {
			return fmt.Errorf("%w: parsing expiration_time: %v", ErrMalformedResponse, err)
		}
		expirationTime = &t
	}

	*j = Job{
		JobID:           *rec.JobID,
		JobType:         *rec.JobType,
		RequestTime:     requestTime,
		StatusCode:      Status(*rec.StatusCode),
		UserID:          *rec.UserID,
		Name:            rec.Name,
		JobParameters:   rec.JobParameters,
		Files:           rec.Files,
		BrowseImages:    rec.BrowseImages,
		ThumbnailImages: rec.ThumbnailImages,
		ExpirationTime:  expirationTime,
	}
	return nil
}

// MarshalJSON emits the full job record with timestamps at second precision.
func (j Job) MarshalJSON() ([]byte, error) {
	jobID := j.JobID
	jobType := j.JobType
	requestTime := j.RequestTime.Format(timeFormat)
	statusCode := string(j.StatusCode)
	userID := j.UserID

	rec := jobRecord{
		JobID:           &jobID,
		JobType:         &jobType,
		RequestTime:     &requestTime,
		StatusCode:      &statusCode,
		UserID:          &userID,
		Name:            j.Name,
		JobParameters:   j.JobParameters,
		Files:           j.Files,
		BrowseImages:    j.BrowseImages,
		ThumbnailImages: j.ThumbnailImages,
	}
	if j.ExpirationTime != nil {
		expirationTime := j.ExpirationTime.Format(timeFormat)
		rec.ExpirationTime = &expirationTime
	}
	return json.Marshal(rec)
}

func (j Job) Succeeded() bool { return j.StatusCode == StatusSucceeded }

func (j Job) Failed() bool { return j.StatusCode == StatusFailed }

func (j Job) Complete() bool { return j.Succeeded() || j.Failed() }

// Running reports whether the job is still in flight. PENDING and RUNNING
// are deliberately not distinguished here; both mean "not done yet".
func (j Job) Running() bool { return !j.Complete() }

// Expired reports whether the job's products have passed their retention
// deadline. Only succeeded jobs have an expiration time; calling Expired on
// any other job is a caller error and returns ErrNoExpirationTime.
func (j Job) Expired() (bool, error) {
	if j.ExpirationTime == nil {
		return false, fmt.Errorf("%w: job %s has status %s", ErrNoExpirationTime, j.JobID, j.StatusCode)
	}
	return !time.Now().UTC().Before(*j.ExpirationTime), nil
}

// Resubmit strips the job down to the fields needed to submit it again as a
// new job. Server-assigned identity (job_id, status, timestamps, files) is
// never carried over.
func (j Job) Resubmit() Submission {
	return Submission{
		JobType:       j.JobType,
		Name:          j.Name,
		JobParameters: j.JobParameters,
	}
}

// Equal reports whether two job snapshots carry the same record. Timestamps
// compare by instant, not by location.
func (j Job) Equal(other Job) bool {
	if j.JobID != other.JobID ||
		j.JobType != other.JobType ||
		j.StatusCode != other.StatusCode ||
		j.UserID != other.UserID ||
		j.Name != other.Name {
		return false
	}
	if !j.RequestTime.Equal(other.RequestTime) {
		return false
	}
	if (j.ExpirationTime == nil) != (other.ExpirationTime == nil) {
		return false
	}
	if j.ExpirationTime != nil && !j.ExpirationTime.Equal(*other.ExpirationTime) {
		return false
	}
	return reflect.DeepEqual(j.JobParameters, other.JobParameters) &&
		reflect.DeepEqual(j.Files, other.Files) &&
		reflect.DeepEqual(j.BrowseImages, other.BrowseImages) &&
		reflect.DeepEqual(j.ThumbnailImages, other.ThumbnailImages)
}

func (j Job) String() string {
	return fmt.Sprintf("%s job %s (%s)", j.JobType, j.JobID, j.StatusCode)
}
