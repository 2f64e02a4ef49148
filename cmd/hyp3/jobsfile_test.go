package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asfhyp3/hyp3-go/pkg/hyp3"
)

func writeJobsFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "jobs.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestReadJobsFile(t *testing.T) {
	path := writeJobsFile(t, `
jobs:
  - job_type: RTC_GAMMA
    name: rtc-run
    job_parameters:
      granules:
        - S1A_granule
      resolution: 30
  - job_type: AUTORIFT
    job_parameters:
      granules:
        - S1A_granule
        - S1B_granule
`)

	submissions, err := readJobsFile(path)
	require.NoError(t, err)
	require.Len(t, submissions, 2)

	assert.Equal(t, "RTC_GAMMA", submissions[0].JobType)
	assert.Equal(t, "rtc-run", submissions[0].Name)
	assert.Equal(t, []any{"S1A_granule"}, submissions[0].JobParameters["granules"])
	assert.Equal(t, 30, submissions[0].JobParameters["resolution"])

	assert.Equal(t, "AUTORIFT", submissions[1].JobType)
	assert.Empty(t, submissions[1].Name)
}

func TestReadJobsFileValidates(t *testing.T) {
	path := writeJobsFile(t, `
jobs:
  - job_type: RTC_GAMMA
    name: ok
  - name: missing-the-job-type
`)

	_, err := readJobsFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, hyp3.ErrValidation)
	assert.Contains(t, err.Error(), "job 2")
}

func TestReadJobsFileEmpty(t *testing.T) {
	path := writeJobsFile(t, "jobs: []\n")

	_, err := readJobsFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no jobs")
}

func TestReadJobsFileMissing(t *testing.T) {
	_, err := readJobsFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading jobs file")
}

func TestReadJobsFileBadYAML(t *testing.T) {
	path := writeJobsFile(t, "jobs: [unclosed\n")

	_, err := readJobsFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing jobs file")
}
