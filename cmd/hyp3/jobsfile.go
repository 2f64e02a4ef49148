package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/asfhyp3/hyp3-go/pkg/hyp3"
)

// jobsFile is the YAML submission format:
//
//	jobs:
//	  - job_type: RTC_GAMMA
//	    name: my-rtc-run
//	    job_parameters:
//	      granules:
//	        - S1A_IW_GRDH_...
type jobsFile struct {
	Jobs []jobsFileEntry `yaml:"jobs"`
}

type jobsFileEntry struct {
	JobType       string         `yaml:"job_type"`
	Name          string         `yaml:"name"`
	JobParameters map[string]any `yaml:"job_parameters"`
}

// readJobsFile parses a YAML jobs file into submissions, validating each one
// so a broken file fails before anything reaches the API.
func readJobsFile(path string) ([]hyp3.Submission, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading jobs file: %w", err)
	}

	var file jobsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing jobs file: %w", err)
	}
	if len(file.Jobs) == 0 {
		return nil, fmt.Errorf("jobs file %s contains no jobs", path)
	}

	submissions := make([]hyp3.Submission, 0, len(file.Jobs))
	for i, entry := range file.Jobs {
		submission := hyp3.Submission{
			JobType:       entry.JobType,
			Name:          entry.Name,
			JobParameters: entry.JobParameters,
		}
		if err := submission.Validate(); err != nil {
			return nil, fmt.Errorf("jobs file %s, job %d: %w", path, i+1, err)
		}
		submissions = append(submissions, submission)
	}
	return submissions, nil
}
