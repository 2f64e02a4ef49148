package hyp3

import (
	"fmt"
)

// maxNameLength is enforced client-side before any network call.
const maxNameLength = 20

// Submission is a prepared, not-yet-submitted job: everything the server
// needs to create a job and nothing it assigns itself.
type Submission struct {
	JobType       string         `json:"job_type"`
	Name          string         `json:"name,omitempty"`
	JobParameters map[string]any `json:"job_parameters,omitempty"`
}

// Validate checks the submission's client-side preconditions.
func (s Submission) Validate() error {
	if s.JobType == "" {
		return fmt.Errorf("%w: job_type is required", ErrValidation)
	}
	if len(s.Name) > maxNameLength {
		return errValidationNameTooLong(s.Name)
	}
	return nil
}

func errValidationNameTooLong(name string) error {
	return fmt.Errorf("%w: job name %q is too long, must be at most %d characters", ErrValidation, name, maxNameLength)
}

// RTCOptions configures an RTC_GAMMA submission. Zero values select the
// processing defaults: gamma0 radiometry, 30 m resolution, power scale, and
// the Copernicus GLO-30 DEM.
type RTCOptions struct {
	Name                  string
	DEMMatching           bool
	IncludeDEM            bool
	IncludeIncMap         bool
	IncludeRGB            bool
	IncludeScatteringArea bool
	Radiometry            string // sigma0 or gamma0
	Resolution            int    // 10, 20, or 30
	Scale                 string // amplitude, decibel, or power
	SpeckleFilter         bool
	DEMName               string // copernicus
}

// PrepareRTCJob builds an RTC_GAMMA submission for one granule.
func PrepareRTCJob(granule string, opts RTCOptions) Submission {
	if opts.Radiometry == "" {
		opts.Radiometry = "gamma0"
	}
	if opts.Resolution == 0 {
		opts.Resolution = 30
	}
	if opts.Scale == "" {
		opts.Scale = "power"
	}
	if opts.DEMName == "" {
		opts.DEMName = "copernicus"
	}
	return Submission{
		JobType: "RTC_GAMMA",
		Name:    opts.Name,
		JobParameters: map[string]any{
			"granules":                []any{granule},
			"dem_matching":            opts.DEMMatching,
			"include_dem":             opts.IncludeDEM,
			"include_inc_map":         opts.IncludeIncMap,
			"include_rgb":             opts.IncludeRGB,
			"include_scattering_area": opts.IncludeScatteringArea,
			"radiometry":              opts.Radiometry,
			"resolution":              opts.Resolution,
			"scale":                   opts.Scale,
			"speckle_filter":          opts.SpeckleFilter,
			"dem_name":                opts.DEMName,
		},
	}
}

// InSAROptions configures an INSAR_GAMMA submission. PhaseFilterParameter
// is a pointer because zero is meaningful (it skips the adaptive phase
// filter); nil selects the default of 0.6.
type InSAROptions struct {
	Name                    string
	IncludeLookVectors      bool
	IncludeIncMap           bool
	IncludeDEM              bool
	IncludeWrappedPhase     bool
	IncludeDisplacementMaps bool
	ApplyWaterMask          bool
	Looks                   string // 20x4 or 10x2
	PhaseFilterParameter    *float64
}

// PrepareInSARJob builds an INSAR_GAMMA submission for a granule pair.
func PrepareInSARJob(granule1, granule2 string, opts InSAROptions) Submission {
	if opts.Looks == "" {
		opts.Looks = "20x4"
	}
	phaseFilter := 0.6
	if opts.PhaseFilterParameter != nil {
		phaseFilter = *opts.PhaseFilterParameter
	}
	return Submission{
		JobType: "INSAR_GAMMA",
		Name:    opts.Name,
		JobParameters: map[string]any{
			"granules":                  []any{granule1, granule2},
			"include_look_vectors":      opts.IncludeLookVectors,
			"include_inc_map":           opts.IncludeIncMap,
			"include_dem":               opts.IncludeDEM,
			"include_wrapped_phase":     opts.IncludeWrappedPhase,
			"include_displacement_maps": opts.IncludeDisplacementMaps,
			"apply_water_mask":          opts.ApplyWaterMask,
			"looks":                     opts.Looks,
			"phase_filter_parameter":    phaseFilter,
		},
	}
}

// InSARISCEBurstOptions configures an INSAR_ISCE_BURST submission.
type InSARISCEBurstOptions struct {
	Name           string
	ApplyWaterMask bool
	Looks          string // 20x4, 10x2, or 5x1
}

// PrepareInSARISCEBurstJob builds an INSAR_ISCE_BURST submission for a
// burst pair.
func PrepareInSARISCEBurstJob(granule1, granule2 string, opts InSARISCEBurstOptions) Submission {
	if opts.Looks == "" {
		opts.Looks = "20x4"
	}
	return Submission{
		JobType: "INSAR_ISCE_BURST",
		Name:    opts.Name,
		JobParameters: map[string]any{
			"granules":         []any{granule1, granule2},
			"apply_water_mask": opts.ApplyWaterMask,
			"looks":            opts.Looks,
		},
	}
}

// PrepareAutoRIFTJob builds an AUTORIFT submission for a granule pair. An
// empty name leaves the job unnamed.
func PrepareAutoRIFTJob(granule1, granule2, name string) Submission {
	return Submission{
		JobType: "AUTORIFT",
		Name:    name,
		JobParameters: map[string]any{
			"granules": []any{granule1, granule2},
		},
	}
}
