package glprog

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
)

// Features are the behavior switches of a program.
//
// They can be written as TOML:
//
//	create_pipeline_during_link = true
//	warm_up_failure_fatal = false
type Features struct {
	// CreatePipelineDuringLink builds a default pipeline at link time so
	// the driver's shader cache is warm before the first draw.
	CreatePipelineDuringLink bool `toml:"create_pipeline_during_link"`

	// WarmUpFailureFatal makes a failed warm-up fail the link. When false
	// the failure is logged and the link succeeds.
	WarmUpFailureFatal bool `toml:"warm_up_failure_fatal"`
}

// DefaultFeatures returns the features used when none are configured.
func DefaultFeatures() Features {
	return Features{
		CreatePipelineDuringLink: true,
		WarmUpFailureFatal:       true,
	}
}

// LoadFeatures reads features from a TOML document. Keys missing from the
// document keep their DefaultFeatures value; unknown keys are an error.
func LoadFeatures(r io.Reader) (Features, error) {
	f := DefaultFeatures()
	dec := toml.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return Features{}, fmt.Errorf("glprog: load features: %w", err)
	}
	return f, nil
}
