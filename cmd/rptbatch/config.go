// Command rptbatch fans a YAML job manifest out over the rpt, selection,
// and acl packages, one document per job. Jobs run concurrently on a
// bounded worker pool; each job's state is confined to its own Document,
// so no cross-job synchronization is needed beyond the segments cache.
package main

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Manifest is the top-level batch job file.
type Manifest struct {
	// LogLevel sets the minimum log severity: "debug", "info", "warn", or
	// "error". Defaults to "info" when omitted.
	LogLevel string `yaml:"log_level"`

	// MaxParallel bounds the number of jobs processed concurrently.
	// Defaults to 4 when omitted or zero.
	MaxParallel int `yaml:"max_parallel"`

	// Jobs is the ordered list of extraction jobs to run.
	Jobs []Job `yaml:"jobs"`
}

// Job describes one RPT extraction: an input file, a page-selection rule,
// and the output paths to write. ACLBlob is optional; when set, rptbatch
// also scans it for SIDs and writes a principal-type summary alongside the
// extracted text.
type Job struct {
	// Name is a human-readable identifier used in log output. Required.
	Name string `yaml:"name"`

	// Input is the path to the source .rpt file. Required.
	Input string `yaml:"input"`

	// Selection is a page-selection rule in the grammar the selection
	// package accepts ("all", "pages:1-3", "sections:10,30", ...).
	// Required.
	Selection string `yaml:"selection"`

	// OutputText is the path the concatenated selected-page text is
	// written to. Required.
	OutputText string `yaml:"output_text"`

	// OutputBinary is the path the RPT's binary body is written to when
	// Selection is "all" and the document has one. Optional.
	OutputBinary string `yaml:"output_binary,omitempty"`

	// ACLBlob, if set, is a path to a binary ACL blob scanned for SIDs;
	// results are written as a principal-type summary next to OutputText.
	ACLBlob string `yaml:"acl_blob,omitempty"`
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// LoadManifest reads the YAML file at path, unmarshals it into a Manifest,
// applies defaults, and validates required fields.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("rptbatch: cannot read %q: %w", path, err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("rptbatch: cannot parse %q: %w", path, err)
	}

	applyDefaults(&m)

	if err := validate(&m); err != nil {
		return nil, fmt.Errorf("rptbatch: validation failed for %q: %w", path, err)
	}

	return &m, nil
}

func applyDefaults(m *Manifest) {
	if m.LogLevel == "" {
		m.LogLevel = "info"
	}
	if m.MaxParallel <= 0 {
		m.MaxParallel = 4
	}
}

func validate(m *Manifest) error {
	var errs []error

	if !validLogLevels[m.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level %q must be one of: debug, info, warn, error", m.LogLevel))
	}
	if len(m.Jobs) == 0 {
		errs = append(errs, errors.New("jobs must contain at least one entry"))
	}

	for i, j := range m.Jobs {
		prefix := fmt.Sprintf("jobs[%d]", i)
		if j.Name == "" {
			errs = append(errs, fmt.Errorf("%s: name is required", prefix))
		}
		if j.Input == "" {
			errs = append(errs, fmt.Errorf("%s: input is required", prefix))
		}
		if j.Selection == "" {
			errs = append(errs, fmt.Errorf("%s: selection is required", prefix))
		}
		if j.OutputText == "" {
			errs = append(errs, fmt.Errorf("%s: output_text is required", prefix))
		}
	}

	return errors.Join(errs...)
}
