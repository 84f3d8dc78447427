package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banshee-data/spotcall/internal/iss"
)

// DefaultConfigPath is the path to the canonical calling defaults file.
const DefaultConfigPath = "config/omp.defaults.json"

// Duplicate resolution rules accepted by duplicate_rule.
const (
	DuplicateRuleNearestCentre = "nearest_centre"
	DuplicateRuleLowestTile    = "lowest_tile"
)

// CallingConfig holds the OMP gene calling parameters. Every field is a
// pointer so that partial JSON files keep defaults for omitted keys; the Get*
// methods supply those defaults.
type CallingConfig struct {
	// OMP matcher params
	DPThresh      *float64 `json:"dp_thresh,omitempty"`
	Alpha         *float64 `json:"alpha,omitempty"`
	Beta          *float64 `json:"beta,omitempty"` // accepted and reported, not used in the fit weights
	MaxGenes      *int     `json:"max_genes,omitempty"`
	WeightCoefFit *bool    `json:"weight_coef_fit,omitempty"`

	// Intensity pre-filter
	InitialIntensityThresh          *IntensityThreshold `json:"initial_intensity_thresh,omitempty"`
	InitialIntensityThreshAutoParam *float64            `json:"initial_intensity_thresh_auto_param,omitempty"`
	InitialIntensityPrecision       *float64            `json:"initial_intensity_precision,omitempty"`
	InitialIntensityThreshMin       *float64            `json:"initial_intensity_thresh_min,omitempty"`
	InitialIntensityThreshMax       *float64            `json:"initial_intensity_thresh_max,omitempty"`

	// Numeric stabilisers from call_spots
	BackgroundWeightShift *float64 `json:"background_weight_shift,omitempty"`
	DPNormShift           *float64 `json:"dp_norm_shift,omitempty"`

	// Execution
	BatchSize *int `json:"batch_size,omitempty"`
	Workers   *int `json:"workers,omitempty"` // 0 means GOMAXPROCS

	// Duplicate resolution
	DuplicateRule *string `json:"duplicate_rule,omitempty"`
}

// IntensityThreshold is either a fixed value or "auto". It accepts a JSON
// number, the string "auto", or null (auto).
type IntensityThreshold struct {
	Auto  bool
	Value float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (it *IntensityThreshold) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*it = IntensityThreshold{Auto: true}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if !strings.EqualFold(s, "auto") {
			return fmt.Errorf("initial_intensity_thresh must be a number or \"auto\", got %q", s)
		}
		*it = IntensityThreshold{Auto: true}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("initial_intensity_thresh: %w", err)
	}
	*it = IntensityThreshold{Value: v}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (it IntensityThreshold) MarshalJSON() ([]byte, error) {
	if it.Auto {
		return []byte(`"auto"`), nil
	}
	return json.Marshal(it.Value)
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyCallingConfig returns a CallingConfig with all fields nil.
func EmptyCallingConfig() *CallingConfig {
	return &CallingConfig{}
}

// DefaultCallingConfig returns a CallingConfig with every field set to the
// value its Get* method would return.
func DefaultCallingConfig() *CallingConfig {
	empty := EmptyCallingConfig()
	thresh := empty.GetInitialIntensityThresh()
	return &CallingConfig{
		DPThresh:                        ptrFloat64(empty.GetDPThresh()),
		Alpha:                           ptrFloat64(empty.GetAlpha()),
		Beta:                            ptrFloat64(empty.GetBeta()),
		MaxGenes:                        ptrInt(empty.GetMaxGenes()),
		WeightCoefFit:                   ptrBool(empty.GetWeightCoefFit()),
		InitialIntensityThresh:          &thresh,
		InitialIntensityThreshAutoParam: ptrFloat64(empty.GetInitialIntensityThreshAutoParam()),
		InitialIntensityPrecision:       ptrFloat64(empty.GetInitialIntensityPrecision()),
		InitialIntensityThreshMin:       ptrFloat64(empty.GetInitialIntensityThreshMin()),
		InitialIntensityThreshMax:       ptrFloat64(empty.GetInitialIntensityThreshMax()),
		BackgroundWeightShift:           ptrFloat64(empty.GetBackgroundWeightShift()),
		DPNormShift:                     ptrFloat64(empty.GetDPNormShift()),
		BatchSize:                       ptrInt(empty.GetBatchSize()),
		Workers:                         ptrInt(empty.GetWorkers()),
		DuplicateRule:                   ptrString(empty.GetDuplicateRule()),
	}
}

// LoadCallingConfig loads a CallingConfig from a JSON file.
// The file must have a .json extension and be at most 1MB. Fields omitted
// from the file fall back to the Get* defaults.
func LoadCallingConfig(path string) (*CallingConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyCallingConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *CallingConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,          // from internal/config/
		"../../../" + DefaultConfigPath,       // from internal/iss/l4omp/
		"../../../../" + DefaultConfigPath,    // from internal/iss/storage/sqlite/
		"../../../../../" + DefaultConfigPath, // deeper packages
	}
	for _, path := range candidates {
		if cfg, err := LoadCallingConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func invalid(param string, value interface{}, reason string) error {
	return &iss.ConfigurationError{Param: param, Value: value, Reason: reason}
}

// Validate checks the values that are set. It returns an
// *iss.ConfigurationError naming the first offending parameter.
func (c *CallingConfig) Validate() error {
	if c.DPThresh != nil && *c.DPThresh < 0 {
		return invalid("dp_thresh", *c.DPThresh, "must be non-negative")
	}
	if c.Alpha != nil && *c.Alpha < 0 {
		return invalid("alpha", *c.Alpha, "must be non-negative")
	}
	if c.Beta != nil && *c.Beta < 0 {
		return invalid("beta", *c.Beta, "must be non-negative")
	}
	if c.MaxGenes != nil && *c.MaxGenes < 0 {
		return invalid("max_genes", *c.MaxGenes, "must be non-negative")
	}
	if c.BackgroundWeightShift != nil && !(*c.BackgroundWeightShift > 0) {
		return invalid("background_weight_shift", *c.BackgroundWeightShift, "must be > 0")
	}
	if c.DPNormShift != nil && *c.DPNormShift < 0 {
		return invalid("dp_norm_shift", *c.DPNormShift, "must be non-negative")
	}
	if c.InitialIntensityThresh != nil && !c.InitialIntensityThresh.Auto && c.InitialIntensityThresh.Value < 0 {
		return invalid("initial_intensity_thresh", c.InitialIntensityThresh.Value, "must be non-negative or \"auto\"")
	}
	if c.InitialIntensityPrecision != nil && *c.InitialIntensityPrecision < 0 {
		return invalid("initial_intensity_precision", *c.InitialIntensityPrecision, "must be non-negative")
	}
	if c.GetInitialIntensityThreshMin() > c.GetInitialIntensityThreshMax() {
		return invalid("initial_intensity_thresh_min", c.GetInitialIntensityThreshMin(),
			fmt.Sprintf("must not exceed initial_intensity_thresh_max (%g)", c.GetInitialIntensityThreshMax()))
	}
	if c.BatchSize != nil && *c.BatchSize <= 0 {
		return invalid("batch_size", *c.BatchSize, "must be positive")
	}
	if c.Workers != nil && *c.Workers < 0 {
		return invalid("workers", *c.Workers, "must be non-negative (0 means GOMAXPROCS)")
	}
	if c.DuplicateRule != nil {
		switch *c.DuplicateRule {
		case DuplicateRuleNearestCentre, DuplicateRuleLowestTile:
		default:
			return invalid("duplicate_rule", *c.DuplicateRule,
				fmt.Sprintf("must be %q or %q", DuplicateRuleNearestCentre, DuplicateRuleLowestTile))
		}
	}
	return nil
}

// GetDPThresh returns the dp_thresh value or the default.
func (c *CallingConfig) GetDPThresh() float64 {
	if c.DPThresh == nil {
		return 0.225
	}
	return *c.DPThresh
}

// GetAlpha returns the alpha value or the default.
func (c *CallingConfig) GetAlpha() float64 {
	if c.Alpha == nil {
		return 2.0
	}
	return *c.Alpha
}

// GetBeta returns the beta value or the default.
func (c *CallingConfig) GetBeta() float64 {
	if c.Beta == nil {
		return 1.0
	}
	return *c.Beta
}

// GetMaxGenes returns the max_genes value or the default.
func (c *CallingConfig) GetMaxGenes() int {
	if c.MaxGenes == nil {
		return 30
	}
	return *c.MaxGenes
}

// GetWeightCoefFit returns the weight_coef_fit value or the default.
func (c *CallingConfig) GetWeightCoefFit() bool {
	if c.WeightCoefFit == nil {
		return false
	}
	return *c.WeightCoefFit
}

// GetInitialIntensityThresh returns the initial_intensity_thresh value or the
// default (auto).
func (c *CallingConfig) GetInitialIntensityThresh() IntensityThreshold {
	if c.InitialIntensityThresh == nil {
		return IntensityThreshold{Auto: true}
	}
	return *c.InitialIntensityThresh
}

// GetInitialIntensityThreshAutoParam returns the multiplier applied to the
// median absolute intensity in auto mode.
func (c *CallingConfig) GetInitialIntensityThreshAutoParam() float64 {
	if c.InitialIntensityThreshAutoParam == nil {
		return 5.0
	}
	return *c.InitialIntensityThreshAutoParam
}

// GetInitialIntensityPrecision returns the rounding step of the auto threshold.
func (c *CallingConfig) GetInitialIntensityPrecision() float64 {
	if c.InitialIntensityPrecision == nil {
		return 0.001
	}
	return *c.InitialIntensityPrecision
}

// GetInitialIntensityThreshMin returns the lower clip of the threshold.
func (c *CallingConfig) GetInitialIntensityThreshMin() float64 {
	if c.InitialIntensityThreshMin == nil {
		return 0.001
	}
	return *c.InitialIntensityThreshMin
}

// GetInitialIntensityThreshMax returns the upper clip of the threshold.
func (c *CallingConfig) GetInitialIntensityThreshMax() float64 {
	if c.InitialIntensityThreshMax == nil {
		return 0.2
	}
	return *c.InitialIntensityThreshMax
}

// GetBackgroundWeightShift returns the background_weight_shift value or the default.
func (c *CallingConfig) GetBackgroundWeightShift() float64 {
	if c.BackgroundWeightShift == nil {
		return 0.05
	}
	return *c.BackgroundWeightShift
}

// GetDPNormShift returns the dp_norm_shift value or the default.
func (c *CallingConfig) GetDPNormShift() float64 {
	if c.DPNormShift == nil {
		return 0.1
	}
	return *c.DPNormShift
}

// GetBatchSize returns the batch_size value or the default.
func (c *CallingConfig) GetBatchSize() int {
	if c.BatchSize == nil {
		return 4096
	}
	return *c.BatchSize
}

// GetWorkers returns the workers value or the default (0, GOMAXPROCS).
func (c *CallingConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetDuplicateRule returns the duplicate_rule value or the default.
func (c *CallingConfig) GetDuplicateRule() string {
	if c.DuplicateRule == nil {
		return DuplicateRuleNearestCentre
	}
	return *c.DuplicateRule
}
