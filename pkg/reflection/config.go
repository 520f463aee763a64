package reflection

// Config tunes the reflection engine's thresholds and deltas. Grounded on
// §4.6's numeric rules; fields left at zero are filled by withDefaults.
type Config struct {
	// BucketSize is how many episodic artifacts a hierarchical-reflection
	// bucket groups before the map phase summarizes it. Default 10.
	BucketSize int
	// MaxEpisodesPerRun bounds how many episodic artifacts a single
	// hierarchical-reflection run considers. Default 100.
	MaxEpisodesPerRun int

	// ReinforceDelta is the importance delta a success reflection proposes
	// for its source artifacts. Positive.
	ReinforceDelta float64
	// DemoteDelta is the importance delta a failure reflection proposes for
	// its source artifacts. Small and negative — AdjustImportanceByDelta's
	// floor at 0.01 keeps this from ever erasing an artifact.
	DemoteDelta float64

	// InitialReflectiveImportance seeds a newly generated reflective
	// artifact's importance before decay/usage ever touch it.
	InitialReflectiveImportance float64

	// ThresholdSuccessAt and ThresholdFailureBelow configure
	// ThresholdEvaluator's default thresholds.
	ThresholdSuccessAt    float64
	ThresholdFailureBelow float64
}

// DefaultConfig returns §4.6's defaults.
func DefaultConfig() Config {
	return Config{
		BucketSize:                  10,
		MaxEpisodesPerRun:           100,
		ReinforceDelta:              0.1,
		DemoteDelta:                 -0.05,
		InitialReflectiveImportance: 0.6,
		ThresholdSuccessAt:          0.7,
		ThresholdFailureBelow:       0.3,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.BucketSize <= 0 {
		c.BucketSize = d.BucketSize
	}
	if c.MaxEpisodesPerRun <= 0 {
		c.MaxEpisodesPerRun = d.MaxEpisodesPerRun
	}
	if c.ReinforceDelta == 0 {
		c.ReinforceDelta = d.ReinforceDelta
	}
	if c.DemoteDelta == 0 {
		c.DemoteDelta = d.DemoteDelta
	}
	if c.InitialReflectiveImportance == 0 {
		c.InitialReflectiveImportance = d.InitialReflectiveImportance
	}
	if c.ThresholdSuccessAt == 0 {
		c.ThresholdSuccessAt = d.ThresholdSuccessAt
	}
	if c.ThresholdFailureBelow == 0 {
		c.ThresholdFailureBelow = d.ThresholdFailureBelow
	}
	return c
}
