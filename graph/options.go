package graph

// Options configures Engine execution behavior.
//
// Zero values are valid - the Engine applies defaults at run time.
type Options struct {
	// MaxSteps limits how many steps a run may execute. When the limit is
	// reached with work still queued, the run completes normally and the
	// result is flagged MaxStepsReached.
	// If 0, the default of 100 is used. Negative disables the limit.
	MaxSteps int

	// CheckpointInterval controls how many steps run between checkpoint
	// updates. 1 (the default) checkpoints after every step; larger
	// values trade durability granularity for fewer store writes. The
	// terminal checkpoint is always written regardless of interval.
	CheckpointInterval int

	// Metrics optionally records Prometheus metrics. Nil disables.
	Metrics *Metrics
}

const (
	defaultMaxSteps           = 100
	defaultCheckpointInterval = 1
)

// maxSteps resolves the effective limit: 0 means default, negative means
// unlimited.
func (o Options) maxSteps() int {
	if o.MaxSteps == 0 {
		return defaultMaxSteps
	}
	if o.MaxSteps < 0 {
		return 0
	}
	return o.MaxSteps
}

func (o Options) checkpointInterval() int {
	if o.CheckpointInterval <= 0 {
		return defaultCheckpointInterval
	}
	return o.CheckpointInterval
}
