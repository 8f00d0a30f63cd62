// Package strategy implements the pure oneshot-vs-pool selector.
package strategy

// Mode is the resolved execution strategy.
type Mode string

const (
	Oneshot Mode = "oneshot"
	Pool    Mode = "pool"
)

// Override is an explicit env/config-provided strategy, if any.
type Override string

const (
	NoOverride     Override = ""
	OverrideOneshot Override = "oneshot"
	OverridePool    Override = "pool"
)

// Signals captures the invocation/environment facts the selector
// reasons over.
type Signals struct {
	Override Override

	URLCount          int
	HasBatchFile      bool
	ExplicitBatchFlag bool // --concurrency, --continue-on-error, or literal "batch" subcommand
	BatchModeEnvSet   bool // PRINTEER_BATCH_MODE=1

	CLISingleShot  bool
	TestEnv        bool
	ContainerEnv   bool
	ServerlessEnv  bool
	ServerAPIContext bool
}

func (s Signals) isBatchClass() bool {
	return s.URLCount > 1 || s.HasBatchFile || s.ExplicitBatchFlag || s.BatchModeEnvSet
}

func (s Signals) isOneshotClass() bool {
	return s.CLISingleShot || s.TestEnv || s.ContainerEnv || s.ServerlessEnv
}

// Select is a pure, stateless, idempotent function of environment and
// invocation signals.
func Select(s Signals) Mode {
	switch s.Override {
	case OverrideOneshot:
		return Oneshot
	case OverridePool:
		return Pool
	}

	if s.isBatchClass() {
		return Pool
	}

	if s.isOneshotClass() {
		return Oneshot
	}

	return Pool
}
