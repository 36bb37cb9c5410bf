package gate

import "fmt"

// MinThresholdGate blocks when the value under ValueKey drops below the
// floor under FloorKey (e.g. margin below the margin floor). A missing value
// blocks; a missing floor passes, since no policy is configured.
type MinThresholdGate struct {
	GateName string
	ValueKey string
	FloorKey string
	Reason   string
}

// NewMinThresholdGate creates a floor-check gate.
func NewMinThresholdGate(name, valueKey, floorKey, reason string) *MinThresholdGate {
	return &MinThresholdGate{GateName: name, ValueKey: valueKey, FloorKey: floorKey, Reason: reason}
}

// Name returns the stable gate identifier
func (g *MinThresholdGate) Name() string {
	return g.GateName
}

// Evaluate judges the proposed transition
func (g *MinThresholdGate) Evaluate(ec *EvalContext) Result {
	floor, ok := ec.Float(g.FloorKey)
	if !ok {
		return Pass()
	}

	value, ok := ec.Float(g.ValueKey)
	if !ok {
		return Block(fmt.Sprintf("%s_missing", g.ValueKey))
	}

	if value < floor {
		return Block(g.Reason)
	}
	return Pass()
}

// MaxThresholdGate warns or blocks when the value under ValueKey exceeds the
// ceiling under CeilingKey. With WarnOnly set, breaches are reported as
// warnings attached to the audit entry instead of blocking.
type MaxThresholdGate struct {
	GateName   string
	ValueKey   string
	CeilingKey string
	Reason     string
	WarnOnly   bool
}

// NewMaxThresholdGate creates a ceiling-check gate.
func NewMaxThresholdGate(name, valueKey, ceilingKey, reason string, warnOnly bool) *MaxThresholdGate {
	return &MaxThresholdGate{GateName: name, ValueKey: valueKey, CeilingKey: ceilingKey, Reason: reason, WarnOnly: warnOnly}
}

// Name returns the stable gate identifier
func (g *MaxThresholdGate) Name() string {
	return g.GateName
}

// Evaluate judges the proposed transition
func (g *MaxThresholdGate) Evaluate(ec *EvalContext) Result {
	ceiling, ok := ec.Float(g.CeilingKey)
	if !ok {
		return Pass()
	}

	value, ok := ec.Float(g.ValueKey)
	if !ok {
		return Block(fmt.Sprintf("%s_missing", g.ValueKey))
	}

	if value > ceiling {
		if g.WarnOnly {
			return Warn(g.Reason)
		}
		return Block(g.Reason)
	}
	return Pass()
}

// ZeroCounterGate blocks while the counter under CounterKey is non-zero,
// e.g. open close-period exceptions that must be resolved before closing.
type ZeroCounterGate struct {
	GateName   string
	CounterKey string
	Reason     string
}

// NewZeroCounterGate creates an outstanding-counter gate.
func NewZeroCounterGate(name, counterKey, reason string) *ZeroCounterGate {
	return &ZeroCounterGate{GateName: name, CounterKey: counterKey, Reason: reason}
}

// Name returns the stable gate identifier
func (g *ZeroCounterGate) Name() string {
	return g.GateName
}

// Evaluate judges the proposed transition
func (g *ZeroCounterGate) Evaluate(ec *EvalContext) Result {
	count, ok := ec.Int(g.CounterKey)
	if !ok {
		return Block(fmt.Sprintf("%s_missing", g.CounterKey))
	}

	if count != 0 {
		return Block(g.Reason)
	}
	return Pass()
}

// RequiredFlagGate blocks unless the boolean under FlagKey is true, e.g. a
// dual-approval acknowledgment.
type RequiredFlagGate struct {
	GateName string
	FlagKey  string
	Reason   string
}

// NewRequiredFlagGate creates a required-flag gate.
func NewRequiredFlagGate(name, flagKey, reason string) *RequiredFlagGate {
	return &RequiredFlagGate{GateName: name, FlagKey: flagKey, Reason: reason}
}

// Name returns the stable gate identifier
func (g *RequiredFlagGate) Name() string {
	return g.GateName
}

// Evaluate judges the proposed transition
func (g *RequiredFlagGate) Evaluate(ec *EvalContext) Result {
	flag, ok := ec.Bool(g.FlagKey)
	if !ok || !flag {
		return Block(g.Reason)
	}
	return Pass()
}
