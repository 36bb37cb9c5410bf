package gate

import (
	"fmt"

	"go.uber.org/zap"
)

// Report aggregates all gate results for one attempt. The verdict is Block
// if any gate blocks, else Warn if any warns, else Pass.
type Report struct {
	Verdict      Verdict  `json:"verdict"`
	BlockReasons []string `json:"block_reasons,omitempty"`
	WarnReasons  []string `json:"warn_reasons,omitempty"`
	Results      []Result `json:"results"`
}

// Evaluator runs governance gates in their declared order so reason lists
// are deterministic for the same input.
type Evaluator struct {
	registry *Registry
	logger   *zap.Logger
}

// NewEvaluator creates a gate evaluator backed by a registry.
func NewEvaluator(registry *Registry, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		registry: registry,
		logger:   logger,
	}
}

// Evaluate runs the named gates, in order, against the evaluation context.
// A gate that panics or is missing from the registry fails closed: its
// result is a Block with a generic fault code, never the raw fault, so
// internals do not leak into the audit trail.
func (e *Evaluator) Evaluate(ec *EvalContext, gateIDs []string) *Report {
	report := &Report{
		Verdict: VerdictPass,
		Results: make([]Result, 0, len(gateIDs)),
	}

	for _, id := range gateIDs {
		result := e.runGate(ec, id)
		report.Results = append(report.Results, result)

		switch result.Verdict {
		case VerdictBlock:
			report.Verdict = VerdictBlock
			report.BlockReasons = append(report.BlockReasons, result.Reason)
		case VerdictWarn:
			if report.Verdict != VerdictBlock {
				report.Verdict = VerdictWarn
			}
			report.WarnReasons = append(report.WarnReasons, result.Reason)
		}
	}

	return report
}

// runGate executes one gate with panic containment.
func (e *Evaluator) runGate(ec *EvalContext, id string) (result Result) {
	g, ok := e.registry.Get(id)
	if !ok {
		e.logger.Error("Gate not registered, failing closed",
			zap.String("gate", id),
			zap.String("tenant_id", ec.TenantID))
		return Result{Gate: id, Verdict: VerdictBlock, Reason: faultReason(id)}
	}

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Gate panicked, failing closed",
				zap.String("gate", id),
				zap.String("tenant_id", ec.TenantID),
				zap.Any("panic", r))
			result = Result{Gate: id, Verdict: VerdictBlock, Reason: faultReason(id)}
		}
	}()

	result = g.Evaluate(ec)
	result.Gate = id
	return result
}

func faultReason(gateName string) string {
	return fmt.Sprintf("gate_fault:%s", gateName)
}
