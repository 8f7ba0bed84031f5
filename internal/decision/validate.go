package decision

import (
	"fmt"

	"alpha-arena/internal/broker"
	"alpha-arena/pkg/types"
)

// ValidationError marks a decision that parsed but fails the contract.
// These decisions are still logged (unexecuted) so the audit trail shows
// what the oracle asked for.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid decision: " + e.Reason
}

// Validate checks a parsed decision against the contract:
//
//   - operation in {buy, sell, hold, close},
//   - symbol in the supported set for non-hold operations,
//   - target portion in (0, 1] for buy/sell/close and 0 for hold,
//   - reason is a string and may be empty.
func Validate(d *types.Decision) error {
	switch d.Operation {
	case types.OpBuy, types.OpSell, types.OpClose:
		if !broker.SupportedSymbol(d.Symbol) {
			return &ValidationError{Reason: fmt.Sprintf("unsupported symbol %q", d.Symbol)}
		}
		if d.TargetPortion <= 0 || d.TargetPortion > 1 {
			return &ValidationError{Reason: fmt.Sprintf("target portion %v outside (0, 1]", d.TargetPortion)}
		}
	case types.OpHold:
		if d.TargetPortion != 0 {
			return &ValidationError{Reason: fmt.Sprintf("hold with non-zero portion %v", d.TargetPortion)}
		}
	default:
		return &ValidationError{Reason: fmt.Sprintf("unknown operation %q", d.Operation)}
	}
	return nil
}
