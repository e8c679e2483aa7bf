package analysis

import "strings"

// DecisionKind tags the model's judgement of an execution result.
type DecisionKind int

const (
	// DecisionUnclear means the reply matched neither expected form. The
	// loop stops rather than retrying on an ambiguous signal.
	DecisionUnclear DecisionKind = iota
	// DecisionDone carries the final answer summary.
	DecisionDone
	// DecisionContinue carries the reason another attempt is needed.
	DecisionContinue
)

// Decision is the parsed, tagged form of the model's classification reply.
type Decision struct {
	Kind DecisionKind
	Text string
}

// parseDecision parses a model reply into a Decision. Anything that is not
// an explicit DONE or CONTINUE is Unclear.
func parseDecision(reply string) Decision {
	s := strings.TrimSpace(reply)
	upper := strings.ToUpper(s)
	switch {
	case strings.HasPrefix(upper, "DONE"):
		return Decision{Kind: DecisionDone, Text: trimTag(s, "DONE")}
	case strings.HasPrefix(upper, "CONTINUE"):
		return Decision{Kind: DecisionContinue, Text: trimTag(s, "CONTINUE")}
	default:
		return Decision{Kind: DecisionUnclear, Text: s}
	}
}

func trimTag(s, tag string) string {
	s = s[len(tag):]
	s = strings.TrimLeft(s, ":")
	return strings.TrimSpace(s)
}
