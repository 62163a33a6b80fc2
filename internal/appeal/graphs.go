package appeal

import (
	"github.com/inforequest/inforequest/internal/wizard"
)

// withPaper appends the dated paper and the final print step.
func withPaper(k Kind, steps ...*wizard.Step[Env]) []*wizard.Step[Env] {
	return append(steps, paperStep(k), finalStep())
}

func reasonGraph(k Kind, title string) *wizard.Graph[Env] {
	return wizard.MustGraph(string(k), Reason, withPaper(k, section(Reason, title, ValReason, Paper))...)
}

var graphs = map[Kind]*wizard.Graph[Env]{
	KindDisclosure:      reasonGraph(KindDisclosure, "Why is the disclosed information insufficient?"),
	KindAdvancement:     reasonGraph(KindAdvancement, "Why should the obligee have kept the request?"),
	KindFallback:        reasonGraph(KindFallback, "Why do you appeal?"),
	KindExpiration:      wizard.MustGraph(string(KindExpiration), Paper, withPaper(KindExpiration)...),
	KindRefusalNoReason: wizard.MustGraph(string(KindRefusalNoReason), Paper, withPaper(KindRefusalNoReason)...),
	KindRefusal:         wizard.MustGraph(string(KindRefusal), reasonFlows[0].dispatcher(), withPaper(KindRefusal, refusalSteps()...)...),
}
