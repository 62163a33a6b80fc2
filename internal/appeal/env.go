// Package appeal drafts the applicant's appeal for a branch. One of several
// graphs applies, chosen by what the branch's last action was.
package appeal

import (
	"fmt"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/wizard"
)

// Kind names an appeal graph. Kinds double as wizard names in instance ids.
type Kind string

const (
	KindDisclosure      Kind = "DisclosureAppeal"
	KindRefusal         Kind = "RefusalAppeal"
	KindRefusalNoReason Kind = "RefusalNoReasonAppeal"
	KindAdvancement     Kind = "AdvancementAppeal"
	KindExpiration      Kind = "ExpirationAppeal"
	KindFallback        Kind = "FallbackAppeal"
)

// Kinds in the order their applicability is tested.
var Kinds = []Kind{KindDisclosure, KindRefusal, KindRefusalNoReason, KindAdvancement, KindExpiration, KindFallback}

type Env struct {
	Inforequest *domain.Inforequest
	Branch      *domain.Branch
	Calendar    domain.Calendar
	Today       time.Time
}

func (e Env) last() *domain.Action {
	if e.Branch == nil {
		return nil
	}
	return e.Branch.LastAction()
}

// Choose returns the first kind applicable to the branch. KindFallback always
// applies.
func Choose(env Env) Kind {
	for _, k := range Kinds {
		if applicable(k, env) {
			return k
		}
	}
	return KindFallback
}

func applicable(k Kind, env Env) bool {
	last := env.last()
	if last == nil {
		return k == KindFallback
	}
	switch k {
	case KindDisclosure:
		return last.Type == domain.ActionDisclosure && last.DisclosureLevel != domain.DisclosureFull
	case KindRefusal:
		return last.Type == domain.ActionRefusal && len(last.RefusalReasons) > 0 && coversAll(last.RefusalReasons)
	case KindRefusalNoReason:
		if last.Type != domain.ActionRefusal {
			return false
		}
		for _, r := range last.RefusalReasons {
			if r != domain.RefusalNoReason {
				return false
			}
		}
		return true
	case KindAdvancement:
		return last.Type == domain.ActionAdvancement
	case KindExpiration:
		if last.Type == domain.ActionExpiration {
			return true
		}
		if !last.HasObligeeDeadline() {
			return false
		}
		missed, err := last.Deadline(env.Calendar, nil).IsExtendedMissedAt(env.Today)
		return err == nil && missed
	case KindFallback:
		return true
	}
	return false
}

// InstanceID keys the draft by the action being appealed, so a new last
// action starts a fresh draft.
func InstanceID(k Kind, lastActionID int64) string {
	return domain.InstanceID(string(k), lastActionID)
}

// Graph returns the graph drafting an appeal of the given kind.
func Graph(k Kind) (*wizard.Graph[Env], error) {
	g, ok := graphs[k]
	if !ok {
		return nil, fmt.Errorf("unknown appeal kind %q", k)
	}
	return g, nil
}

type stepContext = wizard.Context[Env]
