package appeal

import (
	"strings"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/wizard"
)

// reasonFlow is the part of the refusal appeal contesting one refusal reason.
// A flow without a question asks for a single paragraph; with a question,
// the answer picks one of two paragraphs.
type reasonFlow struct {
	reason domain.RefusalReason
	name   string
	field  string
	title  string

	question   string
	yes, no    string
	yesTitle   string
	noTitle    string
	noOptional bool
}

var reasonFlows = []reasonFlow{
	{
		reason: domain.RefusalDoesNotHave,
		name:   "DoesNotHave",
		field:  "does_not_have",
		title:  "The obligee claims it does not have the information",
	},
	{
		reason:   domain.RefusalDoesNotProvide,
		name:     "DoesNotProvide",
		field:    "does_not_provide",
		question: "Is the information related to spending public funds?",
		yes:      "PublicFunds",
		yesTitle: "The information concerns public funds",
		no:       "Fallback",
		noTitle:  "The obligee is obliged to provide the information",
	},
	{
		reason: domain.RefusalDoesNotCreate,
		name:   "DoesNotCreate",
		field:  "does_not_create",
		title:  "The obligee claims it would have to create new information",
	},
	{
		reason: domain.RefusalCopyright,
		name:   "Copyright",
		field:  "copyright",
		title:  "The information is not protected by copyright",
	},
	{
		reason:     domain.RefusalBusinessSecret,
		name:       "BusinessSecret",
		field:      "business_secret",
		question:   "Is the information related to spending public funds?",
		yes:        "PublicFunds",
		yesTitle:   "Public funds are not a business secret",
		no:         "Fallback",
		noTitle:    "The information is not a business secret",
		noOptional: true,
	},
	{
		reason:     domain.RefusalPersonal,
		name:       "Personal",
		field:      "personal",
		question:   "Does the information concern a public officer?",
		yes:        "Officer",
		yesTitle:   "Information about public officers may be disclosed",
		no:         "Fallback",
		noTitle:    "The personal data can be anonymized",
		noOptional: true,
	},
	{
		reason:     domain.RefusalConfidential,
		name:       "Confidential",
		field:      "confidential",
		question:   "Do you think the information is not confidential at all?",
		yes:        "NotConfidential",
		yesTitle:   "The information is not confidential",
		no:         "Fallback",
		noTitle:    "The confidential part can be removed",
		noOptional: true,
	},
	{
		reason:   domain.RefusalOtherReason,
		name:     "OtherReason",
		field:    "other_reason",
		question: "Is the reason given by the obligee valid under the law?",
		yes:      "Valid",
		yesTitle: "The reason does not justify the refusal",
		no:       "Invalid",
		noTitle:  "The reason is not recognized by the law",
	},
}

// coversAll reports whether every reason has a flow contesting it.
func coversAll(reasons []domain.RefusalReason) bool {
	for _, r := range reasons {
		if flowOf(r) == nil {
			return false
		}
	}
	return true
}

func flowOf(r domain.RefusalReason) *reasonFlow {
	for i := range reasonFlows {
		if reasonFlows[i].reason == r {
			return &reasonFlows[i]
		}
	}
	return nil
}

func hasReason(c *stepContext, r domain.RefusalReason) bool {
	last := c.Env.last()
	if last == nil {
		return false
	}
	for _, have := range last.RefusalReasons {
		if have == r {
			return true
		}
	}
	return false
}

func (f reasonFlow) dispatcher() wizard.StepID { return wizard.StepID(f.name) }

// steps builds the flow; every path through it ends at next.
func (f reasonFlow) steps(next wizard.StepID) []*wizard.Step[Env] {
	var entry wizard.StepID
	var out []*wizard.Step[Env]
	if f.question == "" {
		entry = wizard.StepID(f.name + "Reason")
		out = append(out, section(entry, f.title, f.field+"_reason", next))
	} else {
		entry = wizard.StepID(f.name + f.yes)
		yes := wizard.StepID(f.name + f.yes + "Reason")
		no := wizard.StepID(f.name + f.no + "Reason")
		out = append(out,
			fork(entry, f.question, f.field+"_"+toSnake(f.yes), yes, no),
			section(yes, f.yesTitle, f.field+"_"+toSnake(f.yes)+"_reason", next),
		)
		if f.noOptional {
			out = append(out, optionalSection(no, f.noTitle, f.field+"_"+toSnake(f.no)+"_reason", next))
		} else {
			out = append(out, section(no, f.noTitle, f.field+"_"+toSnake(f.no)+"_reason", next))
		}
	}

	reason := f.reason
	dispatch := &wizard.Step[Env]{
		ID:   f.dispatcher(),
		Kind: wizard.Structural,
		Route: func(c *stepContext) wizard.Route {
			if hasReason(c, reason) {
				return wizard.To(entry)
			}
			return wizard.To(next)
		},
	}
	return append([]*wizard.Step[Env]{dispatch}, out...)
}

func toSnake(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Sanitization steps handle documents disclosed with parts blacked out.
const (
	Sanitization                  wizard.StepID = "Sanitization"
	SanitizationLevel             wizard.StepID = "SanitizationLevel"
	SanitizationOverlySanitized   wizard.StepID = "SanitizationOverlySanitized"
	SanitizationMissingDocument   wizard.StepID = "SanitizationMissingDocument"
	SanitizationProperlySanitized wizard.StepID = "SanitizationProperlySanitized"
)

const (
	levelOverly   = "overly-sanitized"
	levelMissing  = "missing-document"
	levelProperly = "properly-sanitized"
)

var sanitizable = []domain.RefusalReason{domain.RefusalBusinessSecret, domain.RefusalPersonal, domain.RefusalConfidential}

func sanitizableReasons(c *stepContext) []domain.RefusalReason {
	var out []domain.RefusalReason
	for _, r := range sanitizable {
		if hasReason(c, r) {
			out = append(out, r)
		}
	}
	return out
}

// uncontested reports whether some sanitizable reason got no paragraph.
func uncontested(c *stepContext) bool {
	for _, r := range sanitizableReasons(c) {
		prefix := flowOf(r).field + "_"
		contested := false
		for _, name := range c.Globals.Keys() {
			if strings.HasPrefix(name, prefix) && strings.TrimSpace(c.Globals.String(name)) != "" {
				contested = true
				break
			}
		}
		if !contested {
			return true
		}
	}
	return false
}

func sanitizationSteps() []*wizard.Step[Env] {
	return []*wizard.Step[Env]{
		{
			ID:   Sanitization,
			Kind: wizard.Structural,
			Route: func(c *stepContext) wizard.Route {
				if len(sanitizableReasons(c)) > 0 {
					return wizard.To(SanitizationLevel)
				}
				return wizard.To(Paper)
			},
		},
		{
			ID:    SanitizationLevel,
			Kind:  wizard.Question,
			Title: "How was the disclosed document sanitized?",
			Fields: func(*stepContext) []wizard.Field {
				return []wizard.Field{wizard.Choice{
					Meta:    wizard.Meta{Key: "sanitization_level", Required: true},
					Options: []wizard.Option{{Value: levelOverly}, {Value: levelMissing}, {Value: levelProperly}},
				}}
			},
			Then: func(c *stepContext, v wizard.Values) wizard.Route {
				switch v.String("sanitization_level") {
				case levelOverly:
					return wizard.To(SanitizationOverlySanitized)
				case levelMissing:
					return wizard.To(SanitizationMissingDocument)
				}
				if uncontested(c) {
					return wizard.To(SanitizationProperlySanitized)
				}
				return wizard.To(Paper)
			},
			Recovery: Paper,
		},
		section(SanitizationOverlySanitized, "More than necessary was blacked out", "sanitization_overly_sanitized", Paper),
		section(SanitizationMissingDocument, "A document is missing from the disclosure", "sanitization_missing_document", Paper),
		{
			ID:    SanitizationProperlySanitized,
			Kind:  wizard.Deadend,
			Title: "The document was sanitized properly; there is nothing left to appeal",
			Next:  Paper,
		},
	}
}

// refusalSteps chains the flow of every reason, then sanitization.
func refusalSteps() []*wizard.Step[Env] {
	var out []*wizard.Step[Env]
	for i, f := range reasonFlows {
		next := Sanitization
		if i+1 < len(reasonFlows) {
			next = reasonFlows[i+1].dispatcher()
		}
		out = append(out, f.steps(next)...)
	}
	return append(out, sanitizationSteps()...)
}
