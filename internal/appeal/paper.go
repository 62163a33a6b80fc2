package appeal

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
)

// Paragraph is one section of the appeal text.
type Paragraph struct {
	Heading string
	Text    string
}

type paperData struct {
	Obligee    string
	Subject    string
	FileNumber string
	LegalDate  string
	Intro      string
	History    []string
	Paragraphs []Paragraph
}

var intros = map[Kind]string{
	KindDisclosure:      "The obligee disclosed the requested information only in part. I appeal against the decision refusing the rest of it.",
	KindRefusal:         "I appeal against the decision refusing my request for information.",
	KindRefusalNoReason: "I appeal against the decision refusing my request. The decision gives no reason for the refusal.",
	KindAdvancement:     "I appeal against the forwarding of my request to another obligee.",
	KindExpiration:      "The obligee did not decide on my request within the statutory deadline. Such silence is considered a refusal and I appeal against it.",
	KindFallback:        "I appeal against the obligee's handling of my request.",
}

var (
	subjectTemplate = template.Must(template.New("subject").Parse(
		`Appeal{{if .FileNumber}} (file {{.FileNumber}}){{end}}: {{.Subject}}`))

	contentTemplate = template.Must(template.New("content").Parse(`To the appellate body of {{.Obligee}}
via {{.Obligee}}

Re: {{.Subject}}

{{.Intro}}
{{if .History}}
History of the request:
{{range .History}}- {{.}}
{{end}}{{end}}{{range .Paragraphs}}
{{.Heading}}
{{.Text}}
{{end}}
I propose that the appellate body disclose the requested information.

{{.LegalDate}}
`))
)

// compose renders the appeal subject and content from the paragraphs
// published by the steps realized so far.
func compose(k Kind, c *stepContext, legalDate time.Time) (subject, content string, err error) {
	env := c.Env
	data := paperData{
		Intro:     intros[k],
		LegalDate: domain.FormatDate(legalDate),
	}
	if env.Inforequest != nil {
		data.Subject = env.Inforequest.Subject
		data.History = Retrospection(env.Inforequest, env.Branch)
	}
	if env.Branch != nil {
		data.Obligee = env.Branch.Obligee.Name
	}
	if last := env.last(); last != nil {
		data.FileNumber = last.FileNumber
	}
	for _, r := range c.Path {
		for _, name := range r.Globals {
			if s := c.Globals.String(name); strings.TrimSpace(s) != "" {
				data.Paragraphs = append(data.Paragraphs, Paragraph{Heading: r.Title, Text: s})
			}
		}
	}

	var b strings.Builder
	if err := subjectTemplate.Execute(&b, data); err != nil {
		return "", "", fmt.Errorf("rendering subject: %w", err)
	}
	subject = b.String()
	b.Reset()
	if err := contentTemplate.Execute(&b, data); err != nil {
		return "", "", fmt.Errorf("rendering content: %w", err)
	}
	return subject, b.String(), nil
}

// Retrospection narrates the branch history up to its last action. An
// advanced branch starts with the history of the branch that forwarded it.
func Retrospection(ir *domain.Inforequest, b *domain.Branch) []string {
	if b == nil {
		return nil
	}
	var upTo int64
	if last := b.LastAction(); last != nil {
		upTo = last.ID
	}
	return retrospect(ir, b, upTo, 0)
}

func retrospect(ir *domain.Inforequest, b *domain.Branch, upTo int64, depth int) []string {
	var out []string
	if !b.IsMain() && depth < len(ir.Branches) {
		if parent := branchOfAction(ir, b.AdvancedByID); parent != nil {
			out = append(out, retrospect(ir, parent, b.AdvancedByID, depth+1)...)
		}
	}
	for _, a := range b.Actions {
		if line := narrate(b, a); line != "" {
			out = append(out, line)
		}
		if a.ID == upTo {
			break
		}
	}
	return out
}

func branchOfAction(ir *domain.Inforequest, actionID int64) *domain.Branch {
	for _, b := range ir.Branches {
		if b.Action(actionID) != nil {
			return b
		}
	}
	return nil
}

func narrate(b *domain.Branch, a *domain.Action) string {
	on := domain.FormatDate(a.LegalDate)
	who := b.Obligee.Name
	switch a.Type {
	case domain.ActionRequest:
		return fmt.Sprintf("On %s I requested information from %s.", on, who)
	case domain.ActionAdvancedRequest:
		return fmt.Sprintf("On %s the request was forwarded to %s.", on, who)
	case domain.ActionConfirmation:
		return fmt.Sprintf("On %s %s confirmed receiving the request.", on, who)
	case domain.ActionClarificationRequest:
		return fmt.Sprintf("On %s %s asked me to clarify the request.", on, who)
	case domain.ActionClarificationResponse:
		return fmt.Sprintf("On %s I clarified the request.", on)
	case domain.ActionExtension:
		return fmt.Sprintf("On %s %s extended its deadline by %d working days.", on, who, a.Extension)
	case domain.ActionAdvancement:
		return fmt.Sprintf("On %s %s forwarded the request to other obligees.", on, who)
	case domain.ActionDisclosure:
		return fmt.Sprintf("On %s %s disclosed the information (%s).", on, who, strings.ToLower(a.DisclosureLevel.String()))
	case domain.ActionRefusal:
		return fmt.Sprintf("On %s %s refused the request.", on, who)
	case domain.ActionAppeal:
		return fmt.Sprintf("On %s I appealed.", on)
	case domain.ActionRemandment:
		return fmt.Sprintf("On %s the appellate body returned the request to %s.", on, who)
	case domain.ActionExpiration:
		return fmt.Sprintf("The deadline expired on %s without a decision.", on)
	}
	return ""
}
