// Package clarificationresponse drafts the applicant's answer to an
// obligee's request for clarification.
package clarificationresponse

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/wizard"
)

const WizardName = "ClarificationResponseWizard"

// Global value names.
const (
	ValContent   = "content"
	ValLegalDate = "legal_date"
	ValSubject   = "subject"
	ValText      = "text"
)

const (
	Content wizard.StepID = "Content"
	Paper   wizard.StepID = "Paper"
	Final   wizard.StepID = "Final"
)

const (
	msgOlderThanRequest = "May not be older than the clarification request."
	msgFromFuture       = "May not be from the future."
)

type Env struct {
	Inforequest *domain.Inforequest
	Branch      *domain.Branch
	Calendar    domain.Calendar
	Today       time.Time
}

// request is the clarification request being answered.
func (e Env) request() *domain.Action {
	if e.Branch == nil {
		return nil
	}
	return e.Branch.LastAction()
}

type stepContext = wizard.Context[Env]

// InstanceID keys the draft by the clarification request it answers.
func InstanceID(requestID int64) string {
	return domain.InstanceID(WizardName, requestID)
}

var Graph = wizard.MustGraph(WizardName, Content,
	&wizard.Step[Env]{
		ID:      Content,
		Kind:    wizard.Question,
		Title:   "What does the obligee need clarified?",
		Globals: []string{ValText},
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{wizard.Text{Meta: wizard.Meta{Key: ValText, Label: "Clarification", Required: true}}}
		},
		Next: Paper,
	},
	&wizard.Step[Env]{
		ID:      Paper,
		Kind:    wizard.Question,
		Title:   "Date the response",
		Globals: []string{ValLegalDate},
		Fields: func(c *stepContext) []wizard.Field {
			today := c.Env.Today
			return []wizard.Field{wizard.Date{
				Meta:  wizard.Meta{Key: ValLegalDate, Label: "Legal date", Required: true, Initial: domain.FormatDate(today)},
				Today: func() time.Time { return today },
			}}
		},
		Clean: func(c *stepContext, v wizard.Values) wizard.FieldErrors {
			if msg := checkLegalDate(c.Env, v.Time(ValLegalDate)); msg != "" {
				return wizard.FieldErrors{}.Add(ValLegalDate, msg)
			}
			return nil
		},
		Derive: func(c *stepContext, v wizard.Values) (map[string]any, error) {
			subject, content, err := compose(c.Env, c.Globals.String(ValText), v.Time(ValLegalDate))
			if err != nil {
				return nil, err
			}
			return map[string]any{ValSubject: subject, ValContent: content}, nil
		},
		Next: Final,
	},
	&wizard.Step[Env]{
		ID:       Final,
		Kind:     wizard.Question,
		Title:    "Send the response",
		Describe: describeDeadline,
		Next:     wizard.Done,
	},
)

// checkLegalDate keeps the response between the request and today; it is
// sent as soon as it is finished.
func checkLegalDate(env Env, d time.Time) string {
	if d.IsZero() {
		return ""
	}
	switch req := env.request(); {
	case req != nil && d.Before(req.LegalDate):
		return msgOlderThanRequest
	case d.After(domain.Day(env.Today)):
		return msgFromFuture
	}
	return ""
}

// describeDeadline reports how long the applicant has left to answer.
func describeDeadline(c *stepContext) map[string]any {
	req := c.Env.request()
	if req == nil || !req.HasApplicantDeadline() {
		return nil
	}
	d := req.Deadline(c.Env.Calendar, domain.FixedClock(c.Env.Today))
	out := make(map[string]any)
	if missed, err := d.IsExtendedMissed(); err == nil {
		out["deadline_missed"] = missed
	}
	if n, err := d.ExtendedRemaining(domain.UnitCalendarDays); err == nil {
		out["calendar_days_remaining"] = n
	}
	return out
}

type paperData struct {
	Obligee    string
	Subject    string
	FileNumber string
	Requested  string
	Text       string
	LegalDate  string
}

var (
	subjectTemplate = template.Must(template.New("subject").Parse(
		`Clarification{{if .FileNumber}} (file {{.FileNumber}}){{end}}: {{.Subject}}`))

	contentTemplate = template.Must(template.New("content").Parse(`To {{.Obligee}}

Re: {{.Subject}}
{{if .Requested}}
In reply to your request for clarification of {{.Requested}}:
{{end}}
{{.Text}}

{{.LegalDate}}
`))
)

func compose(env Env, text string, legalDate time.Time) (subject, content string, err error) {
	data := paperData{Text: strings.TrimSpace(text), LegalDate: domain.FormatDate(legalDate)}
	if env.Inforequest != nil {
		data.Subject = env.Inforequest.Subject
	}
	if env.Branch != nil {
		data.Obligee = env.Branch.Obligee.Name
	}
	if req := env.request(); req != nil {
		data.FileNumber = req.FileNumber
		data.Requested = domain.FormatDate(req.LegalDate)
	}
	if data.Text == "" {
		return "", "", fmt.Errorf("no clarification to send")
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
