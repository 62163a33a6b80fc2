package service

import (
	"fmt"
	"strconv"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/wizard"
)

type FieldView struct {
	wizard.FieldInfo
	Value any `json:"value,omitempty"`
}

// StepView is the transport-neutral rendering of a replay result. Links are
// built from base, the wizard's root path.
type StepView struct {
	Instance string              `json:"instance"`
	State    string              `json:"state"`
	ID       string              `json:"step"`
	Title    string              `json:"title,omitempty"`
	Index    int                 `json:"index"`
	Number   int                 `json:"number"`
	Total    int                 `json:"total"`
	Fields   []FieldView         `json:"fields"`
	Errors   map[string][]string `json:"errors,omitempty"`
	Extra    map[string]any      `json:"extra,omitempty"`
	Prev     string              `json:"prev,omitempty"`
	Next     string              `json:"next,omitempty"`
	Redirect string              `json:"redirect,omitempty"`
}

func Render(res *wizard.Result, base string) StepView {
	cur := res.Current
	v := StepView{
		Instance: res.Instance,
		State:    res.State.String(),
		ID:       string(cur.ID),
		Title:    cur.Title,
		Index:    cur.Index,
		Number:   cur.Number,
		Total:    res.Total,
		Fields:   make([]FieldView, 0, len(cur.Fields)),
		Errors:   cur.Errors,
		Extra:    cur.Extra,
		Redirect: res.Redirect,
	}
	for _, f := range cur.Fields {
		v.Fields = append(v.Fields, FieldView{FieldInfo: wizard.Describe(f), Value: cur.Raw(f.Name())})
	}
	if p := res.Prev(); p != nil {
		v.Prev = StepURL(base, p.Index)
	}
	if n := res.Next(); n != nil && cur.IsValid {
		v.Next = StepURL(base, n.Index)
	}
	return v
}

func StepURL(base string, index int) string {
	return base + "/" + strconv.Itoa(index)
}

func ObligeeActionPath(inforequestID int64) string {
	return domain.InforequestPath(inforequestID) + "/obligee-action"
}

func ClarificationResponsePath(inforequestID, branchID int64) string {
	return fmt.Sprintf("%s/branches/%d/clarification-response", domain.InforequestPath(inforequestID), branchID)
}

func AppealPath(inforequestID, branchID int64) string {
	return fmt.Sprintf("%s/branches/%d/appeal", domain.InforequestPath(inforequestID), branchID)
}
