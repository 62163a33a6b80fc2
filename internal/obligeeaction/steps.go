package obligeeaction

import (
	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/wizard"
)

const (
	HasSingleBranch            wizard.StepID = "HasSingleBranch"
	SelectBranch               wizard.StepID = "SelectBranch"
	IsByEmail                  wizard.StepID = "IsByEmail"
	InputBasics                wizard.StepID = "InputBasics"
	CanAddClarificationRequest wizard.StepID = "CanAddClarificationRequest"
	IsItQuestion               wizard.StepID = "IsItQuestion"
	CanAddConfirmation         wizard.StepID = "CanAddConfirmation"
	IsItConfirmation           wizard.StepID = "IsItConfirmation"
	CanAddDecision             wizard.StepID = "CanAddDecision"
	IsOnTopic                  wizard.StepID = "IsOnTopic"
	ContainsInfo               wizard.StepID = "ContainsInfo"
	IsItDecision               wizard.StepID = "IsItDecision"
	RefusalReasons             wizard.StepID = "RefusalReasons"
	CanAddAdvancement          wizard.StepID = "CanAddAdvancement"
	IsItAdvancement            wizard.StepID = "IsItAdvancement"
	CanAddExtension            wizard.StepID = "CanAddExtension"
	IsItExtension              wizard.StepID = "IsItExtension"
	DisclosureReasons          wizard.StepID = "DisclosureReasons"
	CanAddAppealDecision       wizard.StepID = "CanAddAppealDecision"
	IsItAppealDecision         wizard.StepID = "IsItAppealDecision"
	ContainsAppealInfo         wizard.StepID = "ContainsAppealInfo"
	WasItAccepted              wizard.StepID = "WasItAccepted"
	WasItReturned              wizard.StepID = "WasItReturned"
	DisclosureLevelFork        wizard.StepID = "DisclosureLevelFork"
	ReversionReasons           wizard.StepID = "ReversionReasons"
	InvalidReversion           wizard.StepID = "InvalidReversion"
	NotCategorized             wizard.StepID = "NotCategorized"
	Categorized                wizard.StepID = "Categorized"
)

// Graph is the obligee action classification wizard.
var Graph = wizard.MustGraph(WizardName, HasSingleBranch,
	// Basics
	&wizard.Step[Env]{
		ID:   HasSingleBranch,
		Kind: wizard.Structural,
		Route: func(c *stepContext) wizard.Route {
			if branches := c.Env.Inforequest.Branches; len(branches) == 1 {
				return wizard.Route{Next: IsByEmail, Globals: map[string]any{ValBranch: branches[0]}}
			}
			return wizard.To(SelectBranch)
		},
	},
	&wizard.Step[Env]{
		ID:      SelectBranch,
		Kind:    wizard.Question,
		Title:   "Which obligee sent the response?",
		Globals: []string{ValBranch},
		Fields: func(c *stepContext) []wizard.Field {
			ir := c.Env.Inforequest
			return []wizard.Field{wizard.Lookup[*domain.Branch]{
				Meta:    wizard.Meta{Key: ValBranch, Label: "Obligee", Required: true},
				Options: branchOptions(ir),
				Resolve: resolveBranch(ir),
			}}
		},
		Next: IsByEmail,
	},
	&wizard.Step[Env]{
		ID:   IsByEmail,
		Kind: wizard.Structural,
		Route: func(c *stepContext) wizard.Route {
			if e := c.Env.Email; e != nil {
				return wizard.Route{Next: CanAddClarificationRequest, Globals: map[string]any{
					ValDeliveredDate: domain.Day(e.Processed),
					ValAttachments:   nil,
				}}
			}
			return wizard.To(InputBasics)
		},
	},
	&wizard.Step[Env]{
		ID:      InputBasics,
		Kind:    wizard.Question,
		Title:   "When was the response delivered?",
		Globals: []string{ValDeliveredDate, ValAttachments},
		Fields: func(c *stepContext) []wizard.Field {
			return []wizard.Field{
				dateField(c, ValDeliveredDate, "Delivered date", true),
				wizard.List{Meta: wizard.Meta{Key: ValAttachments, Label: "Scanned letter"}},
			}
		},
		Clean: func(c *stepContext, v wizard.Values) wizard.FieldErrors {
			var errs wizard.FieldErrors
			if msg := checkRecentDate(c, v.Time(ValDeliveredDate)); msg != "" {
				errs = errs.Add(ValDeliveredDate, msg)
			}
			return errs
		},
		Next: CanAddClarificationRequest,
	},

	// Obligee actions before an appeal
	&wizard.Step[Env]{
		ID:   CanAddClarificationRequest,
		Kind: wizard.Structural,
		Route: func(c *stepContext) wizard.Route {
			if canAdd(c, domain.ActionClarificationRequest) {
				return wizard.To(IsItQuestion)
			}
			return wizard.To(CanAddConfirmation)
		},
	},
	yesNo(IsItQuestion, "Is the obligee asking you to clarify the request?", "is_question",
		func(*stepContext) wizard.Route { return categorize(domain.ActionClarificationRequest) },
		CanAddConfirmation, CanAddConfirmation),
	&wizard.Step[Env]{
		ID:   CanAddConfirmation,
		Kind: wizard.Structural,
		Route: func(c *stepContext) wizard.Route {
			if canAdd(c, domain.ActionConfirmation) {
				return wizard.To(IsItConfirmation)
			}
			return wizard.To(CanAddDecision)
		},
	},
	yesNo(IsItConfirmation, "Is it only a confirmation that the request was received?", "is_confirmation",
		func(*stepContext) wizard.Route { return categorize(domain.ActionConfirmation) },
		CanAddDecision, CanAddDecision),
	&wizard.Step[Env]{
		ID:   CanAddDecision,
		Kind: wizard.Structural,
		Route: func(c *stepContext) wizard.Route {
			if branchOf(c) == nil || canAdd(c, domain.ActionRefusal) {
				return wizard.To(IsOnTopic)
			}
			return wizard.To(CanAddAppealDecision)
		},
	},
	yesNo(IsOnTopic, "Does the response concern your request?", "is_on_topic",
		func(*stepContext) wizard.Route { return wizard.To(ContainsInfo) },
		NotCategorized, ContainsInfo),
	&wizard.Step[Env]{
		ID:      ContainsInfo,
		Kind:    wizard.Question,
		Title:   "Does the response contain the requested information?",
		Globals: []string{ValDisclosureLevel},
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{disclosureField()}
		},
		Then: func(_ *stepContext, v wizard.Values) wizard.Route {
			if level, _ := wizard.Get[domain.DisclosureLevel](v, ValDisclosureLevel); level == domain.DisclosureFull {
				return categorize(domain.ActionDisclosure)
			}
			return wizard.To(IsItDecision)
		},
		Recovery: IsItDecision,
	},
	yesNo(IsItDecision, "Is the response a formal decision refusing the request?", "is_decision",
		func(*stepContext) wizard.Route { return wizard.To(RefusalReasons) },
		CanAddAdvancement, CanAddAdvancement),
	reasons(RefusalReasons, "Why was the request refused?", domain.ActionRefusal),
	&wizard.Step[Env]{
		ID:   CanAddAdvancement,
		Kind: wizard.Structural,
		Route: func(c *stepContext) wizard.Route {
			if canAdd(c, domain.ActionAdvancement) {
				return wizard.To(IsItAdvancement)
			}
			return wizard.To(CanAddExtension)
		},
	},
	&wizard.Step[Env]{
		ID:      IsItAdvancement,
		Kind:    wizard.Question,
		Title:   "Did the obligee forward the request to another obligee?",
		Globals: []string{ValAdvancedTo},
		Fields: func(c *stepContext) []wizard.Field {
			return []wizard.Field{
				wizard.Boolean{Meta: wizard.Meta{Key: "is_advancement", Required: true}},
				wizard.LookupList[domain.Obligee]{
					Meta:    wizard.Meta{Key: ValAdvancedTo, Label: "Forwarded to"},
					Resolve: resolveObligee(c.Env.Obligees),
				},
			}
		},
		Clean: cleanAdvancement,
		Then: func(_ *stepContext, v wizard.Values) wizard.Route {
			if v.Bool("is_advancement") {
				return categorize(domain.ActionAdvancement)
			}
			return wizard.To(CanAddExtension)
		},
		Recovery: CanAddExtension,
	},
	&wizard.Step[Env]{
		ID:   CanAddExtension,
		Kind: wizard.Structural,
		Route: func(c *stepContext) wizard.Route {
			if canAdd(c, domain.ActionExtension) {
				return wizard.To(IsItExtension)
			}
			return wizard.To(DisclosureReasons)
		},
	},
	&wizard.Step[Env]{
		ID:      IsItExtension,
		Kind:    wizard.Question,
		Title:   "Did the obligee extend its deadline?",
		Globals: []string{ValExtension},
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{
				wizard.Boolean{Meta: wizard.Meta{Key: "is_extension", Required: true}},
				wizard.Integer{Meta: wizard.Meta{Key: ValExtension, Label: "Extension in working days", Initial: 8}, Min: 2, Max: 15},
			}
		},
		Clean: func(_ *stepContext, v wizard.Values) wizard.FieldErrors {
			if v.Bool("is_extension") && !v.Has(ValExtension) {
				return wizard.FieldErrors{}.Add(ValExtension, string(wizard.ErrRequired))
			}
			return nil
		},
		Then: func(_ *stepContext, v wizard.Values) wizard.Route {
			if v.Bool("is_extension") {
				return categorize(domain.ActionExtension)
			}
			return wizard.To(DisclosureReasons)
		},
		Recovery: DisclosureReasons,
	},
	reasons(DisclosureReasons, "Why was the information disclosed only partially?", domain.ActionDisclosure),

	// Obligee actions after an appeal
	&wizard.Step[Env]{
		ID:   CanAddAppealDecision,
		Kind: wizard.Structural,
		Route: func(c *stepContext) wizard.Route {
			// Appeal decisions are delivered on paper only.
			if c.Env.Email != nil {
				return wizard.To(NotCategorized)
			}
			if branchOf(c) == nil || canAdd(c, domain.ActionRemandment) {
				return wizard.To(IsItAppealDecision)
			}
			return wizard.To(NotCategorized)
		},
	},
	yesNo(IsItAppealDecision, "Is the response a decision on your appeal?", "is_decision",
		func(*stepContext) wizard.Route { return wizard.To(ContainsAppealInfo) },
		NotCategorized, ContainsAppealInfo),
	&wizard.Step[Env]{
		ID:      ContainsAppealInfo,
		Kind:    wizard.Question,
		Title:   "Does the appeal decision disclose the requested information?",
		Globals: []string{ValDisclosureLevel},
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{disclosureField()}
		},
		Next: WasItAccepted,
	},
	&wizard.Step[Env]{
		ID:    WasItAccepted,
		Kind:  wizard.Question,
		Title: "Was your appeal accepted?",
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{wizard.Choice{
				Meta:    wizard.Meta{Key: "accepted", Required: true},
				Options: []wizard.Option{{Value: "all"}, {Value: "some"}, {Value: "none"}},
			}}
		},
		Then: func(_ *stepContext, v wizard.Values) wizard.Route {
			if v.String("accepted") == "none" {
				return categorize(domain.ActionAffirmation)
			}
			return wizard.To(WasItReturned)
		},
		Recovery: WasItReturned,
	},
	yesNo(WasItReturned, "Did the appellate body return the request to the obligee?", "was_returned",
		func(*stepContext) wizard.Route { return categorize(domain.ActionRemandment) },
		DisclosureLevelFork, DisclosureLevelFork),
	&wizard.Step[Env]{
		ID:   DisclosureLevelFork,
		Kind: wizard.Structural,
		Route: func(c *stepContext) wizard.Route {
			level, _ := wizard.Get[domain.DisclosureLevel](c.Globals, ValDisclosureLevel)
			switch level {
			case domain.DisclosureFull:
				return categorize(domain.ActionReversion)
			case domain.DisclosureNone:
				return wizard.To(InvalidReversion)
			}
			return wizard.To(ReversionReasons)
		},
	},
	reasons(ReversionReasons, "Why was the information still withheld?", domain.ActionReversion),
	&wizard.Step[Env]{
		ID:      InvalidReversion,
		Kind:    wizard.Question,
		Title:   "A reversion disclosing nothing needs a closer look",
		Globals: []string{ValHelpRequest},
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{helpRequestField(true)}
		},
		Then: func(*stepContext, wizard.Values) wizard.Route {
			return wizard.Route{Next: wizard.Done, Globals: map[string]any{ValResult: ResultHelp}}
		},
		Next: wizard.Done,
	},

	// Epilogue
	&wizard.Step[Env]{
		ID:      NotCategorized,
		Kind:    wizard.Question,
		Title:   "We could not categorize the response",
		Globals: []string{ValHelpRequest},
		Fields: func(*stepContext) []wizard.Field {
			return []wizard.Field{
				wizard.Boolean{Meta: wizard.Meta{Key: "wants_help", Required: true}},
				helpRequestField(false),
			}
		},
		Clean: func(_ *stepContext, v wizard.Values) wizard.FieldErrors {
			if v.Bool("wants_help") && !v.Has(ValHelpRequest) {
				return wizard.FieldErrors{}.Add(ValHelpRequest, string(wizard.ErrRequired))
			}
			return nil
		},
		Then: func(_ *stepContext, v wizard.Values) wizard.Route {
			result := ResultUnrelated
			if v.Bool("wants_help") {
				result = ResultHelp
			}
			return wizard.Route{Next: wizard.Done, Globals: map[string]any{ValResult: result}}
		},
		Next: wizard.Done,
	},
	&wizard.Step[Env]{
		ID:      Categorized,
		Kind:    wizard.Question,
		Title:   "Response categorized",
		Globals: []string{ValLegalDate, ValFileNumber, ValLastActionDD},
		Fields: func(c *stepContext) []wizard.Field {
			fields := []wizard.Field{
				dateField(c, ValLegalDate, "Legal date", true),
				wizard.Text{Meta: wizard.Meta{Key: ValFileNumber, Label: "File number"}, MaxLength: 255},
			}
			if needsLastActionDeliveredDate(c) {
				fields = append(fields, dateField(c, ValLastActionDD, "When was your last letter delivered?", false))
			}
			return fields
		},
		Clean: cleanCategorized,
		Describe: func(c *stepContext) map[string]any {
			if t, ok := wizard.Get[domain.ActionType](c.Globals, ValAction); ok {
				return map[string]any{"action": t.String()}
			}
			return nil
		},
		Next: wizard.Done,
	},
)
