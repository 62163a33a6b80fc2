// Package service binds the wizard engines to the stores and the working-day
// calendar, and exposes the operations the transports call.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inforequest/inforequest/internal/appeal"
	"github.com/inforequest/inforequest/internal/clarificationresponse"
	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/obligeeaction"
	"github.com/inforequest/inforequest/internal/ports"
	"github.com/inforequest/inforequest/internal/wizard"
	"go.uber.org/zap"
)

// ErrNotEligible is returned when the addressed operation is not available
// for the branch in its current state.
var ErrNotEligible = errors.New("not eligible")

// Extension bounds, in calendar days from today.
const (
	MinExtension = 2
	MaxExtension = 100
)

type Stores struct {
	Drafts       ports.DraftStore
	Inforequests ports.InforequestStore
	Obligees     ports.ObligeeStore
}

type Option func(*WizardService)

func WithClock(clock domain.Clock) Option {
	return func(s *WizardService) { s.clock = clock }
}

// WithNow sets the wall clock used for record timestamps.
func WithNow(now func() time.Time) Option {
	return func(s *WizardService) { s.now = now }
}

func WithLogger(log *zap.Logger) Option {
	return func(s *WizardService) { s.log = log }
}

// WithMaxSteps bounds every replay walk.
func WithMaxSteps(n int) Option {
	return func(s *WizardService) { s.maxSteps = n }
}

// WithStatusHandler adds a handler notified alongside the log.
func WithStatusHandler(h wizard.StatusHandler) Option {
	return func(s *WizardService) { s.extraStatus = append(s.extraStatus, h) }
}

type WizardService struct {
	stores      Stores
	calendar    domain.Calendar
	clock       domain.Clock
	now         func() time.Time
	log         *zap.Logger
	maxSteps    int
	extraStatus []wizard.StatusHandler

	obligeeAction *wizard.Engine[obligeeaction.Env]
	clarification *wizard.Engine[clarificationresponse.Env]
	appeals       map[appeal.Kind]*wizard.Engine[appeal.Env]
}

func New(stores Stores, cal domain.Calendar, opts ...Option) (*WizardService, error) {
	s := &WizardService{
		stores:   stores,
		calendar: cal,
		clock:    domain.SystemClock,
		now:      time.Now,
		log:      zap.NewNop(),
		appeals:  make(map[appeal.Kind]*wizard.Engine[appeal.Env]),
	}
	for _, opt := range opts {
		opt(s)
	}

	status := wizard.MultiStatus(append([]wizard.StatusHandler{NewLogStatus(s.log)}, s.extraStatus...))

	oaFinish := obligeeaction.NewFinisher(stores.Inforequests)
	oaFinish.SetNow(s.now)
	s.obligeeAction = wizard.New(obligeeaction.Graph, stores.Drafts, oaFinish.Finish)
	configureEngine(s.obligeeAction, status, s.now, s.maxSteps)

	crFinish := clarificationresponse.NewFinisher(stores.Inforequests)
	crFinish.SetNow(s.now)
	s.clarification = wizard.New(clarificationresponse.Graph, stores.Drafts, crFinish.Finish)
	configureEngine(s.clarification, status, s.now, s.maxSteps)

	apFinish := appeal.NewFinisher(stores.Inforequests)
	apFinish.SetNow(s.now)
	for _, k := range appeal.Kinds {
		g, err := appeal.Graph(k)
		if err != nil {
			return nil, err
		}
		e := wizard.New(g, stores.Drafts, apFinish.Finish)
		configureEngine(e, status, s.now, s.maxSteps)
		s.appeals[k] = e
	}
	return s, nil
}

func configureEngine[E any](e *wizard.Engine[E], status wizard.StatusHandler, now func() time.Time, maxSteps int) {
	e.SetStatusHandler(status)
	e.SetNow(now)
	if maxSteps > 0 {
		e.SetMaxSteps(maxSteps)
	}
}

func (s *WizardService) today() time.Time {
	return s.clock.Today()
}

// StepRequest addresses one step of a wizard. Data is nil for a read and
// non-nil for a submission.
type StepRequest struct {
	Owner         string
	InforequestID int64
	BranchID      int64
	Index         string
	Data          map[string]any
}

// ObligeeAction replays or submits the obligee-action classification of an
// inforequest. The oldest undecided email, if any, is the response being
// classified.
func (s *WizardService) ObligeeAction(ctx context.Context, req StepRequest) (*wizard.Result, error) {
	ir, err := s.stores.Inforequests.GetInforequest(ctx, req.InforequestID, req.Owner)
	if err != nil {
		return nil, err
	}
	env, err := s.obligeeActionEnv(ctx, ir)
	if err != nil {
		return nil, err
	}
	wreq := wizard.Request[obligeeaction.Env]{
		Owner:    req.Owner,
		Instance: obligeeaction.InstanceID(ir.ID),
		Index:    req.Index,
		Data:     req.Data,
		Env:      env,
	}
	if req.Data == nil {
		return s.obligeeAction.Replay(ctx, wreq)
	}
	return s.obligeeAction.Submit(ctx, wreq)
}

func (s *WizardService) obligeeActionEnv(ctx context.Context, ir *domain.Inforequest) (obligeeaction.Env, error) {
	list, err := s.stores.Obligees.ListObligees(ctx)
	if err != nil {
		return obligeeaction.Env{}, fmt.Errorf("listing obligees: %w", err)
	}
	obligees := make(map[int64]domain.Obligee, len(list))
	for _, o := range list {
		obligees[o.ID] = o
	}
	return obligeeaction.Env{
		Inforequest: ir,
		Email:       ir.UndecidedEmail(),
		Obligees:    obligees,
		Calendar:    s.calendar,
		Today:       s.today(),
	}, nil
}

func (s *WizardService) AbandonObligeeAction(ctx context.Context, owner string, inforequestID int64) error {
	ir, err := s.stores.Inforequests.GetInforequest(ctx, inforequestID, owner)
	if err != nil {
		return err
	}
	return s.obligeeAction.Abandon(ctx, owner, obligeeaction.InstanceID(ir.ID))
}

// ClarificationResponse replays or submits the answer to the clarification
// request that is the branch's last action.
func (s *WizardService) ClarificationResponse(ctx context.Context, req StepRequest) (*wizard.Result, error) {
	env, err := s.clarificationEnv(ctx, req.Owner, req.InforequestID, req.BranchID)
	if err != nil {
		return nil, err
	}
	wreq := wizard.Request[clarificationresponse.Env]{
		Owner:    req.Owner,
		Instance: clarificationresponse.InstanceID(env.Branch.LastAction().ID),
		Index:    req.Index,
		Data:     req.Data,
		Env:      env,
	}
	if req.Data == nil {
		return s.clarification.Replay(ctx, wreq)
	}
	return s.clarification.Submit(ctx, wreq)
}

func (s *WizardService) AbandonClarificationResponse(ctx context.Context, owner string, inforequestID, branchID int64) error {
	env, err := s.clarificationEnv(ctx, owner, inforequestID, branchID)
	if err != nil {
		return err
	}
	return s.clarification.Abandon(ctx, owner, clarificationresponse.InstanceID(env.Branch.LastAction().ID))
}

func (s *WizardService) clarificationEnv(ctx context.Context, owner string, inforequestID, branchID int64) (clarificationresponse.Env, error) {
	ir, b, err := s.branch(ctx, owner, inforequestID, branchID)
	if err != nil {
		return clarificationresponse.Env{}, err
	}
	today := s.today()
	if !b.CanAdd(s.calendar, today, domain.ActionClarificationResponse) {
		return clarificationresponse.Env{}, fmt.Errorf("clarification response on branch %d: %w", branchID, ErrNotEligible)
	}
	return clarificationresponse.Env{Inforequest: ir, Branch: b, Calendar: s.calendar, Today: today}, nil
}

// Appeal replays or submits the appeal wizard of a branch. The graph is
// chosen from the branch's last action, and the draft is keyed by it.
func (s *WizardService) Appeal(ctx context.Context, req StepRequest) (*wizard.Result, error) {
	env, err := s.appealEnv(ctx, req.Owner, req.InforequestID, req.BranchID)
	if err != nil {
		return nil, err
	}
	e, instance := s.appealEngine(env)
	wreq := wizard.Request[appeal.Env]{
		Owner:    req.Owner,
		Instance: instance,
		Index:    req.Index,
		Data:     req.Data,
		Env:      env,
	}
	if req.Data == nil {
		return e.Replay(ctx, wreq)
	}
	return e.Submit(ctx, wreq)
}

func (s *WizardService) AbandonAppeal(ctx context.Context, owner string, inforequestID, branchID int64) error {
	env, err := s.appealEnv(ctx, owner, inforequestID, branchID)
	if err != nil {
		return err
	}
	e, instance := s.appealEngine(env)
	return e.Abandon(ctx, owner, instance)
}

func (s *WizardService) appealEnv(ctx context.Context, owner string, inforequestID, branchID int64) (appeal.Env, error) {
	ir, b, err := s.branch(ctx, owner, inforequestID, branchID)
	if err != nil {
		return appeal.Env{}, err
	}
	today := s.today()
	if !b.CanAdd(s.calendar, today, domain.ActionAppeal) {
		return appeal.Env{}, fmt.Errorf("appeal on branch %d: %w", branchID, ErrNotEligible)
	}
	return appeal.Env{Inforequest: ir, Branch: b, Calendar: s.calendar, Today: today}, nil
}

func (s *WizardService) appealEngine(env appeal.Env) (*wizard.Engine[appeal.Env], string) {
	k := appeal.Choose(env)
	return s.appeals[k], appeal.InstanceID(k, env.Branch.LastAction().ID)
}

func (s *WizardService) branch(ctx context.Context, owner string, inforequestID, branchID int64) (*domain.Inforequest, *domain.Branch, error) {
	ir, err := s.stores.Inforequests.GetInforequest(ctx, inforequestID, owner)
	if err != nil {
		return nil, nil, err
	}
	b := ir.Branch(branchID)
	if b == nil {
		return nil, nil, fmt.Errorf("branch %d: %w", branchID, ports.ErrNotFound)
	}
	return ir, b, nil
}

// Eligibility is what may be recorded next on a branch as of today.
type Eligibility struct {
	BranchID       int64
	Last           domain.ActionType
	DeadlineMissed bool
	Eligible       domain.ActionSet
}

func (s *WizardService) Eligibility(ctx context.Context, owner string, inforequestID, branchID int64) (*Eligibility, error) {
	_, b, err := s.branch(ctx, owner, inforequestID, branchID)
	if err != nil {
		return nil, err
	}
	facts := b.Facts(s.calendar, s.today())
	return &Eligibility{
		BranchID:       b.ID,
		Last:           facts.Last,
		DeadlineMissed: facts.DeadlineMissed,
		Eligible:       domain.EligibleNext(facts),
	}, nil
}

// ExtendDeadline lets the applicant extend a missed applicant deadline of
// the branch's last action so it ends days calendar days from today.
func (s *WizardService) ExtendDeadline(ctx context.Context, owner string, inforequestID, branchID, actionID int64, days int) (*domain.Action, error) {
	ir, b, err := s.branch(ctx, owner, inforequestID, branchID)
	if err != nil {
		return nil, err
	}
	last := b.LastAction()
	if last == nil || last.ID != actionID {
		return nil, fmt.Errorf("action %d: %w", actionID, ports.ErrNotFound)
	}
	if ir.HasUndecidedEmails() || !canApplicantExtend(last, s.calendar, s.today()) {
		return nil, fmt.Errorf("extending action %d: %w", actionID, ErrNotEligible)
	}
	if days < MinExtension || days > MaxExtension {
		return nil, &RangeError{Field: "applicant_extension", Min: MinExtension, Max: MaxExtension, Got: days}
	}

	remaining, err := last.Deadline(s.calendar, nil).RemainingAt(domain.UnitCalendarDays, s.today())
	if err != nil {
		return nil, err
	}
	updated := *last
	updated.ApplicantExtension = -remaining + days
	if err := s.stores.Inforequests.UpdateAction(ctx, &updated); err != nil {
		return nil, fmt.Errorf("updating action %d: %w", actionID, err)
	}
	s.log.Info("applicant deadline extended",
		zap.Int64("inforequest", inforequestID),
		zap.Int64("action", actionID),
		zap.Int("applicant_extension", updated.ApplicantExtension))
	return &updated, nil
}

func canApplicantExtend(a *domain.Action, cal domain.Calendar, today time.Time) bool {
	if !a.HasApplicantDeadline() {
		return false
	}
	missed, err := a.Deadline(cal, nil).IsMissedAt(today)
	return err == nil && missed
}

// RangeError reports a submitted number outside its allowed bounds.
type RangeError struct {
	Field    string
	Min, Max int
	Got      int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s must be between %d and %d, got %d", e.Field, e.Min, e.Max, e.Got)
}
