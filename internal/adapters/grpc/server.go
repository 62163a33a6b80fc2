// Package grpc exposes the wizards over gRPC. Messages are
// google.protobuf.Struct values mirroring the JSON transport.
package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/inforequest/inforequest/internal/ports"
	"github.com/inforequest/inforequest/internal/service"
	"github.com/inforequest/inforequest/internal/wizard"
	"go.uber.org/zap"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/protoadapt"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "inforequest.v1.Wizards"

// Wizard names accepted in the "wizard" request field.
const (
	WizardObligeeAction         = "obligee-action"
	WizardClarificationResponse = "clarification-response"
	WizardAppeal                = "appeal"
)

type WizardsServer struct {
	svc *service.WizardService
	log *zap.Logger
}

func NewWizardsServer(svc *service.WizardService, log *zap.Logger) *WizardsServer {
	return &WizardsServer{svc: svc, log: log}
}

type wizardsService interface {
	Step(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Abandon(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Eligibility(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func unaryHandler(call func(wizardsService, context.Context, *structpb.Struct) (*structpb.Struct, error), method string) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(wizardsService), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(wizardsService), ctx, req.(*structpb.Struct))
		})
	}
}

// ServiceDesc describes the wizards service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*wizardsService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Step", Handler: unaryHandler(wizardsService.Step, "Step")},
		{MethodName: "Abandon", Handler: unaryHandler(wizardsService.Abandon, "Abandon")},
		{MethodName: "Eligibility", Handler: unaryHandler(wizardsService.Eligibility, "Eligibility")},
	},
	Metadata: "inforequest/v1/wizards.proto",
}

// Register adds the wizards and the standard health service to s.
func Register(s *grpc.Server, w *WizardsServer) *health.Server {
	s.RegisterService(&ServiceDesc, w)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return hs
}

// address is the common part of every request.
type address struct {
	Owner       string
	Wizard      string
	Inforequest int64
	Branch      int64
}

func parseAddress(in *structpb.Struct) (address, error) {
	m := in.GetFields()
	a := address{
		Owner:       m["owner"].GetStringValue(),
		Wizard:      m["wizard"].GetStringValue(),
		Inforequest: int64(m["inforequest"].GetNumberValue()),
		Branch:      int64(m["branch"].GetNumberValue()),
	}
	var violations []*errdetails.BadRequest_FieldViolation
	if a.Owner == "" {
		violations = append(violations, &errdetails.BadRequest_FieldViolation{Field: "owner", Description: "required"})
	}
	if a.Inforequest <= 0 {
		violations = append(violations, &errdetails.BadRequest_FieldViolation{Field: "inforequest", Description: "must be a positive id"})
	}
	if len(violations) > 0 {
		return a, badRequest(violations...)
	}
	return a, nil
}

func (a address) requireWizard() error {
	switch a.Wizard {
	case WizardObligeeAction:
		return nil
	case WizardClarificationResponse, WizardAppeal:
		if a.Branch <= 0 {
			return badRequest(&errdetails.BadRequest_FieldViolation{Field: "branch", Description: "required for " + a.Wizard})
		}
		return nil
	}
	return badRequest(&errdetails.BadRequest_FieldViolation{
		Field:       "wizard",
		Description: fmt.Sprintf("must be one of %q, %q or %q", WizardObligeeAction, WizardClarificationResponse, WizardAppeal),
	})
}

// Step replays the addressed step, or submits it when "data" is present.
func (s *WizardsServer) Step(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := parseAddress(in)
	if err != nil {
		return nil, err
	}
	if err := a.requireWizard(); err != nil {
		return nil, err
	}
	req := service.StepRequest{
		Owner:         a.Owner,
		InforequestID: a.Inforequest,
		BranchID:      a.Branch,
		Index:         in.GetFields()["step"].GetStringValue(),
	}
	if data, ok := in.GetFields()["data"]; ok {
		req.Data = data.GetStructValue().AsMap()
		if req.Data == nil {
			req.Data = map[string]any{}
		}
	}

	var (
		res  *wizard.Result
		base string
	)
	switch a.Wizard {
	case WizardAppeal:
		res, err = s.svc.Appeal(ctx, req)
		base = service.AppealPath(a.Inforequest, a.Branch)
	case WizardClarificationResponse:
		res, err = s.svc.ClarificationResponse(ctx, req)
		base = service.ClarificationResponsePath(a.Inforequest, a.Branch)
	default:
		res, err = s.svc.ObligeeAction(ctx, req)
		base = service.ObligeeActionPath(a.Inforequest)
	}
	if err != nil {
		return nil, s.toStatus(err, a)
	}
	return toStruct(service.Render(res, base))
}

func (s *WizardsServer) Abandon(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := parseAddress(in)
	if err != nil {
		return nil, err
	}
	if err := a.requireWizard(); err != nil {
		return nil, err
	}
	switch a.Wizard {
	case WizardAppeal:
		err = s.svc.AbandonAppeal(ctx, a.Owner, a.Inforequest, a.Branch)
	case WizardClarificationResponse:
		err = s.svc.AbandonClarificationResponse(ctx, a.Owner, a.Inforequest, a.Branch)
	default:
		err = s.svc.AbandonObligeeAction(ctx, a.Owner, a.Inforequest)
	}
	if err != nil {
		return nil, s.toStatus(err, a)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{}}, nil
}

func (s *WizardsServer) Eligibility(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a, err := parseAddress(in)
	if err != nil {
		return nil, err
	}
	e, err := s.svc.Eligibility(ctx, a.Owner, a.Inforequest, a.Branch)
	if err != nil {
		return nil, s.toStatus(err, a)
	}
	eligible := make([]any, 0)
	for _, t := range e.Eligible.Types() {
		eligible = append(eligible, t.String())
	}
	out := map[string]any{
		"branch":          float64(e.BranchID),
		"deadline_missed": e.DeadlineMissed,
		"eligible":        eligible,
	}
	if e.Last != 0 {
		out["last_action"] = e.Last.String()
	}
	return structpb.NewStruct(out)
}

// toStruct round-trips v through JSON so only JSON-compatible values reach
// the Struct.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	out := new(structpb.Struct)
	if err := protojson.Unmarshal(b, out); err != nil {
		return nil, status.Errorf(codes.Internal, "encoding response: %v", err)
	}
	return out, nil
}

func (s *WizardsServer) toStatus(err error, a address) error {
	switch {
	case errors.Is(err, ports.ErrNotFound):
		return withDetails(status.New(codes.NotFound, err.Error()), &errdetails.ResourceInfo{
			ResourceType: "inforequest",
			ResourceName: domain.InforequestPath(a.Inforequest),
			Owner:        a.Owner,
			Description:  err.Error(),
		})
	case errors.Is(err, service.ErrNotEligible):
		return withDetails(status.New(codes.FailedPrecondition, err.Error()), &errdetails.ErrorInfo{
			Reason: "NOT_ELIGIBLE",
			Domain: ServiceName,
		})
	case wizard.IsConfigError(err):
		s.log.Error("wizard configuration error", zap.Error(err))
		return withDetails(status.New(codes.Internal, err.Error()), &errdetails.ErrorInfo{
			Reason: "WIZARD_CONFIGURATION",
			Domain: ServiceName,
		})
	}
	s.log.Error("wizard request failed", zap.String("wizard", a.Wizard), zap.Int64("inforequest", a.Inforequest), zap.Error(err))
	return status.Error(codes.Internal, "internal error")
}

func badRequest(violations ...*errdetails.BadRequest_FieldViolation) error {
	return withDetails(status.New(codes.InvalidArgument, "invalid request"), &errdetails.BadRequest{FieldViolations: violations})
}

func withDetails(st *status.Status, details ...protoadapt.MessageV1) error {
	std, err := st.WithDetails(details...)
	if err != nil {
		return st.Err()
	}
	return std.Err()
}
