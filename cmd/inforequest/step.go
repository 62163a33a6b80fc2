package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/inforequest/inforequest/internal/protocol"
	"github.com/inforequest/inforequest/internal/service"
	"github.com/inforequest/inforequest/internal/wizard"
	"github.com/spf13/cobra"
)

type stepFlags struct {
	step    string
	set     []string
	abandon bool
	trace   bool
}

func (f *stepFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.step, "step", "0", "step index to show or submit")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "submit field=value; repeat for multiple fields or list values")
	cmd.Flags().BoolVar(&f.abandon, "abandon", false, "discard the draft instead")
	cmd.Flags().BoolVar(&f.trace, "trace", false, "write the replay trace as JSON lines to stderr")
}

// data turns --set pairs into a submission; nil means a read. A field given
// more than once becomes a list.
func (f *stepFlags) data() (map[string]any, error) {
	if len(f.set) == 0 {
		return nil, nil
	}
	data := make(map[string]any, len(f.set))
	for _, kv := range f.set {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("--set %q: want field=value", kv)
		}
		switch prev := data[k].(type) {
		case nil:
			data[k] = v
		case []any:
			data[k] = append(prev, v)
		default:
			data[k] = []any{prev, v}
		}
	}
	return data, nil
}

func (a *app) stepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "step",
		Short: "Walk a wizard one step at a time",
	}
	cmd.AddCommand(a.obligeeActionStepCmd(), a.clarificationResponseStepCmd(), a.appealStepCmd())
	return cmd
}

func (a *app) obligeeActionStepCmd() *cobra.Command {
	f := &stepFlags{}
	cmd := &cobra.Command{
		Use:   "obligee-action <inforequest>",
		Short: "Classify the obligee's response to an inforequest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return a.runStep(cmd, f, service.ObligeeActionPath(ids[0]),
				func(s *service.WizardService, req service.StepRequest) (*wizard.Result, error) {
					req.InforequestID = ids[0]
					if f.abandon {
						return nil, s.AbandonObligeeAction(cmd.Context(), req.Owner, ids[0])
					}
					return s.ObligeeAction(cmd.Context(), req)
				})
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *app) clarificationResponseStepCmd() *cobra.Command {
	f := &stepFlags{}
	cmd := &cobra.Command{
		Use:   "clarification-response <inforequest> <branch>",
		Short: "Answer the obligee's request for clarification",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return a.runStep(cmd, f, service.ClarificationResponsePath(ids[0], ids[1]),
				func(s *service.WizardService, req service.StepRequest) (*wizard.Result, error) {
					req.InforequestID, req.BranchID = ids[0], ids[1]
					if f.abandon {
						return nil, s.AbandonClarificationResponse(cmd.Context(), req.Owner, ids[0], ids[1])
					}
					return s.ClarificationResponse(cmd.Context(), req)
				})
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *app) appealStepCmd() *cobra.Command {
	f := &stepFlags{}
	cmd := &cobra.Command{
		Use:   "appeal <inforequest> <branch>",
		Short: "Write an appeal against the last action of a branch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			return a.runStep(cmd, f, service.AppealPath(ids[0], ids[1]),
				func(s *service.WizardService, req service.StepRequest) (*wizard.Result, error) {
					req.InforequestID, req.BranchID = ids[0], ids[1]
					if f.abandon {
						return nil, s.AbandonAppeal(cmd.Context(), req.Owner, ids[0], ids[1])
					}
					return s.Appeal(cmd.Context(), req)
				})
		},
	}
	f.bind(cmd)
	return cmd
}

func (a *app) runStep(cmd *cobra.Command, f *stepFlags, base string,
	call func(*service.WizardService, service.StepRequest) (*wizard.Result, error)) error {
	owner, err := a.owner()
	if err != nil {
		return err
	}
	data, err := f.data()
	if err != nil {
		return err
	}
	var opts []service.Option
	if f.trace {
		opts = append(opts, service.WithStatusHandler(protocol.NewStatusWriter(cmd.ErrOrStderr())))
	}
	s, err := a.open(cmd.Context(), opts...)
	if err != nil {
		return err
	}
	defer s.Close()

	res, err := call(s.svc, service.StepRequest{Owner: owner, Index: f.step, Data: data})
	if err != nil {
		return err
	}
	if res == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "draft discarded")
		return nil
	}
	out, err := json.MarshalIndent(service.Render(res, base), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
