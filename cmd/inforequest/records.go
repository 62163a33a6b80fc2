package main

import (
	"fmt"
	"strconv"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/spf13/cobra"
)

func (a *app) createCmd() *cobra.Command {
	var subject, obligee, obligeeEmail, sent string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Record a sent inforequest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.owner()
			if err != nil {
				return err
			}
			legal, err := domain.ParseDate(sent)
			if err != nil {
				return fmt.Errorf("--sent: %w", err)
			}
			ctx := cmd.Context()
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			o, err := findOrCreateObligee(cmd, s, obligee, obligeeEmail)
			if err != nil {
				return err
			}
			ir := &domain.Inforequest{
				Owner:   owner,
				Subject: subject,
				Branches: []*domain.Branch{{
					Obligee: o,
					Actions: []*domain.Action{{
						Type:         domain.ActionRequest,
						Subject:      subject,
						LegalDate:    legal,
						DeadlineDays: domain.DefaultDeadline(domain.ActionRequest, 0, 0),
						Created:      a.now(),
					}},
				}},
			}
			if err := s.stores.Inforequests.CreateInforequest(ctx, ir); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "inforequest %d branch %d\n", ir.ID, ir.Branches[0].ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "subject of the request")
	cmd.Flags().StringVar(&obligee, "obligee", "", "name of the obligee the request was sent to")
	cmd.Flags().StringVar(&obligeeEmail, "obligee-email", "", "email of a new obligee")
	cmd.Flags().StringVar(&sent, "sent", "", "date the request was sent, YYYY-MM-DD")
	cmd.MarkFlagRequired("subject")
	cmd.MarkFlagRequired("obligee")
	cmd.MarkFlagRequired("sent")
	return cmd
}

func findOrCreateObligee(cmd *cobra.Command, s *session, name, email string) (domain.Obligee, error) {
	list, err := s.stores.Obligees.ListObligees(cmd.Context())
	if err != nil {
		return domain.Obligee{}, err
	}
	for _, o := range list {
		if o.Name == name {
			return o, nil
		}
	}
	o := domain.Obligee{Name: name, Email: email}
	if err := s.stores.Obligees.CreateObligee(cmd.Context(), &o); err != nil {
		return domain.Obligee{}, err
	}
	return o, nil
}

func (a *app) emailCmd() *cobra.Command {
	var from, subject, text string
	cmd := &cobra.Command{
		Use:   "email <inforequest>",
		Short: "Attach an undecided inbound email to an inforequest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.owner()
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("inforequest id: %w", err)
			}
			ctx := cmd.Context()
			s, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			// Resolves ownership before writing.
			if _, err := s.stores.Inforequests.GetInforequest(ctx, id, owner); err != nil {
				return err
			}
			e := &domain.Email{From: from, Subject: subject, Text: text, Processed: a.now()}
			if err := s.stores.Inforequests.CreateEmail(ctx, id, e); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "email %d\n", e.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "sender address")
	cmd.Flags().StringVar(&subject, "subject", "", "subject line")
	cmd.Flags().StringVar(&text, "text", "", "message body")
	return cmd
}
