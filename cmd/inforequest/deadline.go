package main

import (
	"fmt"
	"strconv"

	"github.com/inforequest/inforequest/internal/domain"
	"github.com/spf13/cobra"
)

func (a *app) deadlineCmd() *cobra.Command {
	var base, unit string
	var days, extension int
	cmd := &cobra.Command{
		Use:   "deadline",
		Short: "Compute a deadline counted from a base date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := domain.ParseDate(base)
			if err != nil {
				return fmt.Errorf("--base: %w", err)
			}
			u, err := domain.ParseDeadlineUnit(unit)
			if err != nil {
				return err
			}
			cfg, err := a.config()
			if err != nil {
				return err
			}
			cal, err := cfg.WorkdayCalendar()
			if err != nil {
				return err
			}

			kind := domain.DeadlineObligee
			if u == domain.UnitCalendarDays {
				kind = domain.DeadlineApplicant
			}
			d := domain.NewDeadline(kind, u, from, domain.Days(days), extension, cal, a.clock())
			date, err := d.Date()
			if err != nil {
				return err
			}
			extended, _ := d.ExtendedDate()
			remaining, _ := d.Remaining(u)
			missed, _ := d.IsMissed()
			extendedMissed, _ := d.IsExtendedMissed()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Kind:      %s\n", d.Kind)
			fmt.Fprintf(out, "Date:      %s\n", domain.FormatDate(date))
			if extension != 0 {
				fmt.Fprintf(out, "Extended:  %s\n", domain.FormatDate(extended))
			}
			fmt.Fprintf(out, "Remaining: %d %s\n", remaining, u)
			fmt.Fprintf(out, "Missed:    %t\n", missed)
			if extension != 0 {
				fmt.Fprintf(out, "Extended missed: %t\n", extendedMissed)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&base, "base", "", "base date, YYYY-MM-DD")
	cmd.Flags().IntVar(&days, "days", 8, "deadline magnitude")
	cmd.Flags().StringVar(&unit, "unit", domain.UnitWorkdays.String(), "deadline unit")
	cmd.Flags().IntVar(&extension, "extension", 0, "applicant extension in calendar days")
	cmd.MarkFlagRequired("base")
	return cmd
}

func (a *app) eligibleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eligible <inforequest> <branch>",
		Short: "List the actions that may be recorded next on a branch",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.owner()
			if err != nil {
				return err
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			e, err := s.svc.Eligibility(cmd.Context(), owner, ids[0], ids[1])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			last := "none"
			if e.Last != 0 {
				last = e.Last.String()
			}
			fmt.Fprintf(out, "Branch:          %d\n", e.BranchID)
			fmt.Fprintf(out, "Last action:     %s\n", last)
			fmt.Fprintf(out, "Deadline missed: %t\n", e.DeadlineMissed)
			fmt.Fprintf(out, "Eligible:\n")
			for _, t := range e.Eligible.Types() {
				fmt.Fprintf(out, "  %s\n", t)
			}
			return nil
		},
	}
}

func (a *app) extendCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "extend <inforequest> <branch> <action>",
		Short: "Extend a missed applicant deadline to end days from today",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			owner, err := a.owner()
			if err != nil {
				return err
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			updated, err := s.svc.ExtendDeadline(cmd.Context(), owner, ids[0], ids[1], ids[2], days)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "action %d applicant extension %d\n", updated.ID, updated.ApplicantExtension)
			return nil
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "calendar days from today the deadline should end")
	cmd.MarkFlagRequired("days")
	return cmd
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, len(args))
	for i, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("id %q: %w", arg, err)
		}
		ids[i] = id
	}
	return ids, nil
}
