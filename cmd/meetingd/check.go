package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/warp/meeting-engine/meeting"
)

var (
	checkEmployee string
	checkDate     string
	checkTime     string
	checkJSON     bool
)

func newCheckCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check whether an employee is free at a date and time",
		Long: `Build the availability index once and evaluate a single slot.

The employee may be given by id or by display name. Without --time any
block on that date counts as a conflict.`,
		RunE: runCheck,
	}
	cmd.Flags().StringVar(&checkEmployee, "employee", "", "Employee id or name")
	cmd.Flags().StringVar(&checkDate, "date", "", "Date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&checkTime, "time", "", "Time of day (HH:MM)")
	cmd.Flags().BoolVar(&checkJSON, "json", false, "Output as JSON")
	_ = cmd.MarkFlagRequired("employee")
	return cmd
}

func runCheck(cmd *cobra.Command, _ []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	date := a.today()
	if checkDate != "" {
		if date, err = meeting.ParseDate(checkDate); err != nil {
			return err
		}
	}
	var tod meeting.TimeOfDay
	if checkTime != "" {
		if tod, err = meeting.ParseTimeOfDay(checkTime); err != nil {
			return err
		}
	}

	ctx := cmd.Context()
	if _, err := a.engine.RefreshAvailability(ctx); err != nil {
		return fmt.Errorf("build availability index: %w", err)
	}

	name := strings.TrimSpace(checkEmployee)
	if resolved, ok := a.employeeName(ctx, name); ok {
		name = resolved
	}
	res := a.engine.CheckAssignment(name, date, tod)

	if checkJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Printf("%s on %s %s: %s\n", name, date, tod, res.Status)
	if res.Reason != nil {
		span := "all day"
		if !res.Reason.AllDay {
			span = res.Reason.Start.String() + "-" + res.Reason.End.String()
		}
		fmt.Printf("  reason: %s (%s)\n", res.Reason.Reason, span)
	}
	return nil
}
