package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/clambin/enhanced-thermostat/internal/schedule"
	"github.com/spf13/cobra"
)

var (
	scheduleCmd = cobra.Command{
		Use:   "schedule",
		Short: "Schedule tools",
	}
	checkCmd = cobra.Command{
		Use:   "check <file>",
		Short: "Validate a schedule file and show the setpoint it selects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at := time.Now()
			if checkAt != "" {
				var err error
				if at, err = time.ParseInLocation(time.DateTime, checkAt, time.Local); err != nil {
					return fmt.Errorf("invalid --at: %w", err)
				}
			}
			return checkSchedule(cmd.OutOrStdout(), args[0], at)
		},
	}
	checkAt string
)

func init() {
	checkCmd.Flags().StringVar(&checkAt, "at", "", "Evaluate the schedule at this time (YYYY-MM-DD HH:MM:SS). Default: now")
	scheduleCmd.AddCommand(&checkCmd)
}

func checkSchedule(w io.Writer, path string, at time.Time) error {
	definition, err := schedule.LoadFile(path)
	if err != nil {
		return err
	}

	for _, day := range definition.Days() {
		_, _ = fmt.Fprintln(w, day.String()+":")
		for _, event := range definition[day] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", event.Time, schedule.Setpoint{Temperature: event.Temperature, Mode: event.Mode})
		}
	}

	setpoint, ok := definition.Lookup(at)
	if !ok {
		_, _ = fmt.Fprintf(w, "%s: no setpoint\n", at.Format("Mon 15:04"))
		return nil
	}
	_, _ = fmt.Fprintf(w, "%s: %s\n", at.Format("Mon 15:04"), setpoint)
	return nil
}
