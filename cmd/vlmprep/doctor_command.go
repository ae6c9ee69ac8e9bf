package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"vlmprep/internal/deps"
	"vlmprep/internal/preflight"
)

type binaryView struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

type doctorReport struct {
	Binaries []binaryView       `json:"binaries"`
	Checks   []preflight.Result `json:"checks"`
}

func toBinaryViews(statuses []deps.Status) []binaryView {
	views := make([]binaryView, 0, len(statuses))
	for _, s := range statuses {
		views = append(views, binaryView{
			Name:        s.Name,
			Command:     s.Command,
			Description: s.Description,
			Optional:    s.Optional,
			Available:   s.Available,
			Detail:      s.Detail,
		})
	}
	return views
}

func newDoctorCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check binaries, directories and the caption model endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			report := doctorReport{
				Binaries: toBinaryViews(preflight.CheckSystemDeps(cfg)),
				Checks:   preflight.RunAll(cmd.Context(), cfg),
			}

			failures := len(preflight.Failed(report.Checks))
			for _, status := range report.Binaries {
				if !status.Available && !status.Optional {
					failures++
				}
			}

			if jsonOutput {
				if err := writeJSON(cmd, report); err != nil {
					return err
				}
			} else {
				renderDoctor(cmd, report)
			}
			if failures > 0 {
				return fmt.Errorf("doctor: %s failed", pluralize(failures, "check"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")
	return cmd
}

func renderDoctor(cmd *cobra.Command, report doctorReport) {
	out := cmd.OutOrStdout()

	binRows := make([][]string, 0, len(report.Binaries))
	for _, status := range report.Binaries {
		state := "ok"
		switch {
		case !status.Available && status.Optional:
			state = "missing (optional)"
		case !status.Available:
			state = "MISSING"
		}
		binRows = append(binRows, []string{status.Name, state, status.Detail, status.Description})
	}
	fmt.Fprintln(out, renderTable("Binaries", []string{"Name", "State", "Detail", "Purpose"}, binRows, nil))

	checkRows := make([][]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		state := "ok"
		if !check.Passed {
			state = "FAILED"
		}
		checkRows = append(checkRows, []string{check.Name, state, check.Detail})
	}
	fmt.Fprintln(out, renderTable("Checks", []string{"Check", "State", "Detail"}, checkRows, nil))
}
