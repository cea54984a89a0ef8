package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/badri/wtmcp/internal/doctor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the terminal, git, assistant CLI and configuration",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	results := doctor.Check(ctx, a.DoctorEnv())
	out := cmd.OutOrStdout()
	if ok, err := printJSON(out, results); ok {
		return err
	}
	if err := doctor.Print(out, results); err != nil {
		return err
	}
	for _, r := range results {
		if r.Status == "error" {
			return fmt.Errorf("doctor found problems")
		}
	}
	return nil
}
