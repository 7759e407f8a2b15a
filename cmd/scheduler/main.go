// Command scheduler runs one cohort allocation from a JSON input document
// and writes the JSON output document to stdout.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeeeing/posting-scheduler/internal/schedule"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "scheduler",
		Short: "Posting scheduler for medical-resident monthly rotations",
	}
	root.AddCommand(newAllocateCmd())
	return root
}

func newAllocateCmd() *cobra.Command {
	var (
		inputPath   string
		outputPath  string
		maxTimeMins int
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "allocate",
		Short: "Solve one cohort's posting allocation and emit the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := readInput(inputPath)
			if err != nil {
				return writeFailure(outputPath, err)
			}
			if maxTimeMins > 0 {
				in.MaxTimeInMinutes = maxTimeMins
			}

			var lg schedulerLogger
			if verbose {
				lg = log.New(os.Stderr, "scheduler: ", log.LstdFlags)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), solveDeadline(in.MaxTimeInMinutes))
			defer cancel()

			out, err := schedule.Allocate(ctx, in, lg)
			if err != nil {
				return writeFailure(outputPath, err)
			}
			return writeOutput(outputPath, out)
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "path to the JSON input document (required)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "path to write the JSON output document (default stdout)")
	cmd.Flags().IntVar(&maxTimeMins, "max-time-minutes", 0, "override the input document's max_time_in_minutes")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log solve progress to stderr")
	cmd.MarkFlagRequired("input")

	return cmd
}

// schedulerLogger mirrors the Printf-only logger schedule.Allocate accepts;
// *log.Logger satisfies it without either package needing to name the other.
type schedulerLogger interface {
	Printf(format string, args ...interface{})
}

// solveDeadline adds a minute of slack over the solver's own internal time
// limit so Allocate's post-processing step always has room to finish before
// the outer context is cancelled.
func solveDeadline(maxTimeMinutes int) time.Duration {
	if maxTimeMinutes <= 0 {
		return 16 * time.Minute
	}
	return time.Duration(maxTimeMinutes)*time.Minute + time.Minute
}

func readInput(path string) (schedule.Input, error) {
	var in schedule.Input
	f, err := os.Open(path)
	if err != nil {
		return in, fmt.Errorf("opening input: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("decoding input: %w", err)
	}
	return in, nil
}

func writeOutput(path string, out *schedule.Output) error {
	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return writeBytes(path, body)
}

// writeFailure never lets an error escape as a non-JSON message: every
// failure path still emits {"success":false,"error":"..."} so callers can
// always parse stdout the same way.
func writeFailure(path string, err error) error {
	out := schedule.Output{Success: false, Error: err.Error()}
	body, marshalErr := json.MarshalIndent(out, "", "  ")
	if marshalErr != nil {
		return marshalErr
	}
	if writeErr := writeBytes(path, body); writeErr != nil {
		return writeErr
	}
	return err
}

func writeBytes(path string, body []byte) error {
	if path == "" {
		_, err := fmt.Println(string(body))
		return err
	}
	return os.WriteFile(path, append(body, '\n'), 0o644)
}
