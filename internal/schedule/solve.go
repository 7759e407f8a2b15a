package schedule

import (
	"context"
	"runtime"
	"time"

	mk "github.com/zeeeing/posting-scheduler/pkg/minikanren"
)

// defaultTimeLimit is spec.md §4.6's default wall-clock limit.
const defaultTimeLimit = 15 * time.Minute

// Allocate runs one full cohort solve: variable construction, hard
// constraints, objective, solve, and post-processing (spec.md §2). It is
// synchronous and single-flighted (spec.md §5): one model build, one
// solver invocation, no process-wide state.
func Allocate(ctx context.Context, in Input, lg logger) (*Output, error) {
	if lg == nil {
		lg = nopLogger{}
	}
	if err := validateInput(in); err != nil {
		return nil, &Error{Kind: KindInvalidInput, Err: err}
	}

	b, err := NewBuilder(in, lg)
	if err != nil {
		return nil, &Error{Kind: KindInvalidInput, Err: err}
	}
	lg.Printf("schedule: model build starting (%d residents, %d postings)", len(in.Residents), len(in.Postings))

	if err := b.BuildVariables(); err != nil {
		return nil, &Error{Kind: KindInternal, Err: err}
	}
	if err := b.BuildHardConstraints(); err != nil {
		return nil, &Error{Kind: KindInternal, Err: err}
	}
	if err := b.BuildObjective(); err != nil {
		return nil, &Error{Kind: KindInternal, Err: err}
	}
	obj, err := b.FinalizeObjective()
	if err != nil {
		return nil, &Error{Kind: KindInternal, Err: err}
	}
	lg.Printf("schedule: model built (%d variables, %d constraints)", b.model.VariableCount(), b.model.ConstraintCount())

	timeLimit := defaultTimeLimit
	if in.MaxTimeInMinutes > 0 {
		timeLimit = time.Duration(in.MaxTimeInMinutes) * time.Minute
	}

	workers := runtime.NumCPU()
	if workers > 4 {
		workers = 4
	}

	solver := mk.NewSolver(b.model)
	lg.Printf("schedule: solve starting (time limit %s, %d workers)", timeLimit, workers)
	sol, _, solveErr := solver.SolveOptimalWithOptions(ctx, obj, false, mk.WithTimeLimit(timeLimit), mk.WithParallelWorkers(workers))

	timedOut := false
	switch {
	case solveErr != nil && sol == nil:
		// Context deadline/cancellation with no incumbent at all: if the
		// caller's own context was already done, that's a timeout with no
		// solution (spec.md §7); otherwise treat it the same way, since
		// pkg/minikanren only returns a non-nil error alongside a nil
		// solution when the search was cut off before finding anything.
		return nil, &Error{Kind: KindTimedOut, Err: solveErr}
	case solveErr != nil:
		// Best incumbent returned alongside ctx.Err(): time-limit-truncated
		// but feasible, which spec.md §4.6/§7 treats as success.
		timedOut = true
	case sol == nil:
		return nil, &Error{Kind: KindInfeasible, Err: buildInfeasibilityHint(b)}
	}
	lg.Printf("schedule: solve finished (timed_out=%v)", timedOut)

	assignments := decodeSolution(b, sol)
	out, err := postProcess(in, b, assignments)
	if err != nil {
		return nil, &Error{Kind: KindInternal, Err: err}
	}
	out.TimedOut = timedOut
	out.Success = true
	lg.Printf("schedule: post-processing done")
	return out, nil
}

// decodeSolution reads each resident's 12 posting choices out of the raw
// per-variable solution slice pkg/minikanren returns (one value per model
// variable, indexed by variable ID).
func decodeSolution(b *Builder, sol []int) [][NumBlocks + 1]string {
	out := make([][NumBlocks + 1]string, len(b.residents))
	for ri := range b.residents {
		for blk := 1; blk <= NumBlocks; blk++ {
			v := sol[b.post[ri][blk].ID()]
			if v == b.offIndex {
				out[ri][blk] = ""
				continue
			}
			out[ri][blk] = b.codes[v-1]
		}
	}
	return out
}

// validateInput checks the input shape errors spec.md §7 calls out:
// missing residents/postings, and structurally impossible posting/ history
// rows. This is deliberately shallow — pkg/minikanren's own domain
// construction will reject anything that slips through and produces an
// unsatisfiable model.
func validateInput(in Input) error {
	if len(in.Residents) == 0 {
		return newError("no residents in input")
	}
	if len(in.Postings) == 0 {
		return newError("no postings in input")
	}
	seen := map[string]bool{}
	for _, p := range in.Postings {
		if p.Code == "" {
			return newError("posting with empty code")
		}
		if seen[p.Code] {
			return newError("duplicate posting code %q", p.Code)
		}
		seen[p.Code] = true
		if p.RequiredBlockDuration < 1 {
			return newError("posting %q has required_block_duration < 1", p.Code)
		}
		if p.MaxResidents < 0 {
			return newError("posting %q has negative max_residents", p.Code)
		}
	}
	seenMCR := map[string]bool{}
	for _, r := range in.Residents {
		if r.MCR == "" {
			return newError("resident with empty mcr")
		}
		if seenMCR[r.MCR] {
			return newError("duplicate resident mcr %q", r.MCR)
		}
		seenMCR[r.MCR] = true
		if r.CareerBlocksCompleted < 0 {
			return newError("resident %q has negative career_blocks_completed", r.MCR)
		}
	}
	return nil
}
