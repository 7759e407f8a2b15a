package schedule

// DFA transition tables for the two automaton shapes used throughout
// the hard-constraint set (spec.md §4.3.4 and §4.3.9, reused by
// §4.3.14/15/17). States are 1-based and the alphabet is the solver's
// own boolean convention: symbol 1 = false, symbol 2 = true
// (pkg/minikanren's Regular constraint takes positive-integer symbols
// directly, so no remapping is needed between our boolean FD variables
// and DFA input symbols).

// fixedRunAutomaton builds the {INIT, 1..d, TERM} DFA that accepts any
// sequence decomposable into maximal runs of exactly d consecutive
// true symbols, separated (and surrounded) by any number of false
// symbols. d must be >= 1.
func fixedRunAutomaton(d int) (numStates, start int, accept []int, delta [][]int) {
	// state 1 = INIT, states 2..d+1 = run positions 1..d, state d+2 = TERM
	initState := 1
	termState := d + 2
	numStates = d + 2
	start = initState
	accept = []int{initState, termState}

	delta = make([][]int, numStates)
	for s := 0; s < numStates; s++ {
		delta[s] = make([]int, 3) // index 0 unused, 1 = false, 2 = true
	}

	// INIT: false -> INIT, true -> run position 1
	delta[initState-1][1] = initState
	delta[initState-1][2] = 2

	// run positions 1..d-1: true -> next position; false has no
	// transition (a partial run is a dead end)
	for i := 1; i < d; i++ {
		state := 1 + i
		delta[state-1][2] = state + 1
	}

	// run position d (the last position of the run): false -> TERM;
	// true has no transition (runs longer than d are rejected)
	lastPos := 1 + d
	delta[lastPos-1][1] = termState

	// TERM: false -> TERM, true -> run position 1 (chain into a new run)
	delta[termState-1][1] = termState
	delta[termState-1][2] = 2

	return numStates, start, accept, delta
}

// noReentryAutomaton builds the {before, in-run, after} DFA used for
// MICU/RCCM, ED/GRM, and ED/GRM/GM combined-indicator contiguity: once
// the indicator has gone true and back to false, it may never go true
// again.
func noReentryAutomaton() (numStates, start int, accept []int, delta [][]int) {
	const before, inRun, after = 1, 2, 3
	numStates = 3
	start = before
	accept = []int{before, inRun, after}

	delta = make([][]int, numStates)
	for s := 0; s < numStates; s++ {
		delta[s] = make([]int, 3)
	}
	delta[before-1][1] = before
	delta[before-1][2] = inRun
	delta[inRun-1][1] = after
	delta[inRun-1][2] = inRun
	delta[after-1][1] = after
	// delta[after-1][2] left at 0: no transition, re-entry is rejected
	return numStates, start, accept, delta
}
