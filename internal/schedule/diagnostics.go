package schedule

import (
	"fmt"
	"sort"
)

// buildInfeasibilityHint independently re-derives the hard floors that
// cannot possibly be met, since pkg/minikanren has no assumption/unsat-core
// API to ask the solver itself. This is a heuristic, best-effort summary
// (spec.md §4.6's "optionally surface the unsat core" clause), not a proof
// of minimality.
func buildInfeasibilityHint(b *Builder) error {
	var hints []string
	for _, r := range b.residents {
		cp := b.careerByMCR[r.MCR]

		if !b.doneCCR[r.MCR] {
			hasStage2Plus := false
			for blk := 1; blk <= NumBlocks; blk++ {
				if cp.StagesByBlock[blk] >= 2 {
					hasStage2Plus = true
					break
				}
			}
			if hasStage2Plus && len(ccrCodes(b.codes)) == 0 {
				hints = append(hints, fmt.Sprintf("%s: reaches stage 2+ this year and needs a CCR posting, but the posting table has none", r.MCR))
			}
		}

		for base, req := range CoreRequirements {
			had := b.coreBlocksHad[r.MCR][base]
			if had >= req {
				continue
			}
			if len(b.postings.VariantsForBase(base)) == 0 {
				hints = append(hints, fmt.Sprintf("%s: still needs %d block(s) of %s, but the posting table has no %s variant", r.MCR, req-had, base, base))
			}
		}

		freeMonths := 0
		for blk := 1; blk <= NumBlocks; blk++ {
			if _, onLeave := b.leaveBlocks[r.MCR][blk]; onLeave {
				continue
			}
			if _, pinned := b.pins[r.MCR][blk]; pinned {
				continue
			}
			freeMonths++
		}
		remainingCore := 0
		for base, req := range CoreRequirements {
			had := b.coreBlocksHad[r.MCR][base]
			if had < req {
				remainingCore += req - had
			}
		}
		if remainingCore > freeMonths {
			hints = append(hints, fmt.Sprintf("%s: %d remaining core block(s) required but only %d unpinned/non-leave month(s) available", r.MCR, remainingCore, freeMonths))
		}
	}

	for _, code := range b.codes {
		p, _ := b.postings.Lookup(code)
		if p.MaxResidents > 0 {
			continue
		}
		hints = append(hints, fmt.Sprintf("posting %s has zero capacity", code))
	}

	sort.Strings(hints)
	if len(hints) == 0 {
		return fmt.Errorf("no feasible schedule found; no specific cause could be identified")
	}
	return fmt.Errorf("no feasible schedule found; possible causes: %v", hints)
}

// buildOffExplanations produces SPEC_FULL.md §4.7 EXPANSION's best-effort,
// non-authoritative reason tags for every unexplained (non-leave) off
// block in the solved assignment: the hard-constraint family most likely
// to have forced it, inferred from the resident's static state rather than
// from the solver's own search trace (pkg/minikanren keeps none).
func buildOffExplanations(b *Builder, ri int, mcr string, assignment [NumBlocks + 1]string) []OffExplanation {
	var out []OffExplanation
	for blk := 1; blk <= NumBlocks; blk++ {
		if assignment[blk] != "" {
			continue
		}
		if _, onLeave := b.leaveBlocks[mcr][blk]; onLeave {
			continue
		}
		reason := offReason(b, ri, blk)
		out = append(out, OffExplanation{MCR: mcr, MonthBlock: blk, Reason: reason})
	}
	return out
}

// offReason guesses why a given month had no assignable posting left,
// checking the cheapest, most common explanations first.
func offReason(b *Builder, ri int, blk int) string {
	mcr := b.residents[ri].MCR
	quarterStarts := map[int]bool{1: true, 4: true, 7: true, 10: true}

	electiveRoomLeft := false
	capacityLeft := false
	quarterBlockedOnly := false
	grmBlockedOnly := false
	for _, code := range b.codes {
		p, _ := b.postings.Lookup(code)
		if p.Type == PostingElective && !b.doneBase[mcr][Base(code)] {
			electiveRoomLeft = true
		}
		cb, ok := b.capVar[code][blk]
		if !ok || cb.hi <= 0 {
			continue
		}
		capacityLeft = true
		if p.RequiredBlockDuration == 3 && !quarterStarts[blk] {
			quarterBlockedOnly = true
		}
		if Base(code) == "GRM" && blk%2 == 0 {
			grmBlockedOnly = true
		}
	}

	switch {
	case blk == DecemberBlock || blk == JanuaryBlock:
		return "crosses_dec_jan_boundary"
	case !electiveRoomLeft:
		return "elective_base_already_completed"
	case !capacityLeft:
		return "capacity_full"
	case grmBlockedOnly:
		return "grm_even_start_disallowed"
	case quarterBlockedOnly:
		return "quarter_start_disallowed"
	default:
		return "unexplained"
	}
}
