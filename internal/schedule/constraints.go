package schedule

import (
	"fmt"

	mk "github.com/zeeeing/posting-scheduler/pkg/minikanren"
)

// postingBlockFill returns (building if needed) the Among-encoded headcount
// variable for one posting at one month, capped at capacity minus reserved
// leave slots (spec.md §4.3.2, SPEC_FULL.md §12 leave-quota reduction). The
// cap is enforced purely by the K variable's domain ceiling: propagation
// cannot make the encoded count exceed it, so no separate inequality is
// needed.
func (b *Builder) postingBlockFill(code string, blk int) (*mk.FDVariable, error) {
	if b.capVar[code] == nil {
		b.capVar[code] = make(map[int]capBound)
	}
	if cb, ok := b.capVar[code][blk]; ok {
		return cb.k, nil
	}
	p, ok := b.postings.Lookup(code)
	if !ok {
		return nil, fmt.Errorf("schedule: unknown posting %q", code)
	}
	reserved := b.leaveQuota[code][blk]
	remaining := p.MaxResidents - reserved
	if remaining < 0 {
		remaining = 0
	}
	n := len(b.residents)
	hi := remaining
	if hi > n {
		hi = n
	}

	flags := make([]*mk.FDVariable, n)
	for ri := range b.residents {
		f, err := b.flagEquals(ri, blk, b.codeIndex(code), "cap")
		if err != nil {
			return nil, err
		}
		flags[ri] = f
	}
	k := b.model.NewVariableWithName(mk.DomainRange(1, hi+1), fmt.Sprintf("fill_%s_%d", code, blk))
	c, err := mk.NewAmong(flags, []int{valTrue}, k)
	if err != nil {
		return nil, fmt.Errorf("capacity %s/%d: %w", code, blk, err)
	}
	b.model.AddConstraint(c)
	b.capVar[code][blk] = capBound{k: k, lo: 0, hi: hi}
	return k, nil
}

// codeRunCount returns (building if needed) the K-encoded run-count
// variable for resident ri, posting code — spec.md §4.2's count[r][p],
// "number of complete runs of p", domain {0..⌊12/required_duration⌋}
// encoded as [1, maxRuns+1] (decoded value K-1 is the actual count).
// It is linked to the year's Among-encoded assigned-month total for code
// via the linking invariant ∑_b x[r][p][b] = count[r][p]·required_duration:
// shifting both sides by the package's usual pinned +1 constant (the same
// idiom cpmodel.go's equalVars/minMaxSpread use to keep every LinearSum
// total positive) turns that into d·runK - monthK + 1 = d.
func (b *Builder) codeRunCount(ri int, code string) (*mk.FDVariable, error) {
	key := fmt.Sprintf("runcount_%d_%s", ri, code)
	if v, ok := b.countCache[key]; ok {
		return v, nil
	}
	p, ok := b.postings.Lookup(code)
	if !ok {
		return nil, fmt.Errorf("schedule: unknown posting %q", code)
	}
	idx := b.codeIndex(code)
	flags, err := b.sequenceInSet(ri, []int{idx}, "run_"+code)
	if err != nil {
		return nil, err
	}
	d := p.RequiredBlockDuration
	maxRuns := NumBlocks / d

	monthK := b.model.NewVariableWithName(mk.DomainRange(1, NumBlocks+1), fmt.Sprintf("runmonths_%d_%s", ri, code))
	monthsAmong, err := mk.NewAmong(flags, []int{valTrue}, monthK)
	if err != nil {
		return nil, fmt.Errorf("codeRunCount %s: %w", code, err)
	}
	b.model.AddConstraint(monthsAmong)

	runK := b.model.NewVariableWithName(mk.DomainRange(1, maxRuns+1), key)
	one := b.model.NewVariableWithName(mk.DomainValues(1), key+"_one")
	linkTotal := b.model.NewVariableWithName(mk.DomainValues(d), key+"_link")
	link, err := mk.NewLinearSum([]*mk.FDVariable{runK, monthK, one}, []int{d, -1, 1}, linkTotal)
	if err != nil {
		return nil, fmt.Errorf("codeRunCount link %s: %w", code, err)
	}
	b.model.AddConstraint(link)

	b.countCache[key] = runK
	return runK, nil
}

// codeRunFlag returns (building if needed) sel[r][p]: a boolean reifying
// "resident ri takes at least one run of code this year" (spec.md §4.2's
// `sel[r][p] = 1 ⇔ count[r][p] ≥ 1`), derived from codeRunCount so a
// posting whose requirement spans several runs in a year (e.g. a
// duration-1 core base needed three times) is never capped to a single
// occurrence by this flag alone.
func (b *Builder) codeRunFlag(ri int, code string) (*mk.FDVariable, error) {
	key := fmt.Sprintf("runflag_%d_%s", ri, code)
	if v, ok := b.eqCache[key]; ok {
		return v, nil
	}
	p, ok := b.postings.Lookup(code)
	if !ok {
		return nil, fmt.Errorf("schedule: unknown posting %q", code)
	}
	count, err := b.codeRunCount(ri, code)
	if err != nil {
		return nil, err
	}
	maxRuns := NumBlocks / p.RequiredBlockDuration
	sel, err := reifyInSetRange(b.model, count, 2, maxRuns+1, key+"_sel")
	if err != nil {
		return nil, err
	}
	b.eqCache[key] = sel
	return sel, nil
}

// boundRunCountSum posts ∑ (count_i - 1) ≤ maxTotal over a set of
// codeRunCount K-encoded variables, i.e. the actual total number of runs
// across codes is capped at maxTotal — spec.md §4.3.7's "∑_variants
// count[r][p] ≤ 1" and §4.3.18's "at most one SR run ... in a year"
// both bound a *sum of counts*, not a sum of per-code selection flags,
// so a single code cannot satisfy the cap by itself taking multiple runs.
func (b *Builder) boundRunCountSum(counts []*mk.FDVariable, maxTotal int, name string) error {
	if len(counts) == 0 {
		return nil
	}
	n := len(counts)
	total := b.model.NewVariableWithName(mk.DomainRange(n, n+maxTotal), name+"_total")
	return b.model.LinearSum(counts, onesLike(counts), total)
}

// exactRunCountSum posts ∑ (count_i - 1) = exact over a set of
// codeRunCount K-encoded variables — spec.md §4.3.5's "exactly one CCR
// run (across all CCR codes)".
func (b *Builder) exactRunCountSum(counts []*mk.FDVariable, exact int, name string) error {
	if len(counts) == 0 {
		return fmt.Errorf("exactRunCountSum %s: empty variable list cannot satisfy %d", name, exact)
	}
	n := len(counts)
	total := b.model.NewVariableWithName(mk.DomainValues(n+exact), name+"_total")
	return b.model.LinearSum(counts, onesLike(counts), total)
}

// baseRunFlags returns codeRunFlag for every variant of base.
func (b *Builder) baseRunFlags(ri int, base string) ([]*mk.FDVariable, error) {
	var out []*mk.FDVariable
	for _, code := range b.postings.VariantsForBase(base) {
		f, err := b.codeRunFlag(ri, code)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}

// BuildHardConstraints posts the twenty hard constraints of spec.md §4.3.
// Constraint 1 (exactly one slot per month) and most of constraint 3
// (leaves force off) are already structural consequences of the
// single-choice-variable-per-(resident,block) encoding built by
// BuildVariables; this method posts everything that needs its own
// propagator.
func (b *Builder) BuildHardConstraints() error {
	for blk := 1; blk <= NumBlocks; blk++ {
		for _, code := range b.codes {
			if _, err := b.postingBlockFill(code, blk); err != nil { // constraint 2
				return err
			}
		}
	}

	for ri, r := range b.residents {
		if err := b.contiguousRuns(ri, r); err != nil { // constraint 4
			return err
		}
		if err := b.ccrRule(ri, r); err != nil { // constraint 5
			return err
		}
		if err := b.coreOverAssignment(ri, r); err != nil { // constraint 6
			return err
		}
		if err := b.electiveNonRepetition(ri, r); err != nil { // constraint 7
			return err
		}
		if err := b.micuRccmSameInstitution(ri, r); err != nil { // constraint 8
			return err
		}
		if err := b.micuRccmContiguous(ri, r); err != nil { // constraint 9
			return err
		}
		if err := b.noDecJanCrossing(ri, r); err != nil { // constraint 10
			return err
		}
		if err := b.grmOddStart(ri, r); err != nil { // constraint 11
			return err
		}
		if err := b.quarterStart(ri, r); err != nil { // constraint 12
			return err
		}
		if err := b.stage1GMCap(ri, r); err != nil { // constraint 13
			return err
		}
		if err := b.edGrmContiguity(ri, r); err != nil { // constraint 14
			return err
		}
		if err := b.edGrmGmBundleContiguity(ri, r); err != nil { // constraint 15
			return err
		}
		if err := b.edGrmMustAppear(ri, r); err != nil { // constraint 16
			return err
		}
		if err := b.micuRccmStagePacks(ri, r); err != nil { // constraint 17
			return err
		}
		if err := b.srTiming(ri, r); err != nil { // constraint 18
			return err
		}
	}

	if err := b.balanceAcrossHalves(); err != nil { // constraint 19
		return err
	}
	// constraint 20 (pins) is already applied as a domain restriction in
	// BuildVariables.
	return nil
}

// contiguousRuns posts the fixed-length-run DFA (spec.md constraint 4) for
// every posting whose required duration exceeds one month. Duration-one
// postings trivially accept any sequence.
func (b *Builder) contiguousRuns(ri int, r Resident) error {
	for _, code := range b.codes {
		p, _ := b.postings.Lookup(code)
		if p.RequiredBlockDuration <= 1 {
			continue
		}
		seq, err := b.sequenceInSet(ri, []int{b.codeIndex(code)}, "contig_"+code)
		if err != nil {
			return err
		}
		numStates, start, accept, delta := fixedRunAutomaton(p.RequiredBlockDuration)
		if err := regularConstraint(b.model, seq, numStates, start, accept, delta); err != nil {
			return fmt.Errorf("contiguous run %s/%s: %w", r.MCR, code, err)
		}
	}
	return nil
}

// ccrRule posts spec.md constraint 5's residual clause: when the resident
// has not completed a CCR historically and some month of the solve year
// falls in stage>=2, exactly one CCR run (across all CCR codes) is
// required. The stage-1-forbidden and already-done clauses are already
// domain restrictions from BuildVariables.
func (b *Builder) ccrRule(ri int, r Resident) error {
	if b.doneCCR[r.MCR] {
		return nil
	}
	cp := b.careerByMCR[r.MCR]
	hasStage2Plus := false
	for blk := 1; blk <= NumBlocks; blk++ {
		if cp.StagesByBlock[blk] >= 2 {
			hasStage2Plus = true
			break
		}
	}
	if !hasStage2Plus {
		return nil
	}
	ccr := ccrCodes(b.codes)
	if len(ccr) == 0 {
		return nil
	}
	var counts []*mk.FDVariable
	for _, code := range ccr {
		c, err := b.codeRunCount(ri, code)
		if err != nil {
			return err
		}
		counts = append(counts, c)
	}
	return b.exactRunCountSum(counts, 1, fmt.Sprintf("ccr_%s", r.MCR))
}

// coreOverAssignment posts spec.md constraint 6: historical + assigned
// blocks per core base must not exceed the base's requirement.
func (b *Builder) coreOverAssignment(ri int, r Resident) error {
	for base, req := range CoreRequirements {
		had := b.coreBlocksHad[r.MCR][base]
		remaining := req - had
		if remaining <= 0 {
			continue // already banned via domain restriction
		}
		codes := b.postings.VariantsForBase(base)
		if len(codes) == 0 {
			continue
		}
		flags, err := b.sequenceInSetMany(ri, codes, "core_"+base)
		if err != nil {
			return err
		}
		total := b.model.NewVariableWithName(mk.DomainRange(NumBlocks, NumBlocks+remaining), fmt.Sprintf("coretotal_%s_%s", r.MCR, base))
		coeffs := onesLike(flags)
		if err := b.model.LinearSum(flags, coeffs, total); err != nil {
			return fmt.Errorf("core cap %s/%s: %w", r.MCR, base, err)
		}
	}
	return nil
}

// electiveNonRepetition posts spec.md constraint 7: "∑_variants
// count[r][p] ≤ 1" for each elective base not already completed
// historically — a sum over run *counts*, not selection flags, so a
// single variant cannot satisfy the cap by itself taking two runs.
// Already-completed bases are banned entirely via domain restriction.
func (b *Builder) electiveNonRepetition(ri int, r Resident) error {
	seen := map[string]bool{}
	for _, code := range b.codes {
		p, _ := b.postings.Lookup(code)
		if p.Type != PostingElective {
			continue
		}
		base := Base(code)
		if seen[base] || b.doneBase[r.MCR][base] {
			seen[base] = true
			continue
		}
		seen[base] = true
		var counts []*mk.FDVariable
		for _, variant := range b.postings.VariantsForBase(base) {
			c, err := b.codeRunCount(ri, variant)
			if err != nil {
				return err
			}
			counts = append(counts, c)
		}
		if err := b.boundRunCountSum(counts, 1, fmt.Sprintf("elective_%s_%s", r.MCR, base)); err != nil {
			return err
		}
	}
	return nil
}

// micuInstitutionGroups groups every MICU/RCCM variant by institution.
func (b *Builder) micuInstitutionGroups() map[string][]string {
	groups := map[string][]string{}
	for _, base := range []string{"MICU", "RCCM"} {
		for _, code := range b.postings.VariantsForBase(base) {
			inst := Institution(code)
			groups[inst] = append(groups[inst], code)
		}
	}
	return groups
}

// micuRccmSameInstitution posts spec.md constraint 8: MICU/RCCM variants
// from more than one institution cannot both be selected in the year.
func (b *Builder) micuRccmSameInstitution(ri int, r Resident) error {
	groups := b.micuInstitutionGroups()
	if len(groups) <= 1 {
		return nil
	}
	var instFlags []*mk.FDVariable
	for inst, codes := range groups {
		var codeFlags []*mk.FDVariable
		for _, code := range codes {
			f, err := b.codeRunFlag(ri, code)
			if err != nil {
				return err
			}
			codeFlags = append(codeFlags, f)
		}
		orFlag, err := b.orFlags(codeFlags, fmt.Sprintf("instsel_%s_%s_%s", r.MCR, inst, "micurccm"))
		if err != nil {
			return err
		}
		instFlags = append(instFlags, orFlag)
	}
	return atMostK(b.model, instFlags, 1, fmt.Sprintf("micurccm_inst_%s", r.MCR))
}

// micuRccmIndicatorSequence builds the combined MICU∪RCCM boolean indicator
// M[b] used by constraints 9, 10, and 17.
func (b *Builder) micuRccmIndicatorSequence(ri int) ([]*mk.FDVariable, error) {
	var codes []string
	codes = append(codes, b.postings.VariantsForBase("MICU")...)
	codes = append(codes, b.postings.VariantsForBase("RCCM")...)
	return b.sequenceInSetMany(ri, codes, "micurccm_ind")
}

// micuRccmContiguous posts spec.md constraint 9.
func (b *Builder) micuRccmContiguous(ri int, r Resident) error {
	seq, err := b.micuRccmIndicatorSequence(ri)
	if err != nil {
		return err
	}
	numStates, start, accept, delta := noReentryAutomaton()
	return regularConstraint(b.model, seq, numStates, start, accept, delta)
}

// noDecJanCrossing posts spec.md constraint 10.
func (b *Builder) noDecJanCrossing(ri int, r Resident) error {
	for _, code := range b.codes {
		a, err := b.flagEquals(ri, DecemberBlock, b.codeIndex(code), "decjan")
		if err != nil {
			return err
		}
		c, err := b.flagEquals(ri, JanuaryBlock, b.codeIndex(code), "decjan")
		if err != nil {
			return err
		}
		if err := atMostK(b.model, []*mk.FDVariable{a, c}, 1, fmt.Sprintf("decjan_%s_%s", r.MCR, code)); err != nil {
			return err
		}
	}
	seq, err := b.micuRccmIndicatorSequence(ri)
	if err != nil {
		return err
	}
	decFlag, janFlag := seq[DecemberBlock-1], seq[JanuaryBlock-1]
	return atMostK(b.model, []*mk.FDVariable{decFlag, janFlag}, 1, fmt.Sprintf("micurccm_decjan_%s", r.MCR))
}

// grmOddStart posts spec.md constraint 11: every GRM run starts on an odd
// month, expressed as x[b] -> x[b-1] for every even b>=2.
func (b *Builder) grmOddStart(ri int, r Resident) error {
	for _, code := range b.postings.VariantsForBase("GRM") {
		idx := b.codeIndex(code)
		for blk := 2; blk <= NumBlocks; blk += 2 {
			cur, err := b.flagEquals(ri, blk, idx, "grm")
			if err != nil {
				return err
			}
			prev, err := b.flagEquals(ri, blk-1, idx, "grm")
			if err != nil {
				return err
			}
			if err := implies(b.model, cur, prev); err != nil {
				return err
			}
		}
	}
	return nil
}

// quarterStart posts spec.md constraint 12: every 3-month run starts on a
// quarter boundary {1,4,7,10}.
func (b *Builder) quarterStart(ri int, r Resident) error {
	quarterStarts := map[int]bool{1: true, 4: true, 7: true, 10: true}
	for _, code := range b.codes {
		p, _ := b.postings.Lookup(code)
		if p.RequiredBlockDuration != 3 {
			continue
		}
		idx := b.codeIndex(code)
		for blk := 2; blk <= NumBlocks; blk++ {
			if quarterStarts[blk] {
				continue
			}
			cur, err := b.flagEquals(ri, blk, idx, "quarter")
			if err != nil {
				return err
			}
			prev, err := b.flagEquals(ri, blk-1, idx, "quarter")
			if err != nil {
				return err
			}
			if err := implies(b.model, cur, prev); err != nil {
				return err
			}
		}
	}
	return nil
}

// stage1GMCap posts spec.md constraint 13: at most 3 GM blocks within
// stage-1 months.
func (b *Builder) stage1GMCap(ri int, r Resident) error {
	cp := b.careerByMCR[r.MCR]
	gmIdx := b.indicesForBase("GM")
	if len(gmIdx) == 0 {
		return nil
	}
	var stage1Flags []*mk.FDVariable
	for blk := 1; blk <= NumBlocks; blk++ {
		if cp.StagesByBlock[blk] != 1 {
			continue
		}
		f, err := b.flagInSet(ri, blk, gmIdx, "gm")
		if err != nil {
			return err
		}
		stage1Flags = append(stage1Flags, f)
	}
	if len(stage1Flags) == 0 {
		return nil
	}
	return atMostK(b.model, stage1Flags, 3, fmt.Sprintf("gmstage1_%s", r.MCR))
}

// edGrmContiguity posts spec.md constraint 14.
func (b *Builder) edGrmContiguity(ri int, r Resident) error {
	codes := append(append([]string{}, b.postings.VariantsForBase("ED")...), b.postings.VariantsForBase("GRM")...)
	seq, err := b.sequenceInSetMany(ri, codes, "edgrm_ind")
	if err != nil {
		return err
	}
	numStates, start, accept, delta := noReentryAutomaton()
	return regularConstraint(b.model, seq, numStates, start, accept, delta)
}

// edGrmGmBundleContiguity posts spec.md constraint 15.
func (b *Builder) edGrmGmBundleContiguity(ri int, r Resident) error {
	var codes []string
	codes = append(codes, b.postings.VariantsForBase("ED")...)
	codes = append(codes, b.postings.VariantsForBase("GRM")...)
	codes = append(codes, b.postings.VariantsForBase("GM")...)
	seq, err := b.sequenceInSetMany(ri, codes, "edgrmgm_ind")
	if err != nil {
		return err
	}
	numStates, start, accept, delta := noReentryAutomaton()
	return regularConstraint(b.model, seq, numStates, start, accept, delta)
}

// edGrmMustAppear posts spec.md constraint 16.
func (b *Builder) edGrmMustAppear(ri int, r Resident) error {
	if !b.doneBase[r.MCR]["ED"] && b.coreBlocksHad[r.MCR]["ED"] == 0 {
		flags, err := b.baseRunFlags(ri, "ED")
		if err != nil {
			return err
		}
		if len(flags) > 0 {
			if err := atLeastK(b.model, flags, 1, fmt.Sprintf("ed_must_%s", r.MCR)); err != nil {
				return err
			}
		}
	}
	if b.coreBlocksHad[r.MCR]["GRM"] < CoreRequirements["GRM"] {
		flags, err := b.baseRunFlags(ri, "GRM")
		if err != nil {
			return err
		}
		if len(flags) > 0 {
			if err := atLeastK(b.model, flags, 1, fmt.Sprintf("grm_must_%s", r.MCR)); err != nil {
				return err
			}
		}
	}
	return nil
}

// micuRccmStagePacks posts spec.md constraint 17, a Table constraint over
// the year's MICU and RCCM month totals restricting them to the allowed
// (MICU, RCCM) pairs for the resident's career stage.
func (b *Builder) micuRccmStagePacks(ri int, r Resident) error {
	cp := b.careerByMCR[r.MCR]
	hM := b.coreBlocksHad[r.MCR]["MICU"]
	hR := b.coreBlocksHad[r.MCR]["RCCM"]

	var pairs [][2]int
	switch cp.Stage {
	case 1:
		pairs = [][2]int{{0, 0}, {1, 2}}
	case 2:
		firstPackDone := hM >= 1 && hR >= 2
		if !firstPackDone {
			pairs = [][2]int{{1, 2}}
		} else {
			pairs = [][2]int{{0, 0}, {2, 1}}
		}
	default: // stage 3
		needM := CoreRequirements["MICU"] - hM
		if needM < 0 {
			needM = 0
		}
		needR := CoreRequirements["RCCM"] - hR
		if needR < 0 {
			needR = 0
		}
		pairs = [][2]int{{needM, needR}}
	}

	micuCodes := b.postings.VariantsForBase("MICU")
	rccmCodes := b.postings.VariantsForBase("RCCM")
	if len(micuCodes) == 0 || len(rccmCodes) == 0 {
		return nil
	}

	maxM, maxR := 0, 0
	for _, pr := range pairs {
		if pr[0] > maxM {
			maxM = pr[0]
		}
		if pr[1] > maxR {
			maxR = pr[1]
		}
	}

	micuFlags, err := b.sequenceInSetMany(ri, micuCodes, "micu_pack")
	if err != nil {
		return err
	}
	rccmFlags, err := b.sequenceInSetMany(ri, rccmCodes, "rccm_pack")
	if err != nil {
		return err
	}
	micuK := b.model.NewVariableWithName(mk.DomainRange(1, maxM+1), fmt.Sprintf("micuk_%s", r.MCR))
	rccmK := b.model.NewVariableWithName(mk.DomainRange(1, maxR+1), fmt.Sprintf("rccmk_%s", r.MCR))
	micuAmong, err := mk.NewAmong(micuFlags, []int{valTrue}, micuK)
	if err != nil {
		return err
	}
	b.model.AddConstraint(micuAmong)
	rccmAmong, err := mk.NewAmong(rccmFlags, []int{valTrue}, rccmK)
	if err != nil {
		return err
	}
	b.model.AddConstraint(rccmAmong)

	rows := make([][]int, len(pairs))
	for i, pr := range pairs {
		rows[i] = []int{pr[0] + 1, pr[1] + 1}
	}
	table, err := mk.NewTable([]*mk.FDVariable{micuK, rccmK}, rows)
	if err != nil {
		return fmt.Errorf("micu/rccm stage pack %s: %w", r.MCR, err)
	}
	b.model.AddConstraint(table)
	return nil
}

// srTiming posts spec.md constraint 18's "at most one SR run is scheduled
// in a year" clause as a sum over run *counts* across every SR base's
// variants (not a sum of selection flags, which would let a single SR
// base satisfy the cap by itself taking multiple runs); the window and
// stage-1 bans are already domain restrictions from BuildVariables.
func (b *Builder) srTiming(ri int, r Resident) error {
	bases := b.srBasesByMCR[r.MCR]
	if len(bases) == 0 {
		return nil
	}
	var counts []*mk.FDVariable
	seen := map[string]bool{}
	for _, base := range bases {
		if seen[base] {
			continue
		}
		seen[base] = true
		for _, variant := range b.postings.VariantsForBase(base) {
			c, err := b.codeRunCount(ri, variant)
			if err != nil {
				return err
			}
			counts = append(counts, c)
		}
	}
	if len(counts) == 0 {
		return nil
	}
	return b.boundRunCountSum(counts, 1, fmt.Sprintf("sr_onerun_%s", r.MCR))
}

// balanceAcrossHalves posts spec.md constraint 19 for every posting whose
// base is not GM or ED, across months 1..6 and 7..12 independently.
func (b *Builder) balanceAcrossHalves() error {
	n := len(b.residents)
	if n == 0 {
		return nil
	}
	for _, code := range b.codes {
		base := Base(code)
		if base == "GM" || base == "ED" {
			continue
		}
		for _, half := range [][2]int{{1, 6}, {7, 12}} {
			var vars []*mk.FDVariable
			for blk := half[0]; blk <= half[1]; blk++ {
				k, err := b.postingBlockFill(code, blk)
				if err != nil {
					return err
				}
				vars = append(vars, k)
			}
			if err := minMaxSpread(b.model, vars, 1, n+1, 4, fmt.Sprintf("balance_%s_%d_%d", code, half[0], half[1])); err != nil {
				return fmt.Errorf("balance %s: %w", code, err)
			}
		}
	}
	return nil
}

// sequenceInSetMany is sequenceInSet over the union of several posting
// codes (used by combined-indicator constraints).
func (b *Builder) sequenceInSetMany(ri int, codes []string, tag string) ([]*mk.FDVariable, error) {
	if len(codes) == 0 {
		// No posting of this kind exists in the table: the indicator is
		// vacuously false every month, expressed directly as a
		// single-value domain rather than a reified constraint.
		seq := make([]*mk.FDVariable, NumBlocks)
		for blk := 1; blk <= NumBlocks; blk++ {
			seq[blk-1] = b.model.NewVariableWithName(mk.DomainValues(valFalse), fmt.Sprintf("const_false_%d_%s_%d", ri, tag, blk))
		}
		return seq, nil
	}
	return b.sequenceInSet(ri, b.indicesForCodes(codes), tag)
}

// orFlags returns a boolean reifying "at least one of flags is true".
func (b *Builder) orFlags(flags []*mk.FDVariable, name string) (*mk.FDVariable, error) {
	if len(flags) == 1 {
		return flags[0], nil
	}
	total := b.model.NewVariableWithName(mk.DomainRange(len(flags), 2*len(flags)), name+"_total")
	coeffs := onesLike(flags)
	if err := b.model.LinearSum(flags, coeffs, total); err != nil {
		return nil, err
	}
	return reifyInSetRange(b.model, total, len(flags)+1, 2*len(flags), name+"_or")
}

// reifyInSetRange posts flag <=> (v in [lo,hi]).
func reifyInSetRange(m *mk.Model, v *mk.FDVariable, lo, hi int, name string) (*mk.FDVariable, error) {
	values := make([]int, 0, hi-lo+1)
	for x := lo; x <= hi; x++ {
		values = append(values, x)
	}
	return reifyInSet(m, v, values, name)
}

func onesLike(vars []*mk.FDVariable) []int {
	c := make([]int, len(vars))
	for i := range c {
		c[i] = 1
	}
	return c
}
