package schedule

import (
	"fmt"

	mk "github.com/zeeeing/posting-scheduler/pkg/minikanren"
)

// BuildObjective accumulates every bonus and penalty term of spec.md §4.5
// into b.objTerms via addObjectiveTerm, and posts the hard "at least one
// elective for a resident entering stage 2" rule that §4.4 calls out as
// hard despite living in the soft-constraints section.
func (b *Builder) BuildObjective() error {
	for ri, r := range b.residents {
		if err := b.electiveMinimumHard(ri, r); err != nil {
			return err
		}
		if err := b.twoElectiveBonus(ri, r); err != nil {
			return err
		}
		if err := b.preferenceBonus(ri, r); err != nil {
			return err
		}
		if err := b.srPreferenceBonus(ri, r); err != nil {
			return err
		}
		if err := b.seniorityBonus(ri, r); err != nil {
			return err
		}
		if err := b.coreBonus(ri, r); err != nil {
			return err
		}
		if err := b.gmKTPHBonus(ri, r); err != nil {
			return err
		}
		_, edSel, grmSel, _, err := b.threeGMBonus(ri, r)
		if err != nil {
			return err
		}
		if err := b.earlyBundleBonus(ri, r, edSel, grmSel); err != nil {
			return err
		}
		if err := b.electiveShortfallPenalty(ri, r); err != nil {
			return err
		}
		if err := b.coreShortfallPenalty(ri, r); err != nil {
			return err
		}
		if err := b.srMissingPenalty(ri, r); err != nil {
			return err
		}
		if err := b.offPenalty(ri, r); err != nil {
			return err
		}
	}
	return nil
}

// enteringStage reports whether the resident's nominal stage at the start
// of the year is below target and the year's end stage reaches it.
func enteringStage(cp CareerProgress, target int) bool {
	return cp.Stage < target && cp.StagesByBlock[NumBlocks] >= target
}

// electiveMinimumHard posts spec.md §4.4's "at least one elective for
// residents entering stage 2" rule, which the prose places among the soft
// constraints but states as a hard requirement.
func (b *Builder) electiveMinimumHard(ri int, r Resident) error {
	cp := b.careerByMCR[r.MCR]
	if !enteringStage(cp, 2) {
		return nil
	}
	flags, err := b.electiveSelectionFlags(ri, r)
	if err != nil {
		return err
	}
	if len(flags) == 0 {
		return nil
	}
	return atLeastK(b.model, flags, 1, fmt.Sprintf("elective_min_stage2_%s", r.MCR))
}

// twoElectiveBonus posts spec.md §4.4's small bonus: for a resident entering
// stage 2 who also expressed elective preferences, accumulating two unique
// electives (rather than just the hard one-elective minimum) earns a small
// reward. Open-question decision (SPEC_FULL.md §9, alongside the other
// hardcoded bonus weights): no Weightages field names this bonus, so its
// weight is a small hardcoded constant rather than a new wire field.
func (b *Builder) twoElectiveBonus(ri int, r Resident) error {
	const twoElectiveBonusWeight = 2
	cp := b.careerByMCR[r.MCR]
	if !enteringStage(cp, 2) {
		return nil
	}
	hasElectivePrefs := false
	for _, pref := range b.prefs {
		if pref.MCR == r.MCR {
			hasElectivePrefs = true
			break
		}
	}
	if !hasElectivePrefs {
		return nil
	}
	flags, err := b.electiveSelectionFlags(ri, r)
	if err != nil {
		return err
	}
	if len(flags) < 2 {
		return nil
	}
	count, err := countTrueVar(b.model, flags, []int{valTrue}, fmt.Sprintf("electivecount_%s", r.MCR))
	if err != nil {
		return err
	}
	twoOrMore, err := reifyInSetRange(b.model, count, 3, len(flags)+1, fmt.Sprintf("twoelective_%s", r.MCR))
	if err != nil {
		return err
	}
	b.addObjectiveTerm(twoOrMore, twoElectiveBonusWeight)
	return nil
}

// electiveSelectionFlags returns one "this elective base was selected this
// year" boolean per elective base not already completed historically.
func (b *Builder) electiveSelectionFlags(ri int, r Resident) ([]*mk.FDVariable, error) {
	seen := map[string]bool{}
	var out []*mk.FDVariable
	for _, code := range b.codes {
		p, _ := b.postings.Lookup(code)
		if p.Type != PostingElective {
			continue
		}
		base := Base(code)
		if seen[base] {
			continue
		}
		seen[base] = true
		if b.doneBase[r.MCR][base] {
			continue
		}
		fs, err := b.baseRunFlags(ri, base)
		if err != nil {
			return nil, err
		}
		sel, err := b.orFlags(fs, fmt.Sprintf("electivesel_%s_%s", r.MCR, base))
		if err != nil {
			return nil, err
		}
		out = append(out, sel)
	}
	return out, nil
}

// preferenceBonus posts spec.md §4.5's preference_bonus: for every ranked
// elective preference, weight*(6-rank) when that posting is selected.
func (b *Builder) preferenceBonus(ri int, r Resident) error {
	weight := b.weightages.Preference
	if weight == 0 {
		return nil
	}
	for _, pref := range b.prefs {
		if pref.MCR != r.MCR {
			continue
		}
		if _, ok := b.postings.Lookup(pref.PostingCode); !ok {
			continue
		}
		coeff := weight * (6 - pref.PreferenceRank)
		if coeff <= 0 {
			continue
		}
		sel, err := b.codeRunFlag(ri, pref.PostingCode)
		if err != nil {
			return err
		}
		b.addObjectiveTerm(sel, coeff)
	}
	return nil
}

// prefsIncludeBase reports whether any of the resident's elective
// preferences target the given base.
func (b *Builder) prefsIncludeBase(mcr, base string) bool {
	for _, pref := range b.prefs {
		if pref.MCR == mcr && Base(pref.PostingCode) == base {
			return true
		}
	}
	return false
}

// srPreferenceBonus posts spec.md §4.5's sr_preference_bonus, honoring the
// eligibility carve-out: elective SR bases are skipped when the resident
// declared any elective preferences, unless the base is also among them
// (core SR bases are always eligible).
func (b *Builder) srPreferenceBonus(ri int, r Resident) error {
	weight := b.weightages.SRPreference
	if weight == 0 {
		return nil
	}
	const maxRank = 3
	hasElectivePrefs := false
	for _, pref := range b.prefs {
		if pref.MCR == r.MCR {
			hasElectivePrefs = true
			break
		}
	}
	seen := map[string]bool{}
	for _, sp := range b.srPrefs {
		if sp.MCR != r.MCR || seen[sp.BasePosting] {
			continue
		}
		seen[sp.BasePosting] = true
		base := sp.BasePosting
		if len(b.postings.VariantsForBase(base)) == 0 {
			continue
		}
		if !IsCore(base) && hasElectivePrefs && !b.prefsIncludeBase(r.MCR, base) {
			continue
		}
		coeff := weight * (maxRank + 1 - sp.PreferenceRank)
		if coeff <= 0 {
			continue
		}
		flags, err := b.baseRunFlags(ri, base)
		if err != nil {
			return err
		}
		if len(flags) == 0 {
			continue
		}
		sel, err := b.orFlags(flags, fmt.Sprintf("srsel_%s_%s", r.MCR, base))
		if err != nil {
			return err
		}
		b.addObjectiveTerm(sel, coeff)
	}
	return nil
}

// seniorityBonus posts spec.md §4.5's seniority_bonus: stage_at_month *
// seniority_weight for every month the resident is assigned (not off).
// stage_at_month is known statically per (resident, block) from
// CareerProgress before solving, so each month contributes a flat
// LinearSum coefficient on the "assigned this month" flag rather than an
// element-constraint lookup.
func (b *Builder) seniorityBonus(ri int, r Resident) error {
	weight := b.weightages.Seniority
	if weight == 0 {
		return nil
	}
	cp := b.careerByMCR[r.MCR]
	allIdx := make([]int, len(b.codes))
	for i := range b.codes {
		allIdx[i] = i + 1
	}
	for blk := 1; blk <= NumBlocks; blk++ {
		coeff := cp.StagesByBlock[blk] * weight
		if coeff <= 0 {
			continue
		}
		assigned, err := b.flagInSet(ri, blk, allIdx, "assigned")
		if err != nil {
			return err
		}
		b.addObjectiveTerm(assigned, coeff)
	}
	return nil
}

// coreBonus posts spec.md §4.5's core_bonus: a flat 5 points per core
// posting actually selected this year (open-question decision, SPEC_FULL.md
// §9: weight is hardcoded rather than taken from Weightages, which has no
// core_bonus field).
func (b *Builder) coreBonus(ri int, r Resident) error {
	const coreBonusWeight = 5
	seen := map[string]bool{}
	for _, code := range b.codes {
		base := Base(code)
		if !IsCore(base) || seen[base] {
			continue
		}
		seen[base] = true
		flags, err := b.baseRunFlags(ri, base)
		if err != nil {
			return err
		}
		if len(flags) == 0 {
			continue
		}
		sel, err := b.orFlags(flags, fmt.Sprintf("coresel_%s_%s", r.MCR, base))
		if err != nil {
			return err
		}
		b.addObjectiveTerm(sel, coreBonusWeight)
	}
	return nil
}

// gmKTPHBonus posts spec.md §4.5's gm_ktph_bonus: 1 point per stage-1
// block assigned to the KTPH GM variant.
func (b *Builder) gmKTPHBonus(ri int, r Resident) error {
	if _, ok := b.postings.Lookup(KTPHGMCode); !ok {
		return nil
	}
	const ktphBonusWeight = 1
	cp := b.careerByMCR[r.MCR]
	idx := b.codeIndex(KTPHGMCode)
	for blk := 1; blk <= NumBlocks; blk++ {
		if cp.StagesByBlock[blk] != 1 {
			continue
		}
		f, err := b.flagEquals(ri, blk, idx, "ktph")
		if err != nil {
			return err
		}
		b.addObjectiveTerm(f, ktphBonusWeight)
	}
	return nil
}

// threeGMBonus posts spec.md §4.5's three_gm_bonus and returns the flag
// plus its three constituent signals so earlyBundleBonus can reuse them
// instead of rebuilding the same ED/GRM/GM selection flags.
func (b *Builder) threeGMBonus(ri int, r Resident) (flag, edSel, grmSel, gmCountEquals3 *mk.FDVariable, err error) {
	const threeGMBonusWeight = 1
	edFlags, err := b.baseRunFlags(ri, "ED")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	grmFlags, err := b.baseRunFlags(ri, "GRM")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	gmCodes := b.postings.VariantsForBase("GM")
	if len(edFlags) == 0 || len(grmFlags) == 0 || len(gmCodes) == 0 {
		return nil, nil, nil, nil, nil
	}
	edSel, err = b.orFlags(edFlags, fmt.Sprintf("edsel_%s", r.MCR))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	grmSel, err = b.orFlags(grmFlags, fmt.Sprintf("grmsel_%s", r.MCR))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	gmFlags, err := b.sequenceInSetMany(ri, gmCodes, "gm_ind")
	if err != nil {
		return nil, nil, nil, nil, err
	}
	gmTotal, err := countTrueVar(b.model, gmFlags, []int{valTrue}, fmt.Sprintf("gmtotal_%s", r.MCR))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	gmCountEquals3, err = reifyEquals(b.model, gmTotal, 3+1, fmt.Sprintf("gmeq3_%s", r.MCR))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	flag, err = b.andFlags([]*mk.FDVariable{edSel, grmSel, gmCountEquals3}, fmt.Sprintf("threegm_%s", r.MCR))
	if err != nil {
		return nil, nil, nil, nil, err
	}
	b.addObjectiveTerm(flag, threeGMBonusWeight)
	return flag, edSel, grmSel, gmCountEquals3, nil
}

// earlyBundleBonus posts spec.md §4.5's early_bundle_bonus: 5 points if
// ED, GRM, and GM are all selected and the combined ED/GRM/GM indicator
// (already kept contiguous by edGrmGmBundleContiguity, §4.3.15) never goes
// true on both sides of the Dec/Jan boundary — i.e. it lies entirely
// within one half of the year. "GM selected" here means any GM run at
// all, unlike three_gm_bonus's stricter "exactly three GM blocks".
func (b *Builder) earlyBundleBonus(ri int, r Resident, edSel, grmSel *mk.FDVariable) error {
	const earlyBundleWeight = 5
	if edSel == nil || grmSel == nil {
		return nil
	}
	gmFlags, err := b.baseRunFlags(ri, "GM")
	if err != nil {
		return err
	}
	if len(gmFlags) == 0 {
		return nil
	}
	gmAnySelected, err := b.orFlags(gmFlags, fmt.Sprintf("egg_gmany_%s", r.MCR))
	if err != nil {
		return err
	}
	var codes []string
	codes = append(codes, b.postings.VariantsForBase("ED")...)
	codes = append(codes, b.postings.VariantsForBase("GRM")...)
	codes = append(codes, b.postings.VariantsForBase("GM")...)
	seq, err := b.sequenceInSetMany(ri, codes, "edgrmgm_ind")
	if err != nil {
		return err
	}
	firstHalf := seq[0:DecemberBlock]
	secondHalf := seq[DecemberBlock:NumBlocks]
	firstCount, err := countTrueVar(b.model, firstHalf, []int{valTrue}, fmt.Sprintf("egg_first_%s", r.MCR))
	if err != nil {
		return err
	}
	secondCount, err := countTrueVar(b.model, secondHalf, []int{valTrue}, fmt.Sprintf("egg_second_%s", r.MCR))
	if err != nil {
		return err
	}
	firstEmpty, err := reifyEquals(b.model, firstCount, 1, fmt.Sprintf("egg_first_empty_%s", r.MCR))
	if err != nil {
		return err
	}
	secondEmpty, err := reifyEquals(b.model, secondCount, 1, fmt.Sprintf("egg_second_empty_%s", r.MCR))
	if err != nil {
		return err
	}
	noCross, err := b.orFlags([]*mk.FDVariable{firstEmpty, secondEmpty}, fmt.Sprintf("egg_nocross_%s", r.MCR))
	if err != nil {
		return err
	}
	bundle, err := b.andFlags([]*mk.FDVariable{edSel, grmSel, gmAnySelected, noCross}, fmt.Sprintf("earlybundle_%s", r.MCR))
	if err != nil {
		return err
	}
	b.addObjectiveTerm(bundle, earlyBundleWeight)
	return nil
}

// andFlags returns a boolean reifying "every one of flags is true".
func (b *Builder) andFlags(flags []*mk.FDVariable, name string) (*mk.FDVariable, error) {
	if len(flags) == 1 {
		return flags[0], nil
	}
	total := b.model.NewVariableWithName(mk.DomainRange(len(flags), 2*len(flags)), name+"_total")
	coeffs := onesLike(flags)
	if err := b.model.LinearSum(flags, coeffs, total); err != nil {
		return nil, err
	}
	return reifyEquals(b.model, total, 2*len(flags), name+"_and")
}

// notFlag flips a {1,2}-domain boolean via the pinned-constant LinearSum
// idiom shared with cpmodel.go's equalVars/minMaxSpread: v + not = 3.
func (b *Builder) notFlag(v *mk.FDVariable, name string) (*mk.FDVariable, error) {
	three := b.model.NewVariableWithName(mk.DomainValues(3), name+"_three")
	not := newBool(b.model, name+"_not")
	c, err := mk.NewLinearSum([]*mk.FDVariable{v, not}, []int{1, 1}, three)
	if err != nil {
		return nil, err
	}
	b.model.AddConstraint(c)
	return not, nil
}

// electiveShortfallPenalty posts spec.md §4.4/4.5's elective shortfall
// penalty: for residents entering stage 3, exactly five unique electives
// must be accumulated by year end (historical plus new); falling short is
// penalized by elective_shortfall_penalty.
func (b *Builder) electiveShortfallPenalty(ri int, r Resident) error {
	weight := b.weightages.ElectiveShortfallPenalty
	if weight == 0 {
		return nil
	}
	cp := b.careerByMCR[r.MCR]
	if !enteringStage(cp, 3) {
		return nil
	}
	const requiredUniqueElectives = 5
	historical := 0
	for base, done := range b.doneBase[r.MCR] {
		if done {
			_ = base
			historical++
		}
	}
	needed := requiredUniqueElectives - historical
	if needed <= 0 {
		return nil
	}
	flags, err := b.electiveSelectionFlags(ri, r)
	if err != nil {
		return err
	}
	if len(flags) == 0 {
		return nil
	}
	if needed > len(flags) {
		needed = len(flags)
	}
	newCount, err := countTrueVar(b.model, flags, []int{valTrue}, fmt.Sprintf("newelectives_%s", r.MCR))
	if err != nil {
		return err
	}
	met, err := reifyInSetRange(b.model, newCount, needed+1, len(flags)+1, fmt.Sprintf("electivemet_%s", r.MCR))
	if err != nil {
		return err
	}
	unmet, err := b.notFlag(met, fmt.Sprintf("electiveunmet_%s", r.MCR))
	if err != nil {
		return err
	}
	b.addObjectiveTerm(unmet, -weight)
	return nil
}

// coreShortfallPenalty posts spec.md §4.4/4.5's core shortfall penalty:
// for stage-3 residents, a base whose year-end total falls short of its
// requirement is penalized once by core_shortfall_penalty.
func (b *Builder) coreShortfallPenalty(ri int, r Resident) error {
	weight := b.weightages.CoreShortfallPenalty
	if weight == 0 {
		return nil
	}
	cp := b.careerByMCR[r.MCR]
	if cp.Stage != 3 {
		return nil
	}
	for base, req := range CoreRequirements {
		had := b.coreBlocksHad[r.MCR][base]
		remaining := req - had
		if remaining <= 0 {
			continue // already met historically
		}
		codes := b.postings.VariantsForBase(base)
		if len(codes) == 0 {
			continue
		}
		flags, err := b.sequenceInSetMany(ri, codes, "core_"+base)
		if err != nil {
			return err
		}
		total := b.model.NewVariableWithName(mk.DomainRange(NumBlocks, NumBlocks+remaining), fmt.Sprintf("coretotalobj_%s_%s", r.MCR, base))
		if err := b.model.LinearSum(flags, onesLike(flags), total); err != nil {
			return err
		}
		met, err := reifyEquals(b.model, total, NumBlocks+remaining, fmt.Sprintf("coremet_%s_%s", r.MCR, base))
		if err != nil {
			return err
		}
		unmet, err := b.notFlag(met, fmt.Sprintf("coreunmet_%s_%s", r.MCR, base))
		if err != nil {
			return err
		}
		b.addObjectiveTerm(unmet, -weight)
	}
	return nil
}

// srMissingPenalty posts spec.md §4.4/4.5's sr_y2_not_selected_penalty:
// stage-2 residents with any SR preference but no SR selected this year
// are penalized once.
func (b *Builder) srMissingPenalty(ri int, r Resident) error {
	weight := b.weightages.SRYear2NotSelectedPenalty
	if weight == 0 {
		return nil
	}
	cp := b.careerByMCR[r.MCR]
	if cp.Stage != 2 {
		return nil
	}
	bases := b.srBasesByMCR[r.MCR]
	if len(bases) == 0 {
		return nil
	}
	var flags []*mk.FDVariable
	seen := map[string]bool{}
	for _, base := range bases {
		if seen[base] {
			continue
		}
		seen[base] = true
		fs, err := b.baseRunFlags(ri, base)
		if err != nil {
			return err
		}
		flags = append(flags, fs...)
	}
	if len(flags) == 0 {
		return nil
	}
	hasSR, err := b.orFlags(flags, fmt.Sprintf("hassr_%s", r.MCR))
	if err != nil {
		return err
	}
	noSR, err := b.notFlag(hasSR, fmt.Sprintf("nosr_%s", r.MCR))
	if err != nil {
		return err
	}
	b.addObjectiveTerm(noSR, -weight)
	return nil
}

// offPenalty posts spec.md §4.5's off_penalty: -999 per non-leave off
// slot, discouraging idle months whenever a feasible assignment exists.
func (b *Builder) offPenalty(ri int, r Resident) error {
	const offPenaltyWeight = 999
	for blk := 1; blk <= NumBlocks; blk++ {
		if _, onLeave := b.leaveBlocks[r.MCR][blk]; onLeave {
			continue
		}
		if _, pinned := b.pins[r.MCR][blk]; pinned {
			continue
		}
		off, err := b.flagEquals(ri, blk, b.offIndex, "off")
		if err != nil {
			return err
		}
		b.addObjectiveTerm(off, -offPenaltyWeight)
	}
	return nil
}

// FinalizeObjective posts one LinearSum over every accumulated objective
// term and returns its total variable for SolveOptimalWithOptions to
// maximize. FD domains in pkg/minikanren are positive-integer bitsets, so
// a sum that can go negative (the off-penalty alone can run into the
// thousands) needs a constant bias term added to the same LinearSum to
// keep the total's domain entirely positive, exactly the pinned-constant
// trick cpmodel.go's equalVars/minMaxSpread already use. The resulting
// total's raw numeric value is never decoded: callers only need it to
// exist with a correctly ordered domain so the solver can compare
// candidate solutions, since the real-facing optimization score is
// recomputed independently from the solved history in post-processing
// (spec.md §4.7).
func (b *Builder) FinalizeObjective() (*mk.FDVariable, error) {
	if len(b.objTerms) == 0 {
		// Nothing to optimize: hand back a constant so callers still have
		// a variable to pass to SolveOptimalWithOptions.
		return b.model.NewVariableWithName(mk.DomainValues(1), "objective"), nil
	}
	lo, hi := 0, 0
	vars := make([]*mk.FDVariable, 0, len(b.objTerms)+1)
	coeffs := make([]int, 0, len(b.objTerms)+1)
	for _, t := range b.objTerms {
		// Every term variable built above carries the {1,2} convention
		// (false=1, true=2); its raw contribution to the LinearSum is
		// coeff*1 when false and coeff*2 when true, so the term's true
		// swing relative to "all false" is coeff (not 2*coeff). Track the
		// all-false baseline separately and fold it into the bias below.
		vars = append(vars, t.v)
		coeffs = append(coeffs, t.coeff)
		if t.coeff >= 0 {
			lo += t.coeff
			hi += 2 * t.coeff
		} else {
			lo += 2 * t.coeff
			hi += t.coeff
		}
	}
	bias := 1 - lo
	if bias < 1 {
		bias = 1
	}
	biasVar := b.model.NewVariableWithName(mk.DomainValues(bias), "objective_bias")
	vars = append(vars, biasVar)
	coeffs = append(coeffs, 1)

	total := b.model.NewVariableWithName(mk.DomainRange(bias+lo, bias+hi), "objective")
	if err := b.model.LinearSum(vars, coeffs, total); err != nil {
		return nil, fmt.Errorf("objective: %w", err)
	}
	return total, nil
}
