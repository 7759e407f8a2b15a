package schedule

import (
	"fmt"

	mk "github.com/zeeeing/posting-scheduler/pkg/minikanren"
)

// Builder assembles the CP model for one cohort solve. Rather than one
// boolean FD variable per (resident, posting, month) triple, each
// (resident, month) pair gets a single "choice" variable whose domain
// is the posting index 1..len(postings), plus one extra value for
// "off" — pkg/minikanren's FD domains are positive integers, so a
// choice variable naturally satisfies spec.md §4.3.1 ("exactly one
// slot per month") without an extra constraint: the variable can only
// ever hold one value. x[r][p][b] and off[r][b] (spec.md §4.2) are
// then boolean *views* onto that single variable, built lazily via
// InSetReified only where a hard/soft constraint actually needs one.
type Builder struct {
	model *mk.Model
	log   logger

	residents []Resident
	postings  *PostingIndex
	codes     []string // posting codes in table order; index i -> code i+1
	offIndex  int       // len(codes)+1

	residentIdx map[string]int // mcr -> index into residents

	progress      map[string]map[string]PostingProgressEntry
	careerByMCR   map[string]CareerProgress
	doneCCR       map[string]bool
	doneBase      map[string]map[string]bool // mcr -> base -> completed historically
	coreBlocksHad map[string]map[string]int  // mcr -> base -> historical blocks

	leaveBlocks map[string]map[int]Leave    // mcr -> block -> leave
	pins        map[string]map[int]string   // mcr -> block -> posting code
	leaveQuota  map[string]map[int]int      // posting code -> block -> reserved count

	srBasesByMCR map[string][]string // mcr -> base posting names from SR preferences
	srRankByMCR  map[string]map[string]int

	weightages Weightages
	prefs      []Preference
	srPrefs    []SRPreference

	// capVar remembers the Among K-variable built for (posting code,
	// block) capacity so the balance constraint (§4.3.19) can reuse it
	// instead of recomputing the same count.
	capVar map[string]map[int]capBound

	// post[mcrIndex][block] is the choice variable, block 1-indexed.
	post [][NumBlocks + 1]*mk.FDVariable

	// lazily built boolean views, keyed by a composite string.
	inSetCache map[string]*mk.FDVariable
	eqCache    map[string]*mk.FDVariable

	// countCache remembers the K-encoded run-count variable built for a
	// (resident, posting code) pair (spec.md §4.2's count[r][p]) so
	// repeated callers within one solve reuse the same variable instead
	// of re-deriving it.
	countCache map[string]*mk.FDVariable

	// accumulated objective terms: coefficient (may be negative) times
	// a {1,2}-domain boolean or small bounded variable, always relative
	// to the variable's *encoded* value. objectiveBase carries the
	// constant needed to offset the {1,2}/K encodings back to the
	// intended 0-based bonus/penalty arithmetic.
	objTerms []objTerm
}

type objTerm struct {
	v     *mk.FDVariable
	coeff int
}

// capBound records the K-encoded Among variable used for a (posting,
// block) pair's filled headcount, along with the K-domain bounds it
// was created with (K decodes to actual = K-1).
type capBound struct {
	k       *mk.FDVariable
	lo, hi  int
}

type logger interface {
	Printf(format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Printf(string, ...interface{}) {}

// NewBuilder prepares static, solve-independent lookups (progress,
// stage derivation, pin/leave maps) ahead of variable construction.
func NewBuilder(in Input, lg logger) (*Builder, error) {
	if lg == nil {
		lg = nopLogger{}
	}
	idx := NewPostingIndex(in.Postings)
	b := &Builder{
		model:       mk.NewModel(),
		log:         lg,
		residents:   in.Residents,
		postings:    idx,
		codes:       idx.Codes(),
		residentIdx: make(map[string]int, len(in.Residents)),
		inSetCache:  make(map[string]*mk.FDVariable),
		eqCache:     make(map[string]*mk.FDVariable),
		countCache:  make(map[string]*mk.FDVariable),
		weightages:  in.Weightages,
		prefs:       in.ResidentPreferences,
		srPrefs:     in.ResidentSRPreferences,
		capVar:      make(map[string]map[int]capBound),
	}
	b.offIndex = len(b.codes) + 1
	for i, r := range in.Residents {
		b.residentIdx[r.MCR] = i
	}

	history := stripCurrentYear(in.ResidentHistory)
	b.progress = PostingProgress(history, idx)
	b.careerByMCR = make(map[string]CareerProgress, len(in.Residents))
	for _, r := range in.Residents {
		b.careerByMCR[r.MCR] = DeriveCareerProgress(r.CareerBlocksCompleted)
	}
	b.doneCCR = make(map[string]bool)
	for mcr, codes := range CCRPostingsCompleted(b.progress) {
		if len(codes) > 0 {
			b.doneCCR[mcr] = true
		}
	}
	b.coreBlocksHad = CoreBlocksCompleted(b.progress)
	b.doneBase = make(map[string]map[string]bool)
	for mcr, codes := range b.progress {
		b.doneBase[mcr] = make(map[string]bool)
		for code, entry := range codes {
			if !entry.IsCompleted {
				continue
			}
			p, ok := idx.Lookup(code)
			if !ok || p.Type != PostingElective {
				continue
			}
			b.doneBase[mcr][Base(code)] = true
		}
	}

	if err := b.buildPinsAndLeaves(in); err != nil {
		return nil, err
	}

	b.srBasesByMCR = make(map[string][]string)
	b.srRankByMCR = make(map[string]map[string]int)
	for _, sp := range in.ResidentSRPreferences {
		if len(b.postings.VariantsForBase(sp.BasePosting)) == 0 {
			continue
		}
		b.srBasesByMCR[sp.MCR] = append(b.srBasesByMCR[sp.MCR], sp.BasePosting)
		if b.srRankByMCR[sp.MCR] == nil {
			b.srRankByMCR[sp.MCR] = make(map[string]int)
		}
		b.srRankByMCR[sp.MCR][sp.BasePosting] = sp.PreferenceRank
	}
	return b, nil
}

// stripCurrentYear drops history rows already tagged is_current_year —
// those were pins from a prior solve or manual edit and are re-derived
// by buildPinsAndLeaves instead (spec.md §6 / SPEC_FULL.md §7 EXPANSION).
func stripCurrentYear(history []HistoryRow) []HistoryRow {
	out := make([]HistoryRow, 0, len(history))
	for _, row := range history {
		if row.IsCurrentYear {
			continue
		}
		out = append(out, row)
	}
	return out
}

func (b *Builder) buildPinsAndLeaves(in Input) error {
	b.leaveBlocks = make(map[string]map[int]Leave)
	for _, lv := range in.ResidentLeaves {
		if lv.MonthBlock < 1 || lv.MonthBlock > NumBlocks {
			b.log.Printf("dropping leave for %s: month_block %d out of range", lv.MCR, lv.MonthBlock)
			continue
		}
		if b.leaveBlocks[lv.MCR] == nil {
			b.leaveBlocks[lv.MCR] = make(map[int]Leave)
		}
		b.leaveBlocks[lv.MCR][lv.MonthBlock] = lv
	}

	b.leaveQuota = make(map[string]map[int]int)
	for _, byBlock := range b.leaveBlocks {
		for _, lv := range byBlock {
			if lv.PostingCode == "" {
				continue
			}
			if b.leaveQuota[lv.PostingCode] == nil {
				b.leaveQuota[lv.PostingCode] = make(map[int]int)
			}
			b.leaveQuota[lv.PostingCode][lv.MonthBlock]++
		}
	}

	b.pins = make(map[string]map[int]string)
	addPin := func(mcr string, month int, code string) {
		if month < 1 || month > NumBlocks {
			b.log.Printf("dropping pin for %s: month_block %d out of range", mcr, month)
			return
		}
		if _, ok := b.postings.Lookup(code); !ok {
			b.log.Printf("dropping pin for %s: unknown posting %q", mcr, code)
			return
		}
		if b.pins[mcr] == nil {
			b.pins[mcr] = make(map[int]string)
		}
		b.pins[mcr][month] = code
	}
	for mcr, entries := range in.PinnedAssignments {
		for _, e := range entries {
			addPin(mcr, e.MonthBlock, e.PostingCode)
		}
	}
	// Current-year, non-leave history rows are pins too (spec.md §6).
	for _, row := range in.ResidentHistory {
		if !row.IsCurrentYear || row.IsLeave || row.PostingCode == "" {
			continue
		}
		addPin(row.MCR, row.MonthBlock, row.PostingCode)
	}
	return nil
}

// codeIndex returns the 1-based choice-variable value for a posting
// code (panics if unknown — callers must only pass codes already
// validated against the posting table).
func (b *Builder) codeIndex(code string) int {
	for i, c := range b.codes {
		if c == code {
			return i + 1
		}
	}
	panic(fmt.Sprintf("schedule: unknown posting code %q", code))
}

func (b *Builder) indicesForBase(base string) []int {
	var out []int
	for _, code := range b.postings.VariantsForBase(base) {
		out = append(out, b.codeIndex(code))
	}
	return out
}

func (b *Builder) indicesForCodes(codes []string) []int {
	out := make([]int, len(codes))
	for i, c := range codes {
		out[i] = b.codeIndex(c)
	}
	return out
}

// BuildVariables declares post[r][b] for every resident and block,
// applying pins, leaves, CCR stage-1 bans, and already-exhausted
// core/elective bans directly as domain restrictions (spec.md
// constraints 3, 5(part), 6(part), 7(part), 20).
func (b *Builder) BuildVariables() error {
	b.post = make([][NumBlocks + 1]*mk.FDVariable, len(b.residents))

	for ri, r := range b.residents {
		banned := b.staticBannedIndices(r)
		stage1Blocks := map[int]bool{}
		cp := b.careerByMCR[r.MCR]
		for blk := 1; blk <= NumBlocks; blk++ {
			if cp.StagesByBlock[blk] == 1 {
				stage1Blocks[blk] = true
			}
		}
		ccrIndices := b.indicesForCodes(ccrCodes(b.codes))

		var srIndices []int
		for _, base := range b.srBasesByMCR[r.MCR] {
			srIndices = append(srIndices, b.indicesForBase(base)...)
		}

		for blk := 1; blk <= NumBlocks; blk++ {
			name := fmt.Sprintf("post_%s_%d", r.MCR, blk)

			if lv, ok := b.leaveBlocks[r.MCR][blk]; ok {
				_ = lv
				b.post[ri][blk] = b.model.NewVariableWithName(mk.DomainValues(b.offIndex), name)
				continue
			}
			if code, ok := b.pins[r.MCR][blk]; ok {
				b.post[ri][blk] = b.model.NewVariableWithName(mk.DomainValues(b.codeIndex(code)), name)
				continue
			}

			// Absolute career block reached at this month: cp.CompletedBlocks
			// were already completed before the solve year starts, so month
			// blk is career block cp.CompletedBlocks+blk (spec.md hard
			// constraint 18, SR timing).
			careerBlock := cp.CompletedBlocks + blk
			srBlocked := stage1Blocks[blk] || careerBlock < 19 || careerBlock > 30

			allowed := make([]int, 0, len(b.codes)+1)
			for i := 1; i <= len(b.codes); i++ {
				if banned[i] {
					continue
				}
				if stage1Blocks[blk] && contains(ccrIndices, i) {
					continue
				}
				if srBlocked && contains(srIndices, i) {
					continue
				}
				allowed = append(allowed, i)
			}
			allowed = append(allowed, b.offIndex)
			b.post[ri][blk] = b.model.NewVariableWithName(mk.DomainValues(allowed...), name)
		}
	}
	return nil
}

func contains(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

func ccrCodes(all []string) []string {
	var out []string
	for _, c := range all {
		if IsCCRCode(c) {
			out = append(out, c)
		}
	}
	return out
}

// staticBannedIndices computes, for one resident, the posting indices
// excluded from every block regardless of stage: CCR postings already
// completed (constraint 5), core bases already at or past quota
// (constraint 6), and elective bases already completed (constraint 7).
func (b *Builder) staticBannedIndices(r Resident) map[int]bool {
	banned := map[int]bool{}
	if b.doneCCR[r.MCR] {
		for _, code := range ccrCodes(b.codes) {
			banned[b.codeIndex(code)] = true
		}
	}
	for base, had := range b.coreBlocksHad[r.MCR] {
		req, ok := CoreRequirements[base]
		if !ok || had < req {
			continue
		}
		for _, code := range b.postings.VariantsForBase(base) {
			banned[b.codeIndex(code)] = true
		}
	}
	for base, done := range b.doneBase[r.MCR] {
		if !done {
			continue
		}
		for _, code := range b.postings.VariantsForBase(base) {
			banned[b.codeIndex(code)] = true
		}
	}
	return banned
}

// postVar returns the choice variable for (resident index, block).
func (b *Builder) postVar(ri, blk int) *mk.FDVariable { return b.post[ri][blk] }

// flagInSet returns (building if needed) a cached boolean view
// post[ri][blk] ∈ values.
func (b *Builder) flagInSet(ri, blk int, values []int, tag string) (*mk.FDVariable, error) {
	key := fmt.Sprintf("%d_%d_%s", ri, blk, tag)
	if v, ok := b.inSetCache[key]; ok {
		return v, nil
	}
	v, err := reifyInSet(b.model, b.postVar(ri, blk), values, "flag_"+key)
	if err != nil {
		return nil, err
	}
	b.inSetCache[key] = v
	return v, nil
}

// flagEquals returns (building if needed) a cached boolean view
// post[ri][blk] == value.
func (b *Builder) flagEquals(ri, blk, value int, tag string) (*mk.FDVariable, error) {
	return b.flagInSet(ri, blk, []int{value}, tag)
}

// sequenceInSet returns, for a resident, the 12-block sequence of
// boolean views indicating membership in values — the input Regular
// automata operate over.
func (b *Builder) sequenceInSet(ri int, values []int, tag string) ([]*mk.FDVariable, error) {
	seq := make([]*mk.FDVariable, NumBlocks)
	for blk := 1; blk <= NumBlocks; blk++ {
		v, err := b.flagInSet(ri, blk, values, tag)
		if err != nil {
			return nil, err
		}
		seq[blk-1] = v
	}
	return seq, nil
}

// addObjectiveTerm records coeff * (v's value), where v's *decoded*
// contribution already matches coeff's intended sign and scale (see
// objective.go for how bonuses/penalties pick coeff and which variable
// encoding they pass in).
func (b *Builder) addObjectiveTerm(v *mk.FDVariable, coeff int) {
	if coeff == 0 || v == nil {
		return
	}
	b.objTerms = append(b.objTerms, objTerm{v: v, coeff: coeff})
}
