package schedule

import "strings"

// PostingIndex resolves posting codes to Posting records and to their
// base (the substring before the first " (").
type PostingIndex struct {
	byCode map[string]Posting
	order  []string
}

// NewPostingIndex builds a PostingIndex over the given posting table.
func NewPostingIndex(postings []Posting) *PostingIndex {
	idx := &PostingIndex{byCode: make(map[string]Posting, len(postings))}
	for _, p := range postings {
		idx.byCode[p.Code] = p
		idx.order = append(idx.order, p.Code)
	}
	return idx
}

// Codes returns posting codes in table order.
func (idx *PostingIndex) Codes() []string { return idx.order }

// Lookup returns the posting for a code.
func (idx *PostingIndex) Lookup(code string) (Posting, bool) {
	p, ok := idx.byCode[code]
	return p, ok
}

// Base returns the substring of code before the first " (".
func Base(code string) string {
	if i := strings.Index(code, " ("); i >= 0 {
		return code[:i]
	}
	return code
}

// Institution returns the substring between the parentheses of a
// posting code, e.g. "GM (KTPH)" -> "KTPH".
func Institution(code string) string {
	open := strings.Index(code, "(")
	shut := strings.LastIndex(code, ")")
	if open < 0 || shut < 0 || shut <= open {
		return ""
	}
	return strings.TrimSpace(code[open+1 : shut])
}

// VariantsForBase returns every posting code sharing a base, matched
// case-insensitively after trimming (spec.md §4.1).
func (idx *PostingIndex) VariantsForBase(base string) []string {
	base = strings.TrimSpace(base)
	var out []string
	for _, code := range idx.order {
		if strings.EqualFold(strings.TrimSpace(Base(code)), base) {
			out = append(out, code)
		}
	}
	return out
}

// IsCore reports whether a base name carries a curriculum quota.
func IsCore(base string) bool {
	_, ok := CoreRequirements[base]
	return ok
}

// IsCCRCode reports whether a posting code is one of the four CCR
// tertiary-institution GM variants.
func IsCCRCode(code string) bool {
	if Base(code) != "GM" {
		return false
	}
	for _, inst := range CCRInstitutions {
		if code == "GM ("+inst+")" {
			return true
		}
	}
	return false
}

// PostingProgressEntry is the per-code progress record.
type PostingProgressEntry struct {
	BlocksCompleted int
	BlocksRequired  int
	IsCompleted     bool
}

// BlocksCompleted sums non-leave history rows per (mcr, posting code),
// ignoring rows already tagged current-year (those are pins, handled
// separately upstream).
func BlocksCompleted(history []HistoryRow) map[string]map[string]int {
	out := make(map[string]map[string]int)
	for _, row := range history {
		if row.IsLeave || row.IsCurrentYear {
			continue
		}
		if out[row.MCR] == nil {
			out[row.MCR] = make(map[string]int)
		}
		out[row.MCR][row.PostingCode]++
	}
	return out
}

// PostingProgress derives full per-code progress for every resident
// (spec.md §4.1 posting_progress).
func PostingProgress(history []HistoryRow, idx *PostingIndex) map[string]map[string]PostingProgressEntry {
	completed := BlocksCompleted(history)
	out := make(map[string]map[string]PostingProgressEntry)
	for mcr, counts := range completed {
		out[mcr] = make(map[string]PostingProgressEntry)
		for code, n := range counts {
			p, ok := idx.Lookup(code)
			required := 1
			if ok {
				required = p.RequiredBlockDuration
			}
			out[mcr][code] = PostingProgressEntry{
				BlocksCompleted: n,
				BlocksRequired:  required,
				IsCompleted:     n >= required,
			}
		}
	}
	return out
}

// CompletedPostings returns, per resident, the set of posting codes
// whose blocks-completed count equals the required run length.
func CompletedPostings(progress map[string]map[string]PostingProgressEntry) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for mcr, codes := range progress {
		out[mcr] = make(map[string]bool)
		for code, entry := range codes {
			if entry.IsCompleted {
				out[mcr][code] = true
			}
		}
	}
	return out
}

// CoreBlocksCompleted sums blocks completed across every variant of each
// core base, per resident.
func CoreBlocksCompleted(progress map[string]map[string]PostingProgressEntry) map[string]map[string]int {
	out := make(map[string]map[string]int)
	for mcr, codes := range progress {
		out[mcr] = make(map[string]int)
		for code, entry := range codes {
			base := Base(code)
			if !IsCore(base) {
				continue
			}
			out[mcr][base] += entry.BlocksCompleted
		}
	}
	return out
}

// UniqueElectivesCompleted returns, per resident, the set of elective
// posting codes already fully completed.
func UniqueElectivesCompleted(progress map[string]map[string]PostingProgressEntry, idx *PostingIndex) map[string]map[string]bool {
	out := make(map[string]map[string]bool)
	for mcr, codes := range progress {
		out[mcr] = make(map[string]bool)
		for code, entry := range codes {
			p, ok := idx.Lookup(code)
			if !ok || p.Type != PostingElective || !entry.IsCompleted {
				continue
			}
			out[mcr][code] = true
		}
	}
	return out
}

// CCRPostingsCompleted returns, per resident, the CCR codes whose
// blocks-completed count equals the required duration exactly.
func CCRPostingsCompleted(progress map[string]map[string]PostingProgressEntry) map[string][]string {
	out := make(map[string][]string)
	for mcr, codes := range progress {
		for code, entry := range codes {
			if IsCCRCode(code) && entry.BlocksCompleted == entry.BlocksRequired {
				out[mcr] = append(out[mcr], code)
			}
		}
	}
	return out
}

// CareerStage returns 1, 2, or 3 for a given total completed-blocks count.
func CareerStage(completedBlocks int) int {
	switch {
	case completedBlocks < 12:
		return 1
	case completedBlocks < 24:
		return 2
	default:
		return 3
	}
}

// CareerProgress is the per-resident derived progress consulted by the
// constraint builders.
type CareerProgress struct {
	CompletedBlocks int
	Stage           int
	StagesByBlock   [NumBlocks + 1]int // 1-indexed, StagesByBlock[0] unused
}

// DeriveCareerProgress computes the stage-straddling per-month stage
// array described in spec.md §3.
func DeriveCareerProgress(completedBlocks int) CareerProgress {
	cp := CareerProgress{CompletedBlocks: completedBlocks, Stage: CareerStage(completedBlocks)}
	for b := 1; b <= NumBlocks; b++ {
		cp.StagesByBlock[b] = CareerStage(completedBlocks + b - 1)
	}
	return cp
}
