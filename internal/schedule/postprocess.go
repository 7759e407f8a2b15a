package schedule

import (
	"math"
	"sort"
)

// postProcess implements spec.md §4.7: folds the solved assignments into
// the resident history, then derives per-resident outputs and cohort-wide
// statistics from the merged picture.
func postProcess(in Input, b *Builder, assignments [][NumBlocks + 1]string) (*Output, error) {
	historical := stripCurrentYear(in.ResidentHistory)
	for i := range historical {
		historical[i].IsCurrentYear = false
	}

	yearByMCR := map[string]int{}
	for _, row := range historical {
		if row.Year > yearByMCR[row.MCR] {
			yearByMCR[row.MCR] = row.Year
		}
	}

	var newRows []HistoryRow
	offByMCR := map[string][]OffExplanation{}
	for ri, r := range b.residents {
		counter := r.CareerBlocksCompleted
		year := yearByMCR[r.MCR] + 1
		for blk := 1; blk <= NumBlocks; blk++ {
			if lv, onLeave := b.leaveBlocks[r.MCR][blk]; onLeave {
				newRows = append(newRows, HistoryRow{
					MCR: r.MCR, Year: year, MonthBlock: blk, CareerBlock: counter,
					PostingCode: lv.PostingCode, IsCurrentYear: true, IsLeave: true, LeaveType: lv.LeaveType,
				})
				continue
			}
			code := assignments[ri][blk]
			if code == "" {
				newRows = append(newRows, HistoryRow{
					MCR: r.MCR, Year: year, MonthBlock: blk, CareerBlock: counter,
					IsCurrentYear: true,
				})
				continue
			}
			counter++
			newRows = append(newRows, HistoryRow{
				MCR: r.MCR, Year: year, MonthBlock: blk, CareerBlock: counter,
				PostingCode: code, IsCurrentYear: true,
			})
		}
		offByMCR[r.MCR] = buildOffExplanations(b, ri, r.MCR, assignments[ri])
	}

	merged := make([]HistoryRow, 0, len(historical)+len(newRows))
	merged = append(merged, historical...)
	merged = append(merged, newRows...)

	progress := effectiveProgress(merged, b.postings)
	coreCompleted := CoreBlocksCompleted(progress)
	uniqueElectives := UniqueElectivesCompleted(progress, b.postings)
	ccrCompleted := CCRPostingsCompleted(progress)

	residentOutputs := make([]ResidentOutput, 0, len(b.residents))
	scores := map[string]float64{}
	for _, r := range b.residents {
		electives := make([]string, 0, len(uniqueElectives[r.MCR]))
		for code := range uniqueElectives[r.MCR] {
			electives = append(electives, code)
		}
		sort.Strings(electives)

		ccr := CCRStatus{}
		if codes := ccrCompleted[r.MCR]; len(codes) > 0 {
			sort.Strings(codes)
			ccr = CCRStatus{Completed: true, PostingCode: codes[0]}
		}

		scores[r.MCR] = residentScore(b, r, assignments)
		residentOutputs = append(residentOutputs, ResidentOutput{
			MCR:                      r.MCR,
			CoreBlocksCompleted:      coreCompleted[r.MCR],
			UniqueElectivesCompleted: electives,
			CCRStatus:                ccr,
			Violations:               []string{},
		})
	}

	maxScore := 0.0
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	normalized := map[string]float64{}
	for mcr, s := range scores {
		if maxScore <= 0 {
			normalized[mcr] = 0
			continue
		}
		normalized[mcr] = round2(s / maxScore * 100)
	}

	util := postingUtilization(in, assignments, b)
	histogram := preferenceHistogram(in, assignments, b)

	var diagOff map[string][]OffExplanation
	for mcr, offs := range offByMCR {
		if len(offs) == 0 {
			continue
		}
		if diagOff == nil {
			diagOff = map[string][]OffExplanation{}
		}
		diagOff[mcr] = offs
	}

	out := &Output{
		Residents:             in.Residents,
		ResidentHistory:       merged,
		ResidentPreferences:   in.ResidentPreferences,
		ResidentSRPreferences: in.ResidentSRPreferences,
		Postings:              in.Postings,
		ResidentLeaves:        in.ResidentLeaves,
		Weightages:            in.Weightages,
		ResidentOutputs:       residentOutputs,
		Statistics: Statistics{
			TotalResidents: len(b.residents),
			Cohort: CohortStatistics{
				OptimisationScores:             scores,
				OptimisationScoresNormalised:   normalized,
				PostingUtil:                    util,
				ElectivePreferenceSatisfaction: histogram,
			},
		},
		Diagnostics: Diagnostics{OffExplanationsByResident: diagOff},
	}
	return out, nil
}

// effectiveProgress mirrors PostingProgress but counts this year's freshly
// merged rows too (only leave rows are excluded), since spec.md §4.7 asks
// for per-resident outputs that already reflect the solved year.
func effectiveProgress(history []HistoryRow, idx *PostingIndex) map[string]map[string]PostingProgressEntry {
	counts := make(map[string]map[string]int)
	for _, row := range history {
		if row.IsLeave || row.PostingCode == "" {
			continue
		}
		if counts[row.MCR] == nil {
			counts[row.MCR] = make(map[string]int)
		}
		counts[row.MCR][row.PostingCode]++
	}
	out := make(map[string]map[string]PostingProgressEntry)
	for mcr, codes := range counts {
		out[mcr] = make(map[string]PostingProgressEntry)
		for code, n := range codes {
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

// residentScore implements spec.md §4.7's per-resident optimization score:
// preference_satisfaction_points + (count_assigned * year * seniority_weight).
func residentScore(b *Builder, r Resident, assignments [][NumBlocks + 1]string) float64 {
	ri := b.residentIdx[r.MCR]
	assignedCodes := map[string]bool{}
	countAssigned := 0
	for blk := 1; blk <= NumBlocks; blk++ {
		code := assignments[ri][blk]
		if code == "" {
			continue
		}
		assignedCodes[code] = true
		countAssigned++
	}

	points := 0.0
	for _, pref := range b.prefs {
		if pref.MCR != r.MCR || !assignedCodes[pref.PostingCode] {
			continue
		}
		points += float64((6 - pref.PreferenceRank) * b.weightages.Preference)
	}

	return points + float64(countAssigned*r.ResidentYear*b.weightages.Seniority)
}

// postingUtilization implements spec.md §4.7's per-(posting, month)
// utilization series, counting both newly assigned residents and
// reserved-but-on-leave slots as filled (spec.md §4.3.2's leave-quota
// reduction treats both as occupying capacity).
func postingUtilization(in Input, assignments [][NumBlocks + 1]string, b *Builder) []PostingUtilization {
	out := make([]PostingUtilization, 0, len(in.Postings))
	for _, p := range in.Postings {
		series := make([]BlockUtilization, 0, NumBlocks)
		for blk := 1; blk <= NumBlocks; blk++ {
			filled := 0
			for ri := range b.residents {
				if assignments[ri][blk] == p.Code {
					filled++
				}
			}
			filled += b.leaveQuota[p.Code][blk]
			series = append(series, BlockUtilization{
				Block:          blk,
				Filled:         filled,
				Capacity:       p.MaxResidents,
				IsOverCapacity: filled > p.MaxResidents,
			})
		}
		out = append(out, PostingUtilization{PostingCode: p.Code, UtilPerBlock: series})
	}
	return out
}

// preferenceHistogram implements spec.md §4.7's elective preference
// satisfaction histogram: each resident buckets into the highest-ranked
// (lowest rank number) preference they were actually assigned this year,
// or none_met / no_preference.
func preferenceHistogram(in Input, assignments [][NumBlocks + 1]string, b *Builder) PreferenceHistogram {
	hist := PreferenceHistogram{ByRank: map[int]int{}}
	prefsByMCR := map[string][]Preference{}
	for _, pref := range in.ResidentPreferences {
		prefsByMCR[pref.MCR] = append(prefsByMCR[pref.MCR], pref)
	}
	for _, r := range b.residents {
		prefs := prefsByMCR[r.MCR]
		if len(prefs) == 0 {
			hist.NoPreference++
			continue
		}
		ri := b.residentIdx[r.MCR]
		assignedCodes := map[string]bool{}
		for blk := 1; blk <= NumBlocks; blk++ {
			if code := assignments[ri][blk]; code != "" {
				assignedCodes[code] = true
			}
		}
		best := 0
		for _, pref := range prefs {
			if !assignedCodes[pref.PostingCode] {
				continue
			}
			if best == 0 || pref.PreferenceRank < best {
				best = pref.PreferenceRank
			}
		}
		if best == 0 {
			hist.NoneMet++
			continue
		}
		hist.ByRank[best]++
	}
	return hist
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
