// Package schedule builds and solves the residency posting-allocation
// model and turns the solver's output into resident-centric progress
// records and cohort statistics.
package schedule

// Resident is one member of the cohort being scheduled.
type Resident struct {
	MCR                   string `json:"mcr"`
	Name                  string `json:"name"`
	ResidentYear          int    `json:"resident_year"`
	CareerBlocksCompleted int    `json:"career_blocks_completed"`
}

// PostingType distinguishes core curriculum postings from electives.
type PostingType string

const (
	PostingCore     PostingType = "core"
	PostingElective PostingType = "elective"
)

// Posting is one rotation slot, identified by a code of the form
// "Base (Institution)".
type Posting struct {
	Code                  string      `json:"posting_code"`
	Name                  string      `json:"posting_name"`
	Type                  PostingType `json:"posting_type"`
	MaxResidents          int         `json:"max_residents"`
	RequiredBlockDuration int         `json:"required_block_duration"`
}

// HistoryRow is one (resident, month) record, either from a prior year,
// a prior solve, or a manual edit.
type HistoryRow struct {
	MCR           string `json:"mcr"`
	Year          int    `json:"year"`
	MonthBlock    int    `json:"month_block"`
	CareerBlock   int    `json:"career_block"`
	PostingCode   string `json:"posting_code"`
	IsCurrentYear bool   `json:"is_current_year"`
	IsLeave       bool   `json:"is_leave"`
	LeaveType     string `json:"leave_type,omitempty"`
}

// Preference is a ranked elective posting request.
type Preference struct {
	MCR            string `json:"mcr"`
	PreferenceRank int    `json:"preference_rank"`
	PostingCode    string `json:"posting_code"`
}

// SRPreference is a ranked senior-rotation base request.
type SRPreference struct {
	MCR            string `json:"mcr"`
	PreferenceRank int    `json:"preference_rank"`
	BasePosting    string `json:"base_posting"`
}

// Leave is a declared absence for one month, optionally tied to the
// posting whose roster the resident is on leave from.
type Leave struct {
	MCR         string `json:"mcr"`
	MonthBlock  int    `json:"month_block"`
	LeaveType   string `json:"leave_type"`
	PostingCode string `json:"posting_code,omitempty"`
}

// PinEntry forces a resident into a posting for one month.
type PinEntry struct {
	MonthBlock  int    `json:"month_block"`
	PostingCode string `json:"posting_code"`
}

// Weightages holds the named objective weights. Unspecified weights
// default to zero.
type Weightages struct {
	Preference                int `json:"preference"`
	Seniority                 int `json:"seniority"`
	ElectiveShortfallPenalty  int `json:"elective_shortfall_penalty"`
	CoreShortfallPenalty      int `json:"core_shortfall_penalty"`
	SRPreference              int `json:"sr_preference"`
	SRYear2NotSelectedPenalty int `json:"sr_y2_not_selected_penalty"`
}

// Input is the full solver request for one cohort solve.
type Input struct {
	Residents             []Resident            `json:"residents"`
	ResidentHistory       []HistoryRow          `json:"resident_history"`
	ResidentPreferences   []Preference          `json:"resident_preferences"`
	ResidentSRPreferences []SRPreference        `json:"resident_sr_preferences"`
	Postings              []Posting             `json:"postings"`
	ResidentLeaves        []Leave               `json:"resident_leaves,omitempty"`
	PinnedAssignments     map[string][]PinEntry `json:"pinned_assignments,omitempty"`
	Weightages            Weightages            `json:"weightages"`
	MaxTimeInMinutes      int                   `json:"max_time_in_minutes,omitempty"`
}

// CCRStatus reports whether a resident has completed a complex-case
// requirement posting.
type CCRStatus struct {
	Completed   bool   `json:"completed"`
	PostingCode string `json:"posting_code"`
}

// ResidentOutput is the post-processed summary for one resident.
type ResidentOutput struct {
	MCR                      string         `json:"mcr"`
	CoreBlocksCompleted      map[string]int `json:"core_blocks_completed"`
	UniqueElectivesCompleted []string       `json:"unique_electives_completed"`
	CCRStatus                CCRStatus      `json:"ccr_status"`
	Violations               []string       `json:"violations"`
}

// BlockUtilization reports fill level for one posting at one month.
type BlockUtilization struct {
	Block          int  `json:"block"`
	Filled         int  `json:"filled"`
	Capacity       int  `json:"capacity"`
	IsOverCapacity bool `json:"is_over_capacity"`
}

// PostingUtilization is the per-block utilization series for one posting.
type PostingUtilization struct {
	PostingCode  string             `json:"posting_code"`
	UtilPerBlock []BlockUtilization `json:"util_per_block"`
}

// PreferenceHistogram buckets residents by how well their elective
// preferences were satisfied: index 0 = rank-1 satisfied, ... up to the
// lowest rank, plus NoneMet and NoPreference.
type PreferenceHistogram struct {
	ByRank       map[int]int `json:"by_rank"`
	NoneMet      int         `json:"none_met"`
	NoPreference int         `json:"no_preference"`
}

// CohortStatistics is the cohort-wide summary.
type CohortStatistics struct {
	OptimisationScores             map[string]float64   `json:"optimisation_scores"`
	OptimisationScoresNormalised   map[string]float64   `json:"optimisation_scores_normalised"`
	PostingUtil                    []PostingUtilization `json:"posting_util"`
	ElectivePreferenceSatisfaction PreferenceHistogram  `json:"elective_preference_satisfaction"`
}

// Statistics wraps the cohort-wide summary with its resident count.
type Statistics struct {
	TotalResidents int              `json:"total_residents"`
	Cohort         CohortStatistics `json:"cohort"`
}

// OffExplanation tags one unexplained (non-leave) off-block with the
// hard-constraint predicate that prevented an assignment.
type OffExplanation struct {
	MCR        string `json:"mcr"`
	MonthBlock int    `json:"month_block"`
	Reason     string `json:"reason"`
}

// Diagnostics carries best-effort, non-authoritative explanatory data
// that supplements the required output fields.
type Diagnostics struct {
	OffExplanationsByResident map[string][]OffExplanation `json:"off_explanations_by_resident,omitempty"`
	InfeasibilityHints        []string                    `json:"infeasibility_hints,omitempty"`
}

// Output is the full solver response.
type Output struct {
	Success               bool             `json:"success"`
	Error                 string           `json:"error,omitempty"`
	Residents             []Resident       `json:"residents,omitempty"`
	ResidentHistory       []HistoryRow     `json:"resident_history,omitempty"`
	ResidentPreferences   []Preference     `json:"resident_preferences,omitempty"`
	ResidentSRPreferences []SRPreference   `json:"resident_sr_preferences,omitempty"`
	Postings              []Posting        `json:"postings,omitempty"`
	ResidentLeaves        []Leave          `json:"resident_leaves,omitempty"`
	Weightages            Weightages       `json:"weightages,omitempty"`
	ResidentOutputs       []ResidentOutput `json:"resident_outputs,omitempty"`
	Statistics            Statistics       `json:"statistics,omitempty"`
	Diagnostics           Diagnostics      `json:"diagnostics,omitempty"`
	TimedOut              bool             `json:"timed_out,omitempty"`
}

// NumBlocks is the fixed length of one solve year.
const NumBlocks = 12

// DecemberBlock and JanuaryBlock are the winter-cut boundary months.
const (
	DecemberBlock = 6
	JanuaryBlock  = 7
)

// Core requirement constants (total blocks required by base name).
var CoreRequirements = map[string]int{
	"GM":   6,
	"GRM":  2,
	"CVM":  3,
	"RCCM": 3,
	"MICU": 3,
	"ED":   1,
	"NL":   3,
}

// CCRInstitutions are the tertiary institutions whose GM variant counts
// as a complex-case-requirement posting.
var CCRInstitutions = []string{"NUH", "SGH", "CGH", "SKH"}

// KTPHGMCode is the GM variant whose stage-1 blocks earn the hardcoded
// KTPH bonus.
const KTPHGMCode = "GM (KTPH)"
