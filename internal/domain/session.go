package domain

// State names the phase of a user's session.
type State string

const (
	StateOnboarding   State = "ONBOARDING"
	StateAnalysis     State = "ANALYSIS"
	StateMatching     State = "MATCHING"
	StateOptimization State = "OPTIMIZATION"
	StateApply        State = "APPLY"
	StateReport       State = "REPORT"
	StateFeedback     State = "FEEDBACK"
	StateLearn        State = "LEARN"
)

// Valid reports whether s is a known FSM state.
func (s State) Valid() bool {
	switch s {
	case StateOnboarding, StateAnalysis, StateMatching, StateOptimization,
		StateApply, StateReport, StateFeedback, StateLearn:
		return true
	}
	return false
}

// MaxHistoryEntries bounds a session's conversational history. Older
// entries are dropped first.
const MaxHistoryEntries = 20

// HistoryEntry is one conversational exchange half stored in the session.
type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SessionState is the ephemeral per-user state owned by the orchestrator.
// It is JSON-serialized into the session cache under "session:<identity>"
// and expires via the cache TTL; it is never explicitly deleted.
type SessionState struct {
	State            State               `json:"state"`
	History          []HistoryEntry      `json:"history"`
	Profile          *CandidateProfile   `json:"profile"`
	Matches          []JobMatch          `json:"matches"`
	SelectedJobIndex int                 `json:"selectedJobIndex"`
	OptimizedCV      *TailoredCV         `json:"optimizedCv"`
	ATSScore         int                 `json:"atsScore"`
	Applications     []ApplicationResult `json:"applications"`
	Reply            string              `json:"reply"`
}

// NewSessionState returns the default state for a first-contact user.
func NewSessionState() *SessionState {
	return &SessionState{
		State:        StateOnboarding,
		History:      []HistoryEntry{},
		Matches:      []JobMatch{},
		Applications: []ApplicationResult{},
	}
}

// AppendHistory records an exchange half and truncates to the most recent
// MaxHistoryEntries entries, dropping the oldest first.
func (s *SessionState) AppendHistory(role, content string) {
	if content == "" {
		return
	}
	s.History = append(s.History, HistoryEntry{Role: role, Content: content})
	if n := len(s.History); n > MaxHistoryEntries {
		s.History = s.History[n-MaxHistoryEntries:]
	}
}

// RecentHistory returns up to the last n history entries.
func (s *SessionState) RecentHistory(n int) []HistoryEntry {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// SelectedJob returns the match the single best-match flow currently
// targets, or false when the index does not address a stored match.
func (s *SessionState) SelectedJob() (JobMatch, bool) {
	if s.SelectedJobIndex < 0 || s.SelectedJobIndex >= len(s.Matches) {
		return JobMatch{}, false
	}
	return s.Matches[s.SelectedJobIndex], true
}
