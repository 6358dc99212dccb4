package usecase

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"joby/internal/domain"
	"joby/internal/usecase/agents"
)

func testInput(userInput string) domain.TurnInput {
	return domain.TurnInput{
		ChannelType:   "telegram",
		ChannelUserID: "42",
		DisplayName:   "Ada",
		UserInput:     userInput,
	}
}

func docInput(userInput string) domain.TurnInput {
	in := testInput(userInput)
	in.Document = []byte("%PDF-1.4 fake cv")
	in.DocumentName = "cv.pdf"
	in.DocumentFormat = domain.DocumentPDF
	return in
}

func testProfile() *domain.CandidateProfile {
	return &domain.CandidateProfile{
		FullName:      "Ada Lovelace",
		PrimaryDomain: "Software Engineering",
		Skills:        []string{"Go", "SQL"},
	}
}

func testJobs(n int) []domain.JobMatch {
	jobs := make([]domain.JobMatch, n)
	for i := range jobs {
		jobs[i] = domain.JobMatch{
			JobID:      fmt.Sprintf("job-%d", i),
			Title:      fmt.Sprintf("Engineer %d", i),
			Company:    "Acme",
			MatchScore: 90 - i,
		}
	}
	return jobs
}

// orchFixture wires an orchestrator over fakes with stub agents that can
// be swapped per test.
type orchFixture struct {
	orch     *Orchestrator
	cache    *fakeCache
	store    *fakeStore
	chat     *stubAgent
	analysis *stubAgent
	matching *stubAgent
	optimize *stubAgent
	apply    *stubAgent
	learning *stubAgent
}

func newOrchFixture() *orchFixture {
	f := &orchFixture{
		cache:    newFakeCache(),
		store:    newFakeStore(),
		chat:     &stubAgent{output: agents.ChatOutput{Reply: "chat reply"}},
		analysis: &stubAgent{output: agents.AnalysisOutput{Profile: testProfile()}},
		matching: &stubAgent{output: agents.MatchingOutput{Jobs: testJobs(3)}},
		optimize: &stubAgent{output: agents.OptimizationOutput{
			TailoredCV: &domain.TailoredCV{Profile: *testProfile(), TargetJobID: "job-0"},
			ATSScore:   88,
			Ready:      true,
		}},
		apply: &stubAgent{output: agents.ApplyOutput{
			Results: []domain.ApplicationResult{{JobID: "job-0", Status: "APPLIED_SUCCESS"}},
		}},
		learning: &stubAgent{output: agents.LearningOutput{Acknowledgement: "noted"}},
	}

	registry := agents.NewRegistry()
	registry.Register(domain.TargetCommunication, agents.NewCommunicationAgent())
	registry.Register(domain.TargetChat, f.chat)
	registry.Register(domain.TargetCVAnalysis, f.analysis)
	registry.Register(domain.TargetJobMatching, f.matching)
	registry.Register(domain.TargetCVOptimization, f.optimize)
	registry.Register(domain.TargetAutoApply, f.apply)
	registry.Register(domain.TargetLearning, f.learning)

	log := discardLogger()
	resolver := NewIdentityResolver(f.store, log)
	f.orch = NewOrchestrator(resolver, f.cache, f.store, registry, nil, 0, time.Second, log)
	return f
}

// seedSession stores a session for the test user and returns the identity id.
func (f *orchFixture) seedSession(t *testing.T, mutate func(*domain.SessionState)) string {
	t.Helper()
	id := IdentityID("telegram", "42")
	// Register the identity so the user is not "new".
	if err := f.store.Put(context.Background(), domain.IndexUserSessions, id, domain.Identity{
		ID: id, ChannelType: "telegram", ChannelUserID: "42",
	}); err != nil {
		t.Fatal(err)
	}
	session := domain.NewSessionState()
	if mutate != nil {
		mutate(session)
	}
	if err := f.orch.saveSession(context.Background(), id, session); err != nil {
		t.Fatal(err)
	}
	return id
}

func TestNewUserStartsInOnboarding(t *testing.T) {
	f := newOrchFixture()

	out, err := f.orch.Turn(context.Background(), testInput("/start"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateOnboarding {
		t.Errorf("state = %q, want ONBOARDING", out.State)
	}
	if !out.Identity.IsNew {
		t.Error("identity should be new on first contact")
	}
	if !strings.Contains(out.Reply, "upload your CV") {
		t.Errorf("reply = %q, want new-user greeting", out.Reply)
	}
}

func TestStartReplayIsIdempotent(t *testing.T) {
	f := newOrchFixture()
	ctx := context.Background()

	first, err := f.orch.Turn(ctx, testInput("/start"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.orch.Turn(ctx, testInput("/start"))
	if err != nil {
		t.Fatal(err)
	}
	if first.State != domain.StateOnboarding || second.State != domain.StateOnboarding {
		t.Errorf("states = %q, %q, want ONBOARDING twice", first.State, second.State)
	}
}

func TestStartCommandNotRecordedInHistory(t *testing.T) {
	f := newOrchFixture()

	out, err := f.orch.Turn(context.Background(), testInput("/start"))
	if err != nil {
		t.Fatal(err)
	}
	session, ok := f.cache.session(out.Identity.ID)
	if !ok {
		t.Fatal("session not persisted")
	}
	for _, h := range session.History {
		if h.Content == "/start" {
			t.Error("/start leaked into history")
		}
	}
	if len(session.History) != 1 {
		t.Errorf("history = %v, want only the assistant reply", session.History)
	}
}

func TestColdCacheBackfillAdvancesToMatching(t *testing.T) {
	f := newOrchFixture()
	ctx := context.Background()
	id := IdentityID("telegram", "42")

	// Returning identity with a durable profile, but no cached session.
	if err := f.store.Put(ctx, domain.IndexUserSessions, id, domain.Identity{ID: id}); err != nil {
		t.Fatal(err)
	}
	if err := f.store.Put(ctx, domain.IndexCandidateProfiles, id, domain.ProfileSnapshot{
		UserID: id, Profile: testProfile(),
	}); err != nil {
		t.Fatal(err)
	}

	out, err := f.orch.Turn(ctx, testInput("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateMatching {
		t.Errorf("state = %q, want MATCHING after backfill", out.State)
	}
	session, _ := f.cache.session(id)
	if session.Profile == nil || session.Profile.FullName != "Ada Lovelace" {
		t.Errorf("profile not backfilled: %+v", session.Profile)
	}
}

func TestDocumentForcesAnalysisFromAnyState(t *testing.T) {
	f := newOrchFixture()
	f.seedSession(t, func(s *domain.SessionState) { s.State = domain.StateReport })

	_, err := f.orch.Turn(context.Background(), docInput("here is my cv"))
	if err != nil {
		t.Fatal(err)
	}
	if f.analysis.calls() != 1 {
		t.Errorf("analysis agent invoked %d times, want 1", f.analysis.calls())
	}
}

func TestAnalysisSuccessWithMatchesLandsInOptimization(t *testing.T) {
	f := newOrchFixture()
	id := f.seedSession(t, func(s *domain.SessionState) { s.State = domain.StateAnalysis })

	out, err := f.orch.Turn(context.Background(), docInput(""))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateOptimization {
		t.Errorf("state = %q, want OPTIMIZATION", out.State)
	}
	session, _ := f.cache.session(id)
	if len(session.Matches) != 3 {
		t.Errorf("matches = %d, want 3", len(session.Matches))
	}
	if session.SelectedJobIndex != 0 {
		t.Errorf("selected index = %d, want 0", session.SelectedJobIndex)
	}
	// Same turn, same task id across the chained calls.
	if f.analysis.lastTask != f.matching.lastTask {
		t.Errorf("chained agents saw different task ids: %q vs %q", f.analysis.lastTask, f.matching.lastTask)
	}
}

func TestAnalysisWithNoMatchesRoutesToReport(t *testing.T) {
	f := newOrchFixture()
	f.matching.output = agents.MatchingOutput{}
	f.seedSession(t, func(s *domain.SessionState) { s.State = domain.StateAnalysis })

	out, err := f.orch.Turn(context.Background(), docInput(""))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateReport {
		t.Errorf("state = %q, want REPORT when no matches", out.State)
	}
}

func TestAnalysisEmptyProfileRegressesToOnboarding(t *testing.T) {
	f := newOrchFixture()
	f.analysis.output = agents.AnalysisOutput{}
	f.seedSession(t, func(s *domain.SessionState) { s.State = domain.StateAnalysis })

	out, err := f.orch.Turn(context.Background(), docInput(""))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateOnboarding {
		t.Errorf("state = %q, want ONBOARDING regression", out.State)
	}
	if !strings.Contains(out.Reply, "CV") {
		t.Errorf("reply = %q, want a request for a better CV", out.Reply)
	}
	if f.matching.calls() != 0 {
		t.Error("matching must not run without a profile")
	}
}

func TestAnalysisClarificationStaysInAnalysis(t *testing.T) {
	f := newOrchFixture()
	f.analysis.status = domain.StatusPartial
	f.analysis.output = agents.AnalysisOutput{Clarification: "Which city are you based in?"}
	f.seedSession(t, func(s *domain.SessionState) { s.State = domain.StateAnalysis })

	out, err := f.orch.Turn(context.Background(), docInput(""))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateAnalysis {
		t.Errorf("state = %q, want ANALYSIS to persist", out.State)
	}
	if out.Reply != "Which city are you based in?" {
		t.Errorf("reply = %q, want the clarification question", out.Reply)
	}
}

func TestAnalysisFailureRegressesAndApologizes(t *testing.T) {
	f := newOrchFixture()
	f.analysis.status = domain.StatusFailed
	f.analysis.output = nil
	f.seedSession(t, func(s *domain.SessionState) { s.State = domain.StateAnalysis })

	out, err := f.orch.Turn(context.Background(), docInput(""))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateOnboarding {
		t.Errorf("state = %q, want ONBOARDING after analysis failure", out.State)
	}
	if out.Reply != apologyReply {
		t.Errorf("reply = %q, want apology", out.Reply)
	}
}

func TestMatchingSearchIntent(t *testing.T) {
	f := newOrchFixture()
	f.seedSession(t, func(s *domain.SessionState) {
		s.State = domain.StateMatching
		s.Profile = testProfile()
	})

	out, err := f.orch.Turn(context.Background(), testInput("please find jobs for me"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateOptimization {
		t.Errorf("state = %q, want OPTIMIZATION", out.State)
	}
	if f.chat.calls() != 0 {
		t.Error("search intent should not fall through to chat")
	}
}

func TestMatchingNonSearchInputFallsToChat(t *testing.T) {
	f := newOrchFixture()
	f.seedSession(t, func(s *domain.SessionState) {
		s.State = domain.StateMatching
		s.Profile = testProfile()
	})

	out, err := f.orch.Turn(context.Background(), testInput("what do you think of my profile?"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateMatching {
		t.Errorf("state = %q, want MATCHING unchanged", out.State)
	}
	if out.Reply != "chat reply" {
		t.Errorf("reply = %q, want chat fallback", out.Reply)
	}
}

func TestOptimizationAffirmative(t *testing.T) {
	f := newOrchFixture()
	id := f.seedSession(t, func(s *domain.SessionState) {
		s.State = domain.StateOptimization
		s.Profile = testProfile()
		s.Matches = testJobs(3)
	})

	out, err := f.orch.Turn(context.Background(), testInput("yes"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateApply {
		t.Errorf("state = %q, want APPLY", out.State)
	}
	session, _ := f.cache.session(id)
	if session.OptimizedCV == nil || session.OptimizedCV.TargetJobID != "job-0" {
		t.Errorf("optimized CV = %+v, want artifact for matches[0]", session.OptimizedCV)
	}
	if session.ATSScore != 88 {
		t.Errorf("ats score = %d, want 88", session.ATSScore)
	}
	if f.optimize.calls() != 1 {
		t.Errorf("optimize invoked %d times, want 1", f.optimize.calls())
	}
}

func TestOptimizationFailureKeepsState(t *testing.T) {
	f := newOrchFixture()
	f.optimize.status = domain.StatusFailed
	f.optimize.output = nil
	f.seedSession(t, func(s *domain.SessionState) {
		s.State = domain.StateOptimization
		s.Profile = testProfile()
		s.Matches = testJobs(1)
	})

	out, err := f.orch.Turn(context.Background(), testInput("yes"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateOptimization {
		t.Errorf("state = %q, want OPTIMIZATION kept for retry", out.State)
	}
	if out.Reply != apologyReply {
		t.Errorf("reply = %q, want apology", out.Reply)
	}
}

func TestApplyDeclinedSkipsAgent(t *testing.T) {
	f := newOrchFixture()
	id := f.seedSession(t, func(s *domain.SessionState) {
		s.State = domain.StateApply
		s.Profile = testProfile()
		s.Matches = testJobs(1)
	})

	out, err := f.orch.Turn(context.Background(), testInput("no"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateReport {
		t.Errorf("state = %q, want REPORT", out.State)
	}
	if f.apply.calls() != 0 {
		t.Errorf("apply agent invoked %d times, want 0", f.apply.calls())
	}
	session, _ := f.cache.session(id)
	if len(session.Applications) != 0 {
		t.Errorf("applications = %d, want unchanged", len(session.Applications))
	}
}

func TestApplyAffirmativeRecordsApplication(t *testing.T) {
	f := newOrchFixture()
	id := f.seedSession(t, func(s *domain.SessionState) {
		s.State = domain.StateApply
		s.Profile = testProfile()
		s.Matches = testJobs(1)
	})

	out, err := f.orch.Turn(context.Background(), testInput("yes please"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateReport {
		t.Errorf("state = %q, want REPORT", out.State)
	}
	session, _ := f.cache.session(id)
	if len(session.Applications) != 1 || session.Applications[0].JobID != "job-0" {
		t.Errorf("applications = %+v", session.Applications)
	}
}

func TestReportSearchIntentLoopsToMatching(t *testing.T) {
	f := newOrchFixture()
	f.matching.output = agents.MatchingOutput{Jobs: testJobs(2)}
	f.seedSession(t, func(s *domain.SessionState) {
		s.State = domain.StateReport
		s.Profile = testProfile()
	})

	out, err := f.orch.Turn(context.Background(), testInput("search again"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateOptimization {
		t.Errorf("state = %q, want OPTIMIZATION via MATCHING", out.State)
	}
	if f.matching.calls() != 1 {
		t.Errorf("matching invoked %d times, want 1", f.matching.calls())
	}
}

func TestFeedbackFlowReachesLearn(t *testing.T) {
	f := newOrchFixture()
	id := f.seedSession(t, func(s *domain.SessionState) { s.State = domain.StateReport })
	ctx := context.Background()

	out, err := f.orch.Turn(ctx, testInput("I have some feedback"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateFeedback {
		t.Fatalf("state = %q, want FEEDBACK", out.State)
	}

	out, err = f.orch.Turn(ctx, testInput("more remote roles please"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateLearn {
		t.Errorf("state = %q, want LEARN", out.State)
	}
	if f.learning.calls() != 1 {
		t.Errorf("learning invoked %d times, want 1", f.learning.calls())
	}
	session, _ := f.cache.session(id)
	if session.State != domain.StateLearn {
		t.Errorf("persisted state = %q", session.State)
	}
}

func TestHistoryNeverExceedsCap(t *testing.T) {
	f := newOrchFixture()
	id := f.seedSession(t, func(s *domain.SessionState) { s.State = domain.StateReport })
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		if _, err := f.orch.Turn(ctx, testInput(fmt.Sprintf("tell me something %d", i))); err != nil {
			t.Fatal(err)
		}
		session, _ := f.cache.session(id)
		if len(session.History) > domain.MaxHistoryEntries {
			t.Fatalf("history length %d exceeds cap after turn %d", len(session.History), i+1)
		}
	}
}

func TestCacheReadFaultIsFatal(t *testing.T) {
	f := newOrchFixture()
	f.seedSession(t, nil)
	f.cache.getErr = errStoreDown

	if _, err := f.orch.Turn(context.Background(), testInput("hi")); err == nil {
		t.Fatal("expected error when session cache is unreachable")
	}
}

func TestCacheWriteFaultIsFatal(t *testing.T) {
	f := newOrchFixture()
	f.seedSession(t, nil)
	f.cache.setErr = errStoreDown

	if _, err := f.orch.Turn(context.Background(), testInput("hi")); err == nil {
		t.Fatal("expected error when session persistence fails")
	}
}

func TestSessionPersistedWithConfiguredTTL(t *testing.T) {
	f := newOrchFixture()
	f.orch = NewOrchestrator(
		f.orch.resolver, f.cache, f.store, f.orch.registry, nil, time.Hour, time.Second, discardLogger(),
	)

	if _, err := f.orch.Turn(context.Background(), testInput("/start")); err != nil {
		t.Fatal(err)
	}
	if f.cache.lastTTL != time.Hour {
		t.Errorf("ttl = %v, want %v", f.cache.lastTTL, time.Hour)
	}
}

func TestSessionTTLDefaultsWhenUnconfigured(t *testing.T) {
	f := newOrchFixture()

	if _, err := f.orch.Turn(context.Background(), testInput("/start")); err != nil {
		t.Fatal(err)
	}
	if f.cache.lastTTL != domain.SessionCacheTTL {
		t.Errorf("ttl = %v, want %v", f.cache.lastTTL, domain.SessionCacheTTL)
	}
}

func TestProfileBackfillFaultIsNotFatal(t *testing.T) {
	f := newOrchFixture()
	f.seedSession(t, func(s *domain.SessionState) { s.State = domain.StateReport })
	// Fault only the snapshot index; identity resolution stays healthy.
	f.store.getErr = errStoreDown
	f.store.getErrIndex = domain.IndexCandidateProfiles

	out, err := f.orch.Turn(context.Background(), testInput("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateReport {
		t.Errorf("state = %q, want REPORT despite backfill fault", out.State)
	}
}

func TestAgentTransportErrorBecomesFallbackReply(t *testing.T) {
	f := newOrchFixture()
	f.chat.err = context.DeadlineExceeded
	f.seedSession(t, func(s *domain.SessionState) { s.State = domain.StateReport })

	out, err := f.orch.Turn(context.Background(), testInput("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateReport {
		t.Errorf("state = %q, want REPORT kept", out.State)
	}
	if out.Reply != fallbackReply {
		t.Errorf("reply = %q, want fallback", out.Reply)
	}
}

func TestCorruptCachedSessionResets(t *testing.T) {
	f := newOrchFixture()
	id := IdentityID("telegram", "42")
	if err := f.store.Put(context.Background(), domain.IndexUserSessions, id, domain.Identity{ID: id}); err != nil {
		t.Fatal(err)
	}
	f.cache.data[sessionKeyPrefix+id] = "{not json"

	out, err := f.orch.Turn(context.Background(), testInput("hello"))
	if err != nil {
		t.Fatal(err)
	}
	if out.State != domain.StateOnboarding {
		t.Errorf("state = %q, want fresh ONBOARDING session", out.State)
	}
}

func TestIntentHelpers(t *testing.T) {
	tests := []struct {
		input string
		fn    func(string) bool
		want  bool
	}{
		{"Yes, go ahead", affirmative, true},
		{"nope", negative, true},
		{"eyes on the prize", affirmative, false},
		{"find me jobs", searchIntent, true},
		{"I finder", searchIntent, false},
		{"some feedback for you", feedbackIntent, true},
		{"", affirmative, false},
	}
	for _, tt := range tests {
		if got := tt.fn(tt.input); got != tt.want {
			t.Errorf("intent(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
