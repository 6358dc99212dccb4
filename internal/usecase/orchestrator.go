package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"joby/internal/domain"
	"joby/internal/infra/tracer"
	"joby/internal/usecase/agents"
)

const (
	sessionKeyPrefix = "session:"

	// fallbackReply is returned whenever a turn produces no safe reply
	// text. Internal error detail is logged, never sent to the user.
	fallbackReply = "I'm processing your request..."

	apologyReply = "Sorry, I hit a snag processing that. Please try again in a moment."
)

// Orchestrator drives the per-session job search state machine. One call
// to Turn processes one inbound interaction to completion: identity
// resolution, session load, state dispatch, persistence, reply.
type Orchestrator struct {
	resolver     *IdentityResolver
	cache        domain.SessionCache
	store        domain.ProfileStore
	registry     *agents.Registry
	bus          domain.EventBus
	logger       *slog.Logger
	ttl          time.Duration
	agentTimeout time.Duration
}

// NewOrchestrator wires the orchestrator. bus may be nil for callers that
// do not observe events. Non-positive durations fall back to defaults.
func NewOrchestrator(
	resolver *IdentityResolver,
	cache domain.SessionCache,
	store domain.ProfileStore,
	registry *agents.Registry,
	bus domain.EventBus,
	ttl time.Duration,
	agentTimeout time.Duration,
	logger *slog.Logger,
) *Orchestrator {
	if ttl <= 0 {
		ttl = domain.SessionCacheTTL
	}
	if agentTimeout <= 0 {
		agentTimeout = 60 * time.Second
	}
	return &Orchestrator{
		resolver:     resolver,
		cache:        cache,
		store:        store,
		registry:     registry,
		bus:          bus,
		logger:       logger,
		ttl:          ttl,
		agentTimeout: agentTimeout,
	}
}

// turnContext bundles everything a state handler needs for one turn.
type turnContext struct {
	identity domain.Identity
	input    domain.TurnInput
	session  *domain.SessionState
	taskID   string
	reply    string
}

// Turn processes one inbound user interaction and returns the reply.
// Identity resolution or session-cache faults abort the turn with a
// retryable error; agent failures are absorbed into user-safe replies.
func (o *Orchestrator) Turn(ctx context.Context, input domain.TurnInput) (*domain.TurnOutput, error) {
	ctx, span := tracer.StartSpan(ctx, "orchestrator.turn")
	defer span.End()

	identity, err := o.resolver.Resolve(ctx, input)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("Orchestrator.Turn", err)
	}
	span.SetAttributes(tracer.StringAttr("session.id", identity.ID))

	session, err := o.loadSession(ctx, identity.ID)
	if err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("Orchestrator.Turn", err)
	}
	prevState := session.State

	o.backfillProfile(ctx, identity, session)
	o.forceTransitions(input, session)

	tc := &turnContext{
		identity: identity,
		input:    input,
		session:  session,
		taskID:   newTaskID(),
	}
	o.dispatch(ctx, tc)

	if tc.reply == "" {
		tc.reply = fallbackReply
	}

	// "/start" is a control command, not conversation.
	if input.UserInput != "" && input.UserInput != "/start" {
		session.AppendHistory(domain.RoleUser, input.UserInput)
	}
	session.AppendHistory(domain.RoleAssistant, tc.reply)
	session.Reply = tc.reply

	if err := o.saveSession(ctx, identity.ID, session); err != nil {
		tracer.RecordError(span, err)
		return nil, domain.WrapOp("Orchestrator.Turn", err)
	}

	o.publishTurnEvents(ctx, identity.ID, tc.taskID, prevState, session.State)
	tracer.SetOK(span)

	return &domain.TurnOutput{
		Reply:    tc.reply,
		State:    session.State,
		Identity: identity,
	}, nil
}

// loadSession reads the cached session or initializes a fresh one. A
// cache fault is fatal for the turn; a corrupt payload is not, it resets
// the session.
func (o *Orchestrator) loadSession(ctx context.Context, id string) (*domain.SessionState, error) {
	raw, ok, err := o.cache.Get(ctx, sessionKeyPrefix+id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return domain.NewSessionState(), nil
	}
	session := domain.NewSessionState()
	if err := json.Unmarshal([]byte(raw), session); err != nil || !session.State.Valid() {
		o.logger.Warn("discarding unreadable session state", "session", id, "error", err)
		return domain.NewSessionState(), nil
	}
	return session, nil
}

func (o *Orchestrator) saveSession(ctx context.Context, id string, session *domain.SessionState) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return domain.NewDomainError("Orchestrator.saveSession", err, "marshal session state")
	}
	return o.cache.Set(ctx, sessionKeyPrefix+id, string(raw), o.ttl)
}

// backfillProfile repopulates the session profile from the durable store
// after cache expiry. A returning user still in ONBOARDING with a stored
// profile skips re-onboarding. Store faults here are non-fatal.
func (o *Orchestrator) backfillProfile(ctx context.Context, identity domain.Identity, session *domain.SessionState) {
	if session.Profile != nil {
		return
	}
	var snapshot domain.ProfileSnapshot
	found, err := o.store.Get(ctx, domain.IndexCandidateProfiles, identity.ID, &snapshot)
	if err != nil {
		o.logger.Warn("profile backfill failed", "session", identity.ID, "error", err)
		return
	}
	if !found || snapshot.Profile == nil {
		return
	}
	session.Profile = snapshot.Profile
	if session.State == domain.StateOnboarding && !identity.IsNew {
		session.State = domain.StateMatching
	}
}

// forceTransitions applies the transitions that override the stored
// state before dispatch: explicit reset and document upload.
func (o *Orchestrator) forceTransitions(input domain.TurnInput, session *domain.SessionState) {
	if input.UserInput == "/start" {
		session.State = domain.StateOnboarding
	}
	if input.HasDocument() {
		session.State = domain.StateAnalysis
	}
}

func (o *Orchestrator) dispatch(ctx context.Context, tc *turnContext) {
	switch tc.session.State {
	case domain.StateOnboarding:
		o.handleOnboarding(ctx, tc)
	case domain.StateAnalysis:
		o.handleAnalysis(ctx, tc)
	case domain.StateMatching:
		o.handleMatching(ctx, tc)
	case domain.StateOptimization:
		o.handleOptimization(ctx, tc)
	case domain.StateApply:
		o.handleApply(ctx, tc)
	case domain.StateReport:
		o.handleReport(ctx, tc)
	case domain.StateFeedback:
		o.handleFeedback(ctx, tc)
	case domain.StateLearn:
		o.chatFallback(ctx, tc)
	default:
		o.chatFallback(ctx, tc)
	}
}

func (o *Orchestrator) handleOnboarding(ctx context.Context, tc *turnContext) {
	firstContact := tc.identity.IsNew && len(tc.session.History) == 0
	if tc.input.UserInput == "/start" || firstContact {
		resp := o.invoke(ctx, tc, domain.TargetCommunication, agents.CommunicationInput{
			Type:      agents.MessageGreeting,
			IsNew:     tc.identity.IsNew,
			FirstName: tc.identity.DisplayName,
		})
		if out, ok := resp.OutputPayload.(agents.CommunicationOutput); ok && resp.Status == domain.StatusSuccess {
			tc.reply = out.Message
			return
		}
	}
	o.chatFallback(ctx, tc)
}

func (o *Orchestrator) handleAnalysis(ctx context.Context, tc *turnContext) {
	if !tc.input.HasDocument() {
		o.chatFallback(ctx, tc)
		return
	}

	analysisIn := agents.AnalysisInput{
		UserID: tc.identity.ID,
		Document: &domain.DocumentAttachment{
			Name:   tc.input.DocumentName,
			Format: tc.input.DocumentFormat,
			Bytes:  tc.input.Document,
		},
	}
	resp := o.invoke(ctx, tc, domain.TargetCVAnalysis, analysisIn)

	switch resp.Status {
	case domain.StatusPartial:
		out, _ := resp.OutputPayload.(agents.AnalysisOutput)
		if out.Profile != nil {
			tc.session.Profile = out.Profile
		}
		if out.Clarification != "" {
			tc.reply = out.Clarification
		} else {
			tc.reply = "I need a bit more detail to finish analyzing your CV. Could you clarify?"
		}
		return
	case domain.StatusSuccess:
	default:
		tc.session.State = domain.StateOnboarding
		tc.reply = apologyReply
		return
	}

	out, ok := resp.OutputPayload.(agents.AnalysisOutput)
	if !ok || out.Profile == nil {
		tc.session.State = domain.StateOnboarding
		tc.reply = "I couldn't extract anything usable from that document. Could you send a clearer CV (PDF or DOCX works best)?"
		return
	}
	tc.session.Profile = out.Profile

	summary := analysisSummary(out)

	// Chain straight into matching so the user gets jobs in the same
	// turn their CV lands.
	matchResp := o.invoke(ctx, tc, domain.TargetJobMatching, agents.MatchingInput{Profile: out.Profile})
	matchOut, matchOK := matchResp.OutputPayload.(agents.MatchingOutput)
	if matchResp.Status != domain.StatusSuccess || !matchOK {
		tc.session.State = domain.StateMatching
		tc.reply = summary + "\n\nSay \"search\" when you're ready and I'll look for matching jobs."
		return
	}
	if len(matchOut.Jobs) == 0 {
		tc.session.State = domain.StateReport
		tc.reply = summary + "\n\nI didn't find matching openings just yet. I'll keep your profile on file and report back."
		return
	}
	tc.session.Matches = matchOut.Jobs
	tc.session.SelectedJobIndex = 0
	tc.session.State = domain.StateOptimization
	tc.reply = summary + "\n\n" + matchSummary(matchOut.Jobs) +
		"\n\nWant me to tailor your CV for the top match? (yes/no)"
}

func (o *Orchestrator) handleMatching(ctx context.Context, tc *turnContext) {
	if !searchIntent(tc.input.UserInput) {
		o.chatFallback(ctx, tc)
		return
	}
	resp := o.invoke(ctx, tc, domain.TargetJobMatching, agents.MatchingInput{Profile: tc.session.Profile})
	out, ok := resp.OutputPayload.(agents.MatchingOutput)
	if resp.Status != domain.StatusSuccess || !ok {
		tc.reply = apologyReply
		return
	}
	if len(out.Jobs) == 0 {
		tc.session.State = domain.StateReport
		tc.reply = "No matching openings right now. I'll keep looking and let you know."
		return
	}
	tc.session.Matches = out.Jobs
	tc.session.SelectedJobIndex = 0
	tc.session.State = domain.StateOptimization
	tc.reply = matchSummary(out.Jobs) + "\n\nWant me to tailor your CV for the top match? (yes/no)"
}

func (o *Orchestrator) handleOptimization(ctx context.Context, tc *turnContext) {
	if !affirmative(tc.input.UserInput) {
		o.chatFallback(ctx, tc)
		return
	}
	job, ok := tc.session.SelectedJob()
	if !ok || tc.session.Profile == nil {
		tc.session.State = domain.StateReport
		tc.reply = "I don't have a job lined up to optimize for. Say \"search\" to find matches first."
		return
	}

	resp := o.invoke(ctx, tc, domain.TargetCVOptimization, agents.OptimizationInput{
		UserID:    tc.identity.ID,
		Profile:   *tc.session.Profile,
		TargetJob: job,
	})
	out, outOK := resp.OutputPayload.(agents.OptimizationOutput)
	if resp.Status != domain.StatusSuccess || !outOK {
		tc.reply = apologyReply
		return
	}
	tc.session.OptimizedCV = out.TailoredCV
	tc.session.ATSScore = out.ATSScore
	tc.session.State = domain.StateApply

	var b strings.Builder
	fmt.Fprintf(&b, "Done! I tailored your CV for *%s* at %s.\n📊 ATS score: %d/100", job.Title, job.Company, out.ATSScore)
	if out.Ready {
		b.WriteString(" — submission ready. ✅")
	} else if len(out.GapsIdentified) > 0 {
		b.WriteString("\nGaps to be aware of: " + strings.Join(out.GapsIdentified, "; "))
	}
	b.WriteString("\n\nShall I apply for you? (yes/no)")
	tc.reply = b.String()
}

func (o *Orchestrator) handleApply(ctx context.Context, tc *turnContext) {
	switch {
	case negative(tc.input.UserInput):
		tc.session.State = domain.StateReport
		tc.reply = "No problem, I won't apply. Ask me for a report or say \"search\" for more matches."
		return
	case affirmative(tc.input.UserInput):
	default:
		o.chatFallback(ctx, tc)
		return
	}

	job, ok := tc.session.SelectedJob()
	if !ok {
		tc.session.State = domain.StateReport
		tc.reply = "There's no job selected to apply for. Say \"search\" to find matches first."
		return
	}
	resp := o.invoke(ctx, tc, domain.TargetAutoApply, agents.ApplyInput{
		UserID:     tc.identity.ID,
		TargetJob:  job,
		TailoredCV: tc.session.OptimizedCV,
		Profile:    tc.session.Profile,
	})
	out, outOK := resp.OutputPayload.(agents.ApplyOutput)
	if resp.Status != domain.StatusSuccess || !outOK {
		tc.reply = apologyReply
		return
	}
	tc.session.Applications = append(tc.session.Applications, out.Results...)
	tc.session.State = domain.StateReport
	tc.reply = fmt.Sprintf("🚀 Application sent for *%s* at %s! I'll track it and keep you posted.", job.Title, job.Company)
}

func (o *Orchestrator) handleReport(ctx context.Context, tc *turnContext) {
	switch {
	case searchIntent(tc.input.UserInput):
		tc.session.State = domain.StateMatching
		o.handleMatching(ctx, tc)
	case feedbackIntent(tc.input.UserInput):
		tc.session.State = domain.StateFeedback
		tc.reply = "I'd love to hear it. What should I change about the matches I'm finding?"
	default:
		o.chatFallback(ctx, tc)
	}
}

func (o *Orchestrator) handleFeedback(ctx context.Context, tc *turnContext) {
	if strings.TrimSpace(tc.input.UserInput) == "" {
		o.chatFallback(ctx, tc)
		return
	}
	resp := o.invoke(ctx, tc, domain.TargetLearning, agents.LearningInput{
		UserID:       tc.identity.ID,
		Feedback:     tc.input.UserInput,
		Profile:      tc.session.Profile,
		Applications: tc.session.Applications,
	})
	out, ok := resp.OutputPayload.(agents.LearningOutput)
	if resp.Status != domain.StatusSuccess || !ok {
		tc.reply = apologyReply
		return
	}
	tc.session.State = domain.StateLearn
	tc.reply = out.Acknowledgement
}

// chatFallback routes anything without a state-specific trigger to the
// conversational agent, seeded with the current state so the model can
// steer the user without owning transitions.
func (o *Orchestrator) chatFallback(ctx context.Context, tc *turnContext) {
	resp := o.invoke(ctx, tc, domain.TargetChat, agents.ChatInput{
		State:            tc.session.State,
		Profile:          tc.session.Profile,
		MatchCount:       len(tc.session.Matches),
		ApplicationCount: len(tc.session.Applications),
		History:          tc.session.RecentHistory(domain.MaxHistoryEntries),
		UserInput:        tc.input.UserInput,
	})
	if out, ok := resp.OutputPayload.(agents.ChatOutput); ok && resp.Status == domain.StatusSuccess {
		tc.reply = out.Reply
		return
	}
	tc.reply = fallbackReply
}

// invoke runs one agent call under the per-call timeout. Context faults
// and transport errors collapse into a failed response so state handlers
// deal with a single failure shape.
func (o *Orchestrator) invoke(ctx context.Context, tc *turnContext, target string, payload any) domain.AgentResponse {
	envelope, err := domain.NewEnvelope(target, payload, domain.PriorityMedium, tc.taskID)
	if err != nil {
		o.logger.Error("envelope construction failed", "target", target, "error", err)
		return domain.AgentResponse{TaskID: tc.taskID, Status: domain.StatusFailed, Error: err.Error()}
	}

	callCtx, cancel := context.WithTimeout(ctx, o.agentTimeout)
	defer cancel()

	resp, err := o.registry.Invoke(callCtx, envelope)
	if err != nil {
		o.logger.Warn("agent call failed", "target", target, "task", tc.taskID, "error", err)
		resp = domain.AgentResponse{TaskID: tc.taskID, Status: domain.StatusFailed, Error: err.Error()}
	}
	if resp.Status == domain.StatusFailed {
		o.publish(ctx, domain.Event{
			Type:      domain.EventAgentFailed,
			SessionID: tc.identity.ID,
			Data:      map[string]string{"target": target, "task_id": tc.taskID, "error": resp.Error},
		})
	}
	return resp
}

func (o *Orchestrator) publishTurnEvents(ctx context.Context, sessionID, taskID string, from, to domain.State) {
	if from != to {
		o.publish(ctx, domain.Event{
			Type:      domain.EventStateTransition,
			SessionID: sessionID,
			Data:      map[string]string{"from": string(from), "to": string(to), "task_id": taskID},
		})
	}
	o.publish(ctx, domain.Event{
		Type:      domain.EventTurnCompleted,
		SessionID: sessionID,
		Data:      map[string]string{"state": string(to), "task_id": taskID},
	})
}

func (o *Orchestrator) publish(ctx context.Context, event domain.Event) {
	if o.bus != nil {
		o.bus.Publish(ctx, event)
	}
}

func newTaskID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

func analysisSummary(out agents.AnalysisOutput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ CV analyzed! Profile quality: %d/100.", out.Quality.Score)
	if len(out.Suggestions) > 0 {
		b.WriteString("\n🚀 Top improvement: " + out.Suggestions[0])
	}
	return b.String()
}

func matchSummary(jobs []domain.JobMatch) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 Found %d matching jobs:", len(jobs))
	limit := len(jobs)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		j := jobs[i]
		fmt.Fprintf(&b, "\n%d. %s at %s (match %d%%)", i+1, j.Title, j.Company, j.MatchScore)
	}
	return b.String()
}

// Intent detection is deliberately coarse keyword matching. Anything that
// does not hit a trigger falls through to the conversational agent.

func affirmative(input string) bool {
	return hasAnyWord(input, "yes", "y", "yeah", "yep", "sure", "ok", "okay", "optimize", "apply", "go")
}

func negative(input string) bool {
	return hasAnyWord(input, "no", "n", "nope", "cancel", "skip", "stop", "later")
}

func searchIntent(input string) bool {
	return hasAnyWord(input, "search", "find", "match", "matches", "jobs")
}

func feedbackIntent(input string) bool {
	return hasAnyWord(input, "feedback", "suggestion", "suggestions")
}

func hasAnyWord(input string, words ...string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	fields := strings.FieldsFunc(lower, func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	for _, f := range fields {
		for _, w := range words {
			if f == w {
				return true
			}
		}
	}
	return false
}
