package usecase

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"joby/internal/domain"
	"joby/internal/usecase/agents"
)

// reportBatchSize bounds how many identities one scheduled run visits.
const reportBatchSize = 100

// Reporter delivers scheduled progress summaries to users with an active
// session, outside the request/reply flow.
type Reporter struct {
	cron        *cron.Cron
	store       domain.ProfileStore
	cache       domain.SessionCache
	registry    *agents.Registry
	channel     domain.Channel
	channelType string
	schedule    string
	logger      *slog.Logger
	runTimeout  time.Duration
}

// NewReporter creates the scheduler. schedule is a standard 5-field cron
// expression, e.g. "0 9 * * *" for daily at 09:00.
func NewReporter(
	store domain.ProfileStore,
	cache domain.SessionCache,
	registry *agents.Registry,
	channel domain.Channel,
	schedule string,
	logger *slog.Logger,
) *Reporter {
	return &Reporter{
		cron:        cron.New(),
		store:       store,
		cache:       cache,
		registry:    registry,
		channel:     channel,
		channelType: channel.Name(),
		schedule:    schedule,
		logger:      logger,
		runTimeout:  5 * time.Minute,
	}
}

// Start registers the cron entry and begins scheduling.
func (r *Reporter) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, r.run); err != nil {
		return domain.NewDomainError("Reporter.Start", err, "invalid schedule "+r.schedule)
	}
	r.cron.Start()
	r.logger.Info("report scheduler started", "schedule", r.schedule)
	return nil
}

// Stop halts scheduling and waits for an in-flight run to finish.
func (r *Reporter) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Reporter) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.runTimeout)
	defer cancel()

	hits, err := r.store.Search(ctx, domain.IndexUserSessions, r.channelType, domain.SearchOptions{Size: reportBatchSize})
	if err != nil {
		r.logger.Error("report run aborted, identity search failed", "error", err)
		return
	}

	sent := 0
	for _, hit := range hits {
		var identity domain.Identity
		if err := json.Unmarshal(hit.Document, &identity); err != nil || identity.ChannelUserID == "" {
			continue
		}
		if identity.ChannelType != r.channelType || identity.IsBot {
			continue
		}
		if r.reportFor(ctx, identity) {
			sent++
		}
	}
	r.logger.Info("report run completed", "candidates", len(hits), "sent", sent)
}

// reportFor builds and delivers one user's summary. Users without
// applications in their active session are skipped.
func (r *Reporter) reportFor(ctx context.Context, identity domain.Identity) bool {
	raw, ok, err := r.cache.Get(ctx, sessionKeyPrefix+identity.ID)
	if err != nil || !ok {
		return false
	}
	var session domain.SessionState
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return false
	}
	if len(session.Applications) == 0 {
		return false
	}

	envelope, err := domain.NewEnvelope(domain.TargetCommunication, agents.CommunicationInput{
		Type:         agents.MessageReport,
		FirstName:    identity.DisplayName,
		Applications: session.Applications,
		Matches:      session.Matches,
	}, domain.PriorityLow, newTaskID())
	if err != nil {
		return false
	}
	resp, err := r.registry.Invoke(ctx, envelope)
	if err != nil || resp.Status != domain.StatusSuccess {
		r.logger.Warn("report generation failed", "session", identity.ID, "error", err)
		return false
	}
	out, ok2 := resp.OutputPayload.(agents.CommunicationOutput)
	if !ok2 || out.Message == "" {
		return false
	}

	if err := r.channel.Send(ctx, identity.ChannelUserID, out.Message); err != nil {
		r.logger.Warn("report delivery failed", "session", identity.ID, "error", err)
		return false
	}
	return true
}
