package agents

import (
	"context"
	"encoding/json"
	"log/slog"
	"math"
	"sort"
	"strings"

	"joby/internal/domain"
)

// MatchingInput seeds a job search with the candidate's profile.
type MatchingInput struct {
	Profile *domain.CandidateProfile
}

// MatchingOutput carries the ranked matches.
type MatchingOutput struct {
	Jobs []domain.JobMatch
}

const matchingSearchSize = 20

// MatchingAgent discovers and ranks job opportunities by searching the
// job index with terms drawn from the candidate's domain and skills.
// An empty or missing index yields an empty result, never an error.
type MatchingAgent struct {
	store  domain.ProfileStore
	logger *slog.Logger
}

// NewMatchingAgent creates the job matching agent.
func NewMatchingAgent(store domain.ProfileStore, logger *slog.Logger) *MatchingAgent {
	return &MatchingAgent{store: store, logger: logger}
}

// Invoke implements domain.Agent.
func (a *MatchingAgent) Invoke(ctx context.Context, envelope domain.TaskEnvelope) (domain.AgentResponse, error) {
	input, ok := envelope.InputPayload.(MatchingInput)
	if !ok {
		return envelope.Failed(domain.NewDomainError("MatchingAgent.Invoke", domain.ErrInvalidInput, "payload is not MatchingInput")), nil
	}
	if input.Profile == nil {
		return envelope.Success(MatchingOutput{Jobs: []domain.JobMatch{}}), nil
	}

	query := searchQuery(input.Profile)
	hits, err := a.store.Search(ctx, domain.IndexJobs, query, domain.SearchOptions{Size: matchingSearchSize})
	if err != nil {
		a.logger.Warn("job search failed", "error", err)
		return ctxFailure(envelope, err)
	}

	jobs := make([]domain.JobMatch, 0, len(hits))
	for _, hit := range hits {
		var job domain.JobMatch
		if err := json.Unmarshal(hit.Document, &job); err != nil {
			a.logger.Warn("skipping malformed job document", "id", hit.ID, "error", err)
			continue
		}
		job.JobID = hit.ID
		job.MatchScore = int(math.Round(hit.Score * 10))
		jobs = append(jobs, job)
	}

	sort.SliceStable(jobs, func(i, j int) bool {
		return jobs[i].MatchScore > jobs[j].MatchScore
	})

	return envelope.Success(MatchingOutput{Jobs: jobs}), nil
}

func searchQuery(p *domain.CandidateProfile) string {
	terms := make([]string, 0, len(p.Skills)+1)
	if p.PrimaryDomain != "" {
		terms = append(terms, p.PrimaryDomain)
	}
	terms = append(terms, p.Skills...)
	return strings.Join(terms, " ")
}

var _ domain.Agent = (*MatchingAgent)(nil)
