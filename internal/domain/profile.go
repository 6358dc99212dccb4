package domain

import "time"

// ContactInfo holds a candidate's contact details extracted from a CV.
type ContactInfo struct {
	Email   string `json:"email,omitempty"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address,omitempty"`
}

// Experience is one work-history entry.
type Experience struct {
	JobTitle         string   `json:"job_title"`
	Company          string   `json:"company"`
	Duration         string   `json:"duration"`
	Responsibilities []string `json:"responsibilities,omitempty"`
}

// Education is one education-history entry.
type Education struct {
	Degree         string `json:"degree"`
	Institution    string `json:"institution"`
	GraduationYear string `json:"graduation_year"`
}

// CandidateProfile is the structured profile the CV-analysis agent
// extracts. It is the durable half of a user's memory: written to the
// profile store and backfilled into session state after cache expiry.
type CandidateProfile struct {
	FullName              string       `json:"fullname"`
	ContactInfo           ContactInfo  `json:"contactInfo"`
	Experience            []Experience `json:"experience,omitempty"`
	Education             []Education  `json:"education,omitempty"`
	Skills                []string     `json:"skills,omitempty"`
	TechnicalSkillsRanked []string     `json:"technical_skills_ranked,omitempty"`
	SoftSkills            []string     `json:"soft_skills,omitempty"`
	Certifications        []string     `json:"certifications,omitempty"`
	Languages             []string     `json:"languages,omitempty"`
	CareerLevel           string       `json:"career_level,omitempty"`
	PrimaryDomain         string       `json:"primary_domain,omitempty"`
	SecondaryDomains      []string     `json:"secondary_domains,omitempty"`
	InferredGoals         string       `json:"inferred_goals,omitempty"`
	YearsOfExperience     float64      `json:"years_of_experience,omitempty"`
	CareerTrajectory      string       `json:"career_trajectory,omitempty"`
	CareerSummary         string       `json:"career_summary,omitempty"`
}

// QualityScore is the analysis agent's assessment of the raw CV.
type QualityScore struct {
	Score     int    `json:"score"`
	Reasoning string `json:"reasoning,omitempty"`
}

// JobMatch is one ranked job candidate returned by the matching agent.
type JobMatch struct {
	JobID           string   `json:"job_id"`
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Location        string   `json:"location,omitempty"`
	RemoteFlag      bool     `json:"remote_flag,omitempty"`
	Description     string   `json:"description,omitempty"`
	RequiredSkills  []string `json:"required_skills,omitempty"`
	SalaryRange     string   `json:"salary_range,omitempty"`
	ExperienceLevel string   `json:"experience_level,omitempty"`
	PostedDate      string   `json:"posted_date,omitempty"`
	ApplyURL        string   `json:"apply_url,omitempty"`
	Source          string   `json:"source,omitempty"`
	MatchScore      int      `json:"match_score"`
}

// TailoredCV is the optimization agent's job-specific rewrite of the
// candidate profile.
type TailoredCV struct {
	Profile        CandidateProfile `json:"profile"`
	CareerSummary  string           `json:"career_summary,omitempty"`
	TargetJobID    string           `json:"target_job_id"`
	TargetJobTitle string           `json:"target_job_title,omitempty"`
}

// ApplicationResult records one submitted application.
type ApplicationResult struct {
	JobID           string    `json:"job_id"`
	Status          string    `json:"status"`
	AppliedAt       time.Time `json:"applied_at"`
	CoverLetterUsed string    `json:"cover_letter_used,omitempty"`
	Notes           string    `json:"notes,omitempty"`
}

// ProfileSnapshot is the durable profile-store document written after a
// successful CV analysis, keyed by the identity ID.
type ProfileSnapshot struct {
	UserID        string            `json:"userId"`
	FullName      string            `json:"fullName,omitempty"`
	PrimaryDomain string            `json:"primaryDomain,omitempty"`
	Profile       *CandidateProfile `json:"profile"`
	Quality       QualityScore      `json:"quality"`
	Suggestions   []string          `json:"suggestions,omitempty"`
	SearchContent string            `json:"searchContent,omitempty"`
	ProcessedAt   time.Time         `json:"processedAt"`
	TaskID        string            `json:"taskId,omitempty"`
}
