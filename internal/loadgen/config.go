package loadgen

import (
	"time"

	evaluation "github.com/okian/consortium/internal/domain/evaluation"
)

// Config holds configuration for a load run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Tenders    int           // Number of tenders to fill
	Candidates int           // Consortiums generated per tender
	BatchSize  int           // Candidates per POST /batches
	TopN       int           // Ranking entries fetched per tender
	Workers    int           // Concurrent submitters
	Timeout    time.Duration // HTTP request timeout
	Wait       time.Duration // How long to wait for batches to finish
	OutputFile string        // Where generated candidates are written, empty to skip
	Verbose    bool          // Log every request
}

// Candidate is one generated consortium of a tender.
type Candidate struct {
	TenderID  string             `json:"tender_id"`
	Candidate string             `json:"candidate"`
	Request   evaluation.Request `json:"request"`
}

type batchCandidate struct {
	Candidate string             `json:"candidate"`
	Request   evaluation.Request `json:"request"`
}

type batchSubmission struct {
	IdempotencyKey string           `json:"idempotency_key"`
	TenderID       string           `json:"tender_id"`
	Candidates     []batchCandidate `json:"candidates"`
}

type batchStatus struct {
	ID        string   `json:"batch_id"`
	Status    string   `json:"status"`
	Duplicate bool     `json:"duplicate"`
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	Failed    int      `json:"failed"`
	ResultIDs []string `json:"result_ids"`
}

// Entry is one row of a tender ranking.
type Entry struct {
	Rank          int      `json:"rank"`
	ID            string   `json:"id"`
	Candidate     string   `json:"candidate"`
	ExpectedScore float64  `json:"expected_score"`
	Failures      []string `json:"failures"`
}

// Stats holds run statistics.
type Stats struct {
	CandidatesGenerated int
	BatchesSubmitted    int
	BatchesRejected     int
	ResultsSaved        int
	ResultsFailed       int
	RankingsChecked     int
	StartTime           time.Time
	EndTime             time.Time
	Duration            time.Duration
}
