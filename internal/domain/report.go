package domain

import "time"

// CycleReport summarizes one search scheduler cycle.
type CycleReport struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`

	// Queries is the number of active queries attempted.
	Queries int `json:"queries"`
	// Found counts tenders returned by upstream, duplicates included.
	Found int `json:"found"`
	// Added counts tenders newly stored.
	Added  int `json:"added"`
	Failed int `json:"failed"`
}

// SweepReport summarizes one retention sweep.
type SweepReport struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Cutoff     time.Time `json:"cutoff"`
	Deleted    int       `json:"deleted"`
}
