package entity

import (
	"fmt"
	"strings"
)

// Stage is a pipeline stage. Stages are ordered; see Stages.
type Stage string

const (
	StageNew           Stage = "New"
	StageContacted     Stage = "Contacted"
	StageMeetingBooked Stage = "Meeting Booked"
	StageDemoDone      Stage = "Demo Done"
	StageProposalSent  Stage = "Proposal Sent"
	StageNegotiation   Stage = "Negotiation"
	StageClosed        Stage = "Closed"
)

var orderedStages = []Stage{
	StageNew,
	StageContacted,
	StageMeetingBooked,
	StageDemoDone,
	StageProposalSent,
	StageNegotiation,
	StageClosed,
}

// Stages returns the pipeline stages in board order.
func Stages() []Stage {
	out := make([]Stage, len(orderedStages))
	copy(out, orderedStages)
	return out
}

// ParseStage accepts any casing and "-"/"_" in place of spaces ("demo_done", "DEMO DONE").
func ParseStage(s string) (Stage, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", " ", "_", " ").Replace(norm)
	for _, st := range orderedStages {
		if strings.ToLower(string(st)) == norm {
			return st, nil
		}
	}
	return "", ValidationErrors{{Field: "stage", Message: fmt.Sprintf("unknown stage %q", s)}}
}

// Index is the position of the stage on the board, -1 if unknown.
func (s Stage) Index() int {
	for i, st := range orderedStages {
		if st == s {
			return i
		}
	}
	return -1
}

func (s Stage) Valid() bool { return s.Index() >= 0 }

// Before reports whether s comes earlier in the pipeline than other.
func (s Stage) Before(other Stage) bool {
	return s.Index() < other.Index()
}
