package usecase

import (
	"context"
	"sort"

	"github.com/xavierca1/ligue-crm/internal/entity"
)

type PipelineColumn struct {
	Stage         entity.Stage           `json:"stage"`
	Count         int                    `json:"count"`
	TotalValue    float64                `json:"total_value"`
	WeightedValue float64                `json:"weighted_value"`
	Deals         []*entity.DealWithLead `json:"deals"`
}

type PipelineBoard struct {
	Columns       []PipelineColumn `json:"columns"`
	TotalValue    float64          `json:"total_value"`
	WeightedValue float64          `json:"weighted_value"`
}

// BuildBoard groups deals into one column per stage in pipeline order. Every
// stage is present even when empty; deals inside a column are sorted by lead
// fit score, highest first.
func BuildBoard(deals []*entity.DealWithLead) PipelineBoard {
	stages := entity.Stages()
	board := PipelineBoard{Columns: make([]PipelineColumn, len(stages))}
	for i, s := range stages {
		board.Columns[i] = PipelineColumn{Stage: s, Deals: []*entity.DealWithLead{}}
	}

	for _, d := range deals {
		idx := d.Stage.Index()
		if idx < 0 {
			continue
		}
		col := &board.Columns[idx]
		col.Deals = append(col.Deals, d)
		col.Count++
		col.TotalValue += d.ValueEstimate
		col.WeightedValue += d.Weighted()
	}

	for i := range board.Columns {
		col := &board.Columns[i]
		sort.SliceStable(col.Deals, func(a, b int) bool {
			return col.Deals[a].LeadFitScore > col.Deals[b].LeadFitScore
		})
		board.TotalValue += col.TotalValue
		board.WeightedValue += col.WeightedValue
	}
	return board
}

type PipelineUseCase struct {
	Deals entity.DealRepositoryInterface
}

func NewPipelineUseCase(deals entity.DealRepositoryInterface) *PipelineUseCase {
	return &PipelineUseCase{Deals: deals}
}

func (uc *PipelineUseCase) Execute(ctx context.Context) (PipelineBoard, error) {
	deals, err := uc.Deals.ListWithLeads(ctx)
	if err != nil {
		return PipelineBoard{}, err
	}
	return BuildBoard(deals), nil
}
