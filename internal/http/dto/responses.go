package dto

import (
	"github.com/cesargomez89/streampay/internal/domain"
	"github.com/cesargomez89/streampay/internal/store"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Kind    string            `json:"kind"`
	Details map[string]string `json:"details,omitempty"`
}

type WithdrawResponse struct {
	Success bool `json:"success"`
	*domain.WithdrawalResult
}

func NewWithdrawResponse(res *domain.WithdrawalResult) WithdrawResponse {
	return WithdrawResponse{Success: true, WithdrawalResult: res}
}

// AggregationsResponse lists recent runs with totals. UnsettledStreams is the
// number of completed streams still waiting for a cycle.
type AggregationsResponse struct {
	Runs             []*domain.AggregationRun `json:"runs"`
	Stats            *store.RunStats          `json:"stats"`
	UnsettledStreams int64                    `json:"unsettled_streams"`
}

func NewAggregationsResponse(runs []*domain.AggregationRun, stats *store.RunStats, unsettled int64) AggregationsResponse {
	if runs == nil {
		runs = []*domain.AggregationRun{}
	}
	return AggregationsResponse{Runs: runs, Stats: stats, UnsettledStreams: unsettled}
}
