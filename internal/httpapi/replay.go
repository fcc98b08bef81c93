package httpapi

import (
	"net/http"

	"github.com/tradeforge/controlplane/internal/platform/apierrors"
	"github.com/tradeforge/controlplane/internal/replay"
)

type evaluateReplayRequest struct {
	BaselineDecision        replay.Decision `json:"baselineDecision"`
	CandidateDecision       replay.Decision `json:"candidateDecision"`
	BaselineDriftPct        float64         `json:"baselineDriftPct"`
	CandidateDriftPct       float64         `json:"candidateDriftPct"`
	DriftThresholdPct       float64         `json:"driftThresholdPct"`
	BlockMergeOnFail        bool            `json:"blockMergeOnFail"`
	BlockReleaseOnFail      bool            `json:"blockReleaseOnFail"`
	BlockMergeOnAgentFail   bool            `json:"blockMergeOnAgentFail"`
	BlockReleaseOnAgentFail bool            `json:"blockReleaseOnAgentFail"`
}

func (h *handler) evaluateReplay(w http.ResponseWriter, r *http.Request) {
	var req evaluateReplayRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErr(w, r, err)
		return
	}
	result, err := replay.Evaluate(replay.Input{
		BaselineDecision:        req.BaselineDecision,
		CandidateDecision:       req.CandidateDecision,
		BaselineDriftPct:        req.BaselineDriftPct,
		CandidateDriftPct:       req.CandidateDriftPct,
		DriftThresholdPct:       req.DriftThresholdPct,
		BlockMergeOnFail:        req.BlockMergeOnFail,
		BlockReleaseOnFail:      req.BlockReleaseOnFail,
		BlockMergeOnAgentFail:   req.BlockMergeOnAgentFail,
		BlockReleaseOnAgentFail: req.BlockReleaseOnAgentFail,
	})
	if err != nil {
		writeErr(w, r, apierrors.Validation("driftPct", err.Error()))
		return
	}
	writeOK(w, r, http.StatusOK, result)
}
