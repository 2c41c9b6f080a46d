package cmd

import (
	"context"

	"cosmossdk.io/math"
	"github.com/ethereum/go-ethereum/common"
)

const (
	jobKindDeposit = "deposit"
	jobKindMessage = "message"
)

// Job is one unit of work submitted through the API: either a source
// deposit proof to verify and settle, or an inbound bridge message.
type Job struct {
	Kind string

	Caller common.Address

	// deposit jobs
	Proof []byte

	// message jobs
	Asset   common.Address
	Amount  math.Int
	Budget  uint64
	Message []byte
}

// StartProcessor is the main processing pipeline: it drains the queue and
// feeds each job into the orchestrator until the context is cancelled.
func StartProcessor(ctx context.Context, a *AppState, eng *Engine, processingQueue chan *Job) {
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-processingQueue:
			a.processJob(ctx, eng, job)
		}
	}
}

func (a *AppState) processJob(ctx context.Context, eng *Engine, job *Job) {
	switch job.Kind {
	case jobKindDeposit:
		req, err := eng.Orchestrator.HandleDeposit(ctx, job.Caller, job.Proof)
		if err != nil {
			a.Logger.Error("unable to settle deposit", "err", err)
			return
		}
		a.Logger.Info("deposit processed", "request", req.RequestKey(), "status", req.Status)
	case jobKindMessage:
		req, err := eng.Orchestrator.HandleBridgeMessage(ctx, job.Caller, job.Asset, job.Amount, job.Budget, job.Message)
		if err != nil {
			a.Logger.Error("unable to process bridge message", "err", err)
			return
		}
		a.Logger.Info("bridge message processed", "request", req.RequestKey(), "status", req.Status)
	default:
		a.Logger.Error("unknown job kind", "kind", job.Kind)
	}
}
