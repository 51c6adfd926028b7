package core

import (
	"log"

	"github.com/sarchlab/memhier/sim"
)

// CompletionLogger is a hook that prints one line for every completed
// request.
type CompletionLogger struct {
	sim.LogHookBase
}

// NewCompletionLogger returns a CompletionLogger that writes into logger.
func NewCompletionLogger(logger *log.Logger) *CompletionLogger {
	h := new(CompletionLogger)
	h.Logger = logger

	return h
}

// Func writes the completion into the logger.
func (h *CompletionLogger) Func(ctx sim.HookCtx) {
	if ctx.Pos != HookPosReqComplete {
		return
	}

	done, ok := ctx.Item.(Completion)
	if !ok {
		return
	}

	status := "ok"
	if done.Rsp.Fault != nil {
		status = done.Rsp.Fault.Error()
	}

	h.Printf("%d, %d, %s, 0x%x, %d, %s",
		done.IssueTime, done.CompleteTime, done.Req.Kind,
		done.Req.Address, done.Req.ByteSize, status)
}
