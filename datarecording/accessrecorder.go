package datarecording

import (
	"github.com/sarchlab/memhier/core"
	"github.com/sarchlab/memhier/mem/cache"
	"github.com/sarchlab/memhier/sim"
)

// Names of the tables written during a recorded run.
const (
	AccessTable     = "access"
	CacheStatsTable = "cache_stats"
	ExecInfoTable   = "exec_info"
)

// AccessEntry is one row of the access table.
type AccessEntry struct {
	ID            string
	Kind          string
	Address       uint64
	ByteSize      uint64
	IssueCycle    uint64
	CompleteCycle uint64
	Latency       uint64
	Fault         string
}

// AccessRecorder is a hook that writes one row into the access table for
// every request a core completes.
type AccessRecorder struct {
	tableName string
	recorder  DataRecorder
}

// NewAccessRecorder creates the access table in recorder. Attach the
// returned hook to a core.
func NewAccessRecorder(recorder DataRecorder) *AccessRecorder {
	r := &AccessRecorder{
		tableName: AccessTable,
		recorder:  recorder,
	}

	recorder.CreateTable(r.tableName, AccessEntry{})

	return r
}

// Func records a completed request.
func (r *AccessRecorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != core.HookPosReqComplete {
		return
	}

	done, ok := ctx.Item.(core.Completion)
	if !ok {
		return
	}

	entry := AccessEntry{
		ID:            done.Req.ID,
		Kind:          done.Req.Kind.String(),
		Address:       done.Req.Address,
		ByteSize:      done.Req.ByteSize,
		IssueCycle:    uint64(done.IssueTime),
		CompleteCycle: uint64(done.CompleteTime),
		Latency:       uint64(done.Latency()),
	}

	if done.Rsp.Fault != nil {
		entry.Fault = done.Rsp.Fault.Error()
	}

	r.recorder.InsertData(r.tableName, entry)
}

// CacheStatsEntry is one row of the cache_stats table.
type CacheStatsEntry struct {
	Name       string
	Level      string
	Reads      uint64
	Writes     uint64
	Hits       uint64
	Misses     uint64
	Coalesced  uint64
	Rejected   uint64
	Evictions  uint64
	Writebacks uint64
	Faults     uint64
	HitRate    float64
}

// CacheStatsRecorder writes the final statistics of cache levels into the
// cache_stats table.
type CacheStatsRecorder struct {
	tableName string
	recorder  DataRecorder
}

// NewCacheStatsRecorder creates the cache_stats table in recorder.
func NewCacheStatsRecorder(recorder DataRecorder) *CacheStatsRecorder {
	r := &CacheStatsRecorder{
		tableName: CacheStatsTable,
		recorder:  recorder,
	}

	recorder.CreateTable(r.tableName, CacheStatsEntry{})

	return r
}

// Record writes one row per cache and flushes.
func (r *CacheStatsRecorder) Record(caches ...*cache.Comp) {
	for _, c := range caches {
		s := c.Stats()

		r.recorder.InsertData(r.tableName, CacheStatsEntry{
			Name:       c.Name(),
			Level:      c.Role().String(),
			Reads:      s.Reads,
			Writes:     s.Writes,
			Hits:       s.Hits,
			Misses:     s.Misses,
			Coalesced:  s.Coalesced,
			Rejected:   s.Rejected,
			Evictions:  s.Evictions,
			Writebacks: s.Writebacks,
			Faults:     s.Faults,
			HitRate:    s.HitRate(),
		})
	}

	r.recorder.Flush()
}
