package hierarchy

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/sarchlab/memhier/core"
	"github.com/sarchlab/memhier/mem/cache"
	"github.com/sarchlab/memhier/mem/idealmemcontroller"
	"github.com/sarchlab/memhier/noc/bus"
)

// CacheReport holds the final statistics of one cache level.
type CacheReport struct {
	Name    string  `json:"name"`
	Level   string  `json:"level"`
	HitRate float64 `json:"hit_rate"`
	cache.Statistics
}

// BusReport holds the final statistics of one bus.
type BusReport struct {
	Name string `json:"name"`
	bus.Statistics
}

// RunReport summarizes a run.
type RunReport struct {
	TotalCycles      uint64                        `json:"total_cycles"`
	SimulatedSeconds float64                       `json:"simulated_seconds"`
	Core             core.Statistics               `json:"core"`
	AvgLatency       float64                       `json:"avg_latency"`
	Caches           []CacheReport                 `json:"caches"`
	Buses            []BusReport                   `json:"buses"`
	Memory           idealmemcontroller.Statistics `json:"memory"`
}

// Report collects the statistics of every component at the current time.
func (h *Hierarchy) Report() RunReport {
	now := h.Engine.CurrentTime()

	r := RunReport{
		TotalCycles:      uint64(now),
		SimulatedSeconds: h.Config.Freq.Seconds(now),
		Core:             h.Core.Stats(),
		AvgLatency:       h.Core.Stats().AvgLatency(),
		Memory:           h.Memory.Stats(),
	}

	for _, c := range h.Caches() {
		stats := c.Stats()
		r.Caches = append(r.Caches, CacheReport{
			Name:       c.Name(),
			Level:      c.Role().String(),
			HitRate:    stats.HitRate(),
			Statistics: stats,
		})
	}

	for _, b := range []*bus.Comp{h.L2Bus, h.MemBus} {
		r.Buses = append(r.Buses, BusReport{
			Name:       b.Name(),
			Statistics: b.Stats(),
		})
	}

	return r
}

// Cache returns the report of the named cache.
func (r RunReport) Cache(name string) (CacheReport, bool) {
	for _, c := range r.Caches {
		if c.Name == name {
			return c, true
		}
	}

	return CacheReport{}, false
}

// WriteJSON writes the report as indented JSON.
func (r RunReport) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(r)
}

// WriteText writes the report as aligned tables.
func (r RunReport) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintf(tw, "total cycles\t%d\n", r.TotalCycles)
	fmt.Fprintf(tw, "simulated seconds\t%.9f\n", r.SimulatedSeconds)
	fmt.Fprintf(tw, "requests\t%d issued, %d completed, %d faults, %d retries\n",
		r.Core.Issued, r.Core.Completed, r.Core.Faults, r.Core.Retries)
	fmt.Fprintf(tw, "latency\tavg %.2f, max %d\n",
		r.AvgLatency, r.Core.MaxLatency)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "cache\treads\twrites\thits\tmisses\tcoalesced\t"+
		"rejected\tevictions\twritebacks\thit rate")

	for _, c := range r.Caches {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%d\t%.4f\n",
			c.Name, c.Reads, c.Writes, c.Hits, c.Misses, c.Coalesced,
			c.Rejected, c.Evictions, c.Writebacks, c.HitRate)
	}

	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "bus\ttransfers\tresponses\tstalls")

	for _, b := range r.Buses {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\n",
			b.Name, b.Transfers, b.Responses, b.Stalls)
	}

	fmt.Fprintln(tw)
	fmt.Fprintf(tw, "memory\t%d reads, %d writes, %d faults\n",
		r.Memory.Reads, r.Memory.Writes, r.Memory.Faults)

	return tw.Flush()
}
