package hierarchy

import (
	"fmt"

	"github.com/sarchlab/memhier/core"
	"github.com/sarchlab/memhier/mem/cache"
	"github.com/sarchlab/memhier/mem/idealmemcontroller"
	"github.com/sarchlab/memhier/noc/bus"
	"github.com/sarchlab/memhier/sim"
)

// Hierarchy is a built and connected memory hierarchy. The wiring does not
// change after Build.
type Hierarchy struct {
	Engine sim.Engine
	Config Config

	Core   *core.Comp
	L1I    *cache.Comp
	L1D    *cache.Comp
	L2Bus  *bus.Comp
	L2     *cache.Comp
	MemBus *bus.Comp
	Memory *idealmemcontroller.Comp

	workload    core.Workload
	connections []*sim.DirectConnection
	ran         bool
}

// NumAccesses returns the number of accesses the workload issues, or 0 if
// the workload cannot tell before it runs.
func (h *Hierarchy) NumAccesses() int {
	if w, ok := h.workload.(core.SizedWorkload); ok {
		return w.Len()
	}

	return 0
}

func (h *Hierarchy) connect() {
	h.plug("ICacheConn", h.Core.ICachePort(), h.L1I.TopPort())
	h.Core.SetICache(h.L1I.TopPort().AsRemote())

	h.plug("DCacheConn", h.Core.DCachePort(), h.L1D.TopPort())
	h.Core.SetDCache(h.L1D.TopPort().AsRemote())

	l2BusCPU := h.L2Bus.CPUPorts()

	h.plug("L1IToL2Bus", h.L1I.BottomPort(), l2BusCPU[0])
	h.L1I.SetLowModule(l2BusCPU[0].AsRemote())

	h.plug("L1DToL2Bus", h.L1D.BottomPort(), l2BusCPU[1])
	h.L1D.SetLowModule(l2BusCPU[1].AsRemote())

	h.plug("L2BusToL2", append(h.L2Bus.MemPorts(), h.L2.TopPort())...)
	h.L2Bus.SetLowModule(h.L2.TopPort().AsRemote())

	memBusCPU := h.MemBus.CPUPorts()

	h.plug("L2ToMemBus", h.L2.BottomPort(), memBusCPU[0])
	h.L2.SetLowModule(memBusCPU[0].AsRemote())

	h.plug("MemBusToMemory", append(h.MemBus.MemPorts(), h.Memory.TopPort())...)
	h.MemBus.SetLowModule(h.Memory.TopPort().AsRemote())
}

func (h *Hierarchy) plug(name string, ports ...sim.Port) {
	conn := sim.NewDirectConnection(name)
	for _, p := range ports {
		conn.PlugIn(p)
	}

	h.connections = append(h.connections, conn)
}

// Components returns every component from the core down to the memory.
func (h *Hierarchy) Components() []sim.Component {
	return []sim.Component{
		h.Core, h.L1I, h.L1D, h.L2Bus, h.L2, h.MemBus, h.Memory,
	}
}

// Caches returns the cache levels, first level first.
func (h *Hierarchy) Caches() []*cache.Comp {
	return []*cache.Comp{h.L1I, h.L1D, h.L2}
}

// Connections returns the connections between the components.
func (h *Hierarchy) Connections() []*sim.DirectConnection {
	return h.connections
}

// Run issues the whole workload and runs the engine until no event is left.
// A hierarchy can only run once.
func (h *Hierarchy) Run() (RunReport, error) {
	if h.ran {
		return RunReport{}, fmt.Errorf("hierarchy has already run")
	}

	h.ran = true
	h.Core.Start()

	if err := h.Engine.Run(); err != nil {
		return h.Report(), err
	}

	h.Engine.Finished()

	if !h.Core.Finished() {
		return h.Report(), fmt.Errorf(
			"simulation stalled at cycle %d with %d requests in flight",
			h.Engine.CurrentTime(), h.Core.NumInFlight())
	}

	return h.Report(), nil
}
