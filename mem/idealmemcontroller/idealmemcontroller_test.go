package idealmemcontroller

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/memhier/mem"
	"github.com/sarchlab/memhier/sim"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Ideal Memory Controller", func() {
	var (
		mockCtrl      *gomock.Controller
		engine        *MockEngine
		memController *Comp
		port          *MockPort
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		engine = NewMockEngine(mockCtrl)

		port = NewMockPort(mockCtrl)
		port.EXPECT().AsRemote().Return(sim.RemotePort("Port")).AnyTimes()

		memController = MakeBuilder().
			WithEngine(engine).
			WithNewStorage(uint64(1 * mem.MB)).
			WithLatency(10).
			Build("MemCtrl")
		memController.topPort = port
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should schedule a read response after the latency", func() {
		readReq := mem.AccessReqBuilder{}.
			WithSrc("Requester").
			WithDst(port.AsRemote()).
			WithKind(mem.Load).
			WithAddress(0).
			WithByteSize(4).
			Build()

		engine.EXPECT().CurrentTime().Return(sim.VTimeInCycle(5))
		engine.EXPECT().
			Schedule(gomock.AssignableToTypeOf(&readRespondEvent{})).
			Do(func(e sim.Event) {
				Expect(e.Time()).To(Equal(sim.VTimeInCycle(15)))
			})

		Expect(memController.Recv(readReq, port)).To(Succeed())
	})

	It("should schedule a write response after the latency", func() {
		writeReq := mem.AccessReqBuilder{}.
			WithSrc("Requester").
			WithDst(port.AsRemote()).
			WithKind(mem.Writeback).
			WithAddress(0x40).
			WithData([]byte{1, 2, 3, 4}).
			Build()

		engine.EXPECT().CurrentTime().Return(sim.VTimeInCycle(0))
		engine.EXPECT().
			Schedule(gomock.AssignableToTypeOf(&writeRespondEvent{}))

		Expect(memController.Recv(writeReq, port)).To(Succeed())
	})

	It("should respond to reads with data", func() {
		Expect(memController.Storage.Write(0, []byte{1, 2, 3, 4})).To(Succeed())

		readReq := mem.AccessReqBuilder{}.
			WithSrc("Requester").
			WithDst(port.AsRemote()).
			WithKind(mem.Fill).
			WithAddress(0).
			WithByteSize(4).
			Build()
		evt := newReadRespondEvent(10, memController, readReq)

		port.EXPECT().Send(gomock.Any()).DoAndReturn(func(msg sim.Msg) error {
			rsp := msg.(*mem.AccessRsp)
			Expect(rsp.RespondTo).To(Equal(readReq.ID))
			Expect(rsp.Data).To(Equal([]byte{1, 2, 3, 4}))
			Expect(rsp.Meta().Dst).To(Equal(sim.RemotePort("Requester")))
			Expect(rsp.Fault).NotTo(HaveOccurred())

			return nil
		})

		Expect(memController.Handle(evt)).To(Succeed())
		Expect(memController.Stats().Reads).To(Equal(uint64(1)))
	})

	It("should write data and acknowledge", func() {
		writeReq := mem.AccessReqBuilder{}.
			WithSrc("Requester").
			WithDst(port.AsRemote()).
			WithKind(mem.Store).
			WithAddress(0x40).
			WithData([]byte{1, 2, 3, 4}).
			Build()
		evt := newWriteRespondEvent(10, memController, writeReq)

		port.EXPECT().Send(gomock.Any()).DoAndReturn(func(msg sim.Msg) error {
			rsp := msg.(*mem.AccessRsp)
			Expect(rsp.RespondTo).To(Equal(writeReq.ID))
			Expect(rsp.Data).To(BeEmpty())

			return nil
		})

		Expect(memController.Handle(evt)).To(Succeed())

		data, _ := memController.Storage.Read(0x40, 4)
		Expect(data).To(Equal([]byte{1, 2, 3, 4}))
		Expect(memController.Stats().Writes).To(Equal(uint64(1)))
	})

	It("should fault accesses outside the storage", func() {
		readReq := mem.AccessReqBuilder{}.
			WithSrc("Requester").
			WithDst(port.AsRemote()).
			WithKind(mem.Load).
			WithAddress(uint64(1 * mem.MB)).
			WithByteSize(4).
			Build()
		evt := newReadRespondEvent(10, memController, readReq)

		port.EXPECT().Send(gomock.Any()).DoAndReturn(func(msg sim.Msg) error {
			rsp := msg.(*mem.AccessRsp)
			Expect(rsp.Fault).To(MatchError(mem.ErrAddressOutOfRange))

			return nil
		})

		Expect(memController.Handle(evt)).To(Succeed())
		Expect(memController.Stats().Faults).To(Equal(uint64(1)))
	})

	It("should keep rejected responses until the port is free", func() {
		readReq := mem.AccessReqBuilder{}.
			WithSrc("Requester").
			WithDst(port.AsRemote()).
			WithKind(mem.Load).
			WithByteSize(4).
			Build()
		evt := newReadRespondEvent(10, memController, readReq)

		port.EXPECT().Send(gomock.Any()).Return(sim.ErrPortBusy)
		Expect(memController.Handle(evt)).To(Succeed())

		var retry sim.Event
		engine.EXPECT().CurrentTime().Return(sim.VTimeInCycle(12))
		engine.EXPECT().Schedule(gomock.Any()).Do(func(e sim.Event) {
			retry = e
		})
		memController.NotifyPortFree(port)

		port.EXPECT().Send(gomock.Any()).Return(nil)
		Expect(memController.Handle(retry)).To(Succeed())
	})
})
