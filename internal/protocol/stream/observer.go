package stream

// Observer receives per-event callbacks from a Reader. Calls happen on the
// goroutine driving the Reader.
type Observer interface {
	OnMessage(msgType uint16)
	OnUnknown(msgType uint16)
	OnCRCError()
	OnDecodeError(msgType uint16)
	OnSkipped(n int)
}

// Stats counts what a Reader has seen since it was created.
type Stats struct {
	Messages     uint64
	Unknown      uint64
	CRCErrors    uint64
	DecodeErrors uint64
	Skipped      uint64
}

type nopObserver struct{}

func (nopObserver) OnMessage(uint16)     {}
func (nopObserver) OnUnknown(uint16)     {}
func (nopObserver) OnCRCError()          {}
func (nopObserver) OnDecodeError(uint16) {}
func (nopObserver) OnSkipped(int)        {}
