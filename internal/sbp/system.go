package sbp

import (
	"github.com/pmiettinen/libsbp/internal/protocol/field"
	"github.com/pmiettinen/libsbp/internal/protocol/message"
	"github.com/pmiettinen/libsbp/internal/protocol/schema"
)

const (
	MsgStartup     uint16 = 0xFF00
	MsgDgnssStatus uint16 = 0xFF02
	MsgHeartbeat   uint16 = 0xFFFF
)

var StartupDescriptor = schema.Descriptor{
	MsgType: MsgStartup,
	Name:    "MSG_STARTUP",
	Fields: []schema.FieldDesc{
		{Name: "cause", Type: field.U8},
		{Name: "startup_type", Type: field.U8},
		{Name: "reserved", Type: field.U16},
	},
}

var DgnssStatusDescriptor = schema.Descriptor{
	MsgType: MsgDgnssStatus,
	Name:    "MSG_DGNSS_STATUS",
	Fields: []schema.FieldDesc{
		{Name: "flags", Type: field.U8},
		{Name: "latency", Type: field.U16},
		{Name: "num_signals", Type: field.U8},
		{Name: "source", Type: field.String},
	},
}

var HeartbeatDescriptor = schema.Descriptor{
	MsgType: MsgHeartbeat,
	Name:    "MSG_HEARTBEAT",
	Fields: []schema.FieldDesc{
		{Name: "flags", Type: field.U32},
	},
}

// Startup is sent once when the device is ready for commands.
type Startup struct {
	Cause       uint8
	StartupType uint8
	Reserved    uint16
}

func StartupFromMessage(m *message.Message) (Startup, error) {
	v := newView(m, MsgStartup)
	out := Startup{
		Cause:       v.u8("cause"),
		StartupType: v.u8("startup_type"),
		Reserved:    v.u16("reserved"),
	}
	if v.err != nil {
		return Startup{}, v.err
	}
	return out, nil
}

func (Startup) MsgType() uint16 { return MsgStartup }

func (s Startup) Values() map[string]field.Value {
	return map[string]field.Value{
		"cause":        field.NewU8(s.Cause),
		"startup_type": field.NewU8(s.StartupType),
		"reserved":     field.NewU16(s.Reserved),
	}
}

// DgnssStatus reports receipt of a differential corrections packet.
type DgnssStatus struct {
	Flags      uint8
	Latency    uint16
	NumSignals uint8
	Source     string
}

func DgnssStatusFromMessage(m *message.Message) (DgnssStatus, error) {
	v := newView(m, MsgDgnssStatus)
	out := DgnssStatus{
		Flags:      v.u8("flags"),
		Latency:    v.u16("latency"),
		NumSignals: v.u8("num_signals"),
		Source:     v.str("source"),
	}
	if v.err != nil {
		return DgnssStatus{}, v.err
	}
	return out, nil
}

func (DgnssStatus) MsgType() uint16 { return MsgDgnssStatus }

func (d DgnssStatus) Values() map[string]field.Value {
	return map[string]field.Value{
		"flags":       field.NewU8(d.Flags),
		"latency":     field.NewU16(d.Latency),
		"num_signals": field.NewU8(d.NumSignals),
		"source":      field.NewString(d.Source),
	}
}

// heartbeatSystemError is the top-level error bit of Heartbeat.Flags.
const heartbeatSystemError = 1

// Heartbeat is sent about once a second while the system runs.
type Heartbeat struct {
	Flags uint32
}

func HeartbeatFromMessage(m *message.Message) (Heartbeat, error) {
	v := newView(m, MsgHeartbeat)
	out := Heartbeat{Flags: v.u32("flags")}
	if v.err != nil {
		return Heartbeat{}, v.err
	}
	return out, nil
}

func (Heartbeat) MsgType() uint16 { return MsgHeartbeat }

// SystemError reports the system error flag. The remaining bits say where.
func (h Heartbeat) SystemError() bool { return h.Flags&heartbeatSystemError != 0 }

func (h Heartbeat) Values() map[string]field.Value {
	return map[string]field.Value{"flags": field.NewU32(h.Flags)}
}
