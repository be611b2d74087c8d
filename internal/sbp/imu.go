package sbp

import (
	"github.com/pmiettinen/libsbp/internal/protocol/field"
	"github.com/pmiettinen/libsbp/internal/protocol/message"
	"github.com/pmiettinen/libsbp/internal/protocol/schema"
)

const (
	MsgImuRaw uint16 = 0x0900
	MsgImuAux uint16 = 0x0901
)

var ImuRawDescriptor = schema.Descriptor{
	MsgType: MsgImuRaw,
	Name:    "MSG_IMU_RAW",
	Fields: []schema.FieldDesc{
		{Name: "tow", Type: field.U32},
		{Name: "tow_f", Type: field.U8},
		{Name: "acc_x", Type: field.S16},
		{Name: "acc_y", Type: field.S16},
		{Name: "acc_z", Type: field.S16},
		{Name: "gyr_x", Type: field.S16},
		{Name: "gyr_y", Type: field.S16},
		{Name: "gyr_z", Type: field.S16},
	},
}

var ImuAuxDescriptor = schema.Descriptor{
	MsgType: MsgImuAux,
	Name:    "MSG_IMU_AUX",
	Fields: []schema.FieldDesc{
		{Name: "imu_type", Type: field.U8},
		{Name: "temp", Type: field.S16},
		{Name: "imu_conf", Type: field.U8},
	},
}

// towInvalid is set in ImuRaw.Tow when the receiver has no valid time.
const towInvalid = 1 << 31

// ImuRaw carries raw accelerometer and gyroscope readings in the body frame.
type ImuRaw struct {
	Tow  uint32 // ms since start of GPS week
	TowF uint8  // fractional ms
	AccX int16
	AccY int16
	AccZ int16
	GyrX int16
	GyrY int16
	GyrZ int16
}

func ImuRawFromMessage(m *message.Message) (ImuRaw, error) {
	v := newView(m, MsgImuRaw)
	out := ImuRaw{
		Tow:  v.u32("tow"),
		TowF: v.u8("tow_f"),
		AccX: v.s16("acc_x"),
		AccY: v.s16("acc_y"),
		AccZ: v.s16("acc_z"),
		GyrX: v.s16("gyr_x"),
		GyrY: v.s16("gyr_y"),
		GyrZ: v.s16("gyr_z"),
	}
	if v.err != nil {
		return ImuRaw{}, v.err
	}
	return out, nil
}

func (ImuRaw) MsgType() uint16 { return MsgImuRaw }

// TimeValid reports whether Tow carries a usable time of week.
func (r ImuRaw) TimeValid() bool { return r.Tow&towInvalid == 0 }

func (r ImuRaw) Values() map[string]field.Value {
	return map[string]field.Value{
		"tow":   field.NewU32(r.Tow),
		"tow_f": field.NewU8(r.TowF),
		"acc_x": field.NewS16(r.AccX),
		"acc_y": field.NewS16(r.AccY),
		"acc_z": field.NewS16(r.AccZ),
		"gyr_x": field.NewS16(r.GyrX),
		"gyr_y": field.NewS16(r.GyrY),
		"gyr_z": field.NewS16(r.GyrZ),
	}
}

// ImuAux is device specific auxiliary IMU data; only ImuType is stable.
type ImuAux struct {
	ImuType uint8
	Temp    int16
	ImuConf uint8
}

func ImuAuxFromMessage(m *message.Message) (ImuAux, error) {
	v := newView(m, MsgImuAux)
	out := ImuAux{
		ImuType: v.u8("imu_type"),
		Temp:    v.s16("temp"),
		ImuConf: v.u8("imu_conf"),
	}
	if v.err != nil {
		return ImuAux{}, v.err
	}
	return out, nil
}

func (ImuAux) MsgType() uint16 { return MsgImuAux }

func (a ImuAux) Values() map[string]field.Value {
	return map[string]field.Value{
		"imu_type": field.NewU8(a.ImuType),
		"temp":     field.NewS16(a.Temp),
		"imu_conf": field.NewU8(a.ImuConf),
	}
}
