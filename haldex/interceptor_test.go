package haldex

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notnil/haldex/canbus"
)

func newTestInterceptor(t *testing.T) *Interceptor {
	t.Helper()
	return New(Configuration{}, zerolog.Nop())
}

// vehicle routes a frame received on the vehicle bus.
func vehicle(i *Interceptor, id uint32, data ...byte) Decision {
	return i.Route(canbus.MustFrame(id, data), SideVehicle)
}

func motor1(pedalByte byte) []byte {
	return []byte{0x11, 0xF0, 0x22, 0x33, 0xF0, pedalByte, 0x44, 0x55}
}

func TestRoute_CouplingFramesRelayedVerbatim(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)
	vehicle(i, IDMasterMode, byte(Forward), 0)

	for _, id := range []uint32{IDCouplingStatus, IDMotor1, IDMasterMode} {
		f := canbus.MustFrame(id, []byte{1, 2, 3, 4, 5, 6, 7, 8})
		d := i.Route(f, SideCoupling)
		require.True(t, d.Relay)
		assert.Equal(t, SideVehicle, d.To)
		assert.Equal(t, f, d.Frame)
		assert.False(t, d.HasReply)
	}
}

func TestRoute_StockRelaysUnmodified(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)
	for _, id := range []uint32{IDMotor1, IDMotor3, IDMotor6, IDBrakes3, 0x123} {
		f := canbus.MustFrame(id, []byte{0xF0, 0xF0, 0xF0, 0xF0, 0xF0, 0xF0, 0xF0, 0xF0})
		d := i.Route(f, SideVehicle)
		require.True(t, d.Relay)
		assert.Equal(t, SideCoupling, d.To)
		assert.Equal(t, f, d.Frame, "0x%03X", id)
	}
}

func TestRoute_Brakes1ForcedInEveryMode(t *testing.T) {
	t.Parallel()
	for _, mode := range []Mode{Stock, Forward, FiftyFifty, Custom} {
		i := newTestInterceptor(t)
		vehicle(i, IDMasterMode, byte(mode), 0)
		d := vehicle(i, IDBrakes1, 0xAA, 0xBB, 0xCC, 0x00, 0xDD)
		require.True(t, d.Relay)
		assert.Equal(t, byte(0xAA), d.Frame.Data[0], mode.String())
		assert.Equal(t, byte(0x00), d.Frame.Data[1], mode.String())
		assert.Equal(t, byte(0x00), d.Frame.Data[2], mode.String())
		assert.Equal(t, byte(0xDD), d.Frame.Data[4], mode.String())
	}
}

func TestRoute_PedalAndSpeedExtraction(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)

	vehicle(i, IDMotor1, motor1(200)...)
	assert.InDelta(t, 80, i.Runtime().PedalValue, 1e-3)

	vehicle(i, IDMotor2, 0, 0, 0, 100)
	assert.Equal(t, uint8(128), i.Runtime().VehicleSpeed)
	vehicle(i, IDMotor2, 0, 0, 0, 50)
	assert.Equal(t, uint8(64), i.Runtime().VehicleSpeed)
	vehicle(i, IDMotor2, 0, 0, 0, 200)
	assert.Equal(t, uint8(0), i.Runtime().VehicleSpeed, "speed is truncated to a byte")

	// Short frames leave the state alone.
	vehicle(i, IDMotor2, 0, 0, 0)
	vehicle(i, IDMotor1, 0, 0, 0, 0, 0)
	assert.Equal(t, uint8(0), i.Runtime().VehicleSpeed)
	assert.InDelta(t, 80, i.Runtime().PedalValue, 1e-3)
}

func TestRoute_FiftyFiftyPedalGating(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)

	d := vehicle(i, IDMasterMode, byte(FiftyFifty), 50)
	assert.False(t, d.Relay)
	require.True(t, d.HasReply)
	assert.Equal(t, canbus.MustFrame(IDInterceptorInfo, []byte{100, 0}), d.Reply)

	// pedal = 200*0.4 = 80 > 50
	d = vehicle(i, IDMotor1, motor1(200)...)
	require.True(t, d.Relay)
	assert.Equal(t, byte(0xF0), d.Frame.Data[1])
	assert.Equal(t, byte(0xF0), d.Frame.Data[4])
	assert.Equal(t, byte(200), d.Frame.Data[5])
	assert.Equal(t, byte(0x11), d.Frame.Data[0])

	// pedal = 50*0.4 = 20 <= 50
	d = vehicle(i, IDMotor1, motor1(50)...)
	assert.Equal(t, byte(0x00), d.Frame.Data[1])
	assert.Equal(t, byte(0x00), d.Frame.Data[4])
	assert.Equal(t, byte(50), d.Frame.Data[5])
}

func TestRoute_FiftyFiftyRewritesEngaged(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)
	vehicle(i, IDMasterMode, byte(FiftyFifty), 0)

	m3 := vehicle(i, IDMotor3, 1, 2, 3, 4, 5, 6, 7, 8).Frame
	assert.Equal(t, []byte{1, 2, 0xFA, 4, 5, 6, 7, 0xFE}, m3.Payload())

	m6 := vehicle(i, IDMotor6, 1, 2, 3, 4).Frame
	assert.Equal(t, []byte{1, 0xFE, 0x4E, 4}, m6.Payload())

	b1 := vehicle(i, IDBrakes1, 1, 2, 3, 4).Frame
	assert.Equal(t, []byte{1, 0, 0, 0xFF}, b1.Payload())

	b3 := vehicle(i, IDBrakes3, 0, 0, 0, 9, 9, 9, 9, 9).Frame
	assert.Equal(t, []byte{0xEA, 0xAF, 0xFE, 9, 9, 9, 9, 9}, b3.Payload())
}

func TestRoute_FiftyFiftyDisengagedBrakes3(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)
	vehicle(i, IDMasterMode, byte(FiftyFifty), 90)
	vehicle(i, IDMotor1, motor1(10)...)

	b3 := vehicle(i, IDBrakes3, 0xFF, 0xFF, 0xFF, 0xFF).Frame
	assert.Equal(t, []byte{0x0A, 0xA0, 0x00, 0xFF}, b3.Payload())
}

func TestRoute_ForwardHidesPedal(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)
	d := vehicle(i, IDMasterMode, byte(Forward), 10)
	require.True(t, d.HasReply)
	assert.Equal(t, canbus.MustFrame(IDInterceptorInfo, []byte{0, 0}), d.Reply)

	d = vehicle(i, IDMotor1, motor1(200)...)
	require.True(t, d.Relay)
	assert.Equal(t, uint8(8), d.Frame.Len)
	assert.Equal(t, [8]byte{}, d.Frame.Data)
	assert.InDelta(t, 80, i.Runtime().PedalValue, 1e-3, "pedal is read before zeroing")

	// Other frames are not rewritten in Forward.
	m3 := vehicle(i, IDMotor3, 1, 2, 3, 4, 5, 6, 7, 8).Frame
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, m3.Payload())
}

func TestRoute_CustomScalesByCurve(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)
	vehicle(i, IDMasterData, 0, 20, 10, 0)
	vehicle(i, IDMasterData, 1, 60, 90, 0)
	vehicle(i, IDMasterMode, byte(Custom), 0)

	// 32*12800/10000 = 40 km/h, halfway between the two points.
	vehicle(i, IDMotor2, 0, 0, 0, 32)
	require.Equal(t, uint8(40), i.Runtime().VehicleSpeed)

	d := vehicle(i, IDMotor1, motor1(100)...)
	// target 50 -> 50/2+20 = 45% of 0xF0 = 108
	assert.Equal(t, byte(108), d.Frame.Data[1])
	assert.Equal(t, byte(108), d.Frame.Data[4])
	assert.InDelta(t, 50, i.Runtime().LockTarget, 1e-4)
	assert.Equal(t, canbus.MustFrame(IDInterceptorInfo, []byte{50, 40}), i.Info())
}

func TestRoute_CustomWithEmptyCurve(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)
	vehicle(i, IDMasterMode, byte(Custom), 0)

	d := vehicle(i, IDMotor1, motor1(100)...)
	// target 0 -> 20% of 0xF0 = 48
	assert.Equal(t, byte(48), d.Frame.Data[1])
	assert.Equal(t, float32(0), i.Runtime().LockTarget)
}

func TestRoute_LockpointFrames(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)

	d := vehicle(i, IDMasterData, 3, 40, 60, 0)
	assert.False(t, d.Relay, "master frames are consumed")
	assert.False(t, d.HasReply)

	tbl := i.Table()
	assert.Equal(t, uint16(1<<3), tbl.Mask)
	assert.Equal(t, uint8(1), tbl.Count)
	assert.Equal(t, Lockpoint{Speed: 40, Lock: 60}, tbl.Points[3])

	d = vehicle(i, IDMasterData, 10, 1, 2, 3)
	assert.False(t, d.Relay)
	assert.Equal(t, tbl, i.Table(), "out of range index changes nothing")

	vehicle(i, IDMasterData, 4, 1, 2)
	assert.Equal(t, tbl, i.Table(), "short data frame is dropped")
}

func TestRoute_DataCtrl(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)
	vehicle(i, IDMasterMode, byte(Custom), 30)
	for _, idx := range []byte{0, 3, 9} {
		vehicle(i, IDMasterData, idx, idx*10, 50, 0)
	}

	d := vehicle(i, IDMasterDataCtrl, byte(CheckLockpoints))
	require.True(t, d.HasReply)
	assert.False(t, d.Relay)
	assert.Equal(t, canbus.MustFrame(IDInterceptorReply, []byte{0, 0x09, 0x00}), d.Reply)

	d = vehicle(i, IDMasterDataCtrl, byte(CheckMode))
	require.True(t, d.HasReply)
	assert.Equal(t, canbus.MustFrame(IDInterceptorReply, []byte{2, 3, 30}), d.Reply)

	d = vehicle(i, IDMasterDataCtrl, 7)
	assert.False(t, d.HasReply)
	assert.False(t, d.Relay)

	d = vehicle(i, IDMasterDataCtrl, byte(ClearLockpoints))
	assert.False(t, d.HasReply)
	assert.Equal(t, LockpointTable{}, i.Table())
	cfg := i.Configuration()
	assert.Equal(t, Custom, cfg.Mode, "clear keeps the mode")
	assert.Equal(t, float32(30), cfg.PedalThreshold)

	d = vehicle(i, IDMasterDataCtrl, byte(CheckLockpoints))
	assert.Equal(t, canbus.MustFrame(IDInterceptorReply, []byte{0, 0, 0}), d.Reply)
}

func TestRoute_ShortOrOddMasterFrames(t *testing.T) {
	t.Parallel()
	i := newTestInterceptor(t)

	d := vehicle(i, IDMasterMode, byte(FiftyFifty))
	assert.False(t, d.Relay)
	assert.False(t, d.HasReply)
	assert.Equal(t, Stock, i.Configuration().Mode)

	d = vehicle(i, IDMasterDataCtrl)
	assert.False(t, d.Relay)
	assert.False(t, d.HasReply)

	ext := canbus.Frame{ID: IDMasterMode, Extended: true, Len: 2, Data: [8]byte{byte(Forward), 0}}
	d = i.Route(ext, SideVehicle)
	require.True(t, d.Relay)
	assert.Equal(t, ext, d.Frame)
	assert.Equal(t, Stock, i.Configuration().Mode)

	rtr := canbus.Frame{ID: IDMotor1, RTR: true}
	d = i.Route(rtr, SideVehicle)
	require.True(t, d.Relay)
	assert.Equal(t, rtr, d.Frame)
}

func TestNew_RestoresConfiguration(t *testing.T) {
	t.Parallel()
	cfg := Configuration{Mode: FiftyFifty, PedalThreshold: 25}
	cfg.Lockpoints[0] = Lockpoint{Speed: 10, Lock: 20, Intensity: 3}

	i := New(cfg, zerolog.Nop())
	assert.Equal(t, cfg, i.Configuration())
	tbl := i.Table()
	assert.Equal(t, uint16(0), tbl.Mask)
	assert.Empty(t, tbl.Populated())
}
