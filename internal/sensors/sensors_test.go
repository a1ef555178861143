package sensors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/sensor_hub/internal/bus"
	"github.com/relabs-tech/sensor_hub/internal/filter"
	"github.com/relabs-tech/sensor_hub/internal/imu"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/i2c/i2ctest"
	"periph.io/x/conn/v3/physic"
)

const (
	testMux   = 0x70
	testAccel = 0x4C
)

// harness simulates the multiplexer with one MC3416 per port.
type harness struct {
	selected int
	regs     map[int]map[byte]byte // port -> register -> value
	dead     map[int]bool          // ports whose sensor never acknowledges
	writes   map[int][][]byte
	reads    int
}

func newHarness() *harness {
	return &harness{
		selected: -1,
		regs:     map[int]map[byte]byte{},
		dead:     map[int]bool{},
		writes:   map[int][][]byte{},
	}
}

func (h *harness) set(port int, x, y, z int8) {
	h.regs[port] = map[byte]byte{
		RegXOutHi: byte(x),
		RegYOutHi: byte(y),
		RegZOutHi: byte(z),
	}
}

func (h *harness) String() string                  { return "harness" }
func (h *harness) SetSpeed(physic.Frequency) error { return nil }

func (h *harness) Tx(addr uint16, w, r []byte) error {
	switch addr {
	case testMux:
		for p := 0; p < 8; p++ {
			if w[0] == 1<<p {
				h.selected = p
				return nil
			}
		}
		return errors.New("bad mask")
	case testAccel:
		if h.selected < 0 || h.dead[h.selected] {
			return errors.New("nack")
		}
		if len(r) == 0 {
			h.writes[h.selected] = append(h.writes[h.selected], append([]byte(nil), w...))
			return nil
		}
		h.reads++
		r[0] = h.regs[h.selected][w[0]]
		return nil
	}
	return errors.New("no device")
}

func TestResolvePort(t *testing.T) {
	want := []uint8{6, 0, 4, 5}
	for i, p := range want {
		got, err := ResolvePort(i)
		require.NoError(t, err)
		assert.Equal(t, p, got, "sensor %d", i)
	}

	_, err := ResolvePort(4)
	assert.ErrorIs(t, err, filter.ErrIndex)
	_, err = ResolvePort(-1)
	assert.ErrorIs(t, err, filter.ErrIndex)
}

func TestDecodeAxis(t *testing.T) {
	tests := []struct {
		in   byte
		want int8
	}{
		{0x00, 0},
		{0x01, 1},
		{0x7F, 127},
		{0x80, -128},
		{0xFF, -1},
		{0xF6, -10},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, DecodeAxis(tt.in), "0x%02X", tt.in)
	}
}

func TestDecode12Bit(t *testing.T) {
	tests := []struct {
		hi, lo byte
		want   int8
	}{
		{0x7F, 0xF0, 127},
		{0x80, 0x00, -128},
		{0xFF, 0xF0, 0},
		{0x10, 0x00, 16},
		{0xF0, 0x00, -16},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Decode12Bit(tt.hi, tt.lo), "hi 0x%02X lo 0x%02X", tt.hi, tt.lo)
	}
}

func TestAcquireRound_UsesPortMap(t *testing.T) {
	h := newHarness()
	h.set(6, 10, 20, 30)
	h.set(0, -1, -2, -3)
	h.set(4, 40, 50, 60)
	h.set(5, -40, -50, -60)

	acc := NewAccelerometers(bus.NewRouter(h, testMux), testAccel)
	var w filter.Window

	failed, err := acc.AcquireRound(&w, 2)
	require.NoError(t, err)
	assert.Zero(t, failed)
	assert.Equal(t, 12, h.reads)

	want := []imu.Vector{
		{X: 10, Y: 20, Z: 30},
		{X: -1, Y: -2, Z: -3},
		{X: 40, Y: 50, Z: 60},
		{X: -40, Y: -50, Z: -60},
	}
	for i, v := range want {
		got, err := w.At(i, 2)
		require.NoError(t, err)
		assert.Equal(t, v, got, "sensor %d", i)
	}
}

func TestAcquireRound_SwallowsBusErrors(t *testing.T) {
	h := newHarness()
	h.set(6, 10, 20, 30)
	h.set(0, 11, 21, 31)
	h.set(4, 12, 22, 32)
	h.set(5, 13, 23, 33)
	h.dead[4] = true

	acc := NewAccelerometers(bus.NewRouter(h, testMux), testAccel)
	var w filter.Window

	failed, err := acc.AcquireRound(&w, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, failed)

	got, err := w.At(2, 0)
	require.NoError(t, err)
	assert.Equal(t, imu.Vector{}, got, "failed reads become 0")

	got, err = w.At(3, 0)
	require.NoError(t, err)
	assert.Equal(t, imu.Vector{X: 13, Y: 23, Z: 33}, got)
}

func TestAcquireRound_RejectsBadSlot(t *testing.T) {
	h := newHarness()
	acc := NewAccelerometers(bus.NewRouter(h, testMux), testAccel)
	var w filter.Window

	_, err := acc.AcquireRound(&w, filter.Size)
	assert.ErrorIs(t, err, filter.ErrIndex)
	assert.Zero(t, h.reads)
}

func TestAcquireWindow_FillsEverySlot(t *testing.T) {
	h := newHarness()
	for _, p := range []int{6, 0, 4, 5} {
		h.set(p, 50, -50, 0)
	}
	r := bus.NewRouter(h, testMux)
	acc := NewAccelerometers(r, testAccel)
	var w filter.Window

	failed, err := acc.AcquireWindow(&w)
	require.NoError(t, err)
	assert.Zero(t, failed)
	assert.True(t, w.Full())
	assert.Equal(t, filter.Size*filter.NumSensors*3, h.reads)
	// One switch per sensor per round; reads on the same port reuse the selection.
	assert.Equal(t, filter.Size*filter.NumSensors, r.Selects())

	for s := 0; s < filter.NumSensors; s++ {
		v, err := w.Filter(s)
		require.NoError(t, err)
		assert.Equal(t, imu.Vector{X: 50, Y: -50}, v)
	}
}

func TestAccelerometersInit(t *testing.T) {
	h := newHarness()
	h.dead[5] = true
	acc := NewAccelerometers(bus.NewRouter(h, testMux), testAccel)

	failed := acc.Init()
	assert.Equal(t, 1, failed)
	for _, p := range []int{6, 0, 4} {
		assert.Equal(t, [][]byte{{RegMode, ModeWake}}, h.writes[p], "port %d", p)
	}
	assert.Empty(t, h.writes[5])
}

// fakeToF answers VL53L1X register reads from a map of 16-bit registers.
type fakeToF struct {
	regs   map[uint16][]byte
	fail   map[uint16]bool
	writes [][]byte
}

func (f *fakeToF) String() string      { return "tof" }
func (f *fakeToF) Duplex() conn.Duplex { return conn.Half }

func (f *fakeToF) Tx(w, r []byte) error {
	reg := uint16(w[0])<<8 | uint16(w[1])
	if f.fail[reg] {
		return errors.New("nack")
	}
	if len(r) == 0 {
		f.writes = append(f.writes, append([]byte(nil), w...))
		return nil
	}
	copy(r, f.regs[reg])
	return nil
}

func readyToF(mm uint16) *fakeToF {
	return &fakeToF{
		regs: map[uint16][]byte{
			vlRegModelID:        {0xEA, 0xCC},
			vlRegGPIOHVMuxCtrl:  {0x01},
			vlRegGPIOTIOHVState: {0x01},
			vlRegRangeMM:        {byte(mm >> 8), byte(mm)},
		},
		fail: map[uint16]bool{},
	}
}

func TestScaleDistance(t *testing.T) {
	tests := []struct {
		mm   uint16
		want byte
	}{
		{0, DistanceInvalid},
		{1, 0},
		{11, 0},
		{12, 1},
		{600, 50},
		{1499, 124},
		{1500, 127},
		{1501, 127},
		{4000, 127},
		{65535, 127},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ScaleDistance(tt.mm), "%d mm", tt.mm)
	}
}

func TestRangerInit(t *testing.T) {
	f := readyToF(0)
	r := NewRanger(f)
	require.NoError(t, r.Init())
	assert.Equal(t, [][]byte{
		{0x00, 0x86, 0x01},
		{0x00, 0x87, vlStartRanging},
	}, f.writes)

	bad := readyToF(0)
	bad.regs[vlRegModelID] = []byte{0x12, 0x34}
	assert.Error(t, NewRanger(bad).Init())
}

func TestRangerInit_ActiveLowPolarity(t *testing.T) {
	f := readyToF(600)
	f.regs[vlRegGPIOHVMuxCtrl] = []byte{0x11}
	f.regs[vlRegGPIOTIOHVState] = []byte{0x00}
	r := NewRanger(f)
	require.NoError(t, r.Init())

	code, err := r.AcquireDistance()
	require.NoError(t, err)
	assert.Equal(t, byte(50), code)
}

func TestAcquireDistance(t *testing.T) {
	f := readyToF(600)
	r := NewRanger(f)
	require.NoError(t, r.Init())
	f.writes = nil

	code, err := r.AcquireDistance()
	require.NoError(t, err)
	assert.Equal(t, byte(50), code)
	assert.Equal(t, [][]byte{{0x00, 0x86, 0x01}}, f.writes, "interrupt cleared after reading")
}

func TestAcquireDistance_NotReady(t *testing.T) {
	f := readyToF(600)
	r := NewRanger(f)
	require.NoError(t, r.Init())
	f.regs[vlRegGPIOTIOHVState] = []byte{0x00}

	_, err := r.AcquireDistance()
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestAcquireDistance_Errors(t *testing.T) {
	zero := readyToF(0)
	r := NewRanger(zero)
	require.NoError(t, r.Init())
	code, err := r.AcquireDistance()
	assert.ErrorIs(t, err, ErrRanging)
	assert.Equal(t, DistanceInvalid, code)

	broken := readyToF(600)
	r = NewRanger(broken)
	require.NoError(t, r.Init())
	broken.fail[vlRegRangeMM] = true
	code, err = r.AcquireDistance()
	assert.ErrorIs(t, err, ErrRanging)
	assert.Equal(t, DistanceInvalid, code)
}

func TestRanger_OverMultiplexerPort(t *testing.T) {
	const tofAddr = 0x29
	pb := &i2ctest.Playback{Ops: []i2ctest.IO{
		{Addr: testMux, W: []byte{0x80}},
		{Addr: tofAddr, W: []byte{0x00, 0x31}, R: []byte{0x01}},
		{Addr: tofAddr, W: []byte{0x00, 0x96}, R: []byte{0x02, 0x58}},
		{Addr: tofAddr, W: []byte{0x00, 0x86, 0x01}},
	}}
	router := bus.NewRouter(pb, testMux)
	r := NewRanger(router.Conn(7, tofAddr))

	code, err := r.AcquireDistance()
	require.NoError(t, err)
	assert.Equal(t, byte(50), code)
	assert.NoError(t, pb.Close())
}
