package input

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/throttle.go/pkg/gpio"
	"github.com/robotalks/throttle.go/pkg/pipeline"
)

func TestResolveMode(t *testing.T) {
	testCases := []struct {
		level1, level2 gpio.PinLevel
		expect         ModeState
	}{
		{gpio.Low, gpio.High, Mode1},
		{gpio.High, gpio.High, Mode2},
		{gpio.High, gpio.Low, Mode3},
		{gpio.Low, gpio.Low, ModeUnknown},
	}
	for _, tc := range testCases {
		t.Run(tc.level1.String()+"-"+tc.level2.String(), func(t *testing.T) {
			require.Equal(t, tc.expect, ResolveMode(tc.level1, tc.level2))
		})
	}
}

func TestModeButtonEdgeTriggered(t *testing.T) {
	pin1, pin2 := gpio.NewSimPin(gpio.Low), gpio.NewSimPin(gpio.High)
	var changes []ModeState
	b := NewModeButton(pin1, pin2)
	b.Listener = ModeChangedFunc(func(s ModeState) { changes = append(changes, s) })
	require.Equal(t, ModeUnknown, b.State())

	for i := 0; i < 5; i++ {
		b.Process()
	}
	require.Equal(t, []ModeState{Mode1}, changes)

	pin1.SetLevel(gpio.High)
	b.Process()
	b.Process()
	pin2.SetLevel(gpio.Low)
	b.Process()
	pin1.SetLevel(gpio.Low)
	b.Process()
	b.Process()
	require.Equal(t, []ModeState{Mode1, Mode2, Mode3, ModeUnknown}, changes)
	require.Equal(t, ModeUnknown, b.State())
	require.Equal(t, "unknown", b.State().String())
}

func TestModeButtonNoListener(t *testing.T) {
	b := NewModeButton(gpio.NewSimPin(gpio.High), gpio.NewSimPin(gpio.Low))
	b.Process()
	require.Equal(t, Mode3, b.State())
	require.Equal(t, "mode3", Mode3.String())
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestSetupButton(t *testing.T) {
	pin := gpio.NewSimPin(gpio.High)
	clock := &fakeClock{now: time.Unix(1000, 0)}
	var changes []SetupState
	b := NewSetupButton(pin, true)
	b.HoldTime = time.Second
	b.Clock = clock.Now
	b.Listener = SetupChangedFunc(func(s SetupState) { changes = append(changes, s) })

	b.Process()
	require.Equal(t, []SetupState{SetupReleased}, changes)

	pin.SetLevel(gpio.Low)
	b.Process()
	clock.Advance(500 * time.Millisecond)
	b.Process()
	require.Equal(t, SetupPressed, b.State())

	clock.Advance(500 * time.Millisecond)
	b.Process()
	clock.Advance(5 * time.Second)
	b.Process()
	require.Equal(t, SetupHeld, b.State())

	pin.SetLevel(gpio.High)
	b.Process()
	b.Process()
	require.Equal(t, []SetupState{SetupReleased, SetupPressed, SetupHeld, SetupReleased}, changes)
}

func TestSetupButtonShortPress(t *testing.T) {
	pin := gpio.NewSimPin(gpio.Low)
	clock := &fakeClock{now: time.Unix(0, 0)}
	var changes []SetupState
	b := NewSetupButton(pin, false)
	b.Clock = clock.Now
	b.Listener = SetupChangedFunc(func(s SetupState) { changes = append(changes, s) })

	b.Process()
	pin.SetLevel(gpio.High)
	b.Process()
	clock.Advance(100 * time.Millisecond)
	pin.SetLevel(gpio.Low)
	b.Process()
	pin.SetLevel(gpio.High)
	clock.Advance(DefaultHoldTime - time.Millisecond)
	b.Process()
	b.Process()
	require.Equal(t, []SetupState{SetupReleased, SetupPressed, SetupReleased, SetupPressed}, changes)
}

type recorder struct {
	values []float64
}

func (r *recorder) SetValue(v float64) { r.values = append(r.values, v) }

func TestAccelerator(t *testing.T) {
	adc := gpio.NewSimAnalog(840)
	var rec recorder
	a := NewAccelerator(adc, &rec)
	var _ pipeline.Consumer = &rec

	a.Process()
	a.Process()
	adc.Set(900)
	a.Process()
	require.False(t, a.Failing())
	adc.Fail(errors.New("adc timeout"))
	a.Process()
	a.Process()
	require.True(t, a.Failing())
	adc.Fail(nil)
	a.Process()
	require.False(t, a.Failing())
	adc.Set(1000)
	a.Process()
	require.Equal(t, []float64{840, 900, 1000}, rec.values)
}
