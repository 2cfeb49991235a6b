package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/throttle.go/pkg/gpio"
)

type recordingPin struct {
	levels []gpio.PinLevel
}

func (p *recordingPin) SetLevel(l gpio.PinLevel) { p.levels = append(p.levels, l) }

func (p *recordingPin) last() gpio.PinLevel { return p.levels[len(p.levels)-1] }

type testIndicator struct {
	*Indicator
	pin *recordingPin
	now time.Time
}

func newTestIndicator() *testIndicator {
	ti := &testIndicator{pin: &recordingPin{}, now: time.Unix(100, 0)}
	ti.Indicator = New(ti.pin)
	ti.Clock = func() time.Time { return ti.now }
	return ti
}

func (ti *testIndicator) at(d time.Duration) gpio.PinLevel {
	ti.now = ti.now.Add(d)
	ti.Process()
	return ti.pin.last()
}

func TestErrorCodePattern(t *testing.T) {
	p := ErrorCode(12)
	var highs []time.Duration
	for _, s := range p {
		if s.Level == gpio.High {
			highs = append(highs, s.Duration)
		}
	}
	require.Equal(t, []time.Duration{CodeLong, CodeShort, CodeShort}, highs)
	require.Equal(t, Step{gpio.Low, CodeRepeatGap}, p[len(p)-1])
	require.Equal(t, 2*CodeLong+CodeDigitGap+4*CodeShort+CodeRepeatGap, totalDuration(p))

	require.Equal(t, ErrorCode(MaxErrorCode), ErrorCode(150))
	require.Equal(t, Pattern{{gpio.Low, CodeDigitGap}, {gpio.Low, CodeRepeatGap}}, ErrorCode(-1))
}

func TestIndicatorOff(t *testing.T) {
	ti := newTestIndicator()
	require.Equal(t, gpio.Low, ti.at(0))
	ti.at(time.Second)
	require.Len(t, ti.pin.levels, 1)
}

func TestIndicatorBlink(t *testing.T) {
	ti := newTestIndicator()
	ti.SetPattern(Blink(100*time.Millisecond, 300*time.Millisecond))

	tests := []struct {
		after time.Duration
		level gpio.PinLevel
	}{
		{0, gpio.High},
		{50 * time.Millisecond, gpio.High},
		{50 * time.Millisecond, gpio.Low},
		{250 * time.Millisecond, gpio.Low},
		{50 * time.Millisecond, gpio.High},
		// a late cycle skips whole steps
		{450 * time.Millisecond, gpio.High},
	}
	for n, test := range tests {
		require.Equal(t, test.level, ti.at(test.after), "step %d", n)
	}
	require.Equal(t, []gpio.PinLevel{gpio.High, gpio.Low, gpio.High}, ti.pin.levels)
}

func TestIndicatorSetPatternRestarts(t *testing.T) {
	ti := newTestIndicator()
	ti.SetPattern(Blink(100*time.Millisecond, 100*time.Millisecond))
	ti.at(0)
	require.Equal(t, gpio.Low, ti.at(150*time.Millisecond))

	// the same pattern does not restart
	ti.SetPattern(Blink(100*time.Millisecond, 100*time.Millisecond))
	require.Equal(t, gpio.Low, ti.at(0))

	ti.SetPattern(ErrorCode(1))
	require.Equal(t, gpio.Low, ti.at(0))
	require.Equal(t, gpio.High, ti.at(CodeDigitGap))
	require.Equal(t, gpio.Low, ti.at(CodeShort))

	ti.SetPattern(Off)
	require.Equal(t, gpio.Low, ti.at(0))
	require.Nil(t, ti.Pattern())
}

func TestIndicatorZeroDuration(t *testing.T) {
	ti := newTestIndicator()
	ti.SetPattern(Pattern{{gpio.High, 0}})
	require.Equal(t, gpio.High, ti.at(time.Second))
}
