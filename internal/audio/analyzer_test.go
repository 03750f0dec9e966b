package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sineBlock(freqHz, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freqHz * float64(i) / sampleRate)
	}
	return out
}

func TestGoertzelMagnitudePeaksAtTargetFrequency(t *testing.T) {
	const sampleRate = 44100.0
	samples := sineBlock(1000, sampleRate, blockSize)

	atTarget := goertzelMagnitude(samples, 1000, sampleRate)
	offTarget := goertzelMagnitude(samples, 6250, sampleRate)

	assert.Greater(t, atTarget, offTarget)
}

func TestMeanStdDevEmpty(t *testing.T) {
	mean, sd := meanStdDev(nil)
	assert.Equal(t, 0.0, mean)
	assert.Equal(t, 0.0, sd)
}

func TestMeanStdDevConstant(t *testing.T) {
	mean, sd := meanStdDev([]float64{0.5, 0.5, 0.5})
	assert.InDelta(t, 0.5, mean, 1e-9)
	assert.InDelta(t, 0, sd, 1e-9)
}

func TestEstimateBPMFromRegularOnsets(t *testing.T) {
	// 120 BPM -> 0.5s between onsets.
	onsets := []float64{0, 0.5, 1.0, 1.5, 2.0, 2.5}
	bpm, conf := estimateBPM(onsets)
	assert.InDelta(t, 120, bpm, 1)
	assert.Greater(t, conf, 0.9)
}

func TestEstimateBPMTooFewOnsets(t *testing.T) {
	bpm, conf := estimateBPM([]float64{0, 0.5})
	assert.Equal(t, 0.0, bpm)
	assert.Equal(t, 0.0, conf)
}

func TestFollowEnvelopeTracksRiseFasterThanFall(t *testing.T) {
	rise := followEnvelope(0, 1)
	fall := followEnvelope(1, 0)
	assert.Greater(t, rise, 0.5)  // fast attack: most of the way to the new peak in one step
	assert.Greater(t, fall, 0.9) // slow release: barely moved down in one step
}

func TestPeakHoldDecaysSlowly(t *testing.T) {
	held := peakHold(0, 1)
	assert.Equal(t, 1.0, held)
	decayed := peakHold(held, 0)
	assert.Less(t, decayed, held)
	assert.Greater(t, decayed, held-0.2)
}

func TestProcessBlockProducesEnergyAndBands(t *testing.T) {
	a := NewAnalyzer(44100)
	block := make([]float32, blockSize*2)
	for i := 0; i < blockSize; i++ {
		s := float32(math.Sin(2 * math.Pi * 1000 * float64(i) / 44100))
		block[2*i] = s
		block[2*i+1] = s
	}
	a.ProcessBlock(block)
	f := a.Frame()
	assert.Greater(t, f.Energy, 0.0)
	assert.Greater(t, f.Mono[3], f.Mono[0]) // energy concentrated near band 3 (1kHz)
}
