// analyzer.go - the 7-band stereo audio analyzer (spec's audio.* signals).
//
// Bands approximate the classic MSGEQ7 hardware split (63Hz, 160Hz, 400Hz,
// 1kHz, 2.5kHz, 6.25kHz, 16kHz) via a per-block Goertzel filter bank, since
// Modulo has no DSP chip and must derive the same seven numbers from raw
// PCM. Everything here runs on a background analysis goroutine; Frame()
// just copies out the latest computed snapshot.
package audio

import (
	"math"
	"sync"

	"github.com/andyleaver/modulo/internal/signalbus"
)

var bandCenterHz = [7]float64{63, 160, 400, 1000, 2500, 6250, 16000}

const (
	blockSize      = 1024
	onsetHistory   = 43 // ~1s of blocks at 1024 samples / 44.1kHz
	beatHoldBlocks = 6  // refractory period after a beat fires
)

// Analyzer turns a stream of interleaved stereo float32 samples into the
// signal bus's audio.* namespace, one AudioFrame per processed block.
type Analyzer struct {
	sampleRate float64

	mu    sync.Mutex
	frame signalbus.AudioFrame

	monoEnergyHist []float64
	longEnergyHist []float64
	bassHold       int
	snareHold      int
	beatHold       int
	onsetTimes     []float64
	blockClock     float64
	secID          float64

	peakL, peakR [7]float64
	trackL, trackR [7]float64
}

// NewAnalyzer builds an Analyzer for the given capture sample rate.
func NewAnalyzer(sampleRate float64) *Analyzer {
	return &Analyzer{sampleRate: sampleRate}
}

// Frame returns the most recently computed snapshot. Safe for concurrent
// use with ProcessBlock.
func (a *Analyzer) Frame() signalbus.AudioFrame {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.frame
}

// ProcessBlock analyzes one block of interleaved stereo float32 samples
// (left, right, left, right, ...) and updates the latest frame.
func (a *Analyzer) ProcessBlock(interleaved []float32) {
	n := len(interleaved) / 2
	if n == 0 {
		return
	}
	left := make([]float64, n)
	right := make([]float64, n)
	mono := make([]float64, n)
	for i := 0; i < n; i++ {
		l := float64(interleaved[2*i])
		r := float64(interleaved[2*i+1])
		left[i] = l
		right[i] = r
		mono[i] = (l + r) * 0.5
	}

	var bandsL, bandsR, bandsMono [7]float64
	for b := 0; b < 7; b++ {
		bandsL[b] = goertzelMagnitude(left, bandCenterHz[b], a.sampleRate)
		bandsR[b] = goertzelMagnitude(right, bandCenterHz[b], a.sampleRate)
		bandsMono[b] = goertzelMagnitude(mono, bandCenterHz[b], a.sampleRate)
	}

	energy := rms(mono)
	a.blockClock += float64(n) / a.sampleRate

	a.mu.Lock()
	defer a.mu.Unlock()

	f := signalbus.AudioFrame{Energy: clamp01(energy * 4)}
	for b := 0; b < 7; b++ {
		f.Mono[b] = clamp01(bandsMono[b])
		f.L[b] = clamp01(bandsL[b])
		f.R[b] = clamp01(bandsR[b])

		a.trackL[b] = followEnvelope(a.trackL[b], f.L[b])
		a.trackR[b] = followEnvelope(a.trackR[b], f.R[b])
		a.peakL[b] = peakHold(a.peakL[b], f.L[b])
		a.peakR[b] = peakHold(a.peakR[b], f.R[b])
		f.TrL[b] = a.trackL[b]
		f.TrR[b] = a.trackR[b]
		f.PkL[b] = a.peakL[b]
		f.PkR[b] = a.peakR[b]
	}

	a.monoEnergyHist = pushHist(a.monoEnergyHist, f.Energy, onsetHistory)
	avg, sd := meanStdDev(a.monoEnergyHist)

	if a.beatHold > 0 {
		a.beatHold--
	}
	if f.Energy > avg+1.5*sd && f.Energy > 0.05 && a.beatHold == 0 {
		f.Beat = 1
		f.Onset = 1
		a.beatHold = beatHoldBlocks
		a.onsetTimes = append(a.onsetTimes, a.blockClock)
		if len(a.onsetTimes) > 32 {
			a.onsetTimes = a.onsetTimes[len(a.onsetTimes)-32:]
		}
	}

	if a.bassHold > 0 {
		a.bassHold--
	}
	bassAvg := bandsMono[0]
	if f.Beat > 0 && bassAvg > 0.08 && a.bassHold == 0 {
		f.Kick = 1
		a.bassHold = beatHoldBlocks
	}

	if a.snareHold > 0 {
		a.snareHold--
	}
	snareEnergy := bandsMono[2] + bandsMono[3]
	if f.Beat > 0 && snareEnergy > bandsMono[0]*1.2 && a.snareHold == 0 {
		f.Snare = 1
		a.snareHold = beatHoldBlocks
	}

	bpm, conf := estimateBPM(a.onsetTimes)
	f.BPM = bpm
	f.BPMConf = conf

	a.longEnergyHist = pushHist(a.longEnergyHist, f.Energy, onsetHistory*8)
	longAvg, _ := meanStdDev(a.longEnergyHist)
	shortAvg, _ := meanStdDev(a.monoEnergyHist)
	if longAvg > 0 && math.Abs(shortAvg-longAvg)/longAvg > 0.6 {
		f.SecChange = 1
		a.secID++
	}
	f.SecID = a.secID

	a.frame = f
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func rms(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// goertzelMagnitude estimates the normalized magnitude of freqHz in samples
// via the Goertzel algorithm, cheaper than a full FFT for a handful of
// fixed bins (the same tradeoff MSGEQ7's analog filter bank makes in
// hardware).
func goertzelMagnitude(samples []float64, freqHz, sampleRate float64) float64 {
	n := len(samples)
	if n == 0 || sampleRate <= 0 {
		return 0
	}
	k := int(0.5 + float64(n)*freqHz/sampleRate)
	w := 2 * math.Pi * float64(k) / float64(n)
	cw := math.Cos(w)
	coeff := 2 * cw

	var s0, s1, s2 float64
	for _, x := range samples {
		s0 = x + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	real := s1 - s2*cw
	imag := s2 * math.Sin(w)
	mag := math.Sqrt(real*real+imag*imag) / float64(n)
	return mag * 8 // empirical gain so a typical block lands near [0,1]
}

func followEnvelope(prev, v float64) float64 {
	const attack, release = 0.6, 0.05
	if v > prev {
		return prev + (v-prev)*attack
	}
	return prev + (v-prev)*release
}

func peakHold(prev, v float64) float64 {
	const decay = 0.02
	if v > prev {
		return v
	}
	next := prev - decay
	if next < v {
		return v
	}
	return next
}

func pushHist(hist []float64, v float64, max int) []float64 {
	hist = append(hist, v)
	if len(hist) > max {
		hist = hist[len(hist)-max:]
	}
	return hist
}

func meanStdDev(vals []float64) (mean, stddev float64) {
	if len(vals) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean = sum / float64(len(vals))
	var sqSum float64
	for _, v := range vals {
		d := v - mean
		sqSum += d * d
	}
	stddev = math.Sqrt(sqSum / float64(len(vals)))
	return mean, stddev
}

// estimateBPM derives a tempo estimate from recent onset timestamps using
// the mean inter-onset interval; confidence is 1 minus the intervals'
// standard deviation relative to that mean.
func estimateBPM(onsetTimes []float64) (bpm, conf float64) {
	if len(onsetTimes) < 4 {
		return 0, 0
	}
	intervals := make([]float64, 0, len(onsetTimes)-1)
	for i := 1; i < len(onsetTimes); i++ {
		d := onsetTimes[i] - onsetTimes[i-1]
		if d > 0.2 && d < 2.0 { // 30-300 BPM range
			intervals = append(intervals, d)
		}
	}
	if len(intervals) < 3 {
		return 0, 0
	}
	mean, sd := meanStdDev(intervals)
	if mean <= 0 {
		return 0, 0
	}
	bpm = 60.0 / mean
	conf = clamp01(1 - sd/mean)
	return bpm, conf
}
