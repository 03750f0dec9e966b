// capture.go - live microphone/line-in capture feeding the Analyzer.
//
// Grounded on the reference pack's portaudio.OpenStream callback-stream
// usage (stereo float32 frames pushed to a processing stage) and on the
// teacher's audio_backend_oto.go Read()/Player lifecycle for the optional
// monitor passthrough, which reuses the same pull-based oto.Player
// interface the teacher built for chip audio output.
package audio

import (
	"fmt"
	"math"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/gordonklaus/portaudio"

	"github.com/andyleaver/modulo/internal/signalbus"
)

const (
	captureSampleRate = 44100
	captureChannels   = 2
)

var paInitOnce sync.Once
var paInitErr error

func ensurePortAudio() error {
	paInitOnce.Do(func() {
		paInitErr = portaudio.Initialize()
	})
	return paInitErr
}

// Capture owns a live stereo input stream and the Analyzer consuming it.
// It implements previewui.AudioSource.
type Capture struct {
	stream   *portaudio.Stream
	analyzer *Analyzer

	monitor   *oto.Context
	monPlayer *oto.Player
	monBuf    monitorRing
	monitorOn bool
}

// NewCapture opens the named input device (empty string selects the
// system default) and starts the analysis pipeline. Call Close to release
// the stream.
func NewCapture(deviceName string) (*Capture, error) {
	if err := ensurePortAudio(); err != nil {
		return nil, fmt.Errorf("initializing portaudio: %w", err)
	}

	dev, err := resolveInputDevice(deviceName)
	if err != nil {
		return nil, err
	}

	c := &Capture{analyzer: NewAnalyzer(captureSampleRate)}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: captureChannels,
			Latency:  dev.DefaultLowInputLatency,
		},
		SampleRate:      captureSampleRate,
		FramesPerBuffer: blockSize,
	}

	stream, err := portaudio.OpenStream(params, c.onBlock)
	if err != nil {
		return nil, fmt.Errorf("opening capture stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("starting capture stream: %w", err)
	}
	c.stream = stream
	return c, nil
}

func resolveInputDevice(name string) (*portaudio.DeviceInfo, error) {
	if name == "" {
		return portaudio.DefaultInputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating audio devices: %w", err)
	}
	for _, d := range devices {
		if d.Name == name && d.MaxInputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no input device named %q", name)
}

// onBlock is the portaudio callback: it hands the block to the analyzer
// and, if monitoring is enabled, appends it to the playback ring.
func (c *Capture) onBlock(in []float32) {
	c.analyzer.ProcessBlock(in)
	if c.monitorOn {
		c.monBuf.write(in)
	}
}

// Frame satisfies previewui.AudioSource.
func (c *Capture) Frame() signalbus.AudioFrame {
	return c.analyzer.Frame()
}

// EnableMonitor opens an oto playback context so a developer can listen to
// exactly the signal the analyzer is reading while tuning modulotors.
func (c *Capture) EnableMonitor() error {
	if c.monitorOn {
		return nil
	}
	op := &oto.NewContextOptions{
		SampleRate:   captureSampleRate,
		ChannelCount: captureChannels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   4,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("opening monitor output: %w", err)
	}
	<-ready
	c.monitor = ctx
	c.monPlayer = ctx.NewPlayer(&c.monBuf)
	c.monPlayer.Play()
	c.monitorOn = true
	return nil
}

// Close stops capture and any monitor playback.
func (c *Capture) Close() error {
	if c.monPlayer != nil {
		c.monPlayer.Close()
	}
	if c.stream != nil {
		if err := c.stream.Stop(); err != nil {
			return err
		}
		return c.stream.Close()
	}
	return nil
}

// monitorRing is a small lock-protected byte ring feeding the oto.Player
// for live monitoring; write() is called from the portaudio callback,
// Read() from oto's own playback goroutine.
type monitorRing struct {
	mu  sync.Mutex
	buf []byte
}

const monitorRingCapBytes = 1 << 16 // ~0.19s of stereo float32 @ 44.1kHz

func (r *monitorRing) write(samples []float32) {
	bytes := float32SliceToBytes(samples)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buf = append(r.buf, bytes...)
	if over := len(r.buf) - monitorRingCapBytes; over > 0 {
		r.buf = r.buf[over:]
	}
}

func (r *monitorRing) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}
	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	for i := n; i < len(p); i++ {
		p[i] = 0
	}
	return len(p), nil
}

func float32SliceToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, s := range samples {
		bits := math.Float32bits(s)
		out[i*4+0] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}
