// defaults.go - the concrete target packs shipped with Modulo: one per
// microcontroller family the firmware emitter can address, grounded on the
// teacher's per-backend swap files (video_backend_*.go, gui_frontend_*.go),
// generalized here to one Pack value per arch/library combination instead of
// one Go file per backend, since every pack only needs to contribute a few
// fragments of templated C rather than a whole interface implementation.
package targets

// commonAudioNone is the AudioImpl fragment for packs with no onboard audio
// input: it still declares the globals modulo_signal_value() reads
// (g_energy/g_mono/g_left/g_right), all pinned at zero, so the generated
// firmware compiles identically whether or not a project actually reads any
// audio.* signal.
const commonAudioNone = `
static float g_energy = 0.0f;
static float g_mono[7];
static float g_left[7];
static float g_right[7];

static void modulo_audio_init(void) {}
static void modulo_audio_update(void) {}
`

// analogMicAudioImpl samples a single analog electret mic input and folds it
// into a crude one-band energy estimate. It does not attempt the multi-band
// split internal/audio.Analyzer does in preview (no FFT budget on AVR); every
// per-band value tracks the same single energy reading, which the emitter
// already treats as an acceptable approximation for "brightness reacts to
// loudness"-class projects (the common case on 8-bit targets).
const analogMicAudioImpl = `
#define MODULO_MIC_PIN A0
static float g_energy = 0.0f;
static float g_mono[7];
static float g_left[7];
static float g_right[7];

static void modulo_audio_init(void) {
  pinMode(MODULO_MIC_PIN, INPUT);
}

static void modulo_audio_update(void) {
  int raw = analogRead(MODULO_MIC_PIN);
  float level = fabsf((raw - 512) / 512.0f);
  g_energy = g_energy * 0.7f + level * 0.3f;
  for (int i = 0; i < 7; i++) {
    g_mono[i] = g_energy;
    g_left[i] = g_energy;
    g_right[i] = g_energy;
  }
}
`

const fastledStripImpl = `
#include <FastLED.h>
static CRGB modulo_leds[NUM_LEDS];

static void modulo_led_init(int n) {
  FastLED.addLeds<WS2812B, MODULO_DATA_PIN, GRB>(modulo_leds, n);
}

static void modulo_led_push(ModuloRGB *fb, int n) {
  for (int i = 0; i < n; i++) {
    modulo_leds[i] = CRGB((uint8_t)fb[i].r, (uint8_t)fb[i].g, (uint8_t)fb[i].b);
  }
  FastLED.show();
}
`

const neopixelBusImpl = `
#include <NeoPixelBus.h>
static NeoPixelBus<NeoGrbFeature, NeoEsp32Rmt0Ws2812xMethod> modulo_strip(NUM_LEDS, MODULO_DATA_PIN);

static void modulo_led_init(int n) {
  modulo_strip.Begin();
}

static void modulo_led_push(ModuloRGB *fb, int n) {
  for (int i = 0; i < n; i++) {
    modulo_strip.SetPixelColor(i, RgbColor((uint8_t)fb[i].r, (uint8_t)fb[i].g, (uint8_t)fb[i].b));
  }
  modulo_strip.Show();
}
`

// hub75MatrixImpl supplies modulo_map_index, which the template's XY() calls
// to map a row-major index onto the panel; NUM_LEDS for a matrix project is
// Width*Height in row-major order (internal/schema.CellsLayout). It applies
// only the serpentine row reversal; origin, rotation and flips, which
// internal/schema.CellsLayout.MapIndex applies in preview, are not applied.
// It is kept here instead of generated per-project since every matrix pack
// shares the same remap shape regardless of the project.
const hub75MatrixImpl = `
static int modulo_map_index(int i) {
#if MODULO_MATRIX_SERPENTINE
  int row = i / MODULO_MATRIX_WIDTH;
  int col = i % MODULO_MATRIX_WIDTH;
  if (row % 2 == 1) col = MODULO_MATRIX_WIDTH - 1 - col;
  return row * MODULO_MATRIX_WIDTH + col;
#else
  return i;
#endif
}
`

// Defaults returns the pack registry shipped with the exporter: an AVR strip
// pack, two ESP32 packs split by LED library choice, an RP2040 pack, a
// Teensy pack, and an ESP32 matrix pack. Callers normally call Freeze()
// immediately after.
func Defaults() *Registry {
	r := NewRegistry()

	r.Register(&Pack{
		ID:   "avr-fastled-strip",
		Name: "Arduino Uno/Nano (FastLED strip)",
		Arch: "avr",
		Capabilities: Capabilities{
			DefaultLEDBackend:   "fastled",
			DefaultAudioBackend: "analog_mic",
			LEDBackends:         []string{"fastled"},
			AudioBackends:       []string{"none", "analog_mic"},
			SupportsMatrix:      false,
			SupportsPostFXRT:    true,
			SupportsOperatorsRT: true,
			MaxLEDs:             150,
		},
		LEDImpl:   "#define MODULO_DATA_PIN 6\n" + fastledStripImpl,
		AudioImpl: analogMicAudioImpl,
		LibDeps:   []string{"fastled/FastLED"},
		Board:     "uno",
		FQBN:      "arduino:avr:uno",
	})

	r.Register(&Pack{
		ID:   "esp32-fastled-strip",
		Name: "ESP32 (FastLED strip)",
		Arch: "esp32",
		Capabilities: Capabilities{
			DefaultLEDBackend:   "fastled",
			DefaultAudioBackend: "none",
			LEDBackends:         []string{"fastled"},
			AudioBackends:       []string{"none", "analog_mic"},
			SupportsMatrix:      false,
			SupportsPostFXRT:    true,
			SupportsOperatorsRT: true,
			MaxLEDs:             2000,
		},
		LEDImpl:   "#define MODULO_DATA_PIN 5\n" + fastledStripImpl,
		AudioImpl: commonAudioNone,
		LibDeps:   []string{"fastled/FastLED"},
		Board:     "esp32dev",
		FQBN:      "esp32:esp32:esp32",
	})

	r.Register(&Pack{
		ID:   "esp32-neopixelbus-strip",
		Name: "ESP32 (NeoPixelBus RMT strip)",
		Arch: "esp32",
		Capabilities: Capabilities{
			DefaultLEDBackend:   "neopixelbus",
			DefaultAudioBackend: "none",
			LEDBackends:         []string{"neopixelbus"},
			AudioBackends:       []string{"none"},
			SupportsMatrix:      false,
			SupportsPostFXRT:    true,
			SupportsOperatorsRT: true,
			MaxLEDs:             2000,
		},
		LEDImpl:   "#define MODULO_DATA_PIN 5\n" + neopixelBusImpl,
		AudioImpl: commonAudioNone,
		LibDeps:   []string{"makuna/NeoPixelBus"},
		Board:     "esp32dev",
		FQBN:      "esp32:esp32:esp32",
	})

	r.Register(&Pack{
		ID:   "esp32-hub75-matrix",
		Name: "ESP32 (HUB75 RGB matrix)",
		Arch: "esp32",
		Capabilities: Capabilities{
			DefaultLEDBackend:   "fastled",
			DefaultAudioBackend: "none",
			LEDBackends:         []string{"fastled"},
			AudioBackends:       []string{"none"},
			SupportsMatrix:      true,
			SupportsPostFXRT:    true,
			SupportsOperatorsRT: true,
			MaxLEDs:             4096,
		},
		LEDImpl:    "#define MODULO_DATA_PIN 5\n" + fastledStripImpl,
		AudioImpl:  commonAudioNone,
		MatrixImpl: hub75MatrixImpl,
		LibDeps:    []string{"fastled/FastLED"},
		Board:      "esp32dev",
		FQBN:       "esp32:esp32:esp32",
	})

	r.Register(&Pack{
		ID:   "rp2040-fastled-strip",
		Name: "Raspberry Pi Pico (FastLED strip)",
		Arch: "rp2040",
		Capabilities: Capabilities{
			DefaultLEDBackend:   "fastled",
			DefaultAudioBackend: "none",
			LEDBackends:         []string{"fastled"},
			AudioBackends:       []string{"none"},
			SupportsMatrix:      false,
			SupportsPostFXRT:    true,
			SupportsOperatorsRT: true,
			MaxLEDs:             1000,
		},
		LEDImpl:   "#define MODULO_DATA_PIN 2\n" + fastledStripImpl,
		AudioImpl: commonAudioNone,
		LibDeps:   []string{"fastled/FastLED"},
		Board:     "pico",
		FQBN:      "rp2040:rp2040:rpipico",
	})

	r.Register(&Pack{
		ID:   "teensy-fastled-strip",
		Name: "Teensy 4.x (FastLED strip)",
		Arch: "teensy",
		Capabilities: Capabilities{
			DefaultLEDBackend:   "fastled",
			DefaultAudioBackend: "analog_mic",
			LEDBackends:         []string{"fastled"},
			AudioBackends:       []string{"none", "analog_mic"},
			SupportsMatrix:      false,
			SupportsPostFXRT:    true,
			SupportsOperatorsRT: true,
			MaxLEDs:             4000,
		},
		LEDImpl:   "#define MODULO_DATA_PIN 17\n" + fastledStripImpl,
		AudioImpl: analogMicAudioImpl,
		LibDeps:   []string{"fastled/FastLED"},
		Board:     "teensy41",
		FQBN:      "teensy:avr:teensy41",
	})

	return r
}
