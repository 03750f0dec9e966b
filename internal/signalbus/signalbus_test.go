package signalbus

import (
	"errors"
	"testing"
	"time"

	"github.com/andyleaver/modulo/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_UnknownKeyResolvesToZero(t *testing.T) {
	b, _ := Build(Inputs{WallClock: time.Now()}, &ClockState{}, nil)
	assert.Equal(t, 0.0, b.Get("does.not.exist"))
}

func TestBus_AudioAndVarsIngested(t *testing.T) {
	in := Inputs{
		Audio: AudioFrame{Energy: 0.5, Mono: [7]float64{0, 0, 0.25, 0, 0, 0, 0}},
		Vars: schema.Variables{
			Number: map[string]float64{"n": 3},
			Toggle: map[string]bool{"t": true},
		},
	}
	b, _ := Build(in, &ClockState{}, nil)
	assert.Equal(t, 0.5, b.Get("audio.energy"))
	assert.Equal(t, 0.25, b.Get("audio.mono2"))
	assert.Equal(t, 3.0, b.Get("vars.number.n"))
	assert.Equal(t, 1.0, b.Get("vars.toggle.t"))
}

func TestClockState_MinuteEdge(t *testing.T) {
	c := &ClockState{}
	base := time.Date(2026, 7, 29, 10, 0, 0, 0, time.UTC)

	b1, _ := Build(Inputs{WallClock: base}, c, nil)
	assert.Equal(t, 0.0, b1.Get("clock.minute_changed"), "first tick never reports a change")

	b2, _ := Build(Inputs{WallClock: base.Add(30 * time.Second)}, c, nil)
	assert.Equal(t, 0.0, b2.Get("clock.minute_changed"))

	b3, _ := Build(Inputs{WallClock: base.Add(61 * time.Second)}, c, nil)
	assert.Equal(t, 1.0, b3.Get("clock.minute_changed"))
}

func TestRegistry_ProviderFailureIsSwallowed(t *testing.T) {
	reg := NewRegistry()
	reg.Register("broken", []string{"mods.x"}, func(ctx *Context) (map[string]float64, error) {
		return nil, errors.New("boom")
	})
	reg.Register("panicky", []string{"mods.y"}, func(ctx *Context) (map[string]float64, error) {
		panic("kaboom")
	})
	reg.Register("good", []string{"mods.z"}, func(ctx *Context) (map[string]float64, error) {
		return map[string]float64{"mods.z": 42}, nil
	})
	reg.Freeze()

	b, warnings := Build(Inputs{}, &ClockState{}, reg)
	assert.Equal(t, 0.0, b.Get("mods.x"))
	assert.Equal(t, 0.0, b.Get("mods.y"))
	assert.Equal(t, 42.0, b.Get("mods.z"))
	assert.Len(t, warnings, 2)
}

func TestRegistry_FreezeForbidsLateRegistration(t *testing.T) {
	reg := NewRegistry()
	reg.Freeze()
	defer func() {
		r := recover()
		require.NotNil(t, r)
	}()
	reg.Register("late", nil, func(ctx *Context) (map[string]float64, error) { return nil, nil })
}

func TestRegistry_OwnershipViolationDropped(t *testing.T) {
	reg := NewRegistry()
	reg.Register("sneaky", []string{"mods.allowed"}, func(ctx *Context) (map[string]float64, error) {
		return map[string]float64{"mods.forbidden": 1}, nil
	})
	reg.Freeze()
	b, warnings := Build(Inputs{}, &ClockState{}, reg)
	assert.Equal(t, 0.0, b.Get("mods.forbidden"))
	assert.NotEmpty(t, warnings)
}
