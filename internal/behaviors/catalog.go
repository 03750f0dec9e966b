// catalog.go - the single registration point for the fixed behavior
// catalog. Every behavior that ships is registered here, in a fixed order.
// The generated C++ dispatch switch keys on each behavior's ArduinoID from
// its Capabilities, not on its position in this list.
//
// Behaviors withheld from the catalog are recorded as commented-out
// entries below rather than silently dropped — the quarantine
// policy (SPEC_FULL.md "Supplemented Features" #1, grounded on
// original_source/behaviors/auto_load.py's audit step, which silently
// skips any effect module whose render() returns an all-black frame under
// the startup self-test).

package behaviors

// Default returns a freshly built, frozen Catalog with every shipped
// behavior registered. Call once at process startup.
func Default() *Catalog {
	c := NewCatalog()
	c.Register(solidBehavior{})
	c.Register(rainbowBehavior{})
	c.Register(chaseBehavior{})
	c.Register(scannerBehavior{arduinoID: 10})
	c.Register(fireBehavior{})
	c.Register(sparkleBehavior{})
	c.Register(twinkleBehavior{base: sparkleBehavior{}})
	c.Register(plasmaBehavior{})
	c.Register(pulseBehavior{})
	c.Register(swarmBehavior{})
	c.Register(cylonBehavior{base: scannerBehavior{arduinoID: 10}})
	c.Register(scriptedBehavior{})

	// QUARANTINED: original_source carried a "strobe" effect whose render()
	// output was indistinguishable from solid at every audited duty cycle
	// (the audit in auto_load.py flags anything whose frame-to-frame
	// delta never exceeds its own noise floor); it was not ported, so no
	// strobeBehavior type exists and the line below only records the entry.
	//
	// c.Register(strobeBehavior{})
	//
	// QUARANTINED: "confetti_v1", an earlier attempt at sparkle that wrote
	// into a fixed-size ring buffer independent of numLEDs, produced a
	// blank frame on any layout shorter than the buffer. Superseded by
	// sparkleBehavior above; kept here only as a note, the source was
	// never committed.

	c.Freeze()
	return c
}
