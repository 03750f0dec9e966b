// rulescodegen.go - emits modulo_eval_rules(), the generated C mirror of
// internal/rules.Evaluate. Every rule's trigger kind, condition list, and
// action are known at lowering time, so each rule compiles to a straight-line
// block rather than a runtime dispatch over TriggerKind/ActionKind - the
// firmware never branches on a schema tag it could resolve at export time.
package emitter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/andyleaver/modulo/internal/schema"
)

// generateRulesBody builds modulo_eval_rules(float t), the per-tick rule
// pass called from modulo_tick right after state_reset_layer. rules
// must already be in (name, id) order (lower() guarantees this) so
// RULE_PREV/RULE_LATCH slot assignment and write-reduction order match
// internal/rules.Evaluate exactly.
func generateRulesBody(rules []loweredRule, lp loweredProject) string {
	var b strings.Builder

	n := len(rules)
	arraySize := n
	if arraySize == 0 {
		arraySize = 1
	}
	fmt.Fprintf(&b, "static bool RULE_PREV[%d];\n", arraySize)
	fmt.Fprintf(&b, "static bool RULE_LATCH[%d];\n\n", arraySize)

	b.WriteString("static void modulo_eval_rules(float t) {\n")
	fmt.Fprintf(&b, "  (void)t;\n")
	if n == 0 {
		b.WriteString("}\n")
		return b.String()
	}

	numLayers := len(lp.Layers)
	for _, kind := range []string{"opacity", "brightness", "gain", "gamma"} {
		size := numLayers
		if size == 0 {
			size = 1
		}
		fmt.Fprintf(&b, "  bool %s_written[%d]; memset(%s_written, 0, sizeof(%s_written));\n", kind, size, kind, kind)
	}
	b.WriteString("  bool trail_written = false, bleed_written = false, bleedr_written = false;\n\n")

	for i, r := range rules {
		writeRuleBlock(&b, i, r, lp)
	}

	b.WriteString("}\n")
	return b.String()
}

func condExpr(r loweredRule) string {
	if len(r.CondSigs) == 0 {
		return "true"
	}
	parts := make([]string, len(r.CondSigs))
	for i, sig := range r.CondSigs {
		parts[i] = fmt.Sprintf("(signal_value(%d) %s %s)", sig, string(r.CondOps[i]), formatFloat(r.CondVals[i]))
	}
	joiner := " && "
	if !r.CondAll {
		joiner = " || "
	}
	return "(" + strings.Join(parts, joiner) + ")"
}

func writeRuleBlock(b *strings.Builder, i int, r loweredRule, lp loweredProject) {
	fmt.Fprintf(b, "  { // rule %d (%s)\n", i, r.ID)
	cond := condExpr(r)

	switch r.Trigger {
	case schema.TriggerTick:
		fmt.Fprintf(b, "    bool cond_ok = %s;\n", cond)
		fmt.Fprintf(b, "    bool fired = cond_ok;\n")

	case schema.TriggerRising:
		fmt.Fprintf(b, "    float cur = signal_value(%d);\n", r.TriggerSig)
		fmt.Fprintf(b, "    bool cond_ok = %s;\n", cond)
		b.WriteString("    bool now_on = cur > 0.5f;\n")
		fmt.Fprintf(b, "    bool fired = cond_ok && now_on && !RULE_PREV[%d];\n", i)
		fmt.Fprintf(b, "    RULE_PREV[%d] = now_on;\n", i)

	case schema.TriggerThreshold:
		fmt.Fprintf(b, "    float cur = signal_value(%d);\n", r.TriggerSig)
		fmt.Fprintf(b, "    bool cond_ok = %s;\n", cond)
		b.WriteString("    bool now_on;\n")
		switch r.Op {
		case schema.OpLT, schema.OpLE:
			fmt.Fprintf(b, "    float on_thr = %s - %s, off_thr = %s + %s;\n",
				formatFloat(r.Value), formatFloat(r.Hyst), formatFloat(r.Value), formatFloat(r.Hyst))
			fmt.Fprintf(b, "    if (RULE_LATCH[%d]) now_on = cur <= off_thr; else now_on = cur <= on_thr;\n", i)
		default:
			fmt.Fprintf(b, "    float on_thr = %s + %s, off_thr = %s - %s;\n",
				formatFloat(r.Value), formatFloat(r.Hyst), formatFloat(r.Value), formatFloat(r.Hyst))
			fmt.Fprintf(b, "    if (RULE_LATCH[%d]) now_on = cur >= off_thr; else now_on = cur >= on_thr;\n", i)
		}
		fmt.Fprintf(b, "    bool fired = cond_ok && now_on && !RULE_LATCH[%d];\n", i)
		fmt.Fprintf(b, "    RULE_LATCH[%d] = now_on;\n", i)

	default:
		b.WriteString("    bool fired = false;\n")
	}

	b.WriteString("    if (fired) {\n")
	writeAction(b, r, lp)
	b.WriteString("    }\n")
	b.WriteString("  }\n")
}

func exprValue(r loweredRule) string {
	var raw string
	if r.ExprIsSignal {
		raw = fmt.Sprintf("signal_value(%d)", r.ExprSignal)
	} else {
		raw = formatFloat(r.ExprConst)
	}
	v := fmt.Sprintf("(%s * %s + %s)", formatFloat(r.ExprScale), raw, formatFloat(r.ExprBias))
	if r.ExprAsBool {
		return fmt.Sprintf("(%s >= 0.5f ? 1.0f : 0.0f)", v)
	}
	return v
}

func varIndex(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

// conflictCode matches modulo_resolve_conflict's switch in the template.
func conflictCode(c schema.ConflictPolicy) int {
	switch c {
	case schema.ConflictFirst:
		return 1
	case schema.ConflictMax:
		return 2
	case schema.ConflictMin:
		return 3
	default:
		return 0
	}
}

func writeAction(b *strings.Builder, r loweredRule, lp loweredProject) {
	switch r.ActionKind {
	case schema.ActionFlipToggle:
		idx := varIndex(lp.ToggleVarNames, r.VarName)
		if idx < 0 {
			return
		}
		fmt.Fprintf(b, "      VAR_TOGGLE[%d] = !VAR_TOGGLE[%d];\n", idx, idx)

	case schema.ActionSetVar:
		v := exprValue(r)
		if r.VarIsToggle {
			idx := varIndex(lp.ToggleVarNames, r.VarName)
			if idx < 0 {
				return
			}
			fmt.Fprintf(b, "      VAR_TOGGLE[%d] = (%s) >= 0.5f;\n", idx, v)
		} else {
			idx := varIndex(lp.NumberVarNames, r.VarName)
			if idx < 0 {
				return
			}
			fmt.Fprintf(b, "      VAR_NUMBER[%d] = %s;\n", idx, v)
		}

	case schema.ActionAddVar:
		idx := varIndex(lp.NumberVarNames, r.VarName)
		if idx < 0 {
			return
		}
		fmt.Fprintf(b, "      VAR_NUMBER[%d] += %s;\n", idx, exprValue(r))

	case schema.ActionSetLayerParam:
		writeLayerParamAction(b, r)
	}
}

func writeLayerParamAction(b *strings.Builder, r loweredRule) {
	v := exprValue(r)
	conflict := conflictCode(r.Conflict)
	li := strconv.Itoa(r.LayerIndex)

	switch r.ParamCode {
	case 0: // opacity
		fmt.Fprintf(b, "      if (!opacity_written[%s]) { L_OPACITY[%s] = %s; opacity_written[%s] = true; }\n", li, li, v, li)
		fmt.Fprintf(b, "      else { L_OPACITY[%s] = modulo_resolve_conflict(L_OPACITY[%s], %s, %d); }\n", li, li, v, conflict)

	case 1: // brightness (L_PARAM slot 0, matching slotBrightness)
		fmt.Fprintf(b, "      if (!brightness_written[%s]) { L_PARAM[%s][0] = %s; brightness_written[%s] = true; }\n", li, li, v, li)
		fmt.Fprintf(b, "      else { L_PARAM[%s][0] = modulo_resolve_conflict(L_PARAM[%s][0], %s, %d); }\n", li, li, v, conflict)

	case 2: // op_gain
		if r.OpSlot < 0 {
			b.WriteString("      // no gain operator on this layer; write dropped\n")
			return
		}
		slot := fmt.Sprintf("(%s * OPS_PER_LAYER + %d)", li, r.OpSlot)
		fmt.Fprintf(b, "      if (!gain_written[%s]) { OP_ARG[%s] = %s; gain_written[%s] = true; }\n", li, slot, v, li)
		fmt.Fprintf(b, "      else { OP_ARG[%s] = modulo_resolve_conflict(OP_ARG[%s], %s, %d); }\n", slot, slot, v, conflict)

	case 3: // op_gamma
		if r.OpSlot < 0 {
			b.WriteString("      // no gamma operator on this layer; write dropped\n")
			return
		}
		slot := fmt.Sprintf("(%s * OPS_PER_LAYER + %d)", li, r.OpSlot)
		fmt.Fprintf(b, "      if (!gamma_written[%s]) { OP_ARG[%s] = %s; gamma_written[%s] = true; }\n", li, slot, v, li)
		fmt.Fprintf(b, "      else { OP_ARG[%s] = modulo_resolve_conflict(OP_ARG[%s], %s, %d); }\n", slot, slot, v, conflict)

	case 4: // postfx_trail
		fmt.Fprintf(b, "      if (!trail_written) { postfx_trail_amount = %s; trail_written = true; }\n", v)
		fmt.Fprintf(b, "      else { postfx_trail_amount = modulo_resolve_conflict(postfx_trail_amount, %s, %d); }\n", v, conflict)

	case 5: // postfx_bleed
		fmt.Fprintf(b, "      if (!bleed_written) { postfx_bleed_amount = %s; bleed_written = true; }\n", v)
		fmt.Fprintf(b, "      else { postfx_bleed_amount = modulo_resolve_conflict(postfx_bleed_amount, %s, %d); }\n", v, conflict)

	case 6: // postfx_bleed_radius
		fmt.Fprintf(b, "      if (!bleedr_written) { postfx_bleed_radius = (int)(%s); bleedr_written = true; }\n", v)
		fmt.Fprintf(b, "      else { postfx_bleed_radius = (int)modulo_resolve_conflict((float)postfx_bleed_radius, %s, %d); }\n", v, conflict)
	}
}

// generateSignalValueBody builds the switch body inside modulo_signal_value
// (called from signal_value() for ids >= 0). Only the signal names a
// firmware target can actually source live data for get a real case; every
// other name (derived audio features, discrete events, section identity)
// falls through to 0.0f, matching internal/signalbus.Bus.Get's "unknown key
// returns 0.0" contract for anything this firmware build doesn't wire up.
func generateSignalValueBody(lp loweredProject) string {
	var b strings.Builder
	b.WriteString("static float modulo_signal_value(int16_t id) {\n")
	b.WriteString("  switch (id) {\n")
	for i, name := range lp.Signals {
		if expr, ok := firmwareSignalExpr(name, lp); ok {
			fmt.Fprintf(&b, "    case %d: return %s; // %s\n", i, expr, name)
		}
	}
	b.WriteString("    default: return 0.0f;\n")
	b.WriteString("  }\n")
	b.WriteString("}\n")
	return b.String()
}

// firmwareSignalExpr maps a signal-bus name to the C expression that reads
// it, for the names a target pack's audio fragment actually populates
// (g_energy, g_mono/g_left/g_right bands) and the two project-local
// namespaces (vars.number.*, vars.toggle.*). Everything else - beat/onset
// events, tempo estimate, section id, per-band transient/peak - is left
// for modulo_signal_value's default case.
func firmwareSignalExpr(name string, lp loweredProject) (string, bool) {
	switch {
	case name == "audio.energy":
		return "g_energy", true
	case strings.HasPrefix(name, "audio.mono"):
		if n, ok := bandIndex(name, "audio.mono"); ok {
			return fmt.Sprintf("g_mono[%d]", n), true
		}
	case strings.HasPrefix(name, "audio.L"):
		if n, ok := bandIndex(name, "audio.L"); ok {
			return fmt.Sprintf("g_left[%d]", n), true
		}
	case strings.HasPrefix(name, "audio.R"):
		if n, ok := bandIndex(name, "audio.R"); ok {
			return fmt.Sprintf("g_right[%d]", n), true
		}
	case strings.HasPrefix(name, "vars.number."):
		if idx := varIndex(lp.NumberVarNames, strings.TrimPrefix(name, "vars.number.")); idx >= 0 {
			return fmt.Sprintf("VAR_NUMBER[%d]", idx), true
		}
	case strings.HasPrefix(name, "vars.toggle."):
		if idx := varIndex(lp.ToggleVarNames, strings.TrimPrefix(name, "vars.toggle.")); idx >= 0 {
			return fmt.Sprintf("(VAR_TOGGLE[%d] ? 1.0f : 0.0f)", idx), true
		}
	}
	return "", false
}

func bandIndex(name, prefix string) (int, bool) {
	suffix := strings.TrimPrefix(name, prefix)
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 || n > 6 {
		return 0, false
	}
	return n, true
}
