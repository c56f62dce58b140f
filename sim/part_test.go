package sim_test

import (
	"testing"

	hw "github.com/db47h/hwsim"

	"github.com/Yeuph/Coil-Driver/sim"
)

type harness struct {
	c *hw.Circuit

	fwd, rev, rst      bool
	hsf, hsr, lsf, lsr bool
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{}
	c, err := hw.NewCircuit(
		hw.Input(func() bool { return h.fwd })("out=reqFwd"),
		hw.Input(func() bool { return h.rev })("out=reqRev"),
		hw.Input(func() bool { return h.rst })("out=reqRst"),
		sim.Bridge("fwd=reqFwd, rev=reqRev, rst=reqRst, hsf=outHSF, hsr=outHSR, lsf=outLSF, lsr=outLSR"),
		hw.Output(func(v bool) { h.hsf = v })("in=outHSF"),
		hw.Output(func(v bool) { h.hsr = v })("in=outHSR"),
		hw.Output(func(v bool) { h.lsf = v })("in=outLSF"),
		hw.Output(func(v bool) { h.lsr = v })("in=outLSR"),
	)
	if err != nil {
		t.Fatal(err)
	}
	h.c = c
	return h
}

func (h *harness) cycle() {
	h.c.TickTock()
}

func (h *harness) expect(t *testing.T, hsf, hsr, lsf, lsr bool) {
	t.Helper()
	if h.hsf != hsf || h.hsr != hsr || h.lsf != lsf || h.lsr != lsr {
		t.Fatalf("outputs = %v %v %v %v, want %v %v %v %v",
			h.hsf, h.hsr, h.lsf, h.lsr, hsf, hsr, lsf, lsr)
	}
}

func TestPartStartsFailsafe(t *testing.T) {
	h := newHarness(t)
	h.cycle()
	// flyback: both high sides on, both low sides off
	h.expect(t, true, true, false, false)
}

func TestPartForwardDrive(t *testing.T) {
	h := newHarness(t)
	h.cycle()

	h.fwd = true
	h.cycle()
	h.cycle() // output wires lag the controller by one cycle
	h.expect(t, true, false, true, false)

	h.fwd = false
	h.cycle()
	h.cycle()
	h.expect(t, true, true, false, false)
}

func TestPartReverseAfterDischarge(t *testing.T) {
	h := newHarness(t)
	h.cycle()

	// short forward pulse, then let the coil discharge
	h.fwd = true
	h.cycle()
	h.cycle()
	h.fwd = false
	for i := 0; i < 6; i++ {
		h.cycle()
	}

	h.rev = true
	h.cycle()
	h.cycle()
	h.expect(t, false, true, false, true)
}

func TestPartResetOverridesDrive(t *testing.T) {
	h := newHarness(t)
	h.cycle()

	h.fwd = true
	h.cycle()
	h.cycle()
	h.expect(t, true, false, true, false)

	h.rst = true
	h.cycle()
	h.cycle()
	h.expect(t, true, true, false, false)

	// requests are ignored while reset is held
	h.rev = true
	h.cycle()
	h.cycle()
	h.expect(t, true, true, false, false)
}
