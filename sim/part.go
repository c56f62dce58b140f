// Package sim exposes the bridge controller as a clocked hwsim part so
// it can be dropped into a simulated circuit next to gate-level models.
//
// The part behaves like a DFF: output wires carry the switch enables
// computed on the previous clock cycle, and the controller advances one
// tick on each falling edge (tock).
package sim

import (
	hw "github.com/db47h/hwsim"

	"github.com/Yeuph/Coil-Driver/core"
)

const (
	pFwd = "fwd"
	pRev = "rev"
	pRst = "rst"
	pHSF = "hsf"
	pHSR = "hsr"
	pLSF = "lsf"
	pLSR = "lsr"
)

// Bridge returns a bridge controller part for use in a circuit.
//
//	Inputs:  fwd, rev, rst
//	Outputs: hsf, hsr, lsf, lsr
func Bridge(c string) hw.Part {
	return bridgeSpec.NewPart(c)
}

var bridgeSpec = &hw.PartSpec{
	Name:    "HBridgeCtrl",
	Inputs:  []string{pFwd, pRev, pRst},
	Outputs: []string{pHSF, pHSR, pLSF, pLSR},
	Mount: func(s *hw.Socket) hw.Updater {
		b := &bridgePart{
			fwd: s.Wire(pFwd),
			rev: s.Wire(pRev),
			rst: s.Wire(pRst),
			hsf: s.Wire(pHSF),
			hsr: s.Wire(pHSR),
			lsf: s.Wire(pLSF),
			lsr: s.Wire(pLSR),
			hb:  core.NewHBridge(),
		}
		b.out = b.hb.Outputs()
		return b
	}}

type bridgePart struct {
	fwd, rev, rst      *hw.Wire
	hsf, hsr, lsf, lsr *hw.Wire

	hb  *core.HBridge
	out core.Outputs
}

func (b *bridgePart) Update(clk bool) {
	// send before receiving to break feedback loops, like the DFF
	b.hsf.Send(clk, b.out.HSForward)
	b.hsr.Send(clk, b.out.HSReverse)
	b.lsf.Send(clk, b.out.LSForward)
	b.lsr.Send(clk, b.out.LSReverse)
}

func (b *bridgePart) PostUpdate(clk bool) {
	fwd := b.fwd.Recv(clk)
	rev := b.rev.Recv(clk)
	rst := b.rst.Recv(clk)
	// state advances on tocks only
	if !clk {
		b.hb.Reset(rst)
		b.out = b.hb.Tick(fwd, rev)
	}
}
