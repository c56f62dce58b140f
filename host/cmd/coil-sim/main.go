// coil-sim runs the bridge control core against a scripted request
// waveform and prints the resulting switch states tick by tick. It is a
// desk-check tool: no hardware or serial link involved.
//
// The scenario is a space-separated list of steps, each a letter and a
// tick count:
//
//	f10   hold the forward request for 10 ticks
//	r10   hold the reverse request for 10 ticks
//	b5    hold both requests for 5 ticks
//	i20   idle (no request) for 20 ticks
//	x3    hold the reset input for 3 ticks
//
// Example:
//
//	coil-sim -scenario "f20 i5 r20 i30"
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Yeuph/Coil-Driver/core"
)

type step struct {
	fwd, rev, rst bool
	ticks         int
}

func main() {
	scenario := flag.String("scenario", "f20 i40", "request waveform to play")
	quiet := flag.Bool("quiet", false, "only print ticks where outputs or mode change")
	flag.Parse()

	steps, err := parseScenario(*scenario)
	if err != nil {
		fmt.Fprintln(os.Stderr, "coil-sim:", err)
		os.Exit(1)
	}

	run(steps, *quiet)
}

func parseScenario(s string) ([]step, error) {
	var steps []step
	for _, tok := range strings.Fields(s) {
		if len(tok) < 2 {
			return nil, fmt.Errorf("step %q: want letter followed by tick count", tok)
		}
		n, err := strconv.Atoi(tok[1:])
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("step %q: bad tick count", tok)
		}
		st := step{ticks: n}
		switch tok[0] {
		case 'f':
			st.fwd = true
		case 'r':
			st.rev = true
		case 'b':
			st.fwd, st.rev = true, true
		case 'i':
		case 'x':
			st.rst = true
		default:
			return nil, fmt.Errorf("step %q: unknown step letter %q", tok, tok[0])
		}
		steps = append(steps, st)
	}
	if len(steps) == 0 {
		return nil, fmt.Errorf("empty scenario")
	}
	return steps, nil
}

func run(steps []step, quiet bool) {
	hb := core.NewHBridge()

	fmt.Println("tick  req      HSF HSR LSF LSR  mode      fwd_on rev_on fb_ticks")
	fmt.Println("----  ---      --- --- --- ---  ----      ------ ------ --------")

	tick := 0
	var last string
	for _, st := range steps {
		for i := 0; i < st.ticks; i++ {
			hb.Reset(st.rst)
			out := hb.Tick(st.fwd, st.rev)
			line := format(tick, st, out, hb)
			// strip the tick column when deciding whether anything changed
			if !quiet || line[6:] != last {
				fmt.Println(line)
			}
			last = line[6:]
			tick++
		}
	}
}

func format(tick int, st step, out core.Outputs, hb *core.HBridge) string {
	return fmt.Sprintf("%4d  %-7s  %s %s %s %s  %-8s  %6d %6d %8d",
		tick, reqName(st),
		onOff(out.HSForward), onOff(out.HSReverse),
		onOff(out.LSForward), onOff(out.LSReverse),
		modeName(hb),
		hb.ForwardOnTicks(), hb.ReverseOnTicks(), hb.FlybackTicks())
}

func reqName(st step) string {
	switch {
	case st.rst:
		return "reset"
	case st.fwd && st.rev:
		return "both"
	case st.fwd:
		return "forward"
	case st.rev:
		return "reverse"
	}
	return "-"
}

func modeName(hb *core.HBridge) string {
	switch {
	case hb.ResetActive():
		return "reset"
	case hb.DirectionBlocked():
		return "blocked"
	case hb.DriveForward():
		return "drive-f"
	case hb.DriveReverse():
		return "drive-r"
	case hb.InFlybackMode():
		return "flyback"
	}
	return "idle"
}

func onOff(v bool) string {
	if v {
		return " 1 "
	}
	return " . "
}
