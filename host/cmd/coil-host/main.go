package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Yeuph/Coil-Driver/host/mcu"
	"github.com/Yeuph/Coil-Driver/host/serial"
)

var (
	device  = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud    = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	verbose = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	fmt.Println("Coil Driver Host")
	fmt.Println("================")

	conn := mcu.NewMCU()

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud

	fmt.Printf("Connecting to controller on %s...\n", *device)
	if err := conn.ConnectWithConfig(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	if err := conn.RetrieveDictionary(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to retrieve dictionary: %v\n", err)
		os.Exit(1)
	}

	if *verbose {
		conn.PrintDictionary()
	}

	fmt.Println("Connected. Type 'help' for commands, 'quit' to exit.")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if err := runCommand(conn, parts); err != nil {
			if err == errQuit {
				return
			}
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}
}

var errQuit = fmt.Errorf("quit")

func runCommand(conn *mcu.MCU, parts []string) error {
	switch parts[0] {
	case "quit", "exit", "q":
		return errQuit

	case "help", "?":
		printHelp()
		return nil

	case "dict":
		conn.PrintDictionary()
		return nil

	case "raw":
		raw := conn.GetDictionaryRaw()
		fmt.Printf("Raw dictionary (%d bytes):\n%s\n", len(raw), string(raw))
		return nil

	case "config":
		// config <oid> <hs_fwd> <hs_rev> <ls_fwd> <ls_rev> <cycle_ticks>
		args, err := parseUints(parts[1:], 6)
		if err != nil {
			return err
		}
		return conn.ConfigHBridge(uint8(args[0]), args[1], args[2], args[3], args[4], args[5])

	case "forward":
		oid, err := parseOID(parts)
		if err != nil {
			return err
		}
		return conn.SetRequests(oid, true, false)

	case "reverse":
		oid, err := parseOID(parts)
		if err != nil {
			return err
		}
		return conn.SetRequests(oid, false, true)

	case "release":
		oid, err := parseOID(parts)
		if err != nil {
			return err
		}
		return conn.SetRequests(oid, false, false)

	case "reset":
		// reset <oid> <0|1>
		args, err := parseUints(parts[1:], 2)
		if err != nil {
			return err
		}
		return conn.SetBridgeReset(uint8(args[0]), args[1] != 0)

	case "status":
		oid, err := parseOID(parts)
		if err != nil {
			return err
		}
		state, err := conn.QueryBridgeState(oid)
		if err != nil {
			return err
		}
		printState(state)
		return nil

	case "estop":
		return conn.EmergencyStop()

	case "uptime":
		return conn.SendCommand("get_uptime", nil)

	case "clock":
		return conn.SendCommand("get_clock", nil)

	default:
		return fmt.Errorf("unknown command: %s (type 'help')", parts[0])
	}
}

func printHelp() {
	fmt.Println("\nAvailable commands:")
	fmt.Println("  config <oid> <hs_fwd> <hs_rev> <ls_fwd> <ls_rev> <cycle_ticks>")
	fmt.Println("                  - Configure a bridge output")
	fmt.Println("  forward <oid>   - Drive forward")
	fmt.Println("  reverse <oid>   - Drive reverse")
	fmt.Println("  release <oid>   - Release both request lines (flyback)")
	fmt.Println("  reset <oid> <0|1> - Release/assert the controller reset")
	fmt.Println("  status <oid>    - Query controller diagnostics")
	fmt.Println("  estop           - Emergency stop (all bridges fail-safe)")
	fmt.Println("  uptime / clock  - Query controller timers")
	fmt.Println("  dict / raw      - Print the data dictionary")
	fmt.Println("  quit            - Exit")
	fmt.Println()
}

func printState(s *mcu.BridgeState) {
	dir := "reverse"
	if s.LastDirForward {
		dir = "forward"
	}
	fmt.Printf("bridge %d:\n", s.OID)
	fmt.Printf("  drive latches:  forward=%v reverse=%v\n", s.Forward, s.Reverse)
	fmt.Printf("  flyback latch:  %v\n", s.Flyback)
	fmt.Printf("  blocked:        %v\n", s.Blocked)
	fmt.Printf("  last direction: %s\n", dir)
	fmt.Printf("  on-counters:    fwd=%d rev=%d\n", s.ForwardOnTicks, s.ReverseOnTicks)
	fmt.Printf("  flyback ticks:  %d\n", s.FlybackTicks)
}

func parseOID(parts []string) (uint8, error) {
	if len(parts) < 2 {
		return 0, fmt.Errorf("usage: %s <oid>", parts[0])
	}
	v, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return 0, fmt.Errorf("bad oid %q: %w", parts[1], err)
	}
	return uint8(v), nil
}

func parseUints(parts []string, n int) ([]uint32, error) {
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d arguments, got %d", n, len(parts))
	}
	out := make([]uint32, n)
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad argument %q: %w", p, err)
		}
		out[i] = uint32(v)
	}
	return out, nil
}
