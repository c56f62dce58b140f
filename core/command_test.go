package core

import (
	"testing"

	"github.com/Yeuph/Coil-Driver/protocol"
)

func TestCommandRegistry(t *testing.T) {
	registry := NewCommandRegistry()

	var called bool
	handler := func(data *[]byte) error {
		called = true
		return nil
	}

	id := registry.Register("test_command", "arg=%u", handler)
	if id != 0 {
		t.Errorf("Expected first command to have ID 0, got %d", id)
	}

	cmd, ok := registry.GetCommand(id)
	if !ok {
		t.Fatal("Failed to retrieve registered command")
	}
	if cmd.Name != "test_command" {
		t.Errorf("Expected command name 'test_command', got '%s'", cmd.Name)
	}

	var data []byte
	if err := registry.Dispatch(id, &data); err != nil {
		t.Errorf("Dispatch failed: %v", err)
	}
	if !called {
		t.Error("Command handler was not called")
	}

	if err := registry.Dispatch(999, &data); err == nil {
		t.Error("Expected error for unknown command ID")
	}
}

func TestRegisterIdempotent(t *testing.T) {
	registry := NewCommandRegistry()

	id1 := registry.Register("dup", "", nil)
	id2 := registry.Register("dup", "", nil)

	if id1 != id2 {
		t.Errorf("Re-registration must keep the ID: got %d then %d", id1, id2)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 registered command, got %d", registry.Count())
	}
}

func TestResponseHasNoHandler(t *testing.T) {
	registry := NewCommandRegistry()
	id := registry.Register("some_response", "value=%u", nil)

	var data []byte
	if err := registry.Dispatch(id, &data); err == nil {
		t.Error("Dispatching a response message must fail")
	}
}

func TestBootstrapCommandIDs(t *testing.T) {
	globalRegistry = NewCommandRegistry()
	globalDictionary = NewDictionary(globalRegistry)
	InitCoreCommands()

	// The host hardcodes these two IDs to fetch the dictionary
	cmd, ok := globalRegistry.GetCommandByName("identify_response")
	if !ok || cmd.ID != 0 {
		t.Errorf("identify_response must be ID 0, got %v ok=%v", cmd, ok)
	}
	cmd, ok = globalRegistry.GetCommandByName("identify")
	if !ok || cmd.ID != 1 {
		t.Errorf("identify must be ID 1, got %v ok=%v", cmd, ok)
	}
}

func TestGetCommandsAndResponses(t *testing.T) {
	registry := NewCommandRegistry()
	registry.Register("a_command", "oid=%c", func(data *[]byte) error { return nil })
	registry.Register("a_response", "oid=%c value=%u", nil)

	commands, responses := registry.GetCommandsAndResponses()

	if _, ok := commands["a_command oid=%c"]; !ok {
		t.Errorf("Command format missing from commands map: %v", commands)
	}
	if _, ok := responses["a_response oid=%c value=%u"]; !ok {
		t.Errorf("Response format missing from responses map: %v", responses)
	}
	if len(commands) != 1 || len(responses) != 1 {
		t.Errorf("Expected 1 command and 1 response, got %d and %d", len(commands), len(responses))
	}
}

func TestDispatchDecodesArguments(t *testing.T) {
	registry := NewCommandRegistry()

	var gotOID, gotValue uint32
	id := registry.Register("set_thing", "oid=%c value=%u", func(data *[]byte) error {
		var err error
		if gotOID, err = protocol.DecodeVLQUint(data); err != nil {
			return err
		}
		gotValue, err = protocol.DecodeVLQUint(data)
		return err
	})

	output := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(output, 3)
	protocol.EncodeVLQUint(output, 1234)
	data := output.Result()

	if err := registry.Dispatch(id, &data); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if gotOID != 3 || gotValue != 1234 {
		t.Errorf("Expected oid=3 value=1234, got oid=%d value=%d", gotOID, gotValue)
	}
}
