package core

import (
	"encoding/json"
	"testing"

	"github.com/Yeuph/Coil-Driver/tinycompress"
)

func setupDictionary() {
	globalRegistry = NewCommandRegistry()
	globalDictionary = NewDictionary(globalRegistry)
}

func TestDictionaryJSON(t *testing.T) {
	setupDictionary()

	RegisterCommand("config_hbridge", "oid=%c cycle_ticks=%u", func(data *[]byte) error { return nil })
	RegisterResponse("hbridge_state", "oid=%c flyback=%c")
	RegisterConstant("CLOCK_FREQ", 12000000)
	RegisterConstant("MCU", "rp2040")
	RegisterEnumeration("pin", []string{"gpio0", "gpio1", "gpio2"})

	raw := globalDictionary.Generate()

	var dict struct {
		Version      string                    `json:"version"`
		Config       map[string]string         `json:"config"`
		Commands     map[string]int            `json:"commands"`
		Responses    map[string]int            `json:"responses"`
		Enumerations map[string]map[string]int `json:"enumerations"`
	}
	if err := json.Unmarshal(raw, &dict); err != nil {
		t.Fatalf("Dictionary is not valid JSON: %v\n%s", err, raw)
	}

	if dict.Version == "" {
		t.Error("Dictionary version missing")
	}
	if dict.Config["CLOCK_FREQ"] != "12000000" {
		t.Errorf("CLOCK_FREQ constant wrong: %v", dict.Config)
	}
	if dict.Config["MCU"] != "rp2040" {
		t.Errorf("MCU constant wrong: %v", dict.Config)
	}
	if id, ok := dict.Commands["config_hbridge oid=%c cycle_ticks=%u"]; !ok || id != 0 {
		t.Errorf("Command entry wrong: %v", dict.Commands)
	}
	if id, ok := dict.Responses["hbridge_state oid=%c flyback=%c"]; !ok || id != 1 {
		t.Errorf("Response entry wrong: %v", dict.Responses)
	}
	if dict.Enumerations["pin"]["gpio1"] != 1 {
		t.Errorf("Enumeration entry wrong: %v", dict.Enumerations)
	}
}

func TestDictionaryCompression(t *testing.T) {
	setupDictionary()

	RegisterCommand("identify", "offset=%u count=%c", func(data *[]byte) error { return nil })

	uncompressed := globalDictionary.Generate()
	globalDictionary.BuildDictionary()
	compressed := globalDictionary.Generate()

	if len(compressed) == 0 {
		t.Fatal("Compressed dictionary is empty")
	}

	expanded, err := tinycompress.Decompress(compressed)
	if err != nil {
		t.Fatalf("Decompress failed: %v", err)
	}
	if string(expanded) != string(uncompressed) {
		t.Error("Compressed dictionary does not round trip")
	}
}

func TestDictionaryGetChunk(t *testing.T) {
	setupDictionary()

	RegisterCommand("identify", "offset=%u count=%c", func(data *[]byte) error { return nil })
	globalDictionary.BuildDictionary()

	full := globalDictionary.Generate()

	// Reassemble via chunked reads the way the host does
	var rebuilt []byte
	offset := uint32(0)
	for {
		chunk := globalDictionary.GetChunk(offset, 8)
		if len(chunk) == 0 {
			break
		}
		rebuilt = append(rebuilt, chunk...)
		offset += uint32(len(chunk))
	}

	if string(rebuilt) != string(full) {
		t.Errorf("Chunked read mismatch: %d vs %d bytes", len(rebuilt), len(full))
	}

	// Out-of-range reads return empty
	if chunk := globalDictionary.GetChunk(uint32(len(full))+10, 8); len(chunk) != 0 {
		t.Errorf("Expected empty chunk past the end, got %d bytes", len(chunk))
	}

	// A chunk straddling the end is clamped
	if len(full) > 3 {
		chunk := globalDictionary.GetChunk(uint32(len(full))-3, 8)
		if len(chunk) != 3 {
			t.Errorf("Expected clamped 3-byte chunk, got %d bytes", len(chunk))
		}
	}
}
