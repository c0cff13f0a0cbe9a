package journal

import "testing"

func TestScriptHash_Deterministic(t *testing.T) {
	a := ScriptHash("console.log('hi')")
	b := ScriptHash("console.log('hi')")
	if a != b {
		t.Errorf("hash not deterministic: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, expected 64 hex chars", len(a))
	}
}

func TestScriptHash_NFCNormalized(t *testing.T) {
	// "é" precomposed (U+00E9) vs decomposed (e + U+0301) must hash
	// identically.
	precomposed := "café"
	decomposed := "café"
	if ScriptHash(precomposed) != ScriptHash(decomposed) {
		t.Error("NFC-equivalent sources produced different hashes")
	}
}

func TestScriptHash_DistinctSources(t *testing.T) {
	if ScriptHash("a") == ScriptHash("b") {
		t.Error("distinct sources produced identical hashes")
	}
}
