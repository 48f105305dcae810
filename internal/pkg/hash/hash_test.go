package hash

import (
	"strings"
	"testing"
)

func TestSHA256(t *testing.T) {
	tests := []struct {
		input []byte
		want  string
	}{
		{
			[]byte("hello"),
			"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		},
		{
			[]byte(""),
			"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		},
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := SHA256(tt.input); got != tt.want {
				t.Errorf("SHA256(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestSHA256Short(t *testing.T) {
	full := SHA256([]byte("hello"))

	if got := SHA256Short([]byte("hello"), 8); got != full[:8] {
		t.Errorf("SHA256Short(8) = %s, want %s", got, full[:8])
	}
	if got := SHA256Short([]byte("hello"), 1000); got != full {
		t.Errorf("SHA256Short(1000) = %s, want full hash", got)
	}
}

func TestSourceKey(t *testing.T) {
	a := SourceKey("go", "package main")
	if a != SourceKey("go", "package main") {
		t.Error("SourceKey() is not deterministic")
	}
	if a == SourceKey("python", "package main") {
		t.Error("SourceKey() ignores the language")
	}
	// the separator keeps ("ab", "c") and ("a", "bc") apart
	if SourceKey("ab", "c") == SourceKey("a", "bc") {
		t.Error("SourceKey() concatenates without a separator")
	}
	if SourceKeyString("go", "x") == "" {
		t.Error("SourceKeyString() returned empty string")
	}
}

func TestStorageKey(t *testing.T) {
	got := StorageKey("rice:syntax:structure", "go", "hello")
	want := "rice:syntax:structure:go:2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if got != want {
		t.Errorf("StorageKey() = %s, want %s", got, want)
	}
	if !strings.HasPrefix(StorageKey("p", "tsx", ""), "p:tsx:") {
		t.Error("StorageKey() lost its prefix")
	}
}
