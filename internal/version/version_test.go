package version

import (
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	v, c, d := Info()
	switch {
	case v == "":
		t.Error("version should not be empty")
	case c == "":
		t.Error("commit should not be empty")
	case d == "":
		t.Error("date should not be empty")
	}
}

func TestString(t *testing.T) {
	s := String()
	if !strings.Contains(s, "version=") || !strings.Contains(s, "commit=") {
		t.Errorf("unexpected version string: %q", s)
	}
}

func TestGetters(t *testing.T) {
	if GetVersion() == "" || GetCommit() == "" || GetDate() == "" {
		t.Error("getters should not return empty strings")
	}
}
