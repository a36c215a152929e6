package output

import (
	"strings"
	"testing"
)

func TestColorSchemes(t *testing.T) {
	// Test DefaultColorScheme
	defaultScheme := DefaultColorScheme()
	if defaultScheme.Pass == nil {
		t.Error("DefaultColorScheme.Pass should not be nil")
	}
	if defaultScheme.Fail == nil {
		t.Error("DefaultColorScheme.Fail should not be nil")
	}
	if defaultScheme.Unscored == nil {
		t.Error("DefaultColorScheme.Unscored should not be nil")
	}
	if defaultScheme.Counter == nil {
		t.Error("DefaultColorScheme.Counter should not be nil")
	}
	if defaultScheme.Profile == nil {
		t.Error("DefaultColorScheme.Profile should not be nil")
	}
	if defaultScheme.Highlight == nil {
		t.Error("DefaultColorScheme.Highlight should not be nil")
	}

	// Test NoColorScheme
	noColorScheme := NoColorScheme()
	if noColorScheme.Pass == nil {
		t.Error("NoColorScheme.Pass should not be nil")
	}
	if noColorScheme.Fail == nil {
		t.Error("NoColorScheme.Fail should not be nil")
	}

	// Disabled colors render plain text
	if got := noColorScheme.Pass.Sprint("ok"); got != "ok" {
		t.Errorf("NoColorScheme should not emit escape codes, got %q", got)
	}
}

func TestIcons(t *testing.T) {
	if PassIcon(true) != "✓" {
		t.Errorf("PassIcon(true) = %q, want plain checkmark", PassIcon(true))
	}
	if FailIcon(true) != "✗" {
		t.Errorf("FailIcon(true) = %q, want plain cross", FailIcon(true))
	}
	if WarnIcon(true) != "⚠" {
		t.Errorf("WarnIcon(true) = %q, want plain warning sign", WarnIcon(true))
	}

	// Colored icons still contain the symbol
	if !strings.Contains(PassIcon(false), "✓") {
		t.Error("PassIcon(false) should contain the checkmark")
	}
	if !strings.Contains(FailIcon(false), "✗") {
		t.Error("FailIcon(false) should contain the cross")
	}
	if !strings.Contains(WarnIcon(false), "⚠") {
		t.Error("WarnIcon(false) should contain the warning sign")
	}
}
