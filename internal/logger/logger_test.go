package logger

import "testing"

func TestNew(t *testing.T) {
	for _, mode := range []string{"dev", "prod", ""} {
		l, err := New(mode, "debug")
		if err != nil {
			t.Fatalf("New(%q) error = %v", mode, err)
		}
		l.With("component", "test").Debug("hello", "k", 1)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New("dev", "loud"); err == nil {
		t.Error("New with invalid level should fail")
	}
}

func TestOrNop(t *testing.T) {
	l := OrNop(nil)
	if l == nil || l.SugaredLogger == nil {
		t.Fatal("OrNop(nil) returned an unusable logger")
	}
	l.Info("discarded")
}
