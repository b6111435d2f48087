package sink

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileSinkConcatenates(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "out.264")
	s, err := NewFile(path)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	units := [][]byte{
		{0, 0, 1, 0x65, 0x01},
		{0, 0, 0, 1, 0x41, 0x02},
	}
	for _, au := range units {
		if err := s.WriteAccessUnit(au); err != nil {
			t.Fatalf("WriteAccessUnit: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := append(append([]byte(nil), units[0]...), units[1]...)
	if !bytes.Equal(got, want) {
		t.Errorf("file contents = %x, want %x", got, want)
	}
}

func TestMultiStopsAtFirstError(t *testing.T) {
	t.Parallel()
	var delivered [][]byte
	boom := errors.New("boom")
	calls := 0

	m := Multi{
		Func(func(au []byte) error {
			delivered = append(delivered, append([]byte(nil), au...))
			return nil
		}),
		Func(func([]byte) error { return boom }),
		Func(func([]byte) error { calls++; return nil }),
	}

	if err := m.WriteAccessUnit([]byte{1, 2, 3}); !errors.Is(err, boom) {
		t.Errorf("got %v, want boom", err)
	}
	if len(delivered) != 1 {
		t.Errorf("first sink saw %d units, want 1", len(delivered))
	}
	if calls != 0 {
		t.Error("sink after the failing one was invoked")
	}
}

func TestDiscard(t *testing.T) {
	t.Parallel()
	if err := Discard.WriteAccessUnit([]byte{1}); err != nil {
		t.Errorf("Discard: %v", err)
	}
}
