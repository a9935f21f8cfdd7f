package session

import (
	"os"
	"path/filepath"
	"testing"

	"pcmflash/pkg/vpw"
)

func TestReadKernelFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "read-kernel.bin")
	want := []byte{0x4E, 0x75, 0x00, 0x01, 0x02}
	if err := os.WriteFile(path, want, 0644); err != nil {
		t.Fatal(err)
	}

	r := ReadKernelFile(path)
	if !r.Ok() {
		t.Fatalf("read failed: %s (%s)", r.Status, r.Message)
	}
	if len(r.Value) != len(want) {
		t.Errorf("got %d bytes, want %d", len(r.Value), len(want))
	}
}

func TestReadKernelFileMissing(t *testing.T) {
	r := ReadKernelFile(filepath.Join(t.TempDir(), "no-such-kernel.bin"))
	if r.Status != vpw.Error {
		t.Fatalf("expected Error, got %s", r.Status)
	}
	if r.Message == "" {
		t.Error("missing files need a diagnostic")
	}
}
