package buffer_test

import (
	"errors"
	"testing"

	"github.com/mistlib/lowpan154/internal/buffer"
)

func TestAppendAdvancesCursor(t *testing.T) {
	t.Parallel()

	v := buffer.New(make([]byte, 8))

	if _, err := v.AppendU8(0xAA); err != nil {
		t.Fatalf("AppendU8: %v", err)
	}
	if _, err := v.AppendU16LE(0x1234); err != nil {
		t.Fatalf("AppendU16LE: %v", err)
	}

	if got, want := v.Cursor(), 3; got != want {
		t.Fatalf("cursor = %d, want %d", got, want)
	}

	want := []byte{0xAA, 0x34, 0x12}
	if got := v.Bytes(); string(got) != string(want) {
		t.Fatalf("bytes = % x, want % x", got, want)
	}
}

func TestReserveFailsLeavesCursorUnchanged(t *testing.T) {
	t.Parallel()

	v := buffer.New(make([]byte, 4))

	if _, err := v.AppendU8(1); err != nil {
		t.Fatalf("AppendU8: %v", err)
	}
	before := v.Cursor()

	if _, err := v.Reserve(10); !errors.Is(err, buffer.ErrCapacityExceeded) {
		t.Fatalf("Reserve: err = %v, want ErrCapacityExceeded", err)
	}

	if v.Cursor() != before {
		t.Fatalf("cursor changed after failed reserve: %d != %d", v.Cursor(), before)
	}
}

func TestReadDoesNotAdvanceCursor(t *testing.T) {
	t.Parallel()

	v := buffer.New(make([]byte, 8))
	if _, err := v.AppendU32LE(0xDEADBEEF); err != nil {
		t.Fatalf("AppendU32LE: %v", err)
	}

	got, err := v.ReadU32LE(0)
	if err != nil {
		t.Fatalf("ReadU32LE: %v", err)
	}
	if got != 0xDEADBEEF {
		t.Fatalf("ReadU32LE = %#x, want %#x", got, 0xDEADBEEF)
	}
	if v.Cursor() != 4 {
		t.Fatalf("cursor moved by read: %d", v.Cursor())
	}
}

func TestReadOutOfRange(t *testing.T) {
	t.Parallel()

	v := buffer.New(make([]byte, 4))
	if _, err := v.ReadU64LE(0); !errors.Is(err, buffer.ErrOutOfRange) {
		t.Fatalf("ReadU64LE: err = %v, want ErrOutOfRange", err)
	}
}

func TestSliceAndWriteAt(t *testing.T) {
	t.Parallel()

	v := buffer.New(make([]byte, 8))
	if _, err := v.AppendBytes([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("AppendBytes: %v", err)
	}

	if err := v.WriteU16LEAt(0, 0xBEEF); err != nil {
		t.Fatalf("WriteU16LEAt: %v", err)
	}

	got, err := v.Slice(0, 4)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	want := []byte{0xEF, 0xBE, 3, 4}
	if string(got) != string(want) {
		t.Fatalf("slice = % x, want % x", got, want)
	}
}

func TestRewindTo(t *testing.T) {
	t.Parallel()

	v := buffer.New(make([]byte, 8))
	if _, err := v.AppendU32LE(1); err != nil {
		t.Fatalf("AppendU32LE: %v", err)
	}

	if err := v.RewindTo(0); err != nil {
		t.Fatalf("RewindTo: %v", err)
	}
	if v.Cursor() != 0 {
		t.Fatalf("cursor = %d, want 0", v.Cursor())
	}

	if err := v.RewindTo(100); !errors.Is(err, buffer.ErrOutOfRange) {
		t.Fatalf("RewindTo(100): err = %v, want ErrOutOfRange", err)
	}
}
