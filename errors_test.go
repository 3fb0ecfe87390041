package reactorkv

import (
	"errors"
	"syscall"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := NewError("dict.Add", ErrCodeDuplicateKey, "key already present")
	want := "dict.Add: duplicate_key: key already present"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	a := NewError("op1", ErrCodeCapacity, "msg1")
	b := NewError("op2", ErrCodeCapacity, "msg2")
	c := NewError("op3", ErrCodeInvalidArgument, "msg3")

	if !errors.Is(a, b) {
		t.Fatal("errors with the same Code should satisfy errors.Is")
	}
	if errors.Is(a, c) {
		t.Fatal("errors with different Codes should not satisfy errors.Is")
	}
}

func TestWrapErrorPreservesInnerViaUnwrap(t *testing.T) {
	inner := errors.New("boom")
	wrapped := WrapError("reactor.poll", ErrCodeIOError, inner)
	if !errors.Is(wrapped, inner) {
		t.Fatal("Unwrap chain should reach the wrapped inner error")
	}
}

func TestMapErrnoToCode(t *testing.T) {
	tests := []struct {
		name  string
		errno syscall.Errno
		want  ErrorCode
	}{
		{"ENOMEM", syscall.ENOMEM, ErrCodeCapacity},
		{"ENOSPC", syscall.ENOSPC, ErrCodeCapacity},
		{"EINVAL", syscall.EINVAL, ErrCodeInvalidArgument},
		{"EBADF", syscall.EBADF, ErrCodeInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewErrorWithErrno("op", tt.errno)
			if err.Code != tt.want {
				t.Fatalf("mapErrnoToCode(%v) = %v, want %v", tt.errno, err.Code, tt.want)
			}
		})
	}
}

func TestIsCode(t *testing.T) {
	err := NewError("dict.Add", ErrCodeDuplicateKey, "x")
	if !IsCode(err, ErrCodeDuplicateKey) {
		t.Fatal("IsCode should match the error's own code")
	}
	if IsCode(err, ErrCodeCapacity) {
		t.Fatal("IsCode should not match an unrelated code")
	}
	if IsCode(errors.New("plain"), ErrCodeDuplicateKey) {
		t.Fatal("IsCode should report false for a non-*Error")
	}
}
