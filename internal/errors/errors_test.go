package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestMDHError_Error(t *testing.T) {
	err := New(ErrCategoryNotFound, CodeCollectionNotFound, "collection graphs not found")
	expected := "[NOT_FOUND:COLLECTION_NOT_FOUND] collection graphs not found"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestMDHError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(ErrCategoryTransport, CodeRequestFailed, "GET /query/graphs/", cause)
	expected := "[TRANSPORT:REQUEST_FAILED] GET /query/graphs/: connection refused"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestMDHError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryExport, CodeExportFailed, "page 3", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestMDHError_Is(t *testing.T) {
	err1 := New(ErrCategoryExport, CodeExportCancelled, "first")
	err2 := New(ErrCategoryExport, CodeExportCancelled, "second")
	err3 := New(ErrCategoryExport, CodeExportRunning, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
	wrapped := fmt.Errorf("run: %w", err1)
	if !errors.Is(wrapped, err2) {
		t.Error("Is should see through fmt.Errorf wrapping")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryTransport, CodeRequestFailed, true},
		{ErrCategoryTransport, CodeRequestTimeout, true},
		{ErrCategoryTransport, CodeBadStatus, false},
		{ErrCategoryTransport, CodeDecodeFailed, false},
		{ErrCategoryStorage, CodeUploadFailed, true},
		{ErrCategoryNotFound, CodeCollectionNotFound, false},
		{ErrCategoryValidation, CodeValidationRejected, false},
		{ErrCategoryCodec, CodeUnknownCodec, false},
		{ErrCategoryExport, CodeExportCancelled, false},
		{ErrCategoryInternal, CodeUnexpected, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestIsNotFoundAndCancelled(t *testing.T) {
	nf := fmt.Errorf("fetch: %w", NewNotFoundError(CodeItemNotFound, "item 7"))
	if !IsNotFound(nf) {
		t.Error("wrapped not-found should be detected")
	}
	if IsNotFound(NewTransportError(CodeBadStatus, "500", nil)) {
		t.Error("transport failure must not look like not-found")
	}

	c := NewExportError(CodeExportCancelled, "stopped by caller", nil)
	if !IsCancelled(c) {
		t.Error("cancellation should be detected")
	}
	if IsCancelled(NewExportError(CodeExportFailed, "boom", nil)) {
		t.Error("failure must not look like cancellation")
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryCodec, CodeUnknownCodec, "Codec Foo is not known")
	if GetCategory(err) != ErrCategoryCodec {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryCodec)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-MDHError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryCodec, CodeUnknownCodec, "Codec Foo is not known")
	if GetCode(err) != CodeUnknownCodec {
		t.Errorf("got %q, want %q", GetCode(err), CodeUnknownCodec)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-MDHError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategoryValidation, CodeValidationRejected, "bad filter")
	detailed := err.WithDetails(map[string]interface{}{"slug": "n"})

	if detailed.Details["slug"] != "n" {
		t.Error("WithDetails should set details")
	}
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	v := NewValidationError(CodeInvalidRequest, "missing slug")
	if v.Category != ErrCategoryValidation || v.Code != CodeInvalidRequest {
		t.Error("NewValidationError mismatch")
	}

	tr := NewTransportError(CodeRequestFailed, "dial", cause)
	if tr.Category != ErrCategoryTransport || !errors.Is(tr, cause) {
		t.Error("NewTransportError mismatch")
	}

	s := NewStorageError(CodeUploadFailed, "s3 down", cause)
	if s.Category != ErrCategoryStorage || !errors.Is(s, cause) {
		t.Error("NewStorageError mismatch")
	}

	c := NewCodecError(CodeUnknownCodec, "nope")
	if c.Category != ErrCategoryCodec {
		t.Error("NewCodecError mismatch")
	}

	i := NewInternalError("unexpected", cause)
	if i.Category != ErrCategoryInternal || i.Code != CodeUnexpected {
		t.Error("NewInternalError mismatch")
	}
}
