package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveFormat(t *testing.T) {
	img := MediaAsset{Type: MediaImage, URL: "https://i/1.jpg"}
	img2 := MediaAsset{Type: MediaImage, URL: "https://i/2.jpg"}
	vid := MediaAsset{Type: MediaVideo, URL: "https://v/1.mp4"}

	tests := []struct {
		name    string
		media   []MediaAsset
		hint    AdFormat
		hasText bool
		want    AdFormat
	}{
		{"video wins", []MediaAsset{img, vid, img2}, FormatImage, false, FormatVideo},
		{"several images", []MediaAsset{img, img2}, FormatVideo, false, FormatCarousel},
		{"one image ignores hint", []MediaAsset{img}, FormatCollection, true, FormatImage},
		{"hint without media", nil, FormatCollection, true, FormatCollection},
		{"text fallback", nil, FormatUnknown, true, FormatText},
		{"invalid hint", nil, AdFormat("banner"), false, FormatUnknown},
		{"nothing", []MediaAsset{}, "", false, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveFormat(tt.media, tt.hint, tt.hasText))
		})
	}
}

func TestParseProvider(t *testing.T) {
	p, ok := ParseProvider("meta")
	assert.True(t, ok)
	assert.Equal(t, ProviderMeta, p)

	p, ok = ParseProvider("google")
	assert.True(t, ok)
	assert.Equal(t, ProviderGoogle, p)

	_, ok = ParseProvider("tiktok")
	assert.False(t, ok)
	_, ok = ParseProvider("Meta")
	assert.False(t, ok)
}

func TestNormalizeBrandKey(t *testing.T) {
	assert.Equal(t, "nike", NormalizeBrandKey("  NIKE\t"))
	assert.Equal(t, "acme co", NormalizeBrandKey("Acme Co"))
	// full-width letters fold to ASCII
	assert.Equal(t, "nike", NormalizeBrandKey("ＮＩＫＥ"))
	assert.Equal(t, "", NormalizeBrandKey("   "))
}

type timeoutErr struct{ timeout bool }

func (e timeoutErr) Error() string   { return "net" }
func (e timeoutErr) Timeout() bool   { return e.timeout }
func (e timeoutErr) Temporary() bool { return false }

var _ net.Error = timeoutErr{}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("list items: %w", NewFetchError(KindRateLimited, "slow down", nil))

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"fetch error", NewFetchError(KindActorNotFound, "missing", nil), KindActorNotFound},
		{"wrapped fetch error", wrapped, KindRateLimited},
		{"deadline", fmt.Errorf("run: %w", context.DeadlineExceeded), KindTimeout},
		{"net timeout", timeoutErr{timeout: true}, KindTimeout},
		{"net error", &net.OpError{Op: "dial", Err: errors.New("refused")}, KindNetworkError},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestFetchError(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewFetchError(KindNetworkError, "list items", cause)

	assert.Equal(t, "NETWORK_ERROR: list items: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "RUN_FAILED: status FAILED", NewFetchError(KindRunFailed, "status FAILED", nil).Error())
}

func TestErrorKind_IsRetryable(t *testing.T) {
	assert.True(t, KindNetworkError.IsRetryable())
	assert.True(t, KindTimeout.IsRetryable())
	assert.True(t, KindRateLimited.IsRetryable())
	assert.False(t, KindRunFailed.IsRetryable())
	assert.False(t, KindInvalidCredentials.IsRetryable())
	assert.False(t, KindUsageQuotaExceeded.IsRetryable())
}

func TestRetryable(t *testing.T) {
	assert.True(t, Retryable(NewFetchError(KindNetworkError, "reset", nil)))
	assert.True(t, Retryable(context.DeadlineExceeded))
	assert.False(t, Retryable(NewFetchError(KindRunFailed, "failed", nil)))
	assert.False(t, Retryable(NewRunError(KindTimeout, "run1", "still running", nil)))
	assert.False(t, Retryable(fmt.Errorf("wrapped: %w", NewRunError(KindNetworkError, "run1", "poll", nil))))
	assert.False(t, Retryable(nil))
}

func TestRunStatus_IsTerminal(t *testing.T) {
	for _, s := range []RunStatus{RunStatusSucceeded, RunStatusFailed, RunStatusTimedOut, RunStatusAborted} {
		assert.True(t, s.IsTerminal(), s)
	}
	for _, s := range []RunStatus{RunStatusReady, RunStatusRunning, RunStatusTimingOut, RunStatusAborting} {
		assert.False(t, s.IsTerminal(), s)
	}
}
