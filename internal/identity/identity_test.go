package identity

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPolicy(t *testing.T) {
	p := Policy{Threshold: 0.6}
	assert.True(t, p.Accepts(Match{Matched: true, Confidence: 0.6}))
	assert.False(t, p.Accepts(Match{Matched: true, Confidence: 0.59}))
	assert.False(t, p.Accepts(Match{Matched: false, Confidence: 0.99}))
}

func TestMemoryLockoutWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewMemoryLockout(time.Minute)
	l.now = func() time.Time { return now }

	for i := 1; i <= 3; i++ {
		n, err := l.RecordFailure(ctx, "V001")
		require.NoError(t, err)
		assert.Equal(t, i, n)
	}
	n, _ := l.Failures(ctx, "V001")
	assert.Equal(t, 3, n)

	now = now.Add(time.Minute)
	n, _ = l.Failures(ctx, "V001")
	assert.Zero(t, n, "window expired")

	_, _ = l.RecordFailure(ctx, "V001")
	require.NoError(t, l.Reset(ctx, "V001"))
	n, _ = l.Failures(ctx, "V001")
	assert.Zero(t, n)
}

func TestHTTPVerifier(t *testing.T) {
	var got verifyRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/verify", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		if got.VoterID == "V500" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(Match{Matched: true, Confidence: 0.77})
	}))
	defer srv.Close()

	v := NewHTTPVerifier(srv.URL+"/", time.Second, srv.Client())

	t.Run("match", func(t *testing.T) {
		m, err := v.Verify(context.Background(), "V001", []byte{0xff, 0xd8})
		require.NoError(t, err)
		assert.Equal(t, Match{Matched: true, Confidence: 0.77}, m)
		assert.Equal(t, "V001", got.VoterID)
		assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xff, 0xd8}), got.Image)
	})

	t.Run("upstream error", func(t *testing.T) {
		_, err := v.Verify(context.Background(), "V500", []byte{1})
		assert.ErrorIs(t, err, ErrVerifierUnavailable)
	})
}

func TestHTTPVerifierTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	v := NewHTTPVerifier(srv.URL, 20*time.Millisecond, srv.Client())
	_, err := v.Verify(context.Background(), "V001", []byte{1})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInsecureDevVerifier(t *testing.T) {
	m, err := InsecureDevVerifier{}.Verify(context.Background(), "V001", []byte{1})
	require.NoError(t, err)
	assert.True(t, m.Matched)

	m, err = InsecureDevVerifier{}.Verify(context.Background(), "V001", nil)
	require.NoError(t, err)
	assert.False(t, m.Matched)
}
