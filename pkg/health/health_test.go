package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCheckStatusCodes(t *testing.T) {
	cases := []struct {
		code    int
		healthy bool
	}{
		{200, true},
		{204, true},
		{404, true},
		{418, true},
		{500, false},
		{502, false},
		{503, false},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.code)
		}))

		c := NewChecker()
		require.Equal(t, tc.healthy, c.Check(context.Background(), srv.URL), "status %d", tc.code)
		srv.Close()
	}
}

func TestCheckConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewChecker()
	require.False(t, c.Check(context.Background(), url))
}

func TestCheckTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	c := &Checker{Timeout: 50 * time.Millisecond}
	require.False(t, c.Check(context.Background(), srv.URL))
}

func TestCheckBadURL(t *testing.T) {
	c := &Checker{Timeout: 100 * time.Millisecond}
	require.False(t, c.Check(context.Background(), "http://voicectl-no-such-host.invalid:1/"))
	require.False(t, c.Check(context.Background(), "://not-a-url"))
}

func TestWaitReadyZeroBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := &Checker{Timeout: time.Second, Interval: time.Millisecond}
	require.False(t, c.WaitReady(context.Background(), "svc", srv.URL, 0))
	require.Equal(t, int32(0), hits.Load())
}

func TestWaitReadyFirstProbe(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c := &Checker{Timeout: time.Second, Interval: time.Millisecond}
	require.True(t, c.WaitReady(context.Background(), "svc", srv.URL, 5))
	require.Equal(t, int32(1), hits.Load())
}

func TestWaitReadyEventuallyHealthy(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := &Checker{Timeout: time.Second, Interval: 5 * time.Millisecond}
	require.True(t, c.WaitReady(context.Background(), "svc", srv.URL, 10))
	require.Equal(t, int32(3), hits.Load())
}

func TestWaitReadyExhaustsBudget(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := &Checker{Timeout: time.Second, Interval: time.Millisecond}
	require.False(t, c.WaitReady(context.Background(), "svc", srv.URL, 4))
	require.Equal(t, int32(4), hits.Load())
}

func TestWaitReadyCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := &Checker{Timeout: time.Second, Interval: time.Hour}
	start := time.Now()
	require.False(t, c.WaitReady(ctx, "svc", srv.URL, 3))
	require.Less(t, time.Since(start), time.Second)
}
