package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "moodle-assistant/internal/common/errors"
	"moodle-assistant/internal/common/logger"
	"moodle-assistant/internal/common/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, retry int) (*Cache, *time.Time) {
	t.Helper()
	c := New(Options{Retry: retry, RetryDelay: time.Millisecond}, logger.NewTestLogger(t))
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestFetch_FreshWithinStaleTime(t *testing.T) {
	c, now := newTestCache(t, 1)
	ctx := context.Background()

	var calls int32
	fetch := func(context.Context) ([]string, error) {
		atomic.AddInt32(&calls, 1)
		return []string{"Biology"}, nil
	}

	hitsBefore := testutil.ToFloat64(metrics.QueryCacheLookups.WithLabelValues("hit"))

	v, err := Fetch(ctx, c, "courses", fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"Biology"}, v)

	*now = now.Add(4 * time.Minute)
	_, err = Fetch(ctx, c, "courses", fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, hitsBefore+1, testutil.ToFloat64(metrics.QueryCacheLookups.WithLabelValues("hit")))

	*now = now.Add(time.Minute)
	_, err = Fetch(ctx, c, "courses", fetch)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_RetriesTransientOnce(t *testing.T) {
	c, _ := newTestCache(t, 1)

	var calls int32
	v, err := Fetch(context.Background(), c, "courses", func(context.Context) (int, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return 0, apperrors.NewTransportError("test", errors.New("connection refused"))
		}
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFetch_GivesUpAfterRetry(t *testing.T) {
	c, _ := newTestCache(t, 1)

	var calls int32
	_, err := Fetch(context.Background(), c, "courses", func(context.Context) (int, error) {
		atomic.AddInt32(&calls, 1)
		return 0, apperrors.NewAPIError(503, "")
	})

	require.Error(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Zero(t, c.Len())
}

func TestFetch_NoRetryOnClientErrors(t *testing.T) {
	for _, err := range []error{
		apperrors.NewUnauthorizedError(""),
		apperrors.NewAPIError(404, "Course not found"),
		errors.New("plain"),
	} {
		c, _ := newTestCache(t, 3)
		var calls int32
		_, got := Fetch(context.Background(), c, "course:1", func(context.Context) (int, error) {
			atomic.AddInt32(&calls, 1)
			return 0, err
		})
		assert.Equal(t, err, got)
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	}
}

func TestFetch_SharesInFlightCall(t *testing.T) {
	c, _ := newTestCache(t, 0)
	release := make(chan struct{})
	var calls int32

	var wg sync.WaitGroup
	results := make([]int, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Fetch(context.Background(), c, "courses", func(context.Context) (int, error) {
				atomic.AddInt32(&calls, 1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
}

func TestClear_DropsEntriesAndInFlightResults(t *testing.T) {
	c, _ := newTestCache(t, 0)
	ctx := context.Background()

	_, err := Fetch(ctx, c, "courses", func(context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	c.Clear()
	assert.Zero(t, c.Len())

	_, err = Fetch(ctx, c, "course:1", func(context.Context) (int, error) {
		c.Clear()
		return 2, nil
	})
	require.NoError(t, err)
	assert.Zero(t, c.Len())
}

func TestClear_LaterFetchDoesNotJoinPriorCall(t *testing.T) {
	c, _ := newTestCache(t, 0)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	first := make(chan string, 1)
	go func() {
		v, err := Fetch(ctx, c, "courses", func(context.Context) (string, error) {
			close(started)
			<-release
			return "previous-user-courses", nil
		})
		assert.NoError(t, err)
		first <- v
	}()
	<-started

	c.Clear()

	v, err := Fetch(ctx, c, "courses", func(context.Context) (string, error) {
		return "new-user-courses", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new-user-courses", v)

	close(release)
	assert.Equal(t, "previous-user-courses", <-first)

	cached, err := Fetch(ctx, c, "courses", func(context.Context) (string, error) {
		return "refetched", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "new-user-courses", cached)
}

func TestInvalidate_Prefix(t *testing.T) {
	c, _ := newTestCache(t, 0)
	ctx := context.Background()
	for _, key := range []string{"course:1", "course:2", "course-contents:1", "courses"} {
		_, err := Fetch(ctx, c, key, func(context.Context) (string, error) { return key, nil })
		require.NoError(t, err)
	}

	c.Invalidate("course:")
	assert.Equal(t, 2, c.Len())
}

func TestFetch_ContextCancelledDuringRetryWait(t *testing.T) {
	c := New(Options{Retry: 1, RetryDelay: time.Hour}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := Fetch(ctx, c, "courses", func(context.Context) (int, error) {
			return 0, apperrors.NewTimeoutError("test", context.DeadlineExceeded)
		})
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeTimeout))
	case <-time.After(2 * time.Second):
		t.Fatal("fetch did not stop on cancellation")
	}
}
