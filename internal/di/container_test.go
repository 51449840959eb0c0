package di

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRegisterAndGet(t *testing.T) {
	c := New()
	c.Register("answer", 42)

	svc, err := c.Get("answer")
	require.NoError(t, err)
	require.Equal(t, 42, svc)
}

func TestBuilderRunsOnce(t *testing.T) {
	c := New()
	calls := 0
	c.RegisterBuilder("lazy", func(*Container) (interface{}, error) {
		calls++
		return "built", nil
	})

	for i := 0; i < 3; i++ {
		svc, err := c.Get("lazy")
		require.NoError(t, err)
		require.Equal(t, "built", svc)
	}
	require.Equal(t, 1, calls)
}

func TestBuilderMayResolveDependencies(t *testing.T) {
	c := New()
	c.Register("base", 10)
	c.RegisterBuilder("derived", func(c *Container) (interface{}, error) {
		base, err := c.Get("base")
		if err != nil {
			return nil, err
		}
		return base.(int) * 2, nil
	})
	c.RegisterBuilder("top", func(c *Container) (interface{}, error) {
		derived, err := c.Get("derived")
		if err != nil {
			return nil, err
		}
		return derived.(int) + 1, nil
	})

	svc, err := c.Get("top")
	require.NoError(t, err)
	require.Equal(t, 21, svc)
}

func TestFailedBuildIsRetried(t *testing.T) {
	c := New()
	calls := 0
	c.RegisterBuilder("flaky", func(*Container) (interface{}, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("boom")
		}
		return "ok", nil
	})

	_, err := c.Get("flaky")
	require.EqualError(t, err, "boom")

	svc, err := c.Get("flaky")
	require.NoError(t, err)
	require.Equal(t, "ok", svc)
}

func TestGetUnknownService(t *testing.T) {
	c := New()
	_, err := c.Get("ghost")
	require.Error(t, err)
	require.Contains(t, err.Error(), "ghost")
}

func TestMustGetPanics(t *testing.T) {
	c := New()
	require.Panics(t, func() { c.MustGet("ghost") })
}

func TestInstanceDoesNotBuild(t *testing.T) {
	c := New()
	c.RegisterBuilder("lazy", func(*Container) (interface{}, error) {
		return "built", nil
	})

	_, ok := c.Instance("lazy")
	require.False(t, ok)

	_, err := c.Get("lazy")
	require.NoError(t, err)

	svc, ok := c.Instance("lazy")
	require.True(t, ok)
	require.Equal(t, "built", svc)
}

func TestHasCoversBuildersAndInstances(t *testing.T) {
	c := New()
	c.Register("a", 1)
	c.RegisterBuilder("b", func(*Container) (interface{}, error) { return 2, nil })

	require.True(t, c.Has("a"))
	require.True(t, c.Has("b"))
	require.False(t, c.Has("c"))
	require.ElementsMatch(t, []string{"a", "b"}, c.ServiceNames())
}

func TestConcurrentGetBuildsOnce(t *testing.T) {
	c := New()
	var calls int
	var mu sync.Mutex
	c.RegisterBuilder("shared", func(*Container) (interface{}, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		return "one", nil
	})

	const workers = 16
	results := make(chan interface{}, workers)
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			svc, err := c.Get("shared")
			errs <- err
			results <- svc
		}()
	}
	wg.Wait()
	close(results)
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	for svc := range results {
		require.Equal(t, "one", svc)
	}
	require.Equal(t, 1, calls)
}
