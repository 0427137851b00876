package entropy

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	name    string
	local   bool
	payload []byte
	err     error
}

func (s *fakeSource) Name() string { return s.name }
func (s *fakeSource) Local() bool  { return s.local }
func (s *fakeSource) Fetch(ctx context.Context) ([]byte, error) {
	return s.payload, s.err
}

func TestCollectDeterministicFolding(t *testing.T) {
	a := &fakeSource{name: "a", payload: []byte("payload-a")}
	b := &fakeSource{name: "b", payload: []byte("payload-b")}

	first, err := Collect(context.Background(), []Source{a, b}, 4, nil)
	require.NoError(t, err)
	assert.Len(t, first, 4*32)

	// reversed request order must produce the identical buffer
	second, err := Collect(context.Background(), []Source{b, a}, 4, nil)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(first, second), "folding must be canonical, not arrival ordered")

	// different payloads must produce a different buffer
	b.payload = []byte("different")
	third, err := Collect(context.Background(), []Source{a, b}, 4, nil)
	require.NoError(t, err)
	assert.False(t, bytes.Equal(first, third))
}

func TestCollectToleratesPartialFailure(t *testing.T) {
	good := &fakeSource{name: "good", local: true, payload: []byte("fine")}
	bad := &fakeSource{name: "bad", err: errors.New("connection refused")}

	var settled []*Result
	buf, err := Collect(context.Background(), []Source{good, bad}, 2, func(r *Result) {
		settled = append(settled, r)
	})
	require.NoError(t, err)
	assert.Len(t, buf, 2*32)

	require.Len(t, settled, 2)
	outcomes := map[string]bool{}
	for _, r := range settled {
		outcomes[r.Source] = r.OK
	}
	assert.True(t, outcomes["good"])
	assert.False(t, outcomes["bad"])
}

func TestCollectEntropyExhausted(t *testing.T) {
	bad1 := &fakeSource{name: "one", err: errors.New("down")}
	bad2 := &fakeSource{name: "two", err: errors.New("also down")}

	_, err := Collect(context.Background(), []Source{bad1, bad2}, 1, nil)
	assert.ErrorIs(t, err, ErrEntropyExhausted)

	_, err = Collect(context.Background(), nil, 1, nil)
	assert.ErrorIs(t, err, ErrEntropyExhausted)
}

func TestLocalSourcesAlwaysSucceed(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	buf, err := CollectLocal(ctx, 8, nil)
	require.NoError(t, err)
	assert.Len(t, buf, 8*32)
}

func TestRegistry(t *testing.T) {
	srcs, err := GetSources([]string{"tick", "os", "os"})
	require.NoError(t, err)
	require.Len(t, srcs, 2, "duplicates must be dropped")
	assert.Equal(t, "os", srcs[0].Name())
	assert.Equal(t, "tick", srcs[1].Name())

	_, err = GetSources([]string{"os", "nope"})
	assert.Error(t, err)

	// "time" is the historic request name of the tick source
	aliased, err := GetSource("time")
	require.NoError(t, err)
	assert.Equal(t, "tick", aliased.Name())

	srcs, err = GetSources([]string{"time", "tick"})
	require.NoError(t, err)
	assert.Len(t, srcs, 1)

	names := SourceNames()
	assert.Contains(t, names, "os")
	assert.Contains(t, names, "tick")
	assert.Contains(t, names, "system")
	assert.Contains(t, names, "news")
	assert.Contains(t, names, "weather")
	assert.Contains(t, names, "imagery")

	for _, s := range LocalSources() {
		assert.True(t, s.Local())
	}
}

func TestOSSource(t *testing.T) {
	s, err := GetSource("os")
	require.NoError(t, err)

	payload, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, payload, osRounds*32)

	again, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.False(t, bytes.Equal(payload, again))
}

func TestTickSource(t *testing.T) {
	s, err := GetSource("tick")
	require.NoError(t, err)

	payload, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, payload, tickBatches*8)

	// cancellation must abort the sampling loop
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Fetch(ctx)
	assert.Error(t, err)
}
