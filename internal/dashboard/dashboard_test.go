package dashboard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Skufu/LiverGuardian/internal/features"
	"github.com/Skufu/LiverGuardian/internal/patient"
	"github.com/Skufu/LiverGuardian/internal/predictor"
	"github.com/Skufu/LiverGuardian/internal/recommend"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

type stubPredictor struct {
	stage int
	err   error
	calls []features.Vector
	mu    sync.Mutex
}

func (s *stubPredictor) Predict(_ context.Context, vec features.Vector) (int, error) {
	s.mu.Lock()
	s.calls = append(s.calls, vec)
	s.mu.Unlock()
	return s.stage, s.err
}

// gatedPredictor answers each call only when its gate is released.
type gatedPredictor struct {
	mu    sync.Mutex
	gates []chan result
}

type result struct {
	stage int
	err   error
}

func (g *gatedPredictor) Predict(ctx context.Context, _ features.Vector) (int, error) {
	ch := make(chan result, 1)
	g.mu.Lock()
	g.gates = append(g.gates, ch)
	g.mu.Unlock()
	select {
	case r := <-ch:
		return r.stage, r.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (g *gatedPredictor) release(t *testing.T, i int, r result) {
	t.Helper()
	require.Eventually(t, func() bool {
		g.mu.Lock()
		defer g.mu.Unlock()
		return len(g.gates) > i
	}, time.Second, time.Millisecond)
	g.mu.Lock()
	ch := g.gates[i]
	g.mu.Unlock()
	ch <- r
}

func TestInitialState(t *testing.T) {
	d := New(&stubPredictor{}, Options{})
	assert.Equal(t, State{Phase: PhaseIdle}, d.State())
	assert.Equal(t, patient.Defaults(), d.Record())

	_, ok := d.Recommendation()
	assert.False(t, ok)
	_, _, err := d.Report(time.Now())
	assert.ErrorIs(t, err, ErrNoPrediction)
}

func TestSubmitSuccess(t *testing.T) {
	p := &stubPredictor{stage: 3}
	d := New(p, Options{})

	s := <-d.Submit(context.Background())
	assert.Equal(t, PhaseSuccess, s.Phase)
	assert.Equal(t, 3, s.Stage)
	assert.Equal(t, uint64(1), s.Seq)
	assert.Equal(t, 0, s.InFlight)

	rec, ok := d.Recommendation()
	require.True(t, ok)
	assert.Equal(t, "High", rec.Risk)

	require.Len(t, p.calls, 1)
	assert.Equal(t, features.Encode(patient.Defaults()), p.calls[0])
}

func TestSubmitFailure(t *testing.T) {
	d := New(&stubPredictor{err: &predictor.Error{Kind: predictor.KindFeatureMismatch, Message: predictor.MsgFeatureMismatch}}, Options{})

	s := <-d.Submit(context.Background())
	assert.Equal(t, PhaseFailure, s.Phase)
	assert.Equal(t, predictor.MsgFeatureMismatch, s.Message)
	assert.Zero(t, s.Stage)
}

func TestSubmitClearsPreviousResult(t *testing.T) {
	g := &gatedPredictor{}
	d := New(g, Options{})

	first := d.Submit(context.Background())
	g.release(t, 0, result{stage: 2})
	<-first
	require.Equal(t, PhaseSuccess, d.State().Phase)

	second := d.Submit(context.Background())
	s := d.State()
	assert.Equal(t, PhaseSubmitting, s.Phase)
	assert.Zero(t, s.Stage)
	assert.Equal(t, 1, s.InFlight)
	_, ok := d.Recommendation()
	assert.False(t, ok)

	g.release(t, 1, result{stage: 4})
	assert.Equal(t, 4, (<-second).Stage)
}

func TestEditKeepsResult(t *testing.T) {
	d := New(&stubPredictor{stage: 1}, Options{})
	<-d.Submit(context.Background())

	require.NoError(t, d.Set(patient.Bilirubin, "9.9"))
	s := d.State()
	assert.Equal(t, PhaseSuccess, s.Phase)
	assert.Equal(t, 1, s.Stage)
	assert.Equal(t, "9.9", d.Record().Value(patient.Bilirubin))
}

func TestLastResponseWinsByDefault(t *testing.T) {
	g := &gatedPredictor{}
	d := New(g, Options{})

	first := d.Submit(context.Background())
	second := d.Submit(context.Background())

	g.release(t, 1, result{stage: 2})
	assert.Equal(t, 2, (<-second).Stage)

	g.release(t, 0, result{stage: 4})
	s := <-first
	assert.Equal(t, PhaseSuccess, s.Phase)
	assert.Equal(t, 4, s.Stage)
	assert.Equal(t, uint64(1), s.Seq)
	assert.Equal(t, 4, d.State().Stage)
}

func TestDiscardStale(t *testing.T) {
	g := &gatedPredictor{}
	d := New(g, Options{DiscardStale: true})

	first := d.Submit(context.Background())
	second := d.Submit(context.Background())

	g.release(t, 0, result{stage: 4})
	s := <-first
	assert.Equal(t, PhaseSubmitting, s.Phase, "stale response must not land")
	assert.Equal(t, uint64(2), s.Seq)

	g.release(t, 1, result{stage: 2})
	s = <-second
	assert.Equal(t, PhaseSuccess, s.Phase)
	assert.Equal(t, 2, s.Stage)
	assert.Equal(t, 2, d.State().Stage)
}

func TestRevealDelay(t *testing.T) {
	d := New(&stubPredictor{stage: 2}, Options{RevealDelay: 30 * time.Millisecond})
	start := time.Now()
	s := <-d.Submit(context.Background())
	assert.Equal(t, 2, s.Stage)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
}

func TestReport(t *testing.T) {
	d := New(&stubPredictor{stage: 4}, Options{})
	<-d.Submit(context.Background())

	at := time.Date(2026, time.January, 2, 3, 4, 5, 0, time.UTC)
	name, body, err := d.Report(at)
	require.NoError(t, err)
	assert.Equal(t, "LiverGuardian_Report_2026-01-02.txt", name)
	assert.Contains(t, body, "Predicted Cirrhosis Stage: 4")
	assert.Contains(t, body, "Risk Level: Critical")
}

func TestUnknownStageUsesFallbackAdvice(t *testing.T) {
	d := New(&stubPredictor{stage: 7}, Options{})
	<-d.Submit(context.Background())

	rec, ok := d.Recommendation()
	require.True(t, ok)
	assert.Equal(t, recommend.Lookup(1), rec)
}

func TestWaitHonoursContext(t *testing.T) {
	g := &gatedPredictor{}
	d := New(g, Options{})
	done := d.Submit(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Wait(ctx), context.DeadlineExceeded)

	g.release(t, 0, result{stage: 1})
	<-done
	assert.NoError(t, d.Wait(context.Background()))
}
