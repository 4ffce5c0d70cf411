// Package dashboard owns the per-session form and prediction lifecycle:
// idle -> submitting -> success(stage) | failure(message), repeated for the
// life of the session.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/LiverGuardian/internal/features"
	"github.com/Skufu/LiverGuardian/internal/patient"
	"github.com/Skufu/LiverGuardian/internal/predictor"
	"github.com/Skufu/LiverGuardian/internal/recommend"
	"github.com/Skufu/LiverGuardian/internal/report"
)

var ErrNoPrediction = errors.New("no prediction available")

type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseSubmitting Phase = "submitting"
	PhaseSuccess    Phase = "success"
	PhaseFailure    Phase = "failure"
)

type State struct {
	Phase   Phase  `json:"phase"`
	Stage   int    `json:"stage,omitempty"`
	Message string `json:"error,omitempty"`
	// Seq is the submission that produced this state; 0 before the first submit.
	Seq uint64 `json:"seq"`
	// InFlight counts submissions still waiting on the predictor.
	InFlight int `json:"inFlight"`
}

type Predictor interface {
	Predict(ctx context.Context, vec features.Vector) (int, error)
}

type Options struct {
	// DiscardStale keeps only the response to the most recent submission.
	// Off by default: whichever response resolves last wins.
	DiscardStale bool
	// RevealDelay holds a successful stage back before it is shown.
	RevealDelay time.Duration
	Table       *recommend.Table
	Logger      *zap.Logger
}

type Dashboard struct {
	form      *patient.Form
	predictor Predictor
	opts      Options
	log       *zap.Logger

	mu       sync.Mutex
	state    State
	issued   uint64
	inflight int
	wg       sync.WaitGroup
}

func New(p Predictor, opts Options) *Dashboard {
	if opts.Table == nil {
		opts.Table = recommend.Default()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Dashboard{
		form:      patient.NewForm(),
		predictor: p,
		opts:      opts,
		log:       log,
		state:     State{Phase: PhaseIdle},
	}
}

// Set edits one field. The current prediction or error stays visible until
// the next submit.
func (d *Dashboard) Set(name, raw string) error {
	return d.form.Set(name, raw)
}

func (d *Dashboard) SetAll(values map[string]string) {
	d.form.SetAll(values)
}

func (d *Dashboard) Record() patient.Record {
	return d.form.Get()
}

func (d *Dashboard) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.snapshot()
}

func (d *Dashboard) snapshot() State {
	s := d.state
	s.InFlight = d.inflight
	return s
}

// Submit clears the previous outcome, encodes the current record and asks
// the predictor in the background. The returned channel yields the state
// after this submission resolves and is then closed. Overlapping submits
// are allowed; see Options.DiscardStale.
func (d *Dashboard) Submit(ctx context.Context) <-chan State {
	d.mu.Lock()
	d.issued++
	seq := d.issued
	d.inflight++
	d.state = State{Phase: PhaseSubmitting, Seq: seq}
	vec := features.Encode(d.form.Get())
	d.wg.Add(1)
	d.mu.Unlock()

	d.log.Debug("prediction submitted", zap.Uint64("seq", seq))

	done := make(chan State, 1)
	go func() {
		defer d.wg.Done()
		defer close(done)

		stage, err := d.predictor.Predict(ctx, vec)
		if err == nil && d.opts.RevealDelay > 0 {
			t := time.NewTimer(d.opts.RevealDelay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
			}
		}
		done <- d.resolve(seq, stage, err)
	}()
	return done
}

func (d *Dashboard) resolve(seq uint64, stage int, err error) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.inflight--

	if d.opts.DiscardStale && seq != d.issued {
		d.log.Info("stale prediction discarded", zap.Uint64("seq", seq), zap.Uint64("latest", d.issued))
		return d.snapshot()
	}

	if err != nil {
		d.state = State{Phase: PhaseFailure, Message: predictor.UserMessage(err), Seq: seq}
		d.log.Warn("prediction failed", zap.Uint64("seq", seq), zap.Error(err))
	} else {
		d.state = State{Phase: PhaseSuccess, Stage: stage, Seq: seq}
		d.log.Info("prediction received", zap.Uint64("seq", seq), zap.Int("stage", stage))
	}
	return d.snapshot()
}

// Recommendation returns the advice for the current stage, if there is one.
func (d *Dashboard) Recommendation() (recommend.Entry, bool) {
	s := d.State()
	if s.Phase != PhaseSuccess {
		return recommend.Entry{}, false
	}
	return d.opts.Table.Lookup(s.Stage), true
}

// Report renders the current record and prediction as a text download.
func (d *Dashboard) Report(at time.Time) (filename, body string, err error) {
	s := d.State()
	if s.Phase != PhaseSuccess {
		return "", "", ErrNoPrediction
	}
	rec := d.opts.Table.Lookup(s.Stage)
	return report.Filename(at), report.Format(d.Record(), s.Stage, rec, at), nil
}

// Wait blocks until every in-flight submission has resolved or ctx ends.
func (d *Dashboard) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
