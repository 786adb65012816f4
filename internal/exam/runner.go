package exam

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pavelanni/eduquest/internal/model"
)

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Ticks overrides the one-second ticker. The caller owns the channel.
	Ticks <-chan time.Time
	// OnComplete receives the result of a submitted or timed-out session.
	// It runs on the runner goroutine before the submitter is answered.
	OnComplete func(model.ExamResult)
	Logger     *slog.Logger
}

type command struct {
	fn    func(*Session) (*model.ExamResult, error)
	reply chan error
}

// Runner drives one Session from a single goroutine. Ticks and student
// commands are applied in arrival order, and the ticker is released whenever
// the goroutine exits.
type Runner struct {
	sess *Session
	cfg  RunnerConfig
	log  *slog.Logger
	cmds chan command
	done chan struct{}

	mu    sync.Mutex
	final *model.SessionSnapshot
}

// NewRunner starts driving s until it completes, is cancelled, or ctx ends.
func NewRunner(ctx context.Context, s *Session, cfg RunnerConfig) *Runner {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	r := &Runner{
		sess: s,
		cfg:  cfg,
		log:  log,
		cmds: make(chan command),
		done: make(chan struct{}),
	}
	go r.run(ctx)
	return r
}

func (r *Runner) tickSource() (<-chan time.Time, func()) {
	if r.cfg.Ticks != nil {
		return r.cfg.Ticks, func() {}
	}
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

func (r *Runner) run(ctx context.Context) {
	ticks, stop := r.tickSource()
	defer func() {
		stop()
		snap := r.sess.Snapshot()
		r.mu.Lock()
		r.final = &snap
		r.mu.Unlock()
		close(r.done)
	}()

	for {
		select {
		case <-ctx.Done():
			if r.sess.Status() == model.StatusInProgress {
				_ = r.sess.Cancel()
				r.log.Info("session abandoned", "exam_id", r.sess.Exam().ID, "reason", ctx.Err())
			}
			return
		case <-ticks:
			res, err := r.sess.Tick()
			if err != nil {
				return
			}
			if res != nil {
				r.log.Info("time expired, session submitted", "exam_id", res.ExamID, "score", res.Score)
				r.complete(*res)
				return
			}
		case c := <-r.cmds:
			res, err := c.fn(r.sess)
			if res != nil {
				r.complete(*res)
			}
			c.reply <- err
			if r.sess.Status() != model.StatusInProgress {
				return
			}
		}
	}
}

func (r *Runner) complete(res model.ExamResult) {
	if r.cfg.OnComplete != nil {
		r.cfg.OnComplete(res)
	}
}

// Do runs fn on the runner goroutine. Once the session has finished, Do
// returns ErrAlreadyCompleted without calling fn.
func (r *Runner) Do(ctx context.Context, fn func(*Session) error) error {
	_, err := r.do(ctx, func(s *Session) (*model.ExamResult, error) {
		return nil, fn(s)
	})
	return err
}

func (r *Runner) do(ctx context.Context, fn func(*Session) (*model.ExamResult, error)) (*model.ExamResult, error) {
	var out *model.ExamResult
	c := command{
		fn: func(s *Session) (*model.ExamResult, error) {
			res, err := fn(s)
			out = res
			return res, err
		},
		reply: make(chan error, 1),
	}
	select {
	case r.cmds <- c:
	case <-r.done:
		return nil, fmt.Errorf("runner stopped: %w", ErrAlreadyCompleted)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return out, <-c.reply
}

// Submit finalizes the session and returns its result.
func (r *Runner) Submit(ctx context.Context) (*model.ExamResult, error) {
	return r.do(ctx, (*Session).Submit)
}

// Cancel abandons the session.
func (r *Runner) Cancel(ctx context.Context) error {
	return r.Do(ctx, (*Session).Cancel)
}

// Snapshot returns the live state, or the final state once the runner stopped.
func (r *Runner) Snapshot(ctx context.Context) (model.SessionSnapshot, error) {
	var snap model.SessionSnapshot
	err := r.Do(ctx, func(s *Session) error {
		snap = s.Snapshot()
		return nil
	})
	if err == nil {
		return snap, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.final != nil {
		return *r.final, nil
	}
	return snap, err
}

// Done is closed after the runner has stopped and released its ticker.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
