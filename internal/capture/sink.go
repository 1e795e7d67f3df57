package capture

import (
	"context"
	"fmt"

	"codeberg.org/mutker/hrcap/internal/healthsink"
	"codeberg.org/mutker/hrcap/internal/session"
)

type sinkJob struct {
	session session.ID
	sample  healthsink.Sample
}

// enqueueSample hands a sample to the sink worker without blocking the loop.
func (c *Coordinator) enqueueSample(job sinkJob) {
	select {
	case c.sinkQueue <- job:
		c.state.SinkSubmitted++
	default:
		c.state.SinkDropped++
		c.logger.Warn().Int("heart_rate", job.sample.BPM).Msg("Sink queue full, sample dropped")
	}
}

// sinkWorker submits samples in order and reports rejections back to the
// loop. It exits once the queue is closed and drained.
func (c *Coordinator) sinkWorker(ctx context.Context) {
	for job := range c.sinkQueue {
		submitCtx, cancel := context.WithTimeout(ctx, c.cfg.SinkTimeout)
		err := c.sink.Submit(submitCtx, job.sample)
		cancel()

		if err == nil {
			continue
		}

		c.logger.Warn().
			Err(err).
			Str("error_code", string(ErrSinkRejected)).
			Int("heart_rate", job.sample.BPM).
			Msg("Health sink rejected sample")

		select {
		case c.inbox <- command{kind: cmdSinkResult, sample: job, err: err}:
		case <-c.stopped:
		}
	}
}

func (c *Coordinator) handleSinkResult(ctx context.Context, job sinkJob, err error) {
	c.state.SinkRejections++

	message := fmt.Sprintf("Health sink rejected %d bpm: %v", job.sample.BPM, err)
	// A closed session is never written to again.
	if job.session != "" && job.session == c.state.Session {
		c.note(ctx, message)
		return
	}
	c.log(message)
}
