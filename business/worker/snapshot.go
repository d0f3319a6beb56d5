package worker

import (
	"errors"

	"github.com/superfeelapi/pitchFeedback/business/session"
)

func (w *Worker) snapshotOperation() {
	w.logger.Infow("worker: snapshotOperation: G started")
	defer w.logger.Infow("worker: snapshotOperation: G completed")

	var last session.Snapshot

	w.logger.Infow("worker: snapshotOperation: G listening")
	for {
		select {
		case v, ok := <-w.sub.GetChannel():
			if !ok {
				return
			}

			snap, ok := v.(session.Snapshot)
			if !ok {
				continue
			}

			if snap.Recording != last.Recording || snap.Submission != last.Submission {
				w.logger.Infow("worker: snapshotOperation: transition", "recording", snap.Recording, "submission", snap.Submission, "error", snap.Error)
			}
			last = snap

			if w.config.File == "" {
				continue
			}

			switch snap.Submission {
			case session.PhaseComplete.String():
				go w.Shutdown(nil)
				return

			case session.PhaseFailed.String():
				err := w.session.State().Err
				if err == nil {
					err = errors.New(snap.Error)
				}
				go w.Shutdown(err)
				return
			}

		case <-w.shut:
			w.logger.Infow("worker: snapshotOperation: received shut signal")
			return
		}
	}
}
