package worker

import (
	"fmt"

	"github.com/superfeelapi/pitchFeedback/foundation/audio"
)

func (w *Worker) fileOperation() {
	w.logger.Infow("worker: fileOperation: G started")
	defer w.logger.Infow("worker: fileOperation: G completed")

	a, err := audio.FromPath(w.session.Handles(), w.config.File)
	if err != nil {
		go w.Shutdown(fmt.Errorf("file[%s]: %w", w.config.File, err))
		return
	}

	if err := w.session.Stage(a); err != nil {
		w.session.Handles().Release(a.Handle)
		go w.Shutdown(err)
		return
	}
	w.logger.Infow("worker: fileOperation: staged", "name", a.Name, "size", audio.FormatSize(a.SizeBytes), "mimeType", a.MimeType)

	if err := w.session.Submit(); err != nil {
		go w.Shutdown(err)
		return
	}
}
