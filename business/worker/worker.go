package worker

import (
	"context"
	"sync"

	"github.com/superfeelapi/pitchFeedback/business/session"
	"github.com/superfeelapi/pitchFeedback/foundation/pubsub"
	"go.uber.org/zap"
)

const subscriberCapacity = 16

type Worker struct {
	config  Config
	logger  *zap.SugaredLogger
	session *session.Session
	broker  *pubsub.Broker
	sub     *pubsub.Subscriber

	wg       sync.WaitGroup
	shut     chan struct{}
	shutOnce sync.Once
	error    chan error
}

// Run starts the worker operations and returns the channel that receives the
// shutdown error, nil included, once every operation has returned. The worker
// shuts down when ctx is cancelled or, with a File configured, once that
// file's submission resolves.
func Run(ctx context.Context, s Settings) <-chan error {
	w := &Worker{
		config:  s.Config,
		logger:  s.Logger,
		session: s.Session,
		broker:  s.Broker,
		sub:     pubsub.NewSubscriber(subscriberCapacity),
		shut:    make(chan struct{}),
		error:   make(chan error, 1),
	}

	w.broker.Subscribe(session.Topic, w.sub)

	operations := []func(){
		w.snapshotOperation,
	}
	if w.config.File != "" {
		operations = append(operations, w.fileOperation)
	}

	g := len(operations)
	w.wg.Add(g)

	hasStarted := make(chan bool)

	for _, op := range operations {
		go func(op func()) {
			defer w.wg.Done()
			hasStarted <- true
			op()
		}(op)
	}

	for i := 0; i < g; i++ {
		<-hasStarted
	}

	go func() {
		select {
		case <-ctx.Done():
			w.Shutdown(nil)
		case <-w.shut:
		}
	}()

	return w.error
}

// Shutdown stops every operation and reports err on the error channel. Only
// the first call has an effect. Operations must call it from a new goroutine.
func (w *Worker) Shutdown(err error) {
	w.shutOnce.Do(func() {
		w.logger.Infow("worker: shutdown: started")
		defer w.logger.Infow("worker: shutdown: completed")

		if err != nil {
			w.logger.Errorw("worker: shutdown", "ERROR", err)
		}

		w.logger.Infow("worker: shutdown: terminate goroutines")
		close(w.shut)

		w.wg.Wait()

		if unsubErr := w.broker.UnSubscribe(session.Topic, w.sub); unsubErr != nil {
			w.logger.Errorw("worker: shutdown", "ERROR", unsubErr)
		}
		w.sub.CloseChannel()

		w.error <- err
		close(w.error)
	})
}
