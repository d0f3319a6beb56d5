package worker

import (
	"github.com/superfeelapi/pitchFeedback/business/session"
	"github.com/superfeelapi/pitchFeedback/foundation/pubsub"
	"go.uber.org/zap"
)

type Settings struct {
	Config
	Logger  *zap.SugaredLogger
	Session *session.Session
	Broker  *pubsub.Broker
}

type Config struct {
	// File, when set, is staged and submitted once; the worker shuts down
	// with the outcome of that submission.
	File string
}
