// Package logging builds the single structured logger threaded through
// every component as a *logrus.Entry tagged with its component name.
package logging

import "github.com/sirupsen/logrus"

// New builds the root logger at the given level, formatted the way the
// rest of the stack expects: full timestamps, no color codes written to
// files or pipes.
func New(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger
}

// Component returns a child entry scoped to one named component, the
// unit every package-level log line is tagged with.
func Component(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("component", name)
}
