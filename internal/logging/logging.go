// Package logging builds the process-wide structured logger.
//
// Follows the teacher's shape: one logrus.Logger built by New at startup
// and passed down, fields attached per component with WithField/WithFields,
// never a bare fmt.Println in the engines.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds a logrus.Logger honoring the LOG_LEVEL config key. Unknown or
// empty levels fall back to Info, matching the teacher's default.
func New(level string) *logrus.Logger {
	ll := logrus.New()
	ll.SetOutput(os.Stdout)
	ll.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		parsed = logrus.InfoLevel
	}
	ll.SetLevel(parsed)
	return ll
}

// Fault logs one structured diagnostic record for a session failure, per
// spec §7: {session_id, state, kind, detail}. No stack trace is emitted.
func Fault(log *logrus.Entry, kind, sessionID, state, detail string) {
	log.WithFields(logrus.Fields{
		"session_id": sessionID,
		"state":      state,
		"kind":       kind,
	}).Error(detail)
}
