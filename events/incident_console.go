package events

import (
	"os"

	"github.com/sirupsen/logrus"
)

// IncidentConsole is a secondary, human-readable reporter for the
// emergency/fail-closed path only. It exists alongside ZerologSink (which
// remains the structured record of truth) so an operator tailing a plain
// terminal without a JSON log processor still sees a readable line the
// moment a stream stands down.
type IncidentConsole struct {
	log *logrus.Logger
}

// NewIncidentConsole builds a text-formatted logrus logger writing to
// stderr so it doesn't interleave with the structured stdout stream.
func NewIncidentConsole() *IncidentConsole {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetLevel(logrus.WarnLevel)
	return &IncidentConsole{log: l}
}

// Report prints a one-line emergency summary. It never returns an error;
// console reporting is best-effort and must never itself block a
// fail-closed path.
func (c *IncidentConsole) Report(evt Type, streamID, intentID, reason string) {
	c.log.WithFields(logrus.Fields{
		"event":  string(evt),
		"stream": streamID,
		"intent": intentID,
	}).Warn(reason)
}

// Notify implements Notifier so IncidentConsole can stand in as the
// process's notification sink: a WARNING-or-above priority prints at Warn;
// anything else is logged at Info, which the console's Warn level
// suppresses. There's no external paging integration here, only
// a readable terminal line — a real deployment would wrap or replace this
// with an SMS/pager client.
func (c *IncidentConsole) Notify(priority Priority, subject, body string) {
	entry := c.log.WithField("priority", priority)
	if priority >= PriorityWarning {
		entry.Warn(subject + ": " + body)
		return
	}
	entry.Info(subject + ": " + body)
}
