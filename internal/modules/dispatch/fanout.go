// README: Secondary alert fanout for fixed services (hospitals, police).
package dispatch

import (
	"context"

	"github.com/sirupsen/logrus"

	"rakshak/internal/alert"
)

// maxFanoutRecipients caps alert delivery regardless of how many candidates
// the resolver returned.
const maxFanoutRecipients = 3

type Fanout struct {
	sender alert.Sender
	log    *logrus.Logger
}

func NewFanout(sender alert.Sender, log *logrus.Logger) *Fanout {
	return &Fanout{sender: sender, log: log}
}

// Notify formats and hands off one alert per top candidate, keyed by the
// unit's contact phone. A single recipient's failure is counted and skipped;
// it never aborts delivery to the rest.
func (f *Fanout) Notify(ctx context.Context, serviceType string, ranked []Candidate, req Request) FanoutResult {
	var res FanoutResult

	top := ranked
	if len(top) > maxFanoutRecipients {
		top = top[:maxFanoutRecipients]
	}

	for _, c := range top {
		if c.Unit.Phone == "" {
			res.Failures = append(res.Failures, string(c.Unit.ID)+": no contact phone")
			continue
		}

		msg := alert.Message(serviceType, c.Unit.Name, c.DistanceKm, c.EtaMin, req.Origin, req.Severity)
		deliveryID, err := f.sender.Send(ctx, c.Unit.Phone, msg)
		if err != nil {
			f.log.WithError(err).WithFields(logrus.Fields{
				"incident_id": req.IncidentID,
				"unit_id":     c.Unit.ID,
				"service":     serviceType,
			}).Warn("alert delivery failed")
			res.Failures = append(res.Failures, string(c.Unit.ID)+": "+err.Error())
			continue
		}

		res.Notified++
		f.log.WithFields(logrus.Fields{
			"incident_id": req.IncidentID,
			"unit_id":     c.Unit.ID,
			"service":     serviceType,
			"delivery_id": deliveryID,
		}).Info("alert delivered")
	}
	return res
}
