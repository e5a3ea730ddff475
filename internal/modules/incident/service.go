// README: Incident service implements report intake and the review state transition.
package incident

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rakshak/internal/config"
	"rakshak/internal/modules/dispatch"
	"rakshak/internal/types"
)

var (
	ErrNotFound          = errors.New("incident not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrValidation        = errors.New("invalid incident")
)

// Store is the persistence contract the service needs.
type Store interface {
	Create(ctx context.Context, in *Incident) error
	Get(ctx context.Context, id types.ID) (*Incident, error)
	List(ctx context.Context, page, pageSize int) ([]*Incident, error)
	UpdateStatus(ctx context.Context, id types.ID, to Status, reviewedAt time.Time) (bool, error)
}

// Dispatcher runs the gather/rank/notify pipeline for an accepted incident.
type Dispatcher interface {
	Dispatch(ctx context.Context, req dispatch.Request) (*dispatch.Outcome, error)
}

type Service struct {
	store      Store
	dispatcher Dispatcher
	cfg        config.DispatchConfig
	log        *logrus.Logger
}

func NewService(store Store, dispatcher Dispatcher, cfg config.DispatchConfig, log *logrus.Logger) *Service {
	return &Service{store: store, dispatcher: dispatcher, cfg: cfg, log: log}
}

type ReportCommand struct {
	PhoneNumber string
	Description string
	Origin      types.Point
	Severity    Severity
	ImageURLs   []string
}

// Report persists a new incident in REPORTED.
func (s *Service) Report(ctx context.Context, cmd ReportCommand) (*Incident, error) {
	if cmd.PhoneNumber == "" {
		return nil, ErrValidation
	}
	if n := len(cmd.Description); n < 3 || n > 500 {
		return nil, ErrValidation
	}
	if !cmd.Origin.Valid() {
		return nil, ErrValidation
	}
	if !ValidSeverity(cmd.Severity) {
		return nil, ErrValidation
	}

	in := &Incident{
		ID:          types.ID(uuid.NewString()),
		PhoneNumber: cmd.PhoneNumber,
		Description: cmd.Description,
		Origin:      cmd.Origin,
		Severity:    cmd.Severity,
		Status:      StatusReported,
		ImageURLs:   cmd.ImageURLs,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.Create(ctx, in); err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{
		"incident_id": in.ID,
		"severity":    in.Severity,
	}).Info("incident reported")
	return in, nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Incident, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, page, pageSize int) ([]*Incident, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return s.store.List(ctx, page, pageSize)
}

// TransitionResult carries the persisted incident plus best-effort dispatch
// output. Dispatch is nil when the incident was rejected, when the pipeline
// failed, or when it was still running at the wait deadline.
type TransitionResult struct {
	Incident *Incident
	Dispatch *dispatch.Outcome
}

// Transition moves a REPORTED incident to ACCEPTED or REJECTED. The status
// change is persisted before any downstream action and never rolled back;
// on ACCEPTED the dispatch pipeline runs in the background and the caller
// waits at most cfg.Wait for its outcome.
func (s *Service) Transition(ctx context.Context, id types.ID, newStatus Status) (*TransitionResult, error) {
	if !ValidStatus(newStatus) {
		return nil, ErrInvalidTransition
	}

	in, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(in.Status, newStatus) {
		return nil, ErrInvalidTransition
	}

	reviewedAt := time.Now().UTC()
	ok, err := s.store.UpdateStatus(ctx, id, newStatus, reviewedAt)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race against another reviewer; the incident left REPORTED
		// under us, so this transition must not dispatch.
		return nil, ErrInvalidTransition
	}

	in.Status = newStatus
	in.ReviewedAt = &reviewedAt

	log := s.log.WithFields(logrus.Fields{
		"incident_id": in.ID,
		"status":      newStatus,
	})
	log.Info("incident status updated")

	res := &TransitionResult{Incident: in}
	if newStatus != StatusAccepted {
		return res, nil
	}
	if !in.Origin.Valid() {
		log.Warn("accepted incident has no usable origin, skipping dispatch")
		return res, nil
	}
	if s.dispatcher == nil {
		return res, nil
	}

	res.Dispatch = s.runDispatch(in, log)
	return res, nil
}

// runDispatch launches the pipeline detached from the request context and
// waits a bounded time for its outcome. The pipeline keeps running after the
// wait expires; its failure is logged, never surfaced as a transition error.
func (s *Service) runDispatch(in *Incident, log *logrus.Entry) *dispatch.Outcome {
	req := dispatch.Request{
		IncidentID:  in.ID,
		Origin:      in.Origin,
		Description: in.Description,
		Severity:    string(in.Severity),
	}

	done := make(chan *dispatch.Outcome, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.PipelineTimeout)
		defer cancel()
		out, err := s.dispatcher.Dispatch(ctx, req)
		if err != nil {
			log.WithError(err).Error("dispatch pipeline failed")
			done <- nil
			return
		}
		done <- out
	}()

	select {
	case out := <-done:
		return out
	case <-time.After(s.cfg.Wait):
		log.Warn("dispatch still running at response deadline, returning without results")
		return nil
	}
}
