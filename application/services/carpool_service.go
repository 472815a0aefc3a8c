package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"carpool-backend/application/ports"
	"carpool-backend/domain/carpool"
	apperrors "carpool-backend/pkg/errors"
	"carpool-backend/pkg/retry"
	"carpool-backend/pkg/utils"
)

// CarpoolService drives the reservation lifecycle. Every mutating operation
// runs under the table lock, re-checks its preconditions with strongly
// consistent reads inside the critical section, and relies on write-time
// conditions as the final guard.
type CarpoolService struct {
	carpools ports.CarpoolRepository
	users    ports.UserRepository
	lock     ports.TableLock
	events   ports.EventPublisher
	metrics  ports.MetricsRecorder

	pollInterval    time.Duration
	pollMaxAttempts int

	logger *zap.Logger
}

// NewCarpoolService creates a new CarpoolService.
func NewCarpoolService(
	carpools ports.CarpoolRepository,
	users ports.UserRepository,
	lock ports.TableLock,
	events ports.EventPublisher,
	metrics ports.MetricsRecorder,
	pollInterval time.Duration,
	pollMaxAttempts int,
	logger *zap.Logger,
) *CarpoolService {
	return &CarpoolService{
		carpools:        carpools,
		users:           users,
		lock:            lock,
		events:          events,
		metrics:         metrics,
		pollInterval:    pollInterval,
		pollMaxAttempts: pollMaxAttempts,
		logger:          logger,
	}
}

// Create opens a new carpool hosted by host. A user hosts at most one
// non-closed carpool at a time; the gate is checked under the lock with a
// consistent read of the host's membership rows.
func (s *CarpoolService) Create(ctx context.Context, host, genre, licencePlate string) (*carpool.Carpool, error) {
	if _, err := s.users.GetByName(ctx, host); err != nil {
		return nil, err
	}

	c := &carpool.Carpool{
		ID:           uuid.New().String(),
		Host:         host,
		Genre:        genre,
		LicencePlate: licencePlate,
		Status:       carpool.StatusAvailable,
	}

	err := s.lock.Dispatch(ctx, func(ctx context.Context) error {
		if err := s.requireUnengaged(ctx, host); err != nil {
			return err
		}
		return s.carpools.Create(ctx, c)
	})
	s.recordOperation(ctx, "create", err)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, ports.CarpoolEvent{
		Type:      ports.EventCarpoolCreated,
		CarpoolID: c.ID,
		User:      host,
		At:        utils.NowRFC3339(),
	})
	return c, nil
}

// Join adds user to the carpool as a participant. A user rides in at most
// one non-closed carpool; the count and status gates are re-read under the
// lock and enforced again by the transaction's condition.
func (s *CarpoolService) Join(ctx context.Context, id, user string) error {
	if _, err := s.users.GetByName(ctx, user); err != nil {
		return err
	}

	err := s.lock.Dispatch(ctx, func(ctx context.Context) error {
		if err := s.requireUnengaged(ctx, user); err != nil {
			return err
		}

		c, err := s.carpools.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != carpool.StatusAvailable {
			return apperrors.NewConflictError(
				fmt.Sprintf("carpool %s is %s, not available", id, c.Status))
		}

		count, err := s.carpools.ParticipantCount(ctx, id)
		if err != nil {
			return err
		}
		if count >= carpool.MaxParticipants {
			return apperrors.NewConflictError(
				fmt.Sprintf("carpool %s is already full", id))
		}
		return s.carpools.AddParticipant(ctx, id, user, count)
	})
	s.recordOperation(ctx, "join", err)
	if err != nil {
		return err
	}

	s.publish(ctx, ports.CarpoolEvent{
		Type:      ports.EventCarpoolJoined,
		CarpoolID: id,
		User:      user,
		At:        utils.NowRFC3339(),
	})
	return nil
}

// Start moves the carpool from full to started. Only the host may start,
// and only when all seats are taken; the conditional update is the
// authoritative check.
func (s *CarpoolService) Start(ctx context.Context, id, host string) error {
	err := s.lock.Dispatch(ctx, func(ctx context.Context) error {
		return s.carpools.MarkStarted(ctx, id, host)
	})
	s.recordOperation(ctx, "start", err)
	if err != nil {
		return err
	}

	s.publish(ctx, ports.CarpoolEvent{
		Type:      ports.EventCarpoolStarted,
		CarpoolID: id,
		User:      host,
		At:        utils.NowRFC3339(),
	})
	return nil
}

// Close ends a started carpool and records the winner. The crew is resolved
// from the membership index, which may lag the base table, so the service
// polls until all seats are visible before validating the winner and
// committing the close.
func (s *CarpoolService) Close(ctx context.Context, id, host, winner string) error {
	var crew carpool.Crew
	err := s.lock.Dispatch(ctx, func(ctx context.Context) error {
		var err error
		crew, err = s.resolveCrew(ctx, id)
		if err != nil {
			return err
		}
		if !crew.HasParticipant(winner) {
			return apperrors.NewConflictError(
				fmt.Sprintf("winner %s is not a participant of carpool %s", winner, id))
		}
		return s.carpools.Close(ctx, id, host, winner, crew)
	})
	s.recordOperation(ctx, "close", err)
	if err != nil {
		return err
	}

	s.publish(ctx, ports.CarpoolEvent{
		Type:      ports.EventCarpoolClosed,
		CarpoolID: id,
		User:      host,
		Winner:    winner,
		At:        utils.NowRFC3339(),
	})
	return nil
}

// requireUnengaged fails with a conflict when the user already hosts or
// rides in a non-closed carpool. Both queries are strongly consistent and run
// inside the lock's critical section.
func (s *CarpoolService) requireUnengaged(ctx context.Context, user string) error {
	hosted, err := s.users.HostedCarpools(ctx, user, ports.NonClosed(), true)
	if err != nil {
		return err
	}
	if len(hosted) > 0 {
		return apperrors.NewConflictError(
			fmt.Sprintf("user %s already hosts carpool %s", user, hosted[0].CarpoolID))
	}

	joined, err := s.users.ParticipatedCarpools(ctx, user, ports.NonClosed(), true)
	if err != nil {
		return err
	}
	if len(joined) > 0 {
		return apperrors.NewConflictError(
			fmt.Sprintf("user %s already rides in carpool %s", user, joined[0].CarpoolID))
	}
	return nil
}

// resolveCrew polls the membership index until the full crew is visible.
// An index that never converges within the budget fails the close rather
// than recording a partial crew.
func (s *CarpoolService) resolveCrew(ctx context.Context, id string) (carpool.Crew, error) {
	var crew carpool.Crew
	err := retry.WaitUntil(ctx, s.pollInterval, s.pollMaxAttempts, func(ctx context.Context) (bool, error) {
		var err error
		crew, err = s.carpools.Crew(ctx, id)
		if err != nil {
			return false, err
		}
		return crew.Complete(), nil
	})
	if err != nil {
		if err == retry.ErrBudgetExhausted {
			s.logger.Error("crew never converged",
				zap.String("carpoolID", id),
				zap.String("host", crew.Host),
				zap.Int("visibleParticipants", len(crew.Participants)),
			)
			return carpool.Crew{}, apperrors.NewConsistencyTimeoutError(
				fmt.Sprintf("carpool %s crew did not converge after %d attempts", id, s.pollMaxAttempts))
		}
		return carpool.Crew{}, err
	}
	return crew, nil
}

// Get returns the carpool by id.
func (s *CarpoolService) Get(ctx context.Context, id string) (*carpool.Carpool, error) {
	return s.carpools.GetByID(ctx, id)
}

// Participants returns the crew currently visible on the membership index.
// A crew with no visible host row means the carpool is unknown to the index.
func (s *CarpoolService) Participants(ctx context.Context, id string) (carpool.Crew, error) {
	crew, err := s.carpools.Crew(ctx, id)
	if err != nil {
		return carpool.Crew{}, err
	}
	if crew.Host == "" {
		return carpool.Crew{}, apperrors.NewNotFoundError(fmt.Sprintf("carpool %s", id))
	}
	return crew, nil
}

// ListAvailable returns open carpools, optionally filtered by genre.
func (s *CarpoolService) ListAvailable(ctx context.Context, genre string) ([]carpool.Carpool, error) {
	return s.carpools.ListAvailable(ctx, genre)
}

// publish sends a lifecycle event. Publishing is best effort: a failure is
// logged but never fails the operation that already committed.
func (s *CarpoolService) publish(ctx context.Context, event ports.CarpoolEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish carpool event",
			zap.String("type", event.Type),
			zap.String("carpoolID", event.CarpoolID),
			zap.Error(err),
		)
	}
}

func (s *CarpoolService) recordOperation(ctx context.Context, operation string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.CountOperation(ctx, operation, err == nil)
}
