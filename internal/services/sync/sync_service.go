package sync

import (
	"context"
	"fmt"
	gosync "sync"
	"time"

	"baidu-face-go/internal/core/store"

	log "github.com/sirupsen/logrus"
)

// GroupAPI is the part of the Baidu client the sync service needs.
type GroupAPI interface {
	GroupList(ctx context.Context) ([]string, error)
	GroupUsers(ctx context.Context, groupID string) ([]string, error)
}

// GroupPublisher refreshes the group display entities after a sync.
type GroupPublisher interface {
	PublishGroupState(groupID string, persons map[string]string) error
}

// Service populates the group/person store from the cloud. The startup sync
// is sequential and all-or-nothing: any API failure propagates and aborts the
// setup sequence.
type Service struct {
	api       GroupAPI
	store     *store.Store
	publisher GroupPublisher // may be nil when MQTT is disabled

	stopChan chan struct{}
	stopOnce gosync.Once
}

// NewService creates a new sync service.
func NewService(api GroupAPI, st *store.Store, publisher GroupPublisher) *Service {
	return &Service{
		api:       api,
		store:     st,
		publisher: publisher,
		stopChan:  make(chan struct{}),
	}
}

// Sync performs one full synchronization: list groups, then list the persons
// of each group. The new content is built on the side and swapped into the
// store in one step, so groups and persons deleted server-side disappear and
// a failed sync leaves the previous content untouched. Group entity refreshes
// are dispatched concurrently and Sync returns only after all of them have
// resolved.
func (s *Service) Sync(ctx context.Context) error {
	groups, err := s.api.GroupList(ctx)
	if err != nil {
		return fmt.Errorf("failed to list face groups: %w", err)
	}

	fresh := make(map[string]map[string]string, len(groups))
	for _, groupID := range groups {
		persons, err := s.api.GroupUsers(ctx, groupID)
		if err != nil {
			return fmt.Errorf("failed to list persons of group %s: %w", groupID, err)
		}
		members := make(map[string]string, len(persons))
		for _, personID := range persons {
			members[personID] = personID
		}
		fresh[groupID] = members
	}
	s.store.Replace(fresh)

	log.Infof("Store sync completed: %d groups", len(groups))

	if s.publisher != nil {
		var wg gosync.WaitGroup
		for _, groupID := range groups {
			persons, _ := s.store.Persons(groupID)
			wg.Add(1)
			go func(groupID string, persons map[string]string) {
				defer wg.Done()
				if err := s.publisher.PublishGroupState(groupID, persons); err != nil {
					log.WithError(err).Errorf("Failed to refresh group entity %s", groupID)
				}
			}(groupID, persons)
		}
		wg.Wait()
	}

	return nil
}

// StartPeriodic re-syncs the store on an interval. Failures of periodic syncs
// are logged, not fatal; the store keeps its last content.
func (s *Service) StartPeriodic(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		log.Infof("Starting periodic store sync every %s", interval)

		for {
			select {
			case <-ticker.C:
				if err := s.Sync(context.Background()); err != nil {
					log.WithError(err).Error("Periodic store sync failed")
				}
			case <-s.stopChan:
				log.Info("Periodic store sync stopped")
				return
			}
		}
	}()
}

// Stop ends the periodic sync, if running.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}
