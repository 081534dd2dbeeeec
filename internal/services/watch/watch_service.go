package watch

import (
	"context"
	"sync"
	"time"

	"baidu-face-go/internal/core/processor"
	"baidu-face-go/internal/integrations/camera"

	log "github.com/sirupsen/logrus"
)

// watcher couples one camera's snapshot client with its identifier.
type watcher struct {
	client     *camera.Client
	identifier *processor.Identifier
	interval   time.Duration
}

// Service drives the per-camera processing loops: fetch a frame, submit it to
// the identifier, repeat. One loop per camera; a failing frame never stops
// the loop.
type Service struct {
	watchers       []watcher
	requestTimeout time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewService creates an empty watch service. requestTimeout bounds each
// snapshot fetch and each face search individually; it is independent of the
// per-camera poll interval.
func NewService(requestTimeout time.Duration) *Service {
	if requestTimeout <= 0 {
		requestTimeout = 10 * time.Second
	}
	return &Service{
		requestTimeout: requestTimeout,
		stopChan:       make(chan struct{}),
	}
}

// AddCamera registers a camera loop. Cameras with no polling interval are
// skipped; their frames arrive via the HTTP API only.
func (s *Service) AddCamera(client *camera.Client, identifier *processor.Identifier, interval time.Duration) {
	if interval <= 0 {
		log.Infof("Camera %s has no polling interval, serving API uploads only", client.Name())
		return
	}
	s.watchers = append(s.watchers, watcher{
		client:     client,
		identifier: identifier,
		interval:   interval,
	})
}

// Start launches all camera loops.
func (s *Service) Start() {
	for _, w := range s.watchers {
		s.wg.Add(1)
		go s.run(w)
	}
	log.Infof("Watch service started with %d camera(s)", len(s.watchers))
}

func (s *Service) run(w watcher) {
	defer s.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Infof("Polling camera %s every %s", w.client.Name(), w.interval)
	for {
		select {
		case <-ticker.C:
			s.processFrame(w)
		case <-s.stopChan:
			log.Infof("Stopped polling camera %s", w.client.Name())
			return
		}
	}
}

func (s *Service) processFrame(w watcher) {
	fetchCtx, cancelFetch := context.WithTimeout(context.Background(), s.requestTimeout)
	frame, err := w.client.Fetch(fetchCtx)
	cancelFetch()
	if err != nil {
		log.WithError(err).Warnf("Failed to fetch frame from camera %s", w.client.Name())
		return
	}

	searchCtx, cancelSearch := context.WithTimeout(context.Background(), s.requestTimeout)
	defer cancelSearch()

	result := w.identifier.Process(searchCtx, frame)
	if len(result.Detections) > 0 {
		log.Infof("Camera %s: detected %s (confidence %.1f)",
			w.client.Name(), result.Detections[0].Name, result.Detections[0].Confidence)
	}
}

// Stop ends all camera loops and waits for them to finish.
func (s *Service) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
	s.wg.Wait()
	log.Info("Watch service stopped")
}
