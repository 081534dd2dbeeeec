package watch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"baidu-face-go/config"
	"baidu-face-go/internal/core/processor"
	"baidu-face-go/internal/integrations/baidu"
	"baidu-face-go/internal/integrations/camera"
)

type fakeSearcher struct {
	calls int
}

func (f *fakeSearcher) Search(ctx context.Context, imageBase64, groupIDList string) (*baidu.SearchResult, error) {
	f.calls++
	if err := ctx.Err(); err != nil {
		return nil, &baidu.NetworkError{Cause: err, Timeout: true}
	}
	return nil, nil
}

func TestProcessFrameOutlivesShortPollInterval(t *testing.T) {
	// The snapshot takes longer than the poll interval; only the request
	// timeout may bound the fetch.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte("frame"))
	}))
	defer srv.Close()

	searcher := &fakeSearcher{}
	identifier := processor.NewIdentifier("cam1", "g1", 80, t.TempDir(), searcher, nil, nil)
	client := camera.NewClient(config.CameraConfig{Name: "cam1", SnapshotURL: srv.URL})

	svc := NewService(2 * time.Second)
	svc.AddCamera(client, identifier, 10*time.Millisecond)
	if len(svc.watchers) != 1 {
		t.Fatalf("watchers = %d, want 1", len(svc.watchers))
	}

	svc.processFrame(svc.watchers[0])

	if searcher.calls != 1 {
		t.Fatalf("search calls = %d, want 1 (fetch must not be cut off by the poll interval)", searcher.calls)
	}
}

func TestAddCameraSkipsZeroInterval(t *testing.T) {
	svc := NewService(2 * time.Second)
	client := camera.NewClient(config.CameraConfig{Name: "cam1"})
	svc.AddCamera(client, nil, 0)

	if len(svc.watchers) != 0 {
		t.Errorf("watchers = %d, want none for a camera without interval", len(svc.watchers))
	}
}
