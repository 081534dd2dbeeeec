package processor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"baidu-face-go/internal/core/models"
	"baidu-face-go/internal/integrations/baidu"
	"baidu-face-go/internal/integrations/homeassistant"
)

type fakeSearcher struct {
	result *baidu.SearchResult
	err    error
}

func (f *fakeSearcher) Search(ctx context.Context, imageBase64, groupIDList string) (*baidu.SearchResult, error) {
	return f.result, f.err
}

type fakeSink struct {
	events []homeassistant.DetectionEvent
}

func (f *fakeSink) PublishDetection(event homeassistant.DetectionEvent) error {
	f.events = append(f.events, event)
	return nil
}

type fakeRecorder struct {
	detections []models.Detection
}

func (f *fakeRecorder) SaveDetection(d *models.Detection) error {
	f.detections = append(f.detections, *d)
	return nil
}

func matchResult(userID string, score float64) *baidu.SearchResult {
	return &baidu.SearchResult{
		UserList: []baidu.SearchUser{
			{GroupID: "g1", UserID: userID, UserInfo: "x", Score: score},
		},
	}
}

func savedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read save dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestProcessNoMatch(t *testing.T) {
	dir := t.TempDir()
	id := NewIdentifier("cam1", "g1", 80, dir, &fakeSearcher{result: nil}, nil, nil)

	result := id.Process(context.Background(), []byte("frame"))

	if len(result.Detections) != 0 {
		t.Errorf("detections = %v, want none", result.Detections)
	}
	if files := savedFiles(t, dir); len(files) != 0 {
		t.Errorf("files written on no match: %v", files)
	}
}

func TestProcessBelowThreshold(t *testing.T) {
	dir := t.TempDir()
	recorder := &fakeRecorder{}
	id := NewIdentifier("cam1", "g1", 80, dir, &fakeSearcher{result: matchResult("u1", 55)}, nil, recorder)

	result := id.Process(context.Background(), []byte("frame"))

	if len(result.Detections) != 1 {
		t.Fatalf("detections = %v, want one", result.Detections)
	}
	if result.Detections[0].Name != "u1" || result.Detections[0].Confidence != 55 {
		t.Errorf("detection = %+v, want u1/55", result.Detections[0])
	}
	if files := savedFiles(t, dir); len(files) != 0 {
		t.Errorf("files written below threshold: %v", files)
	}
	if len(recorder.detections) != 1 || recorder.detections[0].Matched {
		t.Errorf("recorded = %+v, want one unmatched detection", recorder.detections)
	}
}

func TestProcessAtThresholdWritesFile(t *testing.T) {
	dir := t.TempDir()
	id := NewIdentifier("cam1", "g1", 80, dir, &fakeSearcher{result: matchResult("u1", 80)}, nil, nil)

	result := id.Process(context.Background(), []byte("frame"))

	if len(result.Detections) != 1 {
		t.Fatalf("detections = %v, want one", result.Detections)
	}
	files := savedFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("files = %v, want exactly one", files)
	}
	pattern := regexp.MustCompile(`^u1_\d{8}_\d{6}_80\.jpg$`)
	if !pattern.MatchString(files[0]) {
		t.Errorf("filename %q does not match {userId}_{timestamp}_{confidence}.jpg", files[0])
	}
}

func TestProcessMatchScenario(t *testing.T) {
	dir := t.TempDir()
	sink := &fakeSink{}
	recorder := &fakeRecorder{}
	id := NewIdentifier("cam1", "g1", 80, dir, &fakeSearcher{result: matchResult("u1", 92)}, sink, recorder)

	frame := []byte("raw jpeg bytes")
	result := id.Process(context.Background(), frame)

	if len(result.Detections) != 1 {
		t.Fatalf("detections = %v, want one", result.Detections)
	}
	if result.Detections[0].Name != "u1" || result.Detections[0].Confidence != 92 {
		t.Errorf("detection = %+v, want {u1 92}", result.Detections[0])
	}

	files := savedFiles(t, dir)
	if len(files) != 1 {
		t.Fatalf("files = %v, want exactly one", files)
	}
	pattern := regexp.MustCompile(`^u1_\d{8}_\d{6}_92\.jpg$`)
	if !pattern.MatchString(files[0]) {
		t.Errorf("filename %q does not match expected format", files[0])
	}
	saved, err := os.ReadFile(filepath.Join(dir, files[0]))
	if err != nil {
		t.Fatalf("failed to read saved frame: %v", err)
	}
	if string(saved) != string(frame) {
		t.Error("saved frame differs from the raw image bytes")
	}

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want one", len(sink.events))
	}
	event := sink.events[0]
	if event.Name != "u1" || event.Confidence != 92 || !event.Matched {
		t.Errorf("event = %+v, want matched u1/92", event)
	}
	if len(recorder.detections) != 1 || !recorder.detections[0].Matched {
		t.Errorf("recorded = %+v, want one matched detection", recorder.detections)
	}
}

func TestProcessAPIFailureDegradesToNoFaces(t *testing.T) {
	dir := t.TempDir()
	sink := &fakeSink{}
	id := NewIdentifier("cam1", "g1", 80, dir,
		&fakeSearcher{err: &baidu.NetworkError{Cause: errors.New("boom")}}, sink, nil)

	result := id.Process(context.Background(), []byte("frame"))

	if len(result.Detections) != 0 {
		t.Errorf("detections = %v, want none on API failure", result.Detections)
	}
	if files := savedFiles(t, dir); len(files) != 0 {
		t.Errorf("files written on API failure: %v", files)
	}
	if len(sink.events) != 0 {
		t.Errorf("events published on API failure: %v", sink.events)
	}
}

func TestProcessResetsAttributesBetweenCalls(t *testing.T) {
	dir := t.TempDir()
	searcher := &fakeSearcher{result: matchResult("u1", 92)}
	id := NewIdentifier("cam1", "g1", 80, dir, searcher, nil, nil)

	first := id.Process(context.Background(), []byte("frame"))
	if first.Attributes.UserID != "u1" {
		t.Fatalf("first attributes = %+v, want u1", first.Attributes)
	}

	// Next frame has no match; nothing of the previous match may leak
	searcher.result = nil
	second := id.Process(context.Background(), []byte("frame"))

	if second.Attributes != (Attributes{}) {
		t.Errorf("second attributes = %+v, want zero value", second.Attributes)
	}
	if len(second.Detections) != 0 {
		t.Errorf("second detections = %v, want none", second.Detections)
	}
}
