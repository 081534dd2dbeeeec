package processor

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"baidu-face-go/internal/core/models"
	"baidu-face-go/internal/integrations/baidu"
	"baidu-face-go/internal/integrations/homeassistant"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// FaceSearcher is the part of the Baidu client the identifier needs.
type FaceSearcher interface {
	Search(ctx context.Context, imageBase64, groupIDList string) (*baidu.SearchResult, error)
}

// EventSink receives one detection event per successfully processed frame.
type EventSink interface {
	PublishDetection(event homeassistant.DetectionEvent) error
}

// DetectionRecorder persists detections to the history.
type DetectionRecorder interface {
	SaveDetection(detection *models.Detection) error
}

// Detection is one reported face match.
type Detection struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

// Attributes carries the details of the top match of one frame. It is built
// fresh on every call; a frame without a match leaves it zero-valued.
type Attributes struct {
	GroupID  string  `json:"group_id"`
	Score    float64 `json:"score"`
	UserID   string  `json:"user_id"`
	UserInfo string  `json:"user_info"`
}

// Result is the outcome of processing one frame.
type Result struct {
	Detections []Detection `json:"detections"`
	Attributes Attributes  `json:"attributes"`
	SavedPath  string      `json:"saved_path,omitempty"`
}

// Identifier submits frames of one camera to the face search and interprets
// the top match. A failed API call degrades to "no faces" for that frame;
// ongoing processing never aborts the owning camera loop.
type Identifier struct {
	camera     string
	group      string
	confidence float64
	saveDir    string
	source     string

	client FaceSearcher
	events EventSink
	repo   DetectionRecorder
}

// NewIdentifier creates an identifier for one camera. events and repo may be
// nil when MQTT or the database are disabled.
func NewIdentifier(camera, group string, confidence float64, saveDir string, client FaceSearcher, events EventSink, repo DetectionRecorder) *Identifier {
	if err := os.MkdirAll(saveDir, 0755); err != nil {
		log.Errorf("Failed to create save directory '%s': %v", saveDir, err)
	}
	return &Identifier{
		camera:     camera,
		group:      group,
		confidence: confidence,
		saveDir:    saveDir,
		source:     "poll",
		client:     client,
		events:     events,
		repo:       repo,
	}
}

// Camera returns the name of the camera this identifier belongs to.
func (i *Identifier) Camera() string {
	return i.camera
}

// Group returns the face group searches are scoped to.
func (i *Identifier) Group() string {
	return i.group
}

// WithSource returns a shallow copy tagging persisted detections with a
// different source, e.g. for frames arriving via the HTTP API.
func (i *Identifier) WithSource(source string) *Identifier {
	clone := *i
	clone.source = source
	return &clone
}

// Process submits one frame for face search. It returns the detections for
// the frame: at most one entry, empty on no match or on a failed API call.
func (i *Identifier) Process(ctx context.Context, image []byte) *Result {
	result := &Result{
		Detections: make([]Detection, 0, 1),
	}

	encoded := base64.StdEncoding.EncodeToString(image)

	searchResult, err := i.client.Search(ctx, encoded, i.group)
	if err != nil {
		log.WithError(err).Errorf("Can't process image from camera %s on baidu face", i.camera)
		return result
	}

	if searchResult == nil || len(searchResult.UserList) == 0 {
		log.Debugf("No face match for camera %s", i.camera)
		i.publish(homeassistant.DetectionEvent{
			Camera:    i.camera,
			Timestamp: time.Now(),
		})
		return result
	}

	top := searchResult.UserList[0]
	result.Attributes = Attributes{
		GroupID:  top.GroupID,
		Score:    top.Score,
		UserID:   top.UserID,
		UserInfo: top.UserInfo,
	}

	matched := top.Score >= i.confidence
	if matched {
		savedPath, err := i.saveFrame(top, image)
		if err != nil {
			log.WithError(err).Errorf("Failed to save matched frame for camera %s", i.camera)
		} else {
			result.SavedPath = savedPath
		}
	}

	result.Detections = append(result.Detections, Detection{
		Name:       top.UserID,
		Confidence: top.Score,
	})

	i.record(top, matched, result.SavedPath)
	i.publish(homeassistant.DetectionEvent{
		Camera:     i.camera,
		Timestamp:  time.Now(),
		Name:       top.UserID,
		Confidence: top.Score,
		GroupID:    top.GroupID,
		UserInfo:   top.UserInfo,
		FilePath:   result.SavedPath,
		Matched:    matched,
	})

	return result
}

// saveFrame writes the raw frame bytes under the save directory. The name is
// derived from user id, timestamp and confidence; collisions within the same
// second for the same user and confidence overwrite each other.
func (i *Identifier) saveFrame(top baidu.SearchUser, image []byte) (string, error) {
	if err := os.MkdirAll(i.saveDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create save directory: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.jpg",
		top.UserID,
		time.Now().Format("20060102_150405"),
		formatScore(top.Score))
	savePath := filepath.Join(i.saveDir, filename)

	if err := os.WriteFile(savePath, image, 0644); err != nil {
		return "", fmt.Errorf("failed to write frame: %w", err)
	}

	log.Infof("Saved matched frame for %s to %s", top.UserID, savePath)
	return savePath, nil
}

func (i *Identifier) record(top baidu.SearchUser, matched bool, savedPath string) {
	if i.repo == nil {
		return
	}

	detection := models.Detection{
		Camera:     i.camera,
		GroupID:    top.GroupID,
		UserID:     top.UserID,
		Confidence: top.Score,
		Matched:    matched,
		Source:     i.source,
	}
	if savedPath != "" {
		detection.FilePath = filepath.Base(savedPath)
	}
	if top.UserInfo != "" {
		if info, err := userInfoJSON(top.UserInfo); err == nil {
			detection.UserInfo = info
		}
	}

	if err := i.repo.SaveDetection(&detection); err != nil {
		log.WithError(err).Error("Failed to record detection")
	}
}

func (i *Identifier) publish(event homeassistant.DetectionEvent) {
	if i.events == nil {
		return
	}
	if err := i.events.PublishDetection(event); err != nil {
		log.WithError(err).Errorf("Failed to publish detection event for camera %s", i.camera)
	}
}

// formatScore renders a score the way it appears in saved filenames: no
// trailing zeros, no exponent.
func formatScore(score float64) string {
	return strconv.FormatFloat(score, 'f', -1, 64)
}

// userInfoJSON stores the free-form user_info string as a JSON value.
func userInfoJSON(info string) (datatypes.JSON, error) {
	encoded, err := json.Marshal(info)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(encoded), nil
}
