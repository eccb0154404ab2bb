package tasks

import "encoding/json"

// ---
// QUEUE DEFINITIONS
// ---
const (
	// QueueVideoAssemble runs the pipeline from voiceover to render submission.
	QueueVideoAssemble = "q_video_assemble"

	// QueueRenderPoll checks one video's render job.
	QueueRenderPoll = "q_render_poll"

	// QueueVideoPublish uploads a ready video, on demand or for a due schedule.
	QueueVideoPublish = "q_video_publish"
)

// All lists every queue the worker listens on.
var All = []string{QueueVideoAssemble, QueueRenderPoll, QueueVideoPublish}

// ---
// TASK PAYLOADS
// ---

// AssemblePayload is the payload for QueueVideoAssemble
type AssemblePayload struct {
	VideoID string `json:"video_id"`
}

// RenderPollPayload is the payload for QueueRenderPoll
type RenderPollPayload struct {
	VideoID string `json:"video_id"`
}

// PublishPayload is the payload for QueueVideoPublish. ScheduleID is set when a
// schedule triggered the publish; its outcome is then recorded on the schedule.
type PublishPayload struct {
	VideoID    string   `json:"video_id"`
	Platforms  []string `json:"platforms,omitempty"`
	ScheduleID string   `json:"schedule_id,omitempty"`
}

// Marshal creates a JSON payload for a task.
func Marshal(payload interface{}) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
