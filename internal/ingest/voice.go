package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"
)

// Capture errors. A failed start never enters the recording state.
var (
	ErrCaptureDenied      = errors.New("audio capture permission denied")
	ErrCaptureUnsupported = errors.New("audio capture unsupported")
	ErrAlreadyRecording   = errors.New("already recording")
	ErrNotRecording       = errors.New("not recording")
	ErrEmptyRecording     = errors.New("recording produced no audio")
)

// VoiceMIME is the encoding of recorded voice notes.
const VoiceMIME = "audio/webm"

// Recorder is an audio capture device. Each Start/Stop session yields one
// encoded blob.
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) ([]byte, error)
}

// VoiceNote wraps a recorded blob as a file named after the stop time.
func VoiceNote(blob []byte, at time.Time) File {
	return File{
		Name: fmt.Sprintf("voice-message-%d.webm", at.UnixMilli()),
		MIME: VoiceMIME,
		Data: blob,
	}
}

// Unsupported is the Recorder used when no capture source is configured.
type Unsupported struct{}

func (Unsupported) Start(context.Context) error { return ErrCaptureUnsupported }

func (Unsupported) Stop(context.Context) ([]byte, error) { return nil, ErrNotRecording }

// FileRecorder captures from a file written by an external recording tool.
// The file is checked on Start and read whole on Stop.
type FileRecorder struct {
	Path string
}

func (r FileRecorder) Start(context.Context) error {
	f, err := os.Open(r.Path)
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", ErrCaptureDenied, r.Path)
	case err != nil:
		return fmt.Errorf("%w: %v", ErrCaptureUnsupported, err)
	}
	return f.Close()
}

func (r FileRecorder) Stop(context.Context) ([]byte, error) {
	data, err := os.ReadFile(r.Path)
	if errors.Is(err, fs.ErrPermission) {
		return nil, fmt.Errorf("%w: %s", ErrCaptureDenied, r.Path)
	}
	return data, err
}

// VoiceSession tracks one recorder's recording state.
type VoiceSession struct {
	mu        sync.Mutex
	rec       Recorder
	now       func() time.Time
	startedAt time.Time
	recording bool
}

// NewVoiceSession wraps rec. now defaults to time.Now.
func NewVoiceSession(rec Recorder, now func() time.Time) *VoiceSession {
	if rec == nil {
		rec = Unsupported{}
	}
	if now == nil {
		now = time.Now
	}
	return &VoiceSession{rec: rec, now: now}
}

// Start begins recording.
func (v *VoiceSession) Start(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.recording {
		return ErrAlreadyRecording
	}
	if err := v.rec.Start(ctx); err != nil {
		return err
	}
	v.recording = true
	v.startedAt = v.now()
	return nil
}

// Stop ends recording and returns the voice note.
func (v *VoiceSession) Stop(ctx context.Context) (File, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.recording {
		return File{}, ErrNotRecording
	}
	v.recording = false
	blob, err := v.rec.Stop(ctx)
	if err != nil {
		return File{}, fmt.Errorf("stop recording: %w", err)
	}
	if len(blob) == 0 {
		return File{}, ErrEmptyRecording
	}
	return VoiceNote(blob, v.now()), nil
}

// Elapsed reports how long the current recording has run.
func (v *VoiceSession) Elapsed() (time.Duration, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.recording {
		return 0, false
	}
	return v.now().Sub(v.startedAt), true
}
