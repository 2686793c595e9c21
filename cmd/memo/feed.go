package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/jay7-tech/memo-go/core"
	"github.com/jay7-tech/memo-go/engine"
	"github.com/jay7-tech/memo-go/identity"
)

// envelope is one JSON line from the perception front-end: either a
// frame or an utterance.
type envelope struct {
	Type  string        `json:"type"`
	Frame *frameMessage `json:"frame,omitempty"`
	Text  string        `json:"text,omitempty"`
}

type frameMessage struct {
	Detections []detectionMessage `json:"detections"`
	Pose       *poseMessage       `json:"pose,omitempty"`

	// Embedding is the precomputed face embedding, if the front-end
	// runs its own extractor.
	Embedding []float32 `json:"embedding,omitempty"`

	// FaceCrop is a normalized CHW tensor of the face crop; when set
	// and Embedding is not, the configured embedder runs on it.
	FaceCrop []float32 `json:"face_crop,omitempty"`

	TimestampMS int64 `json:"timestamp_ms"`
	Width       int   `json:"width"`
	Height      int   `json:"height"`
}

type detectionMessage struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        boxMessage `json:"box"`
}

type boxMessage struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

type poseMessage struct {
	Keypoints map[string]pointMessage `json:"keypoints"`
	Box       boxMessage              `json:"box"`
}

type pointMessage struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// feed pumps stdin into the loop. It also services the one-shot
// triggers the resolver sets: a pending registration grabs the next
// frame's face, a selfie request is forwarded to the front-end as an
// event.
type feed struct {
	loop       *engine.Loop
	dispatcher *engine.Dispatcher
	embedder   identity.Embedder
	log        *zap.Logger

	pendingName string
}

func newFeed(loop *engine.Loop, dispatcher *engine.Dispatcher, embedder identity.Embedder, log *zap.Logger) *feed {
	return &feed{
		loop:       loop,
		dispatcher: dispatcher,
		embedder:   embedder,
		log:        log.Named("feed"),
	}
}

// Run reads JSON lines until EOF or context cancellation. Bad lines are
// logged and skipped; the feed never dies on malformed input.
func (f *feed) Run(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	// Frames with embeddings and crops run long.
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			f.log.Warn("skipping malformed input line", zap.Error(err))
			continue
		}

		switch env.Type {
		case "frame":
			if env.Frame == nil {
				f.log.Warn("frame envelope without frame payload")
				continue
			}
			f.handleFrame(ctx, env.Frame)
		case "utterance":
			if env.Text == "" {
				continue
			}
			f.loop.HandleUtterance(ctx, env.Text)
			f.serviceTriggers()
		default:
			f.log.Warn("unknown envelope type", zap.String("type", env.Type))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read input feed: %w", err)
	}
	return nil
}

func (f *feed) handleFrame(ctx context.Context, msg *frameMessage) {
	frame := toFrame(msg)

	if len(frame.Embedding) == 0 && len(msg.FaceCrop) > 0 && f.embedder != nil {
		emb, err := f.embedder.Embed(ctx, msg.FaceCrop)
		if err != nil {
			f.log.Warn("face embedding failed", zap.Error(err))
		} else {
			frame.Embedding = emb
		}
	}

	// A pending registration consumes the first frame with a face.
	if f.pendingName != "" && len(frame.Embedding) > 0 {
		if err := f.loop.RegisterFace(ctx, f.pendingName, frame.Embedding); err != nil {
			f.log.Warn("registration failed", zap.String("name", f.pendingName), zap.Error(err))
			f.dispatcher.Announce("Sorry, I could not register your face. Try again.")
		} else {
			f.dispatcher.Announce(fmt.Sprintf("Nice to meet you, %s! I will remember your face.", f.pendingName))
		}
		f.pendingName = ""
	}

	f.loop.ProcessFrame(ctx, frame)
}

// serviceTriggers picks up the one-shot flags an utterance may have set.
func (f *feed) serviceTriggers() {
	if name, ok := f.loop.ConsumeRegister(); ok {
		f.pendingName = name
	}
	if f.loop.ConsumeSelfie() {
		// The front-end owns the camera; tell it to snap.
		f.dispatcher.Dispatch([]core.Event{core.Log("selfie requested", time.Now())})
	}
}

func toFrame(msg *frameMessage) core.Frame {
	frame := core.Frame{
		Embedding: msg.Embedding,
		Width:     msg.Width,
		Height:    msg.Height,
	}
	if msg.TimestampMS > 0 {
		frame.Timestamp = time.UnixMilli(msg.TimestampMS)
	} else {
		frame.Timestamp = time.Now()
	}

	for _, det := range msg.Detections {
		frame.Detections = append(frame.Detections, core.Detection{
			Label:      det.Label,
			Confidence: det.Confidence,
			Box:        toBox(det.Box),
		})
	}
	if msg.Pose != nil {
		pose := &core.PoseEstimate{
			Keypoints: make(map[string]core.Point, len(msg.Pose.Keypoints)),
			Box:       toBox(msg.Pose.Box),
		}
		for name, pt := range msg.Pose.Keypoints {
			pose.Keypoints[name] = core.Point{X: pt.X, Y: pt.Y}
		}
		frame.Pose = pose
	}
	return frame
}

func toBox(b boxMessage) core.BoundingBox {
	return core.BoundingBox{X: b.X, Y: b.Y, W: b.W, H: b.H}
}
