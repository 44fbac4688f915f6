package player

import (
	"time"

	"github.com/AaronLay10/protoflow/internal/model"
)

// Frame is what the preview renders at one instant.
type Frame struct {
	Seq                  uint64              `json:"seq"`
	At                   float64             `json:"t"`
	Elements             []model.Element     `json:"elements"`
	ActiveDisplayStateID string              `json:"activeDisplayStateId"`
	ActiveKeyframeID     string              `json:"activeKeyframeId"`
	Transition           *TransitionProgress `json:"transition,omitempty"`
	ActivePatchIDs       []string            `json:"activePatchIds"`
}

// TransitionProgress identifies the transition in flight and its time
// progress in [0, 1].
type TransitionProgress struct {
	ID       string  `json:"id"`
	Progress float64 `json:"progress"`
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
