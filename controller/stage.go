package controller

import (
	"encoding/json"
	"fmt"
)

// Stage is the workflow phase. Transitions are linear with error
// short-circuits back to StageIdle; the controller is the only writer.
type Stage int

const (
	StageIdle Stage = iota
	StageInitializing
	StageRecognizing
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageIdle:
		return "idle"
	case StageInitializing:
		return "initializing"
	case StageRecognizing:
		return "recognizing"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// MarshalJSON emits the lowercase name so API consumers never see raw ints.
func (s Stage) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Stage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	switch name {
	case "idle":
		*s = StageIdle
	case "initializing":
		*s = StageInitializing
	case "recognizing":
		*s = StageRecognizing
	case "done":
		*s = StageDone
	default:
		return fmt.Errorf("unknown stage %q", name)
	}
	return nil
}
