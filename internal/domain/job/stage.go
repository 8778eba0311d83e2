package job

import "fmt"

// Stage is the progress of a job through the workshop.
type Stage string

const (
	StageDiagnostic Stage = "DIAGNOSTIC"
	StageRepair     Stage = "REPAIR"
	StageTesting    Stage = "TESTING"
	StageCompletion Stage = "COMPLETION"
)

// stageTransitions lists the stages reachable through a generic stage update.
// COMPLETION is absent: it is only reached through Job.Complete.
var stageTransitions = map[Stage][]Stage{
	StageDiagnostic: {StageRepair},
	StageRepair:     {StageTesting},
	StageTesting:    {},
	StageCompletion: {},
}

// IsValid returns true if the stage is recognized.
func (s Stage) IsValid() bool {
	_, ok := stageTransitions[s]
	return ok
}

// CanAdvanceTo reports whether a generic stage update may move from s to target.
func (s Stage) CanAdvanceTo(target Stage) bool {
	for _, t := range stageTransitions[s] {
		if t == target {
			return true
		}
	}
	return false
}

// IsOpen reports whether the job is still in progress.
func (s Stage) IsOpen() bool {
	return s.IsValid() && s != StageCompletion
}

func (s Stage) String() string { return string(s) }

// ParseStage converts a string to a Stage, returning an error if invalid.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.IsValid() {
		return "", fmt.Errorf("invalid job stage: %s", s)
	}
	return stage, nil
}
