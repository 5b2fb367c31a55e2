package runner

import "fmt"

// State is the position of a project run in the pipeline.
type State string

const (
	StateIdle          State = "idle"
	StateFetching      State = "fetching"
	StateBuilding      State = "building"
	StateImageBuilding State = "image_building"
	StateDeploying     State = "deploying"
	StateCompleted     State = "completed"
	StateFailed        State = "failed"
)

// stageStates maps each stage to the state the machine is in while it runs.
var stageStates = map[Stage]State{
	StageFetch:      StateFetching,
	StageBuild:      StateBuilding,
	StageImageBuild: StateImageBuilding,
	StageDeploy:     StateDeploying,
}

// transitions lists the legal successors of each state. Optional stages
// are skipped by jumping over them.
var transitions = map[State][]State{
	StateIdle:          {StateFetching},
	StateFetching:      {StateBuilding, StateImageBuilding, StateDeploying, StateFailed},
	StateBuilding:      {StateImageBuilding, StateDeploying, StateFailed},
	StateImageBuilding: {StateDeploying, StateFailed},
	StateDeploying:     {StateCompleted, StateFailed},
}

// machine tracks the state of one run and refuses illegal transitions.
type machine struct {
	state    State
	failedAt Stage
	history  []State
}

func newMachine() *machine {
	return &machine{state: StateIdle, history: []State{StateIdle}}
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			m.history = append(m.history, next)
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", m.state, next)
}

func (m *machine) enter(stage Stage) error {
	return m.to(stageStates[stage])
}

func (m *machine) fail(stage Stage) error {
	if err := m.to(StateFailed); err != nil {
		return err
	}
	m.failedAt = stage
	return nil
}

// String renders terminal failures as "failed@<stage>".
func (m *machine) String() string {
	if m.state == StateFailed {
		return fmt.Sprintf("%s@%s", m.state, m.failedAt)
	}
	return string(m.state)
}

// planStages returns the stages a run of ec goes through, in order.
func planStages(ec ExecutionContext) []Stage {
	stages := []Stage{StageFetch}
	if ec.BuildCommand != "" {
		stages = append(stages, StageBuild)
	}
	if _, ok := ec.Docker.(ContainerSpec); ok {
		stages = append(stages, StageImageBuild)
	}
	return append(stages, StageDeploy)
}
