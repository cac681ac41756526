package session

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/huanfeng/apk-extractor/internal/errors"
	"github.com/huanfeng/apk-extractor/internal/script"
	"github.com/huanfeng/apk-extractor/pkg/adb"
	"github.com/huanfeng/apk-extractor/pkg/apk"
	"github.com/huanfeng/apk-extractor/pkg/models"
)

// State is the data steps hand to each other.
type State struct {
	Package      models.PackageRef `json:"package" yaml:"package"`
	Options      ExtractOptions    `json:"-" yaml:"-"`
	ScriptReport *script.Report    `json:"script_report,omitempty" yaml:"script_report,omitempty"`
	Artifact     *models.Artifact  `json:"artifact,omitempty" yaml:"artifact,omitempty"`
	Info         *apk.APKInfo      `json:"info,omitempty" yaml:"info,omitempty"`
	IconPath     string            `json:"icon_path,omitempty" yaml:"icon_path,omitempty"`

	// LastResult is the adb result of the running step, if any.
	LastResult *adb.Result `json:"-" yaml:"-"`
}

// Record keeps r as the step's adb result.
func (st *State) Record(r *adb.Result) {
	st.LastResult = r
}

// Step is one stage of a pipeline. Run must check the state its
// predecessors produced before acting.
type Step interface {
	Name() string
	Run(ctx context.Context, s *Session, st *State) error
}

type stepFunc struct {
	name string
	fn   func(ctx context.Context, s *Session, st *State) error
}

func (f stepFunc) Name() string { return f.name }

func (f stepFunc) Run(ctx context.Context, s *Session, st *State) error {
	return f.fn(ctx, s, st)
}

// NewStep wraps fn as a named Step.
func NewStep(name string, fn func(ctx context.Context, s *Session, st *State) error) Step {
	return stepFunc{name: name, fn: fn}
}

// StepResult records how a step went.
type StepResult struct {
	Name     string        `json:"name" yaml:"name"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Result   *adb.Result   `json:"result,omitempty" yaml:"result,omitempty"`
	Err      error         `json:"-" yaml:"-"`
	Error    string        `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report is the outcome of a pipeline run.
type Report struct {
	Steps    []StepResult  `json:"steps" yaml:"steps"`
	State    *State        `json:"state" yaml:"state"`
	Duration time.Duration `json:"duration" yaml:"duration"`
	Err      error         `json:"-" yaml:"-"`
}

// OK reports whether every step succeeded.
func (r *Report) OK() bool {
	return r.Err == nil
}

// Failed returns the failing step, or nil.
func (r *Report) Failed() *StepResult {
	for i := range r.Steps {
		if r.Steps[i].Err != nil {
			return &r.Steps[i]
		}
	}
	return nil
}

// Pipeline runs steps in order and stops at the first failure.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline from steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// Names lists the step names in order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.steps))
	for _, step := range p.steps {
		names = append(names, step.Name())
	}
	return names
}

// Run executes the pipeline against s.
func (p *Pipeline) Run(ctx context.Context, s *Session, st *State) *Report {
	report := &Report{State: st}
	start := time.Now()

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			report.Err = errors.WrapError(err, errors.ErrorTypeTimeout, errors.CodeCommandFailed,
				"extraction interrupted before "+step.Name())
			break
		}

		st.LastResult = nil
		s.Notify(step.Name(), LevelDebug, "Starting %s", step.Name())

		stepStart := time.Now()
		err := step.Run(ctx, s, st)
		res := StepResult{
			Name:     step.Name(),
			Duration: time.Since(stepStart),
			Result:   st.LastResult,
			Err:      err,
		}
		if err != nil {
			res.Error = err.Error()
		}
		report.Steps = append(report.Steps, res)

		if err != nil {
			var xerr *errors.ExtractorError
			if stderrors.As(err, &xerr) && xerr.Context["step"] == "" {
				xerr.WithContext("step", step.Name())
			}
			report.Err = err
			if st.Artifact != nil && !st.Artifact.Terminal() {
				st.Artifact.MarkFailed(err)
			}
			s.Notify(step.Name(), LevelError, "%s failed: %v", step.Name(), err)
			break
		}
	}

	report.Duration = time.Since(start)
	return report
}
