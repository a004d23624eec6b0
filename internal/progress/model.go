package progress

import (
	"fmt"
	"strings"
)

const totalWeight = 100

// Stage is one named phase of a compiler run.
type Stage struct {
	Name   string
	Weight int
	Marker string
	Index  int
}

type StageSpec struct {
	Name   string `yaml:"name" json:"name"`
	Weight int    `yaml:"weight" json:"weight"`
	Marker string `yaml:"marker" json:"marker"`
}

func DefaultStages() []StageSpec {
	return []StageSpec{
		{Name: "Init", Weight: 5, Marker: "Initializing"},
		{Name: "CompileMain", Weight: 30, Marker: "Compiling module"},
		{Name: "Dependencies", Weight: 15, Marker: "Doing module dependency"},
		{Name: "DataFiles", Weight: 10, Marker: "Including data files"},
		{Name: "CodeGen", Weight: 15, Marker: "Generating C source"},
		{Name: "CompileBinary", Weight: 20, Marker: "Compiling C source"},
		{Name: "FinalPackage", Weight: 5, Marker: "Creating binary"},
	}
}

// DefaultFinalMarkers covers Nuitka's own success message and the sentinel
// printed by wrapper scripts that report the artifact path explicitly.
func DefaultFinalMarkers() []string {
	return []string{"Successfully created", "输出文件:"}
}

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid stage model"
	}
	return fmt.Sprintf("invalid stage model: %s", strings.Join(e.Problems, "; "))
}

// Model is the immutable, ordered stage table plus the final-output markers.
type Model struct {
	stages       []Stage
	finalMarkers []string
	prefix       []int
}

func NewModel(specs []StageSpec, finalMarkers []string) (*Model, error) {
	problems := []string{}

	if len(specs) == 0 {
		problems = append(problems, "at least one stage must be defined")
	}

	sum := 0
	seenMarkers := map[string]struct{}{}
	stages := make([]Stage, 0, len(specs))
	for i, spec := range specs {
		name := strings.TrimSpace(spec.Name)
		if name == "" {
			problems = append(problems, fmt.Sprintf("stage %d name must not be empty", i))
		}
		if spec.Weight <= 0 || spec.Weight > totalWeight {
			problems = append(problems, fmt.Sprintf("stage %q weight must be in (0,100], got %d", name, spec.Weight))
		}
		sum += spec.Weight

		if spec.Marker == "" {
			problems = append(problems, fmt.Sprintf("stage %q marker must not be empty", name))
		} else {
			if _, exists := seenMarkers[spec.Marker]; exists {
				problems = append(problems, fmt.Sprintf("duplicate stage marker %q", spec.Marker))
			}
			seenMarkers[spec.Marker] = struct{}{}
		}

		stages = append(stages, Stage{Name: name, Weight: spec.Weight, Marker: spec.Marker, Index: i})
	}
	if len(specs) > 0 && sum != totalWeight {
		problems = append(problems, fmt.Sprintf("stage weights must sum to %d, got %d", totalWeight, sum))
	}

	markers := make([]string, 0, len(finalMarkers))
	for _, marker := range finalMarkers {
		if strings.TrimSpace(marker) == "" {
			continue
		}
		markers = append(markers, marker)
	}
	if len(markers) == 0 {
		problems = append(problems, "at least one final-output marker must be defined")
	}

	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}

	prefix := make([]int, len(stages)+1)
	for i, stage := range stages {
		prefix[i+1] = prefix[i] + stage.Weight
	}

	return &Model{stages: stages, finalMarkers: markers, prefix: prefix}, nil
}

// MustDefaultModel panics only if the embedded defaults are broken.
func MustDefaultModel() *Model {
	model, err := NewModel(DefaultStages(), DefaultFinalMarkers())
	if err != nil {
		panic(err)
	}
	return model
}

func (m *Model) Stages() []Stage {
	return append([]Stage(nil), m.stages...)
}

func (m *Model) Len() int {
	return len(m.stages)
}

func (m *Model) Stage(index int) Stage {
	return m.stages[index]
}

func (m *Model) LastIndex() int {
	return len(m.stages) - 1
}

// FindStageForLine returns the lowest-index stage whose marker occurs in line.
func (m *Model) FindStageForLine(line string) (Stage, bool) {
	return m.MatchFrom(line, 0)
}

// MatchFrom returns the lowest-index stage at or after from whose marker
// occurs in line. Stages before from are never reported, so a line that
// matches both a passed stage and a later one resolves to the later one.
func (m *Model) MatchFrom(line string, from int) (Stage, bool) {
	if from < 0 {
		from = 0
	}
	for i := from; i < len(m.stages); i++ {
		if strings.Contains(line, m.stages[i].Marker) {
			return m.stages[i], true
		}
	}
	return Stage{}, false
}

// FinalArtifact reports whether line carries a final-output marker and
// returns the artifact path that follows it.
func (m *Model) FinalArtifact(line string) (string, bool) {
	for _, marker := range m.finalMarkers {
		idx := strings.Index(line, marker)
		if idx < 0 {
			continue
		}
		return parseArtifactPath(line[idx+len(marker):]), true
	}
	return "", false
}

// weightBefore is the summed weight of all stages strictly before index.
func (m *Model) weightBefore(index int) int {
	return m.prefix[index]
}

func parseArtifactPath(rest string) string {
	path := strings.TrimSpace(rest)
	path = strings.TrimPrefix(path, ":")
	path = strings.TrimSpace(path)
	path = strings.TrimSuffix(path, ".")
	path = strings.Trim(path, "'\"`")
	return strings.TrimSpace(path)
}
