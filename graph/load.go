package graph

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// workflowFile is the on-disk YAML shape of a graph definition.
//
//	version: 1
//	name: research-pipeline
//	steps:
//	  - id: research
//	    kind: model_call
//	    config:
//	      prompt: "Research {{topic}}"
//	edges:
//	  - source: research
//	    target: draft
//	  - source: draft
//	    target: publish
//	    condition: "score > 0.8"
type workflowFile struct {
	Version int    `yaml:"version"`
	Name    string `yaml:"name"`
	Steps   []struct {
		ID     string         `yaml:"id"`
		Kind   string         `yaml:"kind"`
		Config map[string]any `yaml:"config"`
	} `yaml:"steps"`
	Edges []struct {
		Source    string `yaml:"source"`
		Target    string `yaml:"target"`
		Condition string `yaml:"condition"`
	} `yaml:"edges"`
}

// workflowFileVersion is the only supported declarative format version.
const workflowFileVersion = 1

// StepFactory builds an executable Step from a declarative kind and config.
// steps.Env.Build is the standard factory covering the built-in kinds.
type StepFactory func(kind StepKind, config map[string]any) (Step, error)

// LoadYAML builds a GraphDefinition from a declarative workflow file.
//
// The factory turns each declared step into an executable implementation;
// unknown kinds or invalid configs surface as the factory's error wrapped
// in a ConfigError. Edge conditions use the same expr syntax as
// AddEdgeWhen.
func LoadYAML(data []byte, factory StepFactory) (*GraphDefinition, error) {
	if factory == nil {
		return nil, &ConfigError{Message: "step factory is required", Code: "MISSING_FACTORY"}
	}

	var wf workflowFile
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, &ConfigError{Message: "invalid workflow yaml", Code: "BAD_YAML", Cause: err}
	}

	if wf.Version != workflowFileVersion {
		return nil, &ConfigError{
			Message: fmt.Sprintf("unsupported workflow version %d (want %d)", wf.Version, workflowFileVersion),
			Code:    "BAD_VERSION",
		}
	}

	g := NewGraph(wf.Name)

	for _, s := range wf.Steps {
		step, err := factory(StepKind(s.Kind), s.Config)
		if err != nil {
			return nil, &ConfigError{
				Message: fmt.Sprintf("cannot build step %q (kind %q)", s.ID, s.Kind),
				Code:    "BAD_STEP",
				Cause:   err,
			}
		}
		if err := g.AddStep(s.ID, StepKind(s.Kind), step); err != nil {
			return nil, err
		}
	}

	for _, e := range wf.Edges {
		var err error
		if e.Condition != "" {
			err = g.AddEdgeWhen(e.Source, e.Target, e.Condition)
		} else {
			err = g.AddEdge(e.Source, e.Target, nil)
		}
		if err != nil {
			return nil, err
		}
	}

	return g, nil
}
