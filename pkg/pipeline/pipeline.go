package pipeline

import (
	"errors"
	"fmt"

	"github.com/edgeflare/json2avro/pkg/pipeline/transform"
)

// OnError decides what a pipeline does with a record that fails to
// transform or publish.
type OnError string

const (
	// OnErrorSkip logs and counts the failure, then moves on to the next record.
	OnErrorSkip OnError = "skip"
	// OnErrorHalt stops consuming the source without acknowledging the record.
	OnErrorHalt OnError = "halt"
)

// Source is a pipeline input with its transformations.
type Source struct {
	// Name must match one of configured peers
	Name string `mapstructure:"name"`
	// Source transformations are applied (in the order specified) as soon as a record is received before any processing.
	Transformations []transform.Transformation `mapstructure:"transformations"`
}

// Sink is a pipeline output with its transformations.
type Sink struct {
	// Name must match one of configured peers
	Name string `mapstructure:"name"`
	// Sink-specific transformations are applied after source transformations, pipeline transformations and before sending to specific sink
	Transformations []transform.Transformation `mapstructure:"transformations"`
}

// Pipeline configures a complete data processing pipeline.
type Pipeline struct {
	Name    string   `mapstructure:"name"`
	OnError OnError  `mapstructure:"onError"`
	Sources []Source `mapstructure:"sources"`
	// Pipeline transformations are applied after source transformations and before sink transformations.
	// These are applied to all records flowing through a pipeline from its all sources to all sinks
	Transformations []transform.Transformation `mapstructure:"transformations"`
	Sinks           []Sink                     `mapstructure:"sinks"`
}

type Config struct {
	Peers     []Peer     `mapstructure:"peers"`
	Pipelines []Pipeline `mapstructure:"pipelines"`
}

func (c *Config) GetPeer(peerName string) *Peer {
	for i := range c.Peers {
		if c.Peers[i].Name == peerName {
			return &c.Peers[i]
		}
	}
	return nil
}

func (c *Config) GetPipeline(pipelineName string) *Pipeline {
	for i := range c.Pipelines {
		if c.Pipelines[i].Name == pipelineName {
			return &c.Pipelines[i]
		}
	}
	return nil
}

// Validate checks references between pipelines and peers.
func (c *Config) Validate() error {
	var errs []error

	peers := make(map[string]bool, len(c.Peers))
	for _, p := range c.Peers {
		if p.Name == "" {
			errs = append(errs, errors.New("peer without name"))
			continue
		}
		if peers[p.Name] {
			errs = append(errs, fmt.Errorf("duplicate peer %s", p.Name))
		}
		peers[p.Name] = true
	}

	pipelines := make(map[string]bool, len(c.Pipelines))
	for _, pl := range c.Pipelines {
		if pl.Name == "" {
			errs = append(errs, errors.New("pipeline without name"))
			continue
		}
		if pipelines[pl.Name] {
			errs = append(errs, fmt.Errorf("duplicate pipeline %s", pl.Name))
		}
		pipelines[pl.Name] = true

		switch pl.OnError {
		case "", OnErrorSkip, OnErrorHalt:
		default:
			errs = append(errs, fmt.Errorf("pipeline %s: invalid onError %q", pl.Name, pl.OnError))
		}
		if len(pl.Sources) == 0 {
			errs = append(errs, fmt.Errorf("pipeline %s: no sources", pl.Name))
		}
		if len(pl.Sinks) == 0 {
			errs = append(errs, fmt.Errorf("pipeline %s: no sinks", pl.Name))
		}
		for _, src := range pl.Sources {
			if !peers[src.Name] {
				errs = append(errs, fmt.Errorf("pipeline %s: source peer %s not found", pl.Name, src.Name))
			}
		}
		for _, sink := range pl.Sinks {
			if !peers[sink.Name] {
				errs = append(errs, fmt.Errorf("pipeline %s: sink peer %s not found", pl.Name, sink.Name))
			}
		}
	}

	return errors.Join(errs...)
}
