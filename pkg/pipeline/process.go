package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/edgeflare/json2avro/pkg/metrics"
	"github.com/edgeflare/json2avro/pkg/pipeline/record"
	"github.com/edgeflare/json2avro/pkg/pipeline/transform"
)

// Processing stages reported in ProcessError and metrics.
const (
	StageSource   = "source"
	StagePipeline = "pipeline"
	StageSink     = "sink"
	StagePublish  = "publish"
)

// ProcessError describes a record that failed in a pipeline.
type ProcessError struct {
	Err      error
	Pipeline string
	Stage    string
	Source   string
	Sink     string
	Record   record.Source
}

func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("pipeline %s: %s stage failed for record %s", e.Pipeline, e.Stage, e.Record)
	if e.Sink != "" {
		msg += " (sink " + e.Sink + ")"
	}
	return msg + ": " + e.Err.Error()
}

func (e *ProcessError) Unwrap() error { return e.Err }

type sinkRunner struct {
	peer      *Peer
	transform transform.Func
	name      string
}

// runner is a pipeline with its transformation chains built.
type runner struct {
	logger   *zap.Logger
	sources  map[string]transform.Func
	pipeline transform.Func
	sinks    []sinkRunner
	name     string
	onError  OnError
}

func (m *Manager) newRunner(pl Pipeline) (*runner, error) {
	r := &runner{
		logger:  m.logger.With(zap.String("pipeline", pl.Name)),
		sources: make(map[string]transform.Func, len(pl.Sources)),
		name:    pl.Name,
		onError: pl.OnError,
	}
	if r.onError == "" {
		r.onError = OnErrorSkip
	}

	var err error
	if r.pipeline, err = m.transforms.Chain(pl.Transformations); err != nil {
		return nil, fmt.Errorf("pipeline transformations: %w", err)
	}

	for _, src := range pl.Sources {
		if r.sources[src.Name], err = m.transforms.Chain(src.Transformations); err != nil {
			return nil, fmt.Errorf("source %s transformations: %w", src.Name, err)
		}
	}

	for _, sink := range pl.Sinks {
		peer, err := m.GetPeer(sink.Name)
		if err != nil {
			return nil, fmt.Errorf("sink peer %s not found: %w", sink.Name, err)
		}
		if peer.Connector().Type() == ConnectorTypeSub {
			return nil, fmt.Errorf("sink peer %s: %w", sink.Name, ErrConnectorTypeMismatch)
		}
		fn, err := m.transforms.Chain(sink.Transformations)
		if err != nil {
			return nil, fmt.Errorf("sink %s transformations: %w", sink.Name, err)
		}
		r.sinks = append(r.sinks, sinkRunner{peer: peer, transform: fn, name: sink.Name})
	}

	return r, nil
}

// process runs one source record through the pipeline and publishes the
// output to every sink. It stops at the first failure.
func (r *runner) process(sourceName string, event record.WriteEvent) error {
	timer := prometheus.NewTimer(metrics.RecordProcessingDuration.WithLabelValues(
		r.name,
		sourceName,
		"",
	))
	defer timer.ObserveDuration()

	fail := func(stage, sink string, err error) error {
		perr := &ProcessError{
			Err:      err,
			Pipeline: r.name,
			Stage:    stage,
			Source:   sourceName,
			Sink:     sink,
			Record:   event.Source,
		}
		if stage == StagePublish {
			metrics.PublishErrors.WithLabelValues(sink).Inc()
		} else {
			metrics.TransformationErrors.WithLabelValues(
				transform.ErrorType(err),
				stage,
				r.name,
				sourceName,
				sink,
			).Inc()
		}
		r.logger.Error("Record processing failed",
			zap.String("stage", stage),
			zap.String("source", sourceName),
			zap.String("sink", sink),
			zap.Stringer("record", event.Source),
			zap.String("errorType", transform.ErrorType(err)),
			zap.Error(err))
		return perr
	}

	var staged record.Collector
	chain, ok := r.sources[sourceName]
	if !ok {
		return fail(StageSource, "", fmt.Errorf("source %s not part of pipeline", sourceName))
	}
	if err := chain(event, &staged); err != nil {
		return fail(StageSource, "", err)
	}

	var transformed record.Collector
	for _, rec := range staged.Records {
		if err := r.pipeline(record.WriteEvent{Record: rec, Source: event.Source}, &transformed); err != nil {
			return fail(StagePipeline, "", err)
		}
	}

	for _, sink := range r.sinks {
		var out record.Collector
		for _, rec := range transformed.Records {
			if err := sink.transform(record.WriteEvent{Record: rec, Source: event.Source}, &out); err != nil {
				return fail(StageSink, sink.name, err)
			}
		}

		for _, rec := range out.Records {
			if err := sink.peer.Connector().Pub(rec, sink.peer.Args...); err != nil {
				return fail(StagePublish, sink.name, err)
			}
			metrics.ProcessedRecords.WithLabelValues(
				r.name,
				sourceName,
				sink.name,
			).Inc()
		}
	}

	return nil
}

// consume processes deliveries from one source for all pipelines subscribed
// to it. A delivery is acknowledged once every pipeline has handled it.
func (m *Manager) consume(
	ctx context.Context,
	wg *sync.WaitGroup,
	sourceName string,
	deliveries <-chan Delivery,
	runners []*runner,
	errChan chan<- error,
) {
	defer wg.Done()

	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				m.logger.Info("Source closed", zap.String("source", sourceName))
				return
			}

			event := d.WriteEvent
			if event.Source.Peer == "" {
				event.Source.Peer = sourceName
			}
			for _, r := range runners {
				err := r.process(sourceName, event)
				if err != nil && r.onError == OnErrorHalt {
					select {
					case errChan <- err:
					default:
					}
					return
				}
			}

			if d.Ack != nil {
				d.Ack()
			}

		case <-ctx.Done():
			return
		}
	}
}
