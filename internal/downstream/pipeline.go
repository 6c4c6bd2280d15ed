// Package downstream implements the §6 downstream pipeline: "a single
// method accepting a Position... deliver asynchronously". The WebSocket
// sink's Publish hands the Position to a buffered channel and drops it when
// the channel is full; the logging sink prints it synchronously.
package downstream

import (
	"tracker_gateway/internal/model"
	"tracker_gateway/pkg/colors"
)

// Pipeline is the interface every downstream consumer implements.
type Pipeline interface {
	Publish(pos *model.Position)
}

// LoggingPipeline is the trivial Pipeline used when no richer consumer is
// configured: it just logs, the way the teacher logs every GPS packet it
// receives before persisting it.
type LoggingPipeline struct{}

// NewLoggingPipeline creates a LoggingPipeline.
func NewLoggingPipeline() *LoggingPipeline { return &LoggingPipeline{} }

// Publish implements Pipeline.
func (p *LoggingPipeline) Publish(pos *model.Position) {
	colors.PrintData("📍", "position device=%d protocol=%s lat=%.6f lon=%.6f valid=%v",
		pos.DeviceId, pos.Protocol, pos.Latitude, pos.Longitude, pos.Valid)
}

// MultiPipeline fans a Position out to every wrapped Pipeline, so e.g. the
// logging sink and the WebSocket broadcaster can run side by side.
type MultiPipeline struct {
	sinks []Pipeline
}

// NewMultiPipeline wraps zero or more Pipelines.
func NewMultiPipeline(sinks ...Pipeline) *MultiPipeline {
	return &MultiPipeline{sinks: sinks}
}

// Publish implements Pipeline.
func (p *MultiPipeline) Publish(pos *model.Position) {
	for _, sink := range p.sinks {
		sink.Publish(pos)
	}
}
