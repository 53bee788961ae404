// Package pipeline runs record pipelines between `Peer`s (ie data
// source/destination).
//
// A pipeline reads records from its source peers, applies source, pipeline
// and sink transformations (see package transform) and publishes the result
// to every sink peer. A source record is acknowledged only after all
// subscribed pipelines have published it, giving at-least-once delivery.
//
// It defines a `Connector` interface that all `Peer` types must implement.
// Connectors register themselves with RegisterConnector, usually from an
// init function in their package.
package pipeline
