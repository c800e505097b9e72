// Package telemetry assembles the OpenTelemetry export pipeline for the
// service.
//
// Traces, metrics and logs are each shipped over OTLP/HTTP to a collector
// endpoint (New Relic by default) with an api-key header. Payloads are
// JSON encoded by default; the stock protobuf exporters can be selected
// instead. Spans and log records go through a bounded batching queue
// (see package batch) and metrics through a periodic reader, so producers
// never wait on the network and export failures never reach request code.
//
// New builds the providers without touching global state. Publish makes
// them the process-wide defaults and may succeed only once per process.
package telemetry
