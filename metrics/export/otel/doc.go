// Package otel exports flareauth counters through an OpenTelemetry meter.
//
// [New] registers an Int64ObservableCounter per engine counter plus one for
// dropped audit events. A single callback reads
// [flareauth.Engine.MetricsSnapshot] on each collection cycle. Callers supply
// the Meter; this package never owns the MeterProvider.
package otel
