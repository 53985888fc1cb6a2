// Copyright (c) 2024 Kata Containers contributors
//
// SPDX-License-Identifier: Apache-2.0
//

// Package trace wraps the OpenTelemetry tracer used across the hvcore
// pipeline so that every package starts spans the same way, the way
// virtcontainers' lifecycle operations are traced today.
package trace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/kata-containers/kata-containers/src/runtime/hvcore"

var tracer = otel.Tracer(instrumentationName)

// Start begins a span named name, returning the derived context and the
// span so the caller can set attributes or record an error before End.
func Start(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name)
}

// End finalizes span, recording err (if non-nil) as the span status.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
