// Copyright 2026 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package strace records one OpenTelemetry span per dispatched syscall.
//
// Spans go to the global tracer provider, which is a no-op until Init (or the
// embedding program) installs a real one.
package strace

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/nerdsane/strideos/pkg/sentry/strace"

// Attribute keys set on syscall spans.
const (
	KeyTID    = attribute.Key("task.tid")
	KeySysno  = attribute.Key("syscall.number")
	KeyArgs   = attribute.Key("syscall.args")
	KeyResult = attribute.Key("syscall.result")
	KeyBootID = attribute.Key("kernel.boot_id")
)

// Init installs a tracer provider that writes spans to w synchronously and
// returns its shutdown function.
func Init(w io.Writer, bootID string) (func(context.Context) error, error) {
	exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("creating stdout exporter: %w", err)
	}
	res := resource.NewSchemaless(
		attribute.String("service.name", "strideos"),
		KeyBootID.String(bootID),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// Enter starts the span for a syscall. name may be empty for unknown
// syscalls.
func Enter(tid int32, sysno uintptr, name string, args [3]uintptr) trace.Span {
	if name == "" {
		name = fmt.Sprintf("sys_%d", sysno)
	}
	_, span := otel.Tracer(instrumentationName).Start(context.Background(), name,
		trace.WithAttributes(
			KeyTID.Int(int(tid)),
			KeySysno.Int64(int64(sysno)),
			KeyArgs.String(fmt.Sprintf("%#x %#x %#x", args[0], args[1], args[2])),
		))
	return span
}

// Exit finishes span with the syscall's return value. Negative results mark
// the span as failed.
func Exit(span trace.Span, ret int64) {
	span.SetAttributes(KeyResult.Int64(ret))
	if ret < 0 {
		span.SetStatus(codes.Error, "syscall failed")
	}
	span.End()
}
