/*
 *    Copyright 2021 chenquan
 *
 *    Licensed under the Apache License, Version 2.0 (the "License");
 *    you may not use this file except in compliance with the License.
 *    You may obtain a copy of the License at
 *
 *        http://www.apache.org/licenses/LICENSE-2.0
 *
 *    Unless required by applicable law or agreed to in writing, software
 *    distributed under the License is distributed on an "AS IS" BASIS,
 *    WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *    See the License for the specific language governing permissions and
 *    limitations under the License.
 */

// Package xtrace centralizes the tracer name the broker's subsystems
// use to pull a tracer from the globally configured provider, mirroring
// the teacher's server.go call to otel.GetTracerProvider().Tracer(xtrace.Name).
package xtrace

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/jaeger"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Name is the tracer name used across the broker.
const Name = "github.com/yunqi/lighthouse"

// Tracer returns the broker-wide tracer from whatever provider is
// currently registered (no-op until ConfigureExporter is called).
func Tracer() trace.Tracer {
	return otel.GetTracerProvider().Tracer(Name)
}

// Exporter selects which trace backend ConfigureExporter wires up.
type Exporter string

const (
	ExporterNone   Exporter = ""
	ExporterJaeger Exporter = "jaeger"
	ExporterZipkin Exporter = "zipkin"
)

// ConfigureExporter installs a global TracerProvider exporting to the
// named backend at endpoint. Passing ExporterNone leaves the default
// (no-op) provider in place.
func ConfigureExporter(ctx context.Context, exp Exporter, endpoint, serviceName string) (func(context.Context) error, error) {
	var (
		sp  sdktrace.SpanExporter
		err error
	)
	switch exp {
	case ExporterJaeger:
		sp, err = jaeger.New(jaeger.WithCollectorEndpoint(jaeger.WithEndpoint(endpoint)))
	case ExporterZipkin:
		sp, err = zipkin.New(endpoint)
	case ExporterNone:
		return func(context.Context) error { return nil }, nil
	}
	if err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes())
	if err != nil {
		return nil, err
	}
	_ = serviceName

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(sp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}
