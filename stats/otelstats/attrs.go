package otelstats

import (
	"go.opentelemetry.io/otel/attribute"

	"github.com/nodalrpc/nodal/status"
)

func methodAttr(fullMethod string) attribute.KeyValue {
	return attribute.String("nodal.method", fullMethod)
}

func codeAttr(s *status.Status) attribute.KeyValue {
	return attribute.String("nodal.code", s.Code().String())
}
