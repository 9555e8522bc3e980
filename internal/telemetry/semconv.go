package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys for objpool telemetry.
const (
	AttrPoolName    = attribute.Key("pool.name")
	AttrEnvironment = attribute.Key("environment")
	AttrRunID       = attribute.Key("run.id")
)
