// Package health implements the gRPC transport reporting whether the plugin
// is connected to the Stream Deck host.
//
// It exposes the standard grpc.health.v1 service so generic probes such as
// grpc_health_probe can watch the plugin.
package health
