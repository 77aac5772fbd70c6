package grpc

import (
	grpc_prom "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
)

// newServerMetrics creates gRPC server metrics registered on reg.
// A nil reg leaves them unregistered.
func newServerMetrics(reg prometheus.Registerer) (*grpc_prom.ServerMetrics, error) {
	m := grpc_prom.NewServerMetrics()
	m.EnableHandlingTimeHistogram()
	if reg == nil {
		return m, nil
	}
	if err := reg.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}
