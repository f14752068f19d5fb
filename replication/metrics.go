// SPDX-FileCopyrightText: 2021 The margaret Authors
//
// SPDX-License-Identifier: MIT

package replication

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

var FramesSent = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "wirestate",
	Subsystem: "replication",
	Name:      "frames_sent_total",
})

var BytesSent = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "wirestate",
	Subsystem: "replication",
	Name:      "bytes_sent_total",
})

var FramesApplied = prometheus.NewCounter(prometheus.CounterOpts{
	Namespace: "wirestate",
	Subsystem: "replication",
	Name:      "frames_applied_total",
})

var FramesDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wirestate",
	Subsystem: "replication",
	Name:      "frames_dropped_total",
}, []string{"reason"})

var BlocksApplied = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "wirestate",
	Subsystem: "replication",
	Name:      "blocks_total",
}, []string{"result"})

// RegisterMetrics adds the replication metrics to reg.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{FramesSent, BytesSent, FramesApplied, FramesDropped, BlocksApplied} {
		if err := reg.Register(c); err != nil {
			return errors.Wrap(err, "replication: failed to register metrics")
		}
	}
	return nil
}
