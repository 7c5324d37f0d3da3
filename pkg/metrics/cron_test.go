package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCronJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveDuration("purchase-expiry", 250*time.Millisecond)
	m.IncSuccess("purchase-expiry")
	m.IncFailure("")

	assert.Equal(t, float64(1), testutil.ToFloat64(m.success.WithLabelValues("purchase-expiry")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.failure.WithLabelValues("unknown")))
}

func TestNilReceiversAreSafe(t *testing.T) {
	var c *CronJobMetrics
	c.ObserveDuration("x", time.Second)
	c.IncSuccess("x")
	c.IncFailure("x")

	var d *DeliveryMetrics
	d.IncDecision("digital", "granted")
	d.AddBytes("digital", 10)

	var p *PurchaseMetrics
	p.IncConfirmation("confirmed")
}

func TestDeliveryMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	d := NewDeliveryMetrics(reg)

	d.IncDecision("digital", "denied")
	d.IncDecision("digital", "denied")
	d.AddBytes("preview", 2048)

	assert.Equal(t, float64(2), testutil.ToFloat64(d.decisions.WithLabelValues("digital", "denied")))
	assert.Equal(t, float64(2048), testutil.ToFloat64(d.bytesServed.WithLabelValues("preview")))
}
