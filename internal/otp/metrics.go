package otp

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	sentCounter = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Namespace: "cardforge",
		Name:      "otp_sent_total",
		Help:      "OTP send attempts by provider, purpose and result.",
	}, []string{"provider", "purpose", "result"})

	verifyCounter = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Namespace: "cardforge",
		Name:      "otp_verifications_total",
		Help:      "OTP verifications by purpose and result.",
	}, []string{"purpose", "result"})
)
