package engine

import (
	"fmt"
	"log"
	"math/big"
	"net/http"

	"cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PromMetrics struct {
	SettlementsSucceeded *prometheus.CounterVec
	SettlementsFailed    *prometheus.CounterVec
	FillerSettlements    *prometheus.CounterVec
	Duplicates           *prometheus.CounterVec
	WithheldValue        *prometheus.GaugeVec
}

func NewPromMetrics() *PromMetrics {
	// labels
	var (
		settlementLabels = []string{"status", "source_domain", "dest_domain"}
		duplicateLabels  = []string{"id_space"}
		withheldLabels   = []string{"asset"}
	)

	return &PromMetrics{
		SettlementsSucceeded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teleswap_settlements_succeeded_total",
			Help: "Settlements that completed a hop successfully",
		}, settlementLabels),
		SettlementsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teleswap_settlements_failed_total",
			Help: "Settlements whose hop failed and was withheld",
		}, settlementLabels),
		FillerSettlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teleswap_filler_settlements_total",
			Help: "Settlements paid to a filler instead of the recipient",
		}, settlementLabels),
		Duplicates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teleswap_duplicates_total",
			Help: "Duplicate inbound proofs and replayed bridge messages",
		}, duplicateLabels),
		WithheldValue: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "teleswap_withheld_value",
			Help: "Value currently withheld in the failure vault",
		}, withheldLabels),
	}
}

// InitPromMetrics registers the metrics and exposes the /metrics HTTP
// endpoint.
func InitPromMetrics(port int16) *PromMetrics {
	reg := prometheus.NewRegistry()

	m := NewPromMetrics()
	reg.MustRegister(m.SettlementsSucceeded, m.SettlementsFailed, m.FillerSettlements, m.Duplicates, m.WithheldValue)

	go func() {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		log.Fatal(http.ListenAndServe(fmt.Sprintf(":%d", port), nil))
	}()

	return m
}

// gaugeAmount converts a ledger amount for gauge arithmetic. Amounts are
// 256-bit and can exceed the int64 range.
func gaugeAmount(amount math.Int) float64 {
	f, _ := new(big.Float).SetInt(amount.BigInt()).Float64()
	return f
}
