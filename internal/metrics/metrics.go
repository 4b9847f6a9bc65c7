// Package metrics exports a stats report as Prometheus gauges in the node exporter textfile format.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"v2stats/internal/model"
)

const (
	namespace = "liquity"
	subsystem = "v2"
)

// Exporter holds one registry per report so repeated runs never share state.
type Exporter struct {
	registry *prometheus.Registry

	boldSupply  prometheus.Gauge
	debtPending prometheus.Gauge
	collValue   prometheus.Gauge
	spDeposits  prometheus.Gauge
	valueLocked prometheus.Gauge
	maxSPAPY    prometheus.Gauge

	branchCollValue   *prometheus.GaugeVec
	branchCollPrice   *prometheus.GaugeVec
	branchSPDeposits  *prometheus.GaugeVec
	branchDebtPending *prometheus.GaugeVec
	branchValueLocked *prometheus.GaugeVec
	branchSPAPY       *prometheus.GaugeVec
	branchSPAPYAvg    *prometheus.GaugeVec
}

func NewExporter() *Exporter {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	gauge := func(name, help string) prometheus.Gauge {
		return factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		})
	}
	branchGauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      name,
			Help:      help,
		}, append([]string{"collateral"}, labels...))
	}

	return &Exporter{
		registry:    reg,
		boldSupply:  gauge("total_bold_supply", "Total BOLD supply."),
		debtPending: gauge("total_debt_pending", "Pending interest and batch fees across branches."),
		collValue:   gauge("total_coll_value", "Collateral value across branches."),
		spDeposits:  gauge("total_sp_deposits", "Stability pool deposits across branches."),
		valueLocked: gauge("total_value_locked", "Collateral value plus stability pool deposits."),
		maxSPAPY:    gauge("max_sp_apy", "Highest stability pool APY across branches."),

		branchCollValue:   branchGauge("branch_coll_value", "Collateral value per branch."),
		branchCollPrice:   branchGauge("branch_coll_price", "Collateral price per branch."),
		branchSPDeposits:  branchGauge("branch_sp_deposits", "Stability pool deposits per branch."),
		branchDebtPending: branchGauge("branch_debt_pending", "Pending interest and batch fees per branch."),
		branchValueLocked: branchGauge("branch_value_locked", "Value locked per branch."),
		branchSPAPY:       branchGauge("branch_sp_apy", "Current stability pool APY per branch."),
		branchSPAPYAvg:    branchGauge("branch_sp_apy_avg", "Trailing stability pool APY from analytics.", "window"),
	}
}

// Observe sets every gauge from the report. Values that are not numbers are rejected.
func (e *Exporter) Observe(report model.Report) error {
	totals := []struct {
		gauge prometheus.Gauge
		value string
	}{
		{e.boldSupply, report.TotalBoldSupply},
		{e.debtPending, report.TotalDebtPending},
		{e.collValue, report.TotalCollValue},
		{e.spDeposits, report.TotalSPDeposits},
		{e.valueLocked, report.TotalValueLocked},
	}
	for _, t := range totals {
		v, err := decimalFloat(t.value)
		if err != nil {
			return err
		}
		t.gauge.Set(v)
	}

	maxAPY, err := strconv.ParseFloat(report.MaxSPAPY, 64)
	if err != nil {
		return fmt.Errorf("parse max_sp_apy %q: %w", report.MaxSPAPY, err)
	}
	e.maxSPAPY.Set(maxAPY)

	for symbol, branch := range report.Branch {
		if err := e.observeBranch(symbol, branch); err != nil {
			return fmt.Errorf("branch %s: %w", symbol, err)
		}
	}
	return nil
}

func (e *Exporter) observeBranch(symbol string, branch model.BranchReport) error {
	fields := []struct {
		vec   *prometheus.GaugeVec
		value string
	}{
		{e.branchCollValue, branch.CollValue},
		{e.branchCollPrice, branch.CollPrice},
		{e.branchSPDeposits, branch.SPDeposits},
		{e.branchDebtPending, branch.DebtPending},
		{e.branchValueLocked, branch.ValueLocked},
	}
	for _, f := range fields {
		v, err := decimalFloat(f.value)
		if err != nil {
			return err
		}
		f.vec.WithLabelValues(symbol).Set(v)
	}

	apy, err := strconv.ParseFloat(branch.SPAPY, 64)
	if err != nil {
		return fmt.Errorf("parse sp_apy %q: %w", branch.SPAPY, err)
	}
	e.branchSPAPY.WithLabelValues(symbol).Set(apy)

	windows := map[string]*string{"1d": branch.SPAPYAvg1d, "7d": branch.SPAPYAvg7d}
	for window, value := range windows {
		if value == nil {
			continue
		}
		avg, err := strconv.ParseFloat(*value, 64)
		if err != nil {
			return fmt.Errorf("parse sp_apy_avg_%s %q: %w", window, *value, err)
		}
		e.branchSPAPYAvg.WithLabelValues(symbol, window).Set(avg)
	}
	return nil
}

// WriteTextfile writes the registry to path for the node exporter textfile collector.
func (e *Exporter) WriteTextfile(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create metrics dir: %w", err)
		}
	}
	if err := prometheus.WriteToTextfile(path, e.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// Gatherer exposes the underlying registry.
func (e *Exporter) Gatherer() prometheus.Gatherer {
	return e.registry
}

// decimalFloat converts a decimal report value for export. Gauges are float64, so
// precision beyond float64 is lost here and only here.
func decimalFloat(value string) (float64, error) {
	d, err := decimal.NewFromString(value)
	if err != nil {
		return 0, fmt.Errorf("parse %q: %w", value, err)
	}
	return d.InexactFloat64(), nil
}

// TextfileSink writes each report it receives to a textfile with a fresh registry.
type TextfileSink struct {
	path string
}

func NewTextfileSink(path string) *TextfileSink {
	return &TextfileSink{path: path}
}

func (s *TextfileSink) PutReport(report model.Report) error {
	exporter := NewExporter()
	if err := exporter.Observe(report); err != nil {
		return fmt.Errorf("export metrics: %w", err)
	}
	return exporter.WriteTextfile(s.path)
}
