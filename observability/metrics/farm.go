package metrics

import (
	"math/big"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// FarmMetrics tracks staking ledger activity. All methods are safe on a nil
// receiver so engines built without telemetry stay silent.
type FarmMetrics struct {
	deposits            *prometheus.CounterVec
	withdrawals         *prometheus.CounterVec
	staked              *prometheus.CounterVec
	unstaked            *prometheus.CounterVec
	penalties           *prometheus.CounterVec
	harvested           *prometheus.CounterVec
	bonusGrants         *prometheus.CounterVec
	emergencyWithdrawal *prometheus.CounterVec
	accumulator         *prometheus.GaugeVec
}

var (
	farmOnce     sync.Once
	farmRegistry *FarmMetrics
)

func Farm() *FarmMetrics {
	farmOnce.Do(func() {
		farmRegistry = &FarmMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farm_deposits_total",
				Help: "Count of deposits by pool.",
			}, []string{"pool"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farm_withdrawals_total",
				Help: "Count of withdrawals by pool and whether a penalty applied.",
			}, []string{"pool", "penalized"}),
			staked: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farm_staked_amount_total",
				Help: "Stake units deposited by pool.",
			}, []string{"pool"}),
			unstaked: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farm_unstaked_amount_total",
				Help: "Stake units returned to stakers by pool, net of penalties.",
			}, []string{"pool"}),
			penalties: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farm_penalty_amount_total",
				Help: "Stake units routed to the penalty receiver by pool.",
			}, []string{"pool"}),
			harvested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farm_harvested_amount_total",
				Help: "Reward units minted to harvesters by pool.",
			}, []string{"pool"}),
			bonusGrants: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farm_bonus_grants_total",
				Help: "Count of one-time bonus grants by pool.",
			}, []string{"pool"}),
			emergencyWithdrawal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "farm_emergency_withdrawals_total",
				Help: "Count of emergency withdrawals by pool.",
			}, []string{"pool"}),
			accumulator: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "farm_acc_reward_per_share",
				Help: "Latest reward-per-share accumulator by pool (scaled by 1e12).",
			}, []string{"pool"}),
		}
		prometheus.MustRegister(
			farmRegistry.deposits,
			farmRegistry.withdrawals,
			farmRegistry.staked,
			farmRegistry.unstaked,
			farmRegistry.penalties,
			farmRegistry.harvested,
			farmRegistry.bonusGrants,
			farmRegistry.emergencyWithdrawal,
			farmRegistry.accumulator,
		)
	})
	return farmRegistry
}

func poolLabel(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// toFloat converts amounts for exposition. Precision loss above 2^53 is
// accepted for dashboards.
func toFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}

func (m *FarmMetrics) ObserveDeposit(pool uint64, amount *big.Int) {
	if m == nil {
		return
	}
	label := poolLabel(pool)
	m.deposits.WithLabelValues(label).Inc()
	m.staked.WithLabelValues(label).Add(toFloat(amount))
}

func (m *FarmMetrics) ObserveWithdraw(pool uint64, net, penalty *big.Int) {
	if m == nil {
		return
	}
	label := poolLabel(pool)
	penalized := penalty != nil && penalty.Sign() > 0
	m.withdrawals.WithLabelValues(label, strconv.FormatBool(penalized)).Inc()
	m.unstaked.WithLabelValues(label).Add(toFloat(net))
	if penalized {
		m.penalties.WithLabelValues(label).Add(toFloat(penalty))
	}
}

func (m *FarmMetrics) ObserveHarvest(pool uint64, amount *big.Int) {
	if m == nil {
		return
	}
	m.harvested.WithLabelValues(poolLabel(pool)).Add(toFloat(amount))
}

func (m *FarmMetrics) ObserveBonus(pool uint64) {
	if m == nil {
		return
	}
	m.bonusGrants.WithLabelValues(poolLabel(pool)).Inc()
}

func (m *FarmMetrics) ObserveEmergencyWithdraw(pool uint64, amount *big.Int) {
	if m == nil {
		return
	}
	label := poolLabel(pool)
	m.emergencyWithdrawal.WithLabelValues(label).Inc()
	m.unstaked.WithLabelValues(label).Add(toFloat(amount))
}

func (m *FarmMetrics) SetAccumulator(pool uint64, acc *big.Int) {
	if m == nil {
		return
	}
	m.accumulator.WithLabelValues(poolLabel(pool)).Set(toFloat(acc))
}

// InitPool pre-creates the per-pool series so dashboards see zeros.
func (m *FarmMetrics) InitPool(pool uint64) {
	if m == nil {
		return
	}
	label := poolLabel(pool)
	m.deposits.WithLabelValues(label).Add(0)
	m.withdrawals.WithLabelValues(label, "false").Add(0)
	m.withdrawals.WithLabelValues(label, "true").Add(0)
	m.harvested.WithLabelValues(label).Add(0)
	m.bonusGrants.WithLabelValues(label).Add(0)
	m.accumulator.WithLabelValues(label).Set(0)
}
