package alerting

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/stylusops/stylus-cache-monitor/internal/bidding"
	"github.com/stylusops/stylus-cache-monitor/internal/models"
)

// Condition is one observed state that may trigger alerts of its type
type Condition struct {
	Type            models.AlertType `json:"type"`
	UserID          string           `json:"user_id"`
	ContractAddress common.Address   `json:"contract_address,omitempty"`
	ObservedValue   *big.Int         `json:"observed_value,omitempty"`
	Message         string           `json:"message"`
}

// Snapshot is the freshly polled state the rules evaluate against.
// Programs maps codehashes of monitored contracts to their addresses;
// DeleteBid events name only the evicted codehash, so eviction rules
// resolve the affected program through it.
type Snapshot struct {
	BlockchainID   int64
	Events         []*models.CacheEvent
	ContractOwners map[common.Address]string
	Programs       map[common.Hash]common.Address
	GasBalances    map[string]*big.Int
	Assessments    []*bidding.Assessment
	AssessmentUser map[common.Address]string
}

// BuildConditions derives alert conditions from a snapshot, ordered by
// alert type priority: eviction, noGas, lowGas, bidSafety.
func BuildConditions(s *Snapshot) []Condition {
	if s == nil {
		return nil
	}

	var conditions []Condition

	// Evictions of monitored contracts. DeleteBid logs carry no program
	// address, so zero-program events resolve through the codehash map.
	for _, event := range s.Events {
		if !event.IsEviction() {
			continue
		}
		program := event.Program
		if program == (common.Address{}) {
			program = s.Programs[event.Codehash]
		}
		owner, monitored := s.ContractOwners[program]
		if !monitored {
			continue
		}
		conditions = append(conditions, Condition{
			Type:            models.AlertTypeEviction,
			UserID:          owner,
			ContractAddress: program,
			ObservedValue:   event.Bid,
			Message: fmt.Sprintf("contract %s was evicted from the cache at block %d",
				program.Hex(), event.BlockNumber),
		})
	}

	// Gas balances, deterministically ordered by user id.
	users := make([]string, 0, len(s.GasBalances))
	for user := range s.GasBalances {
		users = append(users, user)
	}
	sort.Strings(users)

	for _, user := range users {
		balance := s.GasBalances[user]
		if balance == nil {
			continue
		}
		if balance.Sign() == 0 {
			conditions = append(conditions, Condition{
				Type:          models.AlertTypeNoGas,
				UserID:        user,
				ObservedValue: balance,
				Message:       "funding wallet has no gas remaining",
			})
		}
		conditions = append(conditions, Condition{
			Type:          models.AlertTypeLowGas,
			UserID:        user,
			ObservedValue: balance,
			Message:       fmt.Sprintf("funding wallet balance is %s wei", balance.String()),
		})
	}

	// Unsafe bid assessments.
	for _, assessment := range s.Assessments {
		if assessment == nil || assessment.IsEligible {
			continue
		}
		user := s.AssessmentUser[assessment.ContractAddress]
		if user == "" {
			continue
		}
		conditions = append(conditions, Condition{
			Type:            models.AlertTypeBidSafety,
			UserID:          user,
			ContractAddress: assessment.ContractAddress,
			ObservedValue:   assessment.SafetyMarginBps,
			Message: fmt.Sprintf("bid for %s is unsafe: %s",
				assessment.ContractAddress.Hex(), assessment.Reason),
		})
	}

	sortByPriority(conditions)
	return conditions
}

// sortByPriority orders conditions by the declared alert priority ranking,
// critical first, keeping relative order within a type.
func sortByPriority(conditions []Condition) {
	rank := make(map[models.AlertType]int, len(models.AlertTypesByPriority))
	for i, t := range models.AlertTypesByPriority {
		rank[t] = i
	}
	sort.SliceStable(conditions, func(i, j int) bool {
		return rank[conditions[i].Type] < rank[conditions[j].Type]
	})
}

// matches reports whether the condition satisfies one alert's threshold
func (c Condition) matches(alert *models.Alert) bool {
	switch alert.Type {
	case models.AlertTypeEviction, models.AlertTypeBidSafety:
		return true
	case models.AlertTypeNoGas:
		return c.ObservedValue != nil && c.ObservedValue.Sign() == 0
	case models.AlertTypeLowGas:
		if c.ObservedValue == nil || alert.Value == nil {
			return false
		}
		return c.ObservedValue.Cmp(alert.Value) < 0
	default:
		return false
	}
}
