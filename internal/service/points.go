package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"fargoat/internal/blockchain/evm"
	"fargoat/internal/quest"
)

// PointsPerReward is the number of contract points converted into one reward
const PointsPerReward = 100

// Points ledger errors
var (
	ErrFounderExists      = errors.New("founder already exists")
	ErrFounderInactive    = errors.New("founder is not active")
	ErrInsufficientPoints = errors.New("insufficient points")
	ErrNoRewards          = errors.New("no rewards to claim")
	ErrInvalidPoints      = errors.New("invalid points request")
)

// Founder is a project founder's points account
type Founder struct {
	Name              string   `json:"founder_name"`
	Contracts         []string `json:"contracts"`
	AllocatedPoints   uint64   `json:"allocated_points"`
	DistributedPoints uint64   `json:"distributed_points"`
	EarnedRewards     uint64   `json:"earned_rewards"`
	Active            bool     `json:"is_active"`
}

// AvailablePoints returns the allocated points not yet distributed
func (f Founder) AvailablePoints() uint64 {
	return f.AllocatedPoints - f.DistributedPoints
}

// ContractPoints is the points pool of a registered contract
type ContractPoints struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Address        string `json:"contract_address"`
	CurrentPoints  uint64 `json:"current_points"`
	PendingRewards uint64 `json:"pending_rewards"`
	ClaimedRewards uint64 `json:"claimed_rewards"`
}

// PointsLedger tracks founder point allocations and the point pools of the
// registered quest contracts. State is kept in memory.
type PointsLedger struct {
	mu        sync.Mutex
	founders  map[string]*Founder
	contracts map[string]*ContractPoints
	logger    *zap.Logger
}

// NewPointsLedger creates a ledger with an empty pool per registered contract
func NewPointsLedger(logger *zap.Logger) *PointsLedger {
	l := &PointsLedger{
		founders:  make(map[string]*Founder),
		contracts: make(map[string]*ContractPoints, len(quest.FounderContracts)),
		logger:    logger.Named("points"),
	}
	for _, c := range quest.FounderContracts {
		address, err := evm.ChecksumAddress(c.Address)
		if err != nil {
			address = c.Address
		}
		l.contracts[c.ID] = &ContractPoints{ID: c.ID, Name: c.Name, Address: address}
	}
	return l
}

// CreateFounder opens a founder account with an initial allocation
func (l *PointsLedger) CreateFounder(name string, allocated uint64, active bool) (Founder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Founder{}, fmt.Errorf("%w: founder_name is required", ErrInvalidPoints)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.founders[name]; ok {
		return Founder{}, fmt.Errorf("founder %s: %w", name, ErrFounderExists)
	}
	f := &Founder{
		Name:            name,
		Contracts:       []string{},
		AllocatedPoints: allocated,
		Active:          active,
	}
	l.founders[name] = f

	l.logger.Info("Founder created",
		zap.String("founder", name),
		zap.Uint64("allocated_points", allocated),
		zap.Bool("active", active))

	return f.clone(), nil
}

// Founder returns a founder account
func (l *PointsLedger) Founder(name string) (Founder, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, ok := l.founders[name]
	if !ok {
		return Founder{}, fmt.Errorf("founder %s: %w", name, ErrNotFound)
	}
	return f.clone(), nil
}

// Contracts returns the contract pools sorted by id
func (l *PointsLedger) Contracts() []ContractPoints {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]ContractPoints, 0, len(l.contracts))
	for _, c := range l.contracts {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// AllocatePoints adds points to an active founder's allocation
func (l *PointsLedger) AllocatePoints(name string, points uint64) (Founder, error) {
	if points == 0 {
		return Founder{}, fmt.Errorf("%w: points must be greater than 0", ErrInvalidPoints)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.activeFounderLocked(name)
	if err != nil {
		return Founder{}, err
	}
	if f.AllocatedPoints+points < f.AllocatedPoints {
		return Founder{}, fmt.Errorf("%w: allocation overflows", ErrInvalidPoints)
	}
	f.AllocatedPoints += points

	l.logger.Info("Points allocated",
		zap.String("founder", name),
		zap.Uint64("points", points),
		zap.Uint64("allocated_points", f.AllocatedPoints))

	return f.clone(), nil
}

// DistributePoints moves undistributed founder points into a contract pool.
// At most AllocatedPoints-DistributedPoints can be distributed.
func (l *PointsLedger) DistributePoints(name, contract string, points uint64) (Founder, ContractPoints, error) {
	if points == 0 {
		return Founder{}, ContractPoints{}, fmt.Errorf("%w: points must be greater than 0", ErrInvalidPoints)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.activeFounderLocked(name)
	if err != nil {
		return Founder{}, ContractPoints{}, err
	}
	if points > f.AvailablePoints() {
		return Founder{}, ContractPoints{}, fmt.Errorf("%w: %d available, %d requested",
			ErrInsufficientPoints, f.AvailablePoints(), points)
	}
	c, err := l.contractLocked(contract)
	if err != nil {
		return Founder{}, ContractPoints{}, err
	}

	f.DistributedPoints += points
	c.CurrentPoints += points
	if !containsString(f.Contracts, c.ID) {
		f.Contracts = append(f.Contracts, c.ID)
	}

	l.logger.Info("Points distributed",
		zap.String("founder", name),
		zap.String("contract", c.ID),
		zap.Uint64("points", points))

	return f.clone(), *c, nil
}

// ConvertPoints turns contract points into pending rewards at
// PointsPerReward points per reward. The remainder below one reward is
// consumed with the converted points.
func (l *PointsLedger) ConvertPoints(name, contract string, points uint64) (ContractPoints, error) {
	if points == 0 {
		return ContractPoints{}, fmt.Errorf("%w: points must be greater than 0", ErrInvalidPoints)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.activeFounderLocked(name); err != nil {
		return ContractPoints{}, err
	}
	c, err := l.contractLocked(contract)
	if err != nil {
		return ContractPoints{}, err
	}
	if points > c.CurrentPoints {
		return ContractPoints{}, fmt.Errorf("%w: contract %s holds %d, %d requested",
			ErrInsufficientPoints, c.ID, c.CurrentPoints, points)
	}

	rewards := points / PointsPerReward
	c.CurrentPoints -= points
	c.PendingRewards += rewards

	l.logger.Info("Points converted",
		zap.String("founder", name),
		zap.String("contract", c.ID),
		zap.Uint64("points", points),
		zap.Uint64("rewards", rewards))

	return *c, nil
}

// ClaimRewards credits a contract's pending rewards to the founder
func (l *PointsLedger) ClaimRewards(name, contract string) (Founder, ContractPoints, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := l.activeFounderLocked(name)
	if err != nil {
		return Founder{}, ContractPoints{}, err
	}
	c, err := l.contractLocked(contract)
	if err != nil {
		return Founder{}, ContractPoints{}, err
	}
	if c.PendingRewards == 0 {
		return Founder{}, ContractPoints{}, fmt.Errorf("contract %s: %w", c.ID, ErrNoRewards)
	}

	claimed := c.PendingRewards
	f.EarnedRewards += claimed
	c.ClaimedRewards += claimed
	c.PendingRewards = 0

	l.logger.Info("Rewards claimed",
		zap.String("founder", name),
		zap.String("contract", c.ID),
		zap.Uint64("rewards", claimed))

	return f.clone(), *c, nil
}

func (l *PointsLedger) activeFounderLocked(name string) (*Founder, error) {
	f, ok := l.founders[name]
	if !ok {
		return nil, fmt.Errorf("founder %s: %w", name, ErrNotFound)
	}
	if !f.Active {
		return nil, fmt.Errorf("founder %s: %w", name, ErrFounderInactive)
	}
	return f, nil
}

// contractLocked resolves a registered contract by id or by address
func (l *PointsLedger) contractLocked(ref string) (*ContractPoints, error) {
	if c, ok := l.contracts[ref]; ok {
		return c, nil
	}
	if address, err := evm.ChecksumAddress(ref); err == nil {
		for _, c := range l.contracts {
			if c.Address == address {
				return c, nil
			}
		}
	}
	return nil, fmt.Errorf("contract %s: %w", ref, ErrNotFound)
}

func (f *Founder) clone() Founder {
	out := *f
	out.Contracts = append([]string{}, f.Contracts...)
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
