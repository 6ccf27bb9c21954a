package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"sort"

	"umbra_payment/internal/domain"

	"gopkg.in/yaml.v3"
)

//go:embed pools.yaml
var defaultPools []byte

type catalogFile struct {
	Pools []domain.Pool `yaml:"pools"`
}

// StaticReader serves a fixed set of pools held in memory
type StaticReader struct {
	pools map[string]*domain.Pool
	order []string
}

var _ Reader = (*StaticReader)(nil)

// Parse decodes a YAML catalog. Every pool must be drawable and ids unique.
func Parse(data []byte) ([]domain.Pool, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	seen := make(map[string]bool, len(f.Pools))
	for i := range f.Pools {
		p := &f.Pools[i]
		if p.PoolID == "" {
			return nil, fmt.Errorf("%w: pool #%d has no pool_id", domain.ErrInvalidPool, i)
		}
		if seen[p.PoolID] {
			return nil, fmt.Errorf("%w: duplicate pool_id %q", domain.ErrInvalidPool, p.PoolID)
		}
		seen[p.PoolID] = true
		if err := p.Validate(); err != nil {
			return nil, err
		}
		rewards := make(map[string]bool, len(p.Rewards))
		for j := range p.Rewards {
			r := &p.Rewards[j]
			if r.RewardID == "" || rewards[r.RewardID] {
				return nil, fmt.Errorf("%w: pool %q reward #%d has a missing or duplicate reward_id", domain.ErrInvalidPool, p.PoolID, j)
			}
			rewards[r.RewardID] = true
			r.PoolID = p.PoolID
			r.Position = j
		}
	}
	return f.Pools, nil
}

// DefaultPools returns the catalog compiled into the binary
func DefaultPools() ([]domain.Pool, error) {
	return Parse(defaultPools)
}

// LoadPools reads the catalog at path, or the built-in one when path is empty
func LoadPools(path string) ([]domain.Pool, error) {
	if path == "" {
		return DefaultPools()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(data)
}

// NewStaticReader serves pools, keeping their order for ListPools
func NewStaticReader(pools []domain.Pool) *StaticReader {
	s := &StaticReader{pools: make(map[string]*domain.Pool, len(pools))}
	for i := range pools {
		p := clonePool(&pools[i])
		sort.SliceStable(p.Rewards, func(a, b int) bool { return p.Rewards[a].Position < p.Rewards[b].Position })
		if _, dup := s.pools[p.PoolID]; !dup {
			s.order = append(s.order, p.PoolID)
		}
		s.pools[p.PoolID] = p
	}
	return s
}

// GetPool implements Reader
func (s *StaticReader) GetPool(_ context.Context, poolID string) (*domain.Pool, error) {
	p, ok := s.pools[poolID]
	if !ok {
		return nil, notFound(poolID)
	}
	return clonePool(p), nil
}

// ListPools implements Reader
func (s *StaticReader) ListPools(_ context.Context) ([]domain.Pool, error) {
	out := make([]domain.Pool, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *clonePool(s.pools[id]))
	}
	return out, nil
}
