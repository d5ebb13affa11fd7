// Package workload builds the synthetic user population for each batch.
package workload

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/brianvoe/gofakeit/v7"
)

var ErrInvalidPools = errors.New("workload: invalid locality pools")

type GeneratorConfig struct {
	UsersPerBatch int
	Composition   Composition
	Domestic      []Locality
	International []Locality
}

// Generator assembles batches. It is not safe for concurrent use; the
// scheduler calls it from a single goroutine.
type Generator struct {
	cfg   GeneratorConfig
	rng   *rand.Rand
	faker *gofakeit.Faker
}

func NewGenerator(cfg GeneratorConfig, rng *rand.Rand) (*Generator, error) {
	if len(cfg.Domestic) == 0 {
		cfg.Domestic = DomesticPool
	}
	if len(cfg.International) == 0 {
		cfg.International = InternationalPool
	}
	if err := ValidatePools(cfg.Domestic, cfg.International); err != nil {
		return nil, err
	}
	if cfg.Composition.Total() <= 0 || cfg.Composition.Domestic < 0 || cfg.Composition.International < 0 {
		return nil, fmt.Errorf("workload: invalid composition %s", cfg.Composition)
	}
	if cfg.UsersPerBatch < cfg.Composition.Total() {
		return nil, fmt.Errorf("workload: %d users per batch cannot hold composition %s",
			cfg.UsersPerBatch, cfg.Composition)
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Generator{
		cfg:   cfg,
		rng:   rng,
		faker: gofakeit.New(uint64(rng.Int63())),
	}, nil
}

// Batch returns the users of batch number batch (1-based). Domestic users
// come first, international users last.
func (g *Generator) Batch(batch int) []SimulatedUser {
	n := g.cfg.UsersPerBatch
	domestic, _ := g.cfg.Composition.Split(n)

	users := make([]SimulatedUser, 0, n)
	for i := 1; i <= n; i++ {
		category, pool := Domestic, g.cfg.Domestic
		if i > domestic {
			category, pool = International, g.cfg.International
		}
		users = append(users, SimulatedUser{
			ID:        (batch-1)*n + i,
			Batch:     batch,
			Origin:    pool[g.rng.Intn(len(pool))],
			Profile:   Profiles[g.rng.Intn(len(Profiles))],
			Category:  category,
			UserAgent: g.faker.ChromeUserAgent(),
		})
	}
	return users
}

func (g *Generator) UsersPerBatch() int {
	return g.cfg.UsersPerBatch
}

func (g *Generator) Composition() Composition {
	return g.cfg.Composition
}

// ValidatePools checks both pools are non-empty and share no locality.
func ValidatePools(domestic, international []Locality) error {
	if len(domestic) == 0 || len(international) == 0 {
		return fmt.Errorf("%w: pools must be non-empty", ErrInvalidPools)
	}
	seen := make(map[Locality]struct{}, len(domestic))
	for _, l := range domestic {
		seen[l] = struct{}{}
	}
	for _, l := range international {
		if _, ok := seen[l]; ok {
			return fmt.Errorf("%w: %s is in both pools", ErrInvalidPools, l)
		}
	}
	return nil
}
