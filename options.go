// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package ocr

// PolicyDomainOption configures a PolicyDomainConfig before NewPolicyDomain
// resolves it, mirroring the teacher's LoopOption pattern (loop options
// generalized from event-loop construction to policy-domain construction).
type PolicyDomainOption interface {
	applyPolicyDomain(*PolicyDomainConfig) error
}

type policyDomainOptionImpl struct {
	applyFunc func(*PolicyDomainConfig) error
}

func (o *policyDomainOptionImpl) applyPolicyDomain(cfg *PolicyDomainConfig) error {
	return o.applyFunc(cfg)
}

// WithLocation sets the policy domain's GUID location byte (spec §2's
// LOC field).
func WithLocation(location uint8) PolicyDomainOption {
	return &policyDomainOptionImpl{func(cfg *PolicyDomainConfig) error {
		cfg.Location = location
		return nil
	}}
}

// WithGuidStrategy selects the GUID provider implementation: "counted",
// "labeled", or "pointer-embed" (spec §2's three provider strategies).
func WithGuidStrategy(strategy string) PolicyDomainOption {
	return &policyDomainOptionImpl{func(cfg *PolicyDomainConfig) error {
		cfg.GuidStrategy = strategy
		return nil
	}}
}

// WithNumWorkers sets the compute worker pool size.
func WithNumWorkers(n int) PolicyDomainOption {
	return &policyDomainOptionImpl{func(cfg *PolicyDomainConfig) error {
		cfg.NumWorkers = n
		return nil
	}}
}

// WithDequeCapacity overrides DefaultDequeCapacity for every worker's
// work-stealing deque.
func WithDequeCapacity(capacity int) PolicyDomainOption {
	return &policyDomainOptionImpl{func(cfg *PolicyDomainConfig) error {
		cfg.DequeCap = capacity
		return nil
	}}
}

// WithPoolSize overrides the default 64MiB SimpleAllocator pool size.
func WithPoolSize(size uint64) PolicyDomainOption {
	return &policyDomainOptionImpl{func(cfg *PolicyDomainConfig) error {
		cfg.PoolSize = size
		return nil
	}}
}

// resolvePolicyDomainOptions applies opts over a zero-value config, letting
// NewPolicyDomain fill in defaults for anything left unset.
func resolvePolicyDomainOptions(opts []PolicyDomainOption) (*PolicyDomainConfig, error) {
	cfg := &PolicyDomainConfig{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt.applyPolicyDomain(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}
