package paymentflow

import (
	"errors"
	"math/big"

	"lnwallet-cloud/internal/accounts"
	"lnwallet-cloud/internal/money"
)

// FeePolicy computes the protocol-and-bank fee for a payment. It is a
// pure function of amount, rail and account tier.
type FeePolicy interface {
	Fee(amount money.Money, rail Rail, tier accounts.Tier) (money.Money, error)
}

// RailFees is the fee schedule for one rail.
type RailFees struct {
	DefaultBps uint32                    `yaml:"default_bps"`
	TierBps    map[accounts.Tier]uint32  `yaml:"tier_bps"`
	Minimum    map[money.Currency]uint64 `yaml:"minimum_minor"`
}

// FeeSchedule is the full fee configuration, loaded at construction time
// rather than read from ambient globals so tests can pin it.
type FeeSchedule struct {
	Rails map[Rail]RailFees `yaml:"rails"`
}

// BasisPointsFeePolicy charges a basis-point fee with a per-currency
// minimum. The fee rounds up: conversion remainders always favor the
// ledger, never the counterparty.
type BasisPointsFeePolicy struct {
	schedule FeeSchedule
}

// NewBasisPointsFeePolicy constructs the policy.
func NewBasisPointsFeePolicy(schedule FeeSchedule) (*BasisPointsFeePolicy, error) {
	if len(schedule.Rails) == 0 {
		return nil, errors.New("paymentflow: empty fee schedule")
	}
	for rail, fees := range schedule.Rails {
		if !rail.Valid() {
			return nil, ErrUnknownRail
		}
		if fees.DefaultBps > 10_000 {
			return nil, errors.New("paymentflow: fee above 100%")
		}
	}
	return &BasisPointsFeePolicy{schedule: schedule}, nil
}

// Fee computes the fee in the amount's currency.
func (p *BasisPointsFeePolicy) Fee(amount money.Money, rail Rail, tier accounts.Tier) (money.Money, error) {
	fees, ok := p.schedule.Rails[rail]
	if !ok {
		return money.Money{}, ErrUnknownRail
	}

	bps := fees.DefaultBps
	if tierBps, ok := fees.TierBps[tier]; ok {
		bps = tierBps
	}

	// ceil(amount * bps / 10000), via big.Int so the intermediate
	// product cannot overflow for large sat amounts.
	product := new(big.Int).Mul(new(big.Int).SetUint64(amount.Amount()), big.NewInt(int64(bps)))
	quotient, remainder := new(big.Int).QuoRem(product, big.NewInt(10_000), new(big.Int))
	if remainder.Sign() > 0 {
		quotient.Add(quotient, big.NewInt(1))
	}
	if !quotient.IsUint64() {
		return money.Money{}, money.ErrAmountOverflow
	}
	minor := quotient.Uint64()
	if minimum, ok := fees.Minimum[amount.Currency()]; ok && minor < minimum {
		minor = minimum
	}
	return money.New(minor, amount.Currency())
}
