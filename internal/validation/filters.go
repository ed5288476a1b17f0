// Package validation provides sanity checks for pool records and computed APR results.
package validation

import (
	"errors"
	"fmt"
	"math"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/model"
)

// ErrInvalidRecord wraps every pool record rejection.
var ErrInvalidRecord = errors.New("invalid pool record")

// ErrInvalidResult wraps every result rejection.
var ErrInvalidResult = errors.New("invalid apr result")

// ValidationOptions holds configuration for the validation process
type ValidationOptions struct {
	// MaxAPR is the highest plausible APR as a fraction. Zero disables the check.
	MaxAPR float64

	// RequireLPSupply rejects pools with an allocation but no LP tokens deposited.
	RequireLPSupply bool
}

// DefaultValidationOptions returns sensible defaults for validation
func DefaultValidationOptions() ValidationOptions {
	return ValidationOptions{
		MaxAPR:          100.0, // 10000%
		RequireLPSupply: false,
	}
}

// CheckPoolRecord rejects records carrying values that cannot come from a healthy contract.
func CheckPoolRecord(rec model.PoolRecord, opts ValidationOptions) error {
	fields := []struct {
		name  string
		value float64
	}{
		{"adjustedAllocPoint", rec.AdjustedAllocPoint},
		{"sumOfFactors", rec.SumOfFactors},
		{"totalLpSupply", rec.TotalLpSupply},
		{"amount", rec.UserAmount},
		{"factor", rec.UserFactor},
	}
	for _, f := range fields {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: pool %d %s is not finite", ErrInvalidRecord, rec.PoolID, f.name)
		}
		if f.value < 0 {
			return fmt.Errorf("%w: pool %d %s is negative (%v)", ErrInvalidRecord, rec.PoolID, f.name, f.value)
		}
	}

	if opts.RequireLPSupply && rec.AdjustedAllocPoint > 0 && rec.TotalLpSupply == 0 {
		return fmt.Errorf("%w: pool %d has allocation but no LP supply", ErrInvalidRecord, rec.PoolID)
	}

	return nil
}

// FilterPoolRecords splits records into the valid ones and the rejected ones with their reasons.
// It does not log; callers report the rejections.
func FilterPoolRecords(records []model.PoolRecord, opts ValidationOptions) ([]model.PoolRecord, []model.SkippedPool) {
	valid := make([]model.PoolRecord, 0, len(records))
	var skipped []model.SkippedPool
	for _, rec := range records {
		if err := CheckPoolRecord(rec, opts); err != nil {
			skipped = append(skipped, model.SkippedPool{PoolID: rec.PoolID, Reason: err.Error()})
			continue
		}
		valid = append(valid, rec)
	}
	return valid, skipped
}

// CheckResult rejects results whose figures are non-finite, negative or above MaxAPR.
func CheckResult(r model.Result, opts ValidationOptions) error {
	if r.StakedAmount <= 0 {
		return fmt.Errorf("%w: staked amount is %v", ErrInvalidResult, r.StakedAmount)
	}
	if r.ConversionRatio <= 0 || r.ConversionRatio > 1 {
		return fmt.Errorf("%w: conversion ratio %v outside (0, 1]", ErrInvalidResult, r.ConversionRatio)
	}

	for name, apr := range map[string]float64{"nominal": r.APRNominal, "discounted": r.APRDiscounted} {
		if math.IsNaN(apr) || math.IsInf(apr, 0) {
			return fmt.Errorf("%w: %s apr is not finite", ErrInvalidResult, name)
		}
		if apr < 0 {
			return fmt.Errorf("%w: %s apr is negative (%v)", ErrInvalidResult, name, apr)
		}
		if opts.MaxAPR > 0 && apr > opts.MaxAPR {
			return fmt.Errorf("%w: %s apr %.4f exceeds %.4f", ErrInvalidResult, name, apr, opts.MaxAPR)
		}
	}

	return nil
}
