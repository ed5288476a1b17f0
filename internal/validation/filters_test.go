package validation

import (
	"errors"
	"math"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yy-analytics/yyptp-apr-calculation/internal/model"
)

func validRecord(id int) model.PoolRecord {
	return model.PoolRecord{
		PoolID:             id,
		AdjustedAllocPoint: 10,
		SumOfFactors:       500,
		TotalLpSupply:      1000,
		UserAmount:         100,
		UserFactor:         50,
	}
}

func TestCheckPoolRecord(t *testing.T) {
	opts := DefaultValidationOptions()

	tests := []struct {
		name    string
		mutate  func(r *model.PoolRecord)
		opts    ValidationOptions
		wantErr bool
	}{
		{name: "valid", mutate: func(r *model.PoolRecord) {}, opts: opts},
		{name: "inactive pool with zeros", mutate: func(r *model.PoolRecord) { *r = model.PoolRecord{PoolID: 1} }, opts: opts},
		{name: "NaN alloc", mutate: func(r *model.PoolRecord) { r.AdjustedAllocPoint = math.NaN() }, opts: opts, wantErr: true},
		{name: "infinite supply", mutate: func(r *model.PoolRecord) { r.TotalLpSupply = math.Inf(1) }, opts: opts, wantErr: true},
		{name: "negative factor", mutate: func(r *model.PoolRecord) { r.UserFactor = -1 }, opts: opts, wantErr: true},
		{
			name:   "allocation without supply allowed by default",
			mutate: func(r *model.PoolRecord) { r.TotalLpSupply = 0 },
			opts:   opts,
		},
		{
			name:    "allocation without supply rejected when required",
			mutate:  func(r *model.PoolRecord) { r.TotalLpSupply = 0 },
			opts:    ValidationOptions{RequireLPSupply: true},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord(0)
			tt.mutate(&rec)
			err := CheckPoolRecord(rec, tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrInvalidRecord))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestFilterPoolRecords(t *testing.T) {
	bad := validRecord(2)
	bad.SumOfFactors = math.NaN()

	records := []model.PoolRecord{validRecord(0), validRecord(1), bad, validRecord(3)}
	valid, skipped := FilterPoolRecords(records, DefaultValidationOptions())

	assert.Len(t, valid, 3)
	require.Len(t, skipped, 1)
	assert.Equal(t, 2, skipped[0].PoolID)
	assert.Contains(t, skipped[0].Reason, "sumOfFactors")
}

func TestFilterPoolRecords_DoesNotLog(t *testing.T) {
	hook := test.NewGlobal()
	level := logrus.GetLevel()
	logrus.SetLevel(logrus.DebugLevel)
	t.Cleanup(func() {
		logrus.SetLevel(level)
		logrus.StandardLogger().ReplaceHooks(make(logrus.LevelHooks))
	})

	bad := validRecord(1)
	bad.UserAmount = -1
	_, skipped := FilterPoolRecords([]model.PoolRecord{validRecord(0), bad}, DefaultValidationOptions())

	require.Len(t, skipped, 1)
	assert.Empty(t, hook.AllEntries(), "rejections are reported by the caller")
}

func TestFilterPoolRecords_Empty(t *testing.T) {
	valid, skipped := FilterPoolRecords(nil, DefaultValidationOptions())
	assert.Empty(t, valid)
	assert.Empty(t, skipped)
}

func TestCheckResult(t *testing.T) {
	good := model.Result{
		StakedAmount:    1000,
		ConversionRatio: 0.5,
		APRNominal:      0.15,
		APRDiscounted:   0.30,
	}

	tests := []struct {
		name    string
		mutate  func(r *model.Result)
		opts    ValidationOptions
		wantErr bool
	}{
		{name: "valid", mutate: func(r *model.Result) {}, opts: DefaultValidationOptions()},
		{name: "zero stake", mutate: func(r *model.Result) { r.StakedAmount = 0 }, opts: DefaultValidationOptions(), wantErr: true},
		{name: "ratio above par", mutate: func(r *model.Result) { r.ConversionRatio = 1.2 }, opts: DefaultValidationOptions(), wantErr: true},
		{name: "NaN apr", mutate: func(r *model.Result) { r.APRDiscounted = math.NaN() }, opts: DefaultValidationOptions(), wantErr: true},
		{name: "infinite apr", mutate: func(r *model.Result) { r.APRNominal = math.Inf(1) }, opts: DefaultValidationOptions(), wantErr: true},
		{name: "negative apr", mutate: func(r *model.Result) { r.APRNominal = -0.01 }, opts: DefaultValidationOptions(), wantErr: true},
		{name: "above max", mutate: func(r *model.Result) {}, opts: ValidationOptions{MaxAPR: 0.2}, wantErr: true},
		{name: "max disabled", mutate: func(r *model.Result) { r.APRDiscounted = 500 }, opts: ValidationOptions{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := good
			tt.mutate(&r)
			err := CheckResult(r, tt.opts)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidResult)
				return
			}
			assert.NoError(t, err)
		})
	}
}
