package clean

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/schema"
)

// Strategy selects how missing values of a column are filled.
type Strategy uint8

const (
	StrategyMean Strategy = iota
	StrategyMedian
	StrategyConstant
)

func (s Strategy) String() string {
	switch s {
	case StrategyMean:
		return "mean"
	case StrategyMedian:
		return "median"
	case StrategyConstant:
		return "constant"
	default:
		return fmt.Sprintf("strategy(%d)", s)
	}
}

// Imputation declares how one column's gaps are filled.
type Imputation struct {
	Column   string
	Strategy Strategy
	// Constant is the fill value for StrategyConstant.
	Constant string
}

const (
	DefaultPrecision  = 2
	DefaultZThreshold = 3.0
	UnknownCategory   = "Unknown"
)

type Config struct {
	Logger *slog.Logger
	Schema schema.Schema

	Imputations []Imputation
	// Precision is the number of decimals numeric schema fields are rounded to.
	Precision int
	// OutlierColumns are filtered one after another, each on the previous column's survivors.
	OutlierColumns []string
	ZThreshold     float64
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Schema.Len() == 0 {
		return errors.New("schema is required")
	}
	if cfg.Precision < 0 {
		return errors.New("precision must not be negative")
	}
	if cfg.ZThreshold <= 0 {
		return errors.New("z threshold must be greater than 0")
	}
	for _, imp := range cfg.Imputations {
		rule, ok := cfg.Schema.Rule(imp.Column)
		if !ok {
			return fmt.Errorf("imputation column %q is not in the schema", imp.Column)
		}
		if imp.Strategy != StrategyConstant && rule.Kind() != schema.KindNumber {
			return fmt.Errorf("imputation column %q must be numeric for %s", imp.Column, imp.Strategy)
		}
	}
	for _, col := range cfg.OutlierColumns {
		rule, ok := cfg.Schema.Rule(col)
		if !ok || rule.Kind() != schema.KindNumber {
			return fmt.Errorf("outlier column %q must be a numeric schema field", col)
		}
	}
	return nil
}

// SensorConfig returns the cleaning configuration used for telemetry sources.
func SensorConfig(log *slog.Logger) Config {
	return Config{
		Logger: log,
		Schema: schema.Sensor(),
		Imputations: []Imputation{
			{Column: schema.TemperatureColumn, Strategy: StrategyMean},
			{Column: schema.HumidityColumn, Strategy: StrategyMean},
			{Column: schema.AirQualityColumn, Strategy: StrategyConstant, Constant: UnknownCategory},
			{Column: schema.ParticleSizeColumn, Strategy: StrategyMedian},
		},
		Precision:      DefaultPrecision,
		OutlierColumns: []string{schema.TemperatureColumn, schema.HumidityColumn, schema.ParticleSizeColumn},
		ZThreshold:     DefaultZThreshold,
	}
}
