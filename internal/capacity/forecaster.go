package capacity

import (
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"
)

type accuracySample struct {
	forecast float64
	actual   float64
}

// Forecaster projects future resource demand from a Monitor's history,
// detecting seasonality via lag-autocorrelation and reporting MAPE-based
// accuracy once actuals are recorded.
type Forecaster struct {
	cfg     ForecasterConfig
	monitor *Monitor
	log     zerolog.Logger

	mu       sync.Mutex
	accuracy map[string][]accuracySample
}

func NewForecaster(cfg ForecasterConfig, monitor *Monitor, log zerolog.Logger) (*Forecaster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Forecaster{
		cfg:      cfg,
		monitor:  monitor,
		log:      log.With().Str("component", "forecaster").Logger(),
		accuracy: make(map[string][]accuracySample),
	}, nil
}

// Forecast projects utilization for the next horizon, sampled hourly.
func (f *Forecaster) Forecast(resourceType, service string, horizonHours int) DemandForecast {
	history := f.monitor.History(resourceType, service)
	window := horizonHours * 2
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}

	forecast := DemandForecast{
		ResourceType: resourceType,
		Service:      service,
		GeneratedAt:  time.Now(),
	}

	if len(history) < 3 {
		last := 50.0
		if len(history) > 0 {
			last = history[len(history)-1].Utilization
		}
		forecast.Method = "flat"
		forecast.Points = flatLine(last, horizonHours)
		forecast.Accuracy = f.accuracyFor(resourceType, service)
		return forecast
	}

	values := make([]float64, len(history))
	for i, m := range history {
		values[i] = m.Utilization
	}

	maxLag := len(values) / 2
	if maxLag > 48 {
		maxLag = 48
	}
	period := seasonalPeriod(values, maxLag, f.cfg.SeasonalityCutoff)

	if period > 0 {
		forecast.Method = "moving_average"
		forecast.SeasonalPeriod = period
		forecast.Points = movingAverageForecast(values, period, horizonHours)
	} else {
		forecast.Method = "exponential_smoothing"
		forecast.Points = exponentialSmoothingForecast(values, f.cfg.SmoothingAlpha, horizonHours)
	}
	forecast.Accuracy = f.accuracyFor(resourceType, service)
	return forecast
}

func flatLine(value float64, horizonHours int) []ForecastPoint {
	points := make([]ForecastPoint, 0, horizonHours)
	for h := 1; h <= horizonHours; h++ {
		band := float64(h) * 0.5
		points = append(points, ForecastPoint{
			Offset:     time.Duration(h) * time.Hour,
			Value:      value,
			LowerBound: math.Max(0, value-band),
			UpperBound: math.Min(100, value+band),
		})
	}
	return points
}

// seasonalPeriod returns the smallest lag > 1 whose normalized
// autocorrelation exceeds cutoff, or 0 if none qualifies.
func seasonalPeriod(values []float64, maxLag int, cutoff float64) int {
	mean := stat.Mean(values, nil)
	centered := make([]float64, len(values))
	for i, v := range values {
		centered[i] = v - mean
	}
	variance := stat.Variance(values, nil)
	if variance == 0 {
		return 0
	}

	for lag := 2; lag <= maxLag; lag++ {
		if lag >= len(values) {
			break
		}
		var sum float64
		n := len(values) - lag
		for i := 0; i < n; i++ {
			sum += centered[i] * centered[i+lag]
		}
		autocorr := (sum / float64(n)) / variance
		if autocorr > cutoff {
			return lag
		}
	}
	return 0
}

func movingAverageForecast(values []float64, window, horizonHours int) []ForecastPoint {
	if window > len(values) {
		window = len(values)
	}
	tail := values[len(values)-window:]
	avg := stat.Mean(tail, nil)
	sd := stat.StdDev(tail, nil)

	points := make([]ForecastPoint, 0, horizonHours)
	for h := 1; h <= horizonHours; h++ {
		band := sd * (1 + float64(h)*0.1)
		points = append(points, ForecastPoint{
			Offset:     time.Duration(h) * time.Hour,
			Value:      avg,
			LowerBound: math.Max(0, avg-band),
			UpperBound: math.Min(100, avg+band),
		})
	}
	return points
}

func exponentialSmoothingForecast(values []float64, alpha float64, horizonHours int) []ForecastPoint {
	level := values[0]
	for _, v := range values[1:] {
		level = alpha*v + (1-alpha)*level
	}
	sd := stat.StdDev(values, nil)

	points := make([]ForecastPoint, 0, horizonHours)
	for h := 1; h <= horizonHours; h++ {
		band := sd * (1 + float64(h)*0.1)
		points = append(points, ForecastPoint{
			Offset:     time.Duration(h) * time.Hour,
			Value:      level,
			LowerBound: math.Max(0, level-band),
			UpperBound: math.Min(100, level+band),
		})
	}
	return points
}

// RecordActual supplies an actual observed value to compare against a
// previously produced forecast value, feeding the MAPE-based accuracy
// score returned by subsequent Forecast calls.
func (f *Forecaster) RecordActual(resourceType, service string, forecastValue, actualValue float64) {
	key := metricKey(resourceType, service)

	f.mu.Lock()
	defer f.mu.Unlock()
	samples := f.accuracy[key]
	if len(samples) >= f.cfg.MaxAccuracySamples {
		samples = samples[1:]
	}
	f.accuracy[key] = append(samples, accuracySample{forecast: forecastValue, actual: actualValue})
}

func (f *Forecaster) accuracyFor(resourceType, service string) float64 {
	key := metricKey(resourceType, service)

	f.mu.Lock()
	samples := append([]accuracySample(nil), f.accuracy[key]...)
	f.mu.Unlock()

	if len(samples) == 0 {
		return 0
	}

	var sumAPE float64
	var n int
	for _, s := range samples {
		if s.actual == 0 {
			continue
		}
		sumAPE += math.Abs((s.actual-s.forecast)/s.actual) * 100
		n++
	}
	if n == 0 {
		return 0
	}
	mape := sumAPE / float64(n)
	accuracy := 100 - mape
	if accuracy < 0 {
		accuracy = 0
	}
	return accuracy
}
