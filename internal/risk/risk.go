// Package risk derives daily fire-risk scores from weather observations.
// Each day is scored against 7-day rolling statistics: sustained low
// humidity and high temperatures dominate the score, with pressure
// instability and day-over-day temperature spikes as secondary signals.
package risk

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/embersense/api/internal/model"
)

// windowDays is the rolling window length for the daily statistics
const windowDays = 7

// HighRiskThreshold marks a day as high risk
const HighRiskThreshold = 70.0

// Component weights of the composite score
const (
	weightHumidity = 0.4
	weightTemp     = 0.3
	weightPressure = 0.2
	weightSpike    = 0.1
)

// ComputeDaily scores each reading against its trailing window. Readings
// must be sorted by date ascending; the window for day i covers days
// [i-6, i], shorter at the start of the series.
func ComputeDaily(readings []model.SensorReading) []model.DayRisk {
	days := make([]model.DayRisk, 0, len(readings))

	temps := make([]float64, 0, len(readings))
	humidities := make([]float64, 0, len(readings))
	pressures := make([]float64, 0, len(readings))

	for i, r := range readings {
		temps = append(temps, r.Temperature)
		humidities = append(humidities, r.Humidity)
		pressures = append(pressures, r.Pressure)

		lo := i - windowDays + 1
		if lo < 0 {
			lo = 0
		}

		tempMean := stat.Mean(temps[lo:i+1], nil)
		humidityMin := minOf(humidities[lo : i+1])
		pressureStd := sampleStd(pressures[lo : i+1])

		// Day-over-day temperature jump; zero on the first day
		var tempSpike float64
		if i > 0 {
			tempSpike = math.Abs(r.Temperature - readings[i-1].Temperature)
		}

		score := (100-humidityMin)*weightHumidity +
			(tempMean/30*100)*weightTemp +
			(pressureStd*10)*weightPressure +
			(tempSpike*5)*weightSpike
		score = clip(score, 0, 100)

		days = append(days, model.DayRisk{
			Date:        r.Date,
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
			Pressure:    r.Pressure,
			TempMean:    tempMean,
			HumidityMin: humidityMin,
			PressureStd: pressureStd,
			TempSpike:   tempSpike,
			RiskScore:   score,
			HighRisk:    score > HighRiskThreshold,
			Level:       model.RiskLevelForScore(score),
		})
	}

	return days
}

// Summarize aggregates daily scores into a location summary
func Summarize(location string, days []model.DayRisk) model.RiskSummary {
	s := model.RiskSummary{
		Location:  location,
		TotalDays: len(days),
	}
	if len(days) == 0 {
		s.Level = model.RiskLevelLow
		return s
	}

	for _, d := range days {
		s.AvgTemp += d.Temperature
		s.AvgHumidity += d.Humidity
		s.AvgRiskScore += d.RiskScore
		if d.HighRisk {
			s.HighRiskDays++
		}
	}
	n := float64(len(days))
	s.AvgTemp /= n
	s.AvgHumidity /= n
	s.AvgRiskScore /= n
	s.Level = model.RiskLevelForScore(s.AvgRiskScore)

	return s
}

func minOf(vals []float64) float64 {
	m := vals[0]
	for _, v := range vals[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

// sampleStd is the Bessel-corrected standard deviation; zero for
// windows of a single day.
func sampleStd(vals []float64) float64 {
	if len(vals) < 2 {
		return 0
	}
	return math.Sqrt(stat.Variance(vals, nil))
}

func clip(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
