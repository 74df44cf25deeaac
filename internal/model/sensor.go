package model

import "time"

// SensorIngestRequest queues environmental data collection for a location
type SensorIngestRequest struct {
	Location  string  `json:"location" validate:"required,min=2,max=64"`
	Latitude  float64 `json:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" validate:"min=-180,max=180"`
	StartDate string  `json:"startDate" validate:"required,len=8,numeric"`
	EndDate   string  `json:"endDate" validate:"required,len=8,numeric"`
}

// SensorIngestResponse acknowledges a queued ingest job
type SensorIngestResponse struct {
	JobID     string    `json:"jobId"`
	Location  string    `json:"location"`
	Status    JobStatus `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// SensorReading is one day of environmental observations for a point.
// Dates are YYYYMMDD; field names track the NASA POWER parameter codes
// they come from.
type SensorReading struct {
	Date           string  `json:"date"`
	Temperature    float64 `json:"temperature"`    // T2M, degC
	Humidity       float64 `json:"humidity"`       // RH2M, %
	Pressure       float64 `json:"pressure"`       // PS, kPa
	SolarRadiation float64 `json:"solarRadiation"` // ALLSKY_SFC_SW_DWN
	Precipitation  float64 `json:"precipitation"`  // PRECTOTCORR, mm
}

// DayRisk is the engineered risk record for one day
type DayRisk struct {
	Date        string    `json:"date"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Pressure    float64   `json:"pressure"`
	TempMean    float64   `json:"tempMean"`
	HumidityMin float64   `json:"humidityMin"`
	PressureStd float64   `json:"pressureStd"`
	TempSpike   float64   `json:"tempSpike"`
	RiskScore   float64   `json:"riskScore"`
	HighRisk    bool      `json:"highRisk"`
	Level       RiskLevel `json:"level"`
}

// RiskSummary aggregates engineered features for a location
type RiskSummary struct {
	Location     string    `json:"location"`
	AvgTemp      float64   `json:"avgTemp"`
	AvgHumidity  float64   `json:"avgHumidity"`
	AvgRiskScore float64   `json:"avgRiskScore"`
	HighRiskDays int       `json:"highRiskDays"`
	TotalDays    int       `json:"totalDays"`
	Level        RiskLevel `json:"level"`
	ArchiveURL   string    `json:"archiveUrl,omitempty"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// StationsResponse lists nearby NOAA observation stations
type StationsResponse struct {
	Stations []Station `json:"stations"`
}

// Station is one NOAA CDO station record
type Station struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	MinDate   string  `json:"mindate"`
	MaxDate   string  `json:"maxdate"`
}
