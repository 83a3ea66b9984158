package model

import (
	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model/entities"
	"github.com/LeonardoBeccarini/irrigation_predictor/internal/model/messages"
)

// Alias per esporre tipi comuni ai servizi

type (
	SensorReading       = entities.SensorReading
	FeatureVector       = entities.FeatureVector
	ScaledFeatureVector = entities.ScaledFeatureVector
	IrrigationDecision  = entities.IrrigationDecision
	Device              = entities.Device
	PumpState           = entities.PumpState

	DeviceReading           = messages.DeviceReading
	PumpCommand             = messages.PumpCommand
	SensorRecord            = messages.SensorRecord
	IrrigationDecisionEvent = messages.IrrigationDecisionEvent
)

const (
	PumpOn  = entities.PumpOn
	PumpOff = entities.PumpOff
)

var (
	FeatureNames        = entities.FeatureNames
	DecodeDeviceReading = messages.DecodeDeviceReading
	NewPumpCommand      = messages.NewPumpCommand
)
