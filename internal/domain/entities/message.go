package entities

import (
	"encoding/json"
	"fmt"
	"math"
)

const (
	KeyTemperature = "KEY_TEMPERATURE"
	KeyConditions  = "KEY_CONDITIONS"

	kelvinOffset = 273.15
)

// Observation is what survives from a provider response: the temperature in
// Kelvin and the short conditions label of the first weather entry.
type Observation struct {
	KelvinTemp float64
	Conditions string
	Source     string
}

// CelsiusRounded rounds half up (toward +Inf), so -0.5 becomes 0 and 0.5 becomes 1.
func (o Observation) CelsiusRounded() int {
	return int(math.Floor(o.KelvinTemp - kelvinOffset + 0.5))
}

func (o Observation) ToMessage() OutgoingMessage {
	return OutgoingMessage{
		Temperature: o.CelsiusRounded(),
		Conditions:  o.Conditions,
	}
}

type OutgoingMessage struct {
	Temperature int
	Conditions  string
}

func (m OutgoingMessage) ToDictionary() map[string]interface{} {
	return map[string]interface{}{
		KeyTemperature: m.Temperature,
		KeyConditions:  m.Conditions,
	}
}

func (m OutgoingMessage) String() string {
	return fmt.Sprintf("%dC %s", m.Temperature, m.Conditions)
}

type wireMessage struct {
	Temperature int    `json:"KEY_TEMPERATURE"`
	Conditions  string `json:"KEY_CONDITIONS"`
}

func (m OutgoingMessage) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireMessage{Temperature: m.Temperature, Conditions: m.Conditions})
}

func (m *OutgoingMessage) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Temperature = w.Temperature
	m.Conditions = w.Conditions
	return nil
}
