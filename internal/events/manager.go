package events

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
)

// Event represents a system event. Data holds the JSON form of an EventData value.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Module    string                 `json:"module"`
}

// GetTypedData converts the Data map back to its typed EventData, or nil if the
// type is unknown or the map does not fit
func (e *Event) GetTypedData() EventData {
	if e.Data == nil {
		return nil
	}

	var data EventData
	switch e.Type {
	case SimulationStarted:
		data = &SimulationStartedData{}
	case SimulationProgress:
		data = &SimulationProgressData{}
	case SimulationCompleted:
		data = &SimulationCompletedData{}
	case SimulationCancelled:
		data = &SimulationCancelledData{}
	case SimulationFailed:
		data = &SimulationFailedData{}
	case SimulationStaleDiscarded:
		data = &StaleDiscardedData{}
	case NumericAnomaly:
		data = &NumericAnomalyData{}
	case ResultsPruned:
		data = &ResultsPrunedData{}
	case ResultExported:
		data = &ResultExportedData{}
	case ErrorOccurred:
		data = &ErrorEventData{}
	default:
		return nil
	}

	if err := convertMapToStruct(e.Data, data); err != nil {
		return nil
	}
	return data
}

func convertMapToStruct(m map[string]interface{}, v interface{}) error {
	jsonBytes, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return json.Unmarshal(jsonBytes, v)
}

// Manager handles event emission and logging
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitTyped emits an event with typed data to the bus and logs it.
// Progress events are logged at debug level.
func (m *Manager) EmitTyped(module string, data EventData) {
	eventType := data.EventType()
	dataMap := convertEventDataToMap(data)

	m.bus.Emit(eventType, module, dataMap)

	lvl := zerolog.InfoLevel
	if eventType == SimulationProgress {
		lvl = zerolog.DebugLevel
	}
	if e := m.log.WithLevel(lvl); e.Enabled() {
		eventJSON, _ := json.Marshal(Event{Type: eventType, Timestamp: time.Now(), Data: dataMap, Module: module})
		e.Str("event_type", string(eventType)).
			Str("module", module).
			RawJSON("event", eventJSON).
			Msg("Event emitted")
	}
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.EmitTyped(module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}

func convertEventDataToMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}

	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}

	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}
	return result
}
