package plant

// AlarmCode identifies the condition behind an AlarmEvent.
type AlarmCode string

const (
	CodeScreenClog         AlarmCode = "SCREEN_CLOG"
	CodeHighIntakeLevel    AlarmCode = "HIGH_INTAKE_LEVEL"
	CodeHighBasinLevel     AlarmCode = "HIGH_BASIN_LEVEL"
	CodeLowPH              AlarmCode = "LOW_PH"
	CodeHighPH             AlarmCode = "HIGH_PH"
	CodeLowDO              AlarmCode = "LOW_DO"
	CodeHighTurbidity      AlarmCode = "HIGH_TURBIDITY"
	CodeLowChlorine        AlarmCode = "LOW_CHLORINE"
	CodeHighChlorine       AlarmCode = "HIGH_CHLORINE"
	CodeHighFilterDP       AlarmCode = "HIGH_FILTER_DP"
	CodeGasDetected        AlarmCode = "GAS_DETECTED"
	CodeSensorRangeFault   AlarmCode = "SENSOR_RANGE_FAULT"
	CodeScreenCleanTimeout AlarmCode = "SCREEN_CLEAN_TIMEOUT"
	CodeFlowAnomaly        AlarmCode = "FLOW_ANOMALY"
	CodeNonCompliant       AlarmCode = "NON_COMPLIANT_DISCHARGE"
	CodeEmergencyStop      AlarmCode = "EMERGENCY_STOP"
)
