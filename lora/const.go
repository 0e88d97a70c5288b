package lora

import "time"

const (
	CommEndCharacter     = '\n'
	CommAltEndCharacter  = '\r'
	CommSeparator        = ':'
	DefaultMaxLineLength = 256
	DefaultBaudRate      = 9600
	ReadTimeout          = 10 * time.Millisecond
)

const (
	// Broadcast is the receiver matching every device.
	Broadcast = "ALL"
	// Host is the identity of the control station.
	Host = "HOST"
)

const (
	CommandForward        = "FORWARD"
	CommandBackward       = "BACKWARD"
	CommandStop           = "STOP"
	CommandOTAEnable      = "OTA_ENABLE"
	CommandOTADisable     = "OTA_DISABLE"
	CommandSetParams      = "SET_PARAMS"
	CommandSetBatchParams = "SET_BATCH_PARAMS"
	CommandSwapDirection  = "SWAP_DIR"
	CommandStepMode       = "STEP_MODE"
	CommandSetStepTime    = "SET_STEP_TIME"
	CommandSetStillTime   = "SET_STILL_TIME"
	CommandReportParams   = "REPORT_ALL_PARAMS"

	// Replies
	CommandAck      = "ACK"
	CommandParams   = "PARAMS"
	CommandReportIP = "REPORT_IP"

	BatchOK = "BATCH_OK"
)
