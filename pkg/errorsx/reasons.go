package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonASRResample ReasonCode = "asr_resample"
	ReasonASRDecode   ReasonCode = "asr_decode"
	ReasonASRBackend  ReasonCode = "asr_backend"
	ReasonASROverflow ReasonCode = "asr_queue_overflow"

	ReasonSynthConnect  ReasonCode = "synth_connect"
	ReasonSynthSend     ReasonCode = "synth_send"
	ReasonSynthProtocol ReasonCode = "synth_protocol"
	ReasonSynthStream   ReasonCode = "synth_stream"

	ReasonRecorderIO ReasonCode = "recorder_io"

	ReasonConfig ReasonCode = "config"
)
