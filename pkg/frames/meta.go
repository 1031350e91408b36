package frames

// Well-known metadata keys shared across processors and providers.
const (
	MetaStreamID  = "stream_id"
	MetaSource    = "source"
	MetaIsFinal   = "is_final"
	MetaReason    = "reason"
	MetaVoice     = "voice"
	MetaRequestID = "request_id"
)
