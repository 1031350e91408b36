package asr

// Decoder is the minimal capability the recognizer needs from a speech
// decoding backend. Implementations own one decoding stream at a time and
// are not safe for concurrent use; the recognizer serializes all calls.
type Decoder interface {
	// Name returns backend name for logging/metrics.
	Name() string
	// AcceptWaveform feeds mono samples at the given rate into the
	// current decoding stream.
	AcceptWaveform(sampleRate int, samples []float32) error
	// Decode drains all inference steps that are ready to run.
	Decode() error
	// Result returns the current hypothesis for the stream.
	Result() (string, error)
	// Reset discards the current stream and starts a fresh one.
	Reset() error
	// Close releases backend resources.
	Close() error
}

// Config contains backend-agnostic decoder configuration.
type Config struct {
	StreamID   string
	SampleRate int
	Language   string
}
