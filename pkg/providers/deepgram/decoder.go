// Package deepgram adapts the Deepgram live-transcription client to the
// decoder capability the recognizer drives. The recognizer owns gating and
// endpointing; this backend only turns waveforms into hypothesis text.
package deepgram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"
	interfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	client "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"

	"github.com/harunnryd/swara/pkg/adapters/asr"
	"github.com/harunnryd/swara/pkg/audio"
	"github.com/harunnryd/swara/pkg/errorsx"
	"github.com/harunnryd/swara/pkg/logging"
)

type Config struct {
	APIKey     string
	Model      string
	Language   string
	SampleRate int
	StreamID   string
}

// Decoder streams PCM into a live Deepgram connection and keeps the current
// hypothesis locally: confirmed segments plus the latest interim.
type Decoder struct {
	cfg        Config
	dgClient   *client.WSCallback
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	cancel     context.CancelFunc
	logger     *slog.Logger

	mu      sync.Mutex
	finals  []string
	interim string
	closed  bool
}

// New connects immediately; missing credentials or a failed handshake are
// construction-time failures.
func New(ctx context.Context, cfg Config) (*Decoder, error) {
	if cfg.APIKey == "" {
		return nil, errorsx.Wrap(errors.New("missing deepgram api key"), errorsx.ReasonConfig)
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 16000
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)

	d := &Decoder{
		cfg:    cfg,
		cancel: cancel,
		logger: logging.NewComponentLogger(slog.Default(), "deepgram_decoder"),
	}
	d.pipeReader, d.pipeWriter = io.Pipe()

	clientOptions := &interfaces.ClientOptions{
		EnableKeepAlive: true,
	}
	transcriptOptions := &interfaces.LiveTranscriptionOptions{
		Model:          cfg.Model,
		Language:       cfg.Language,
		Encoding:       "linear16",
		SampleRate:     cfg.SampleRate,
		InterimResults: true,
		SmartFormat:    true,
	}

	dgClient, err := client.NewWSUsingCallback(ctx, cfg.APIKey, clientOptions, transcriptOptions, &callback{parent: d})
	if err != nil {
		cancel()
		return nil, errorsx.Wrap(err, errorsx.ReasonASRBackend)
	}
	d.dgClient = dgClient

	if connected := d.dgClient.Connect(); !connected {
		cancel()
		return nil, errorsx.Wrap(errors.New("deepgram connection failed"), errorsx.ReasonASRBackend)
	}
	d.logger.Info("deepgram_connected",
		slog.String("stream_id", cfg.StreamID),
		slog.String("model", cfg.Model),
		slog.Int("sample_rate", cfg.SampleRate))

	go func() {
		if err := d.dgClient.Stream(d.pipeReader); err != nil && ctx.Err() == nil {
			d.logger.Error("deepgram_stream_error",
				slog.String("stream_id", cfg.StreamID),
				slog.String("error", err.Error()))
		}
	}()
	return d, nil
}

func (d *Decoder) Name() string { return "deepgram" }

// AcceptWaveform forwards one chunk of mono samples. The connection is fixed
// at the configured rate; callers resample before feeding.
func (d *Decoder) AcceptWaveform(rate int, samples []float32) error {
	if rate != d.cfg.SampleRate {
		return errorsx.Wrap(fmt.Errorf("rate %d does not match connection rate %d", rate, d.cfg.SampleRate), errorsx.ReasonASRBackend)
	}
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return errorsx.Wrap(errors.New("decoder closed"), errorsx.ReasonASRBackend)
	}
	if _, err := d.pipeWriter.Write(audio.EncodePCM16(samples)); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonASRBackend)
	}
	return nil
}

// Decode is a no-op: inference happens remotely as audio streams in.
func (d *Decoder) Decode() error { return nil }

func (d *Decoder) Result() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	parts := append([]string(nil), d.finals...)
	if d.interim != "" {
		parts = append(parts, d.interim)
	}
	return strings.TrimSpace(strings.Join(parts, " ")), nil
}

// Reset discards the local hypothesis for the next utterance. The connection
// stays up.
func (d *Decoder) Reset() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finals = d.finals[:0]
	d.interim = ""
	return nil
}

func (d *Decoder) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.cancel()
	_ = d.pipeWriter.Close()
	d.dgClient.Stop()
	return nil
}

type callback struct {
	parent *Decoder
}

func (c *callback) Open(*msginterfaces.OpenResponse) error { return nil }

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	transcript := strings.TrimSpace(mr.Channel.Alternatives[0].Transcript)
	if transcript == "" {
		return nil
	}
	c.parent.mu.Lock()
	if mr.IsFinal || mr.SpeechFinal {
		c.parent.finals = append(c.parent.finals, transcript)
		c.parent.interim = ""
	} else {
		c.parent.interim = transcript
	}
	c.parent.mu.Unlock()
	return nil
}

func (c *callback) Metadata(md *msginterfaces.MetadataResponse) error {
	c.parent.logger.Debug("deepgram_metadata",
		slog.String("stream_id", c.parent.cfg.StreamID),
		slog.String("request_id", md.RequestID))
	return nil
}

func (c *callback) SpeechStarted(*msginterfaces.SpeechStartedResponse) error { return nil }

func (c *callback) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error { return nil }

func (c *callback) Close(*msginterfaces.CloseResponse) error {
	c.parent.logger.Info("deepgram_connection_closed",
		slog.String("stream_id", c.parent.cfg.StreamID))
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.parent.logger.Error("deepgram_error",
		slog.String("stream_id", c.parent.cfg.StreamID),
		slog.String("error_code", er.ErrCode),
		slog.String("error_message", er.ErrMsg))
	return nil
}

func (c *callback) UnhandledEvent(byData []byte) error {
	c.parent.logger.Debug("deepgram_unhandled_event",
		slog.String("stream_id", c.parent.cfg.StreamID),
		slog.String("data", string(byData)))
	return nil
}

var _ asr.Decoder = (*Decoder)(nil)
