package volcengine

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/harunnryd/swara/pkg/adapters/tts"
	"github.com/harunnryd/swara/pkg/errorsx"
	"github.com/harunnryd/swara/pkg/frames"
	"github.com/harunnryd/swara/pkg/logging"
	"github.com/harunnryd/swara/pkg/metrics"
	"github.com/harunnryd/swara/pkg/resilience"
)

const defaultEndpoint = "wss://openspeech.bytedance.com/api/v1/tts/ws_binary"

type Config struct {
	AppID       string
	AccessToken string
	Cluster     string
	Endpoint    string
	VoiceType   string
	SampleRate  int
	SpeedRatio  float64
	StreamID    string
}

// VolcEngineTTS synthesizes one utterance per connection: SendText dials the
// endpoint, writes a single request frame and streams audio frames back until
// the terminal frame or an error frame arrives.
type VolcEngineTTS struct {
	cfg    Config
	out    chan frames.Frame
	ctx    context.Context
	cancel context.CancelFunc
	obs    metrics.Observer
	logger *slog.Logger
	retry  resilience.RetryPolicy

	mu         sync.Mutex
	started    bool
	activeConn *websocket.Conn
	wg         sync.WaitGroup
}

func New(cfg Config) *VolcEngineTTS {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 24000
	}
	if cfg.SpeedRatio == 0 {
		cfg.SpeedRatio = 1.0
	}
	return &VolcEngineTTS{
		cfg:    cfg,
		out:    make(chan frames.Frame, 256),
		obs:    metrics.NoopObserver{},
		logger: logging.NewComponentLogger(slog.Default(), "volcengine_tts"),
		retry:  resilience.NewRetryPolicy(2, 200*time.Millisecond),
	}
}

func (s *VolcEngineTTS) Name() string { return "volcengine_tts" }

func (s *VolcEngineTTS) SetObserver(obs metrics.Observer) {
	if obs != nil {
		s.obs = obs
	}
}

// Start validates credentials and arms the adapter. The socket itself is
// dialed per utterance in SendText.
func (s *VolcEngineTTS) Start(ctx context.Context) error {
	if s.cfg.AppID == "" || s.cfg.AccessToken == "" {
		return errorsx.Wrap(errors.New("missing volcengine app id or access token"), errorsx.ReasonConfig)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.New("tts already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	return nil
}

func (s *VolcEngineTTS) Close() error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	s.cancel()
	conn := s.activeConn
	s.activeConn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		_ = conn.Close()
	}
	s.wg.Wait()
	return nil
}

// SendText synthesizes one utterance. The network round trip runs on its own
// goroutine; audio arrives on Results.
func (s *VolcEngineTTS) SendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.New("tts not started")
	}
	ctx := s.ctx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.synthesize(ctx, text); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("synthesis_failed",
				slog.String("stream_id", s.cfg.StreamID),
				slog.String("reason_code", string(errorsx.Reason(err))),
				slog.String("error", err.Error()))
			s.record(metrics.EventSynthError, map[string]any{"error": err.Error()})
		}
	}()
	return nil
}

// Flush aborts the in-flight utterance and drops any audio already buffered,
// so an interruption never plays stale speech.
func (s *VolcEngineTTS) Flush() {
	s.mu.Lock()
	conn := s.activeConn
	s.activeConn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}

drain:
	for {
		select {
		case <-s.out:
		default:
			break drain
		}
	}
	s.logger.Info("synthesis_flushed", slog.String("stream_id", s.cfg.StreamID))
}

func (s *VolcEngineTTS) Results() <-chan frames.Frame { return s.out }

func (s *VolcEngineTTS) synthesize(ctx context.Context, text string) error {
	requestID := uuid.NewString()
	frame, err := EncodeRequest(RequestParams{
		AppID:      s.cfg.AppID,
		Cluster:    s.cfg.Cluster,
		RequestID:  requestID,
		Text:       text,
		VoiceType:  s.cfg.VoiceType,
		SampleRate: s.cfg.SampleRate,
		SpeedRatio: s.cfg.SpeedRatio,
	})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSynthProtocol)
	}

	dialer := websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: 10 * time.Second}
	var conn *websocket.Conn
	err = s.retry.Do(func() error {
		var dialErr error
		conn, _, dialErr = dialer.DialContext(ctx, s.cfg.Endpoint, http.Header{
			"Authorization": []string{"Bearer;" + s.cfg.AccessToken},
		})
		return dialErr
	})
	if err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSynthConnect)
	}
	defer conn.Close()

	s.mu.Lock()
	s.activeConn = conn
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if s.activeConn == conn {
			s.activeConn = nil
		}
		s.mu.Unlock()
	}()

	s.logger.Info("synthesis_request",
		slog.String("stream_id", s.cfg.StreamID),
		slog.String("request_id", requestID),
		slog.Int("text_len", len(text)))
	s.record(metrics.EventSynthRequest, map[string]any{"request_id": requestID})

	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonSynthSend)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return errorsx.Wrap(err, errorsx.ReasonSynthStream)
		}
		msg, err := DecodeResponse(data)
		if err != nil {
			return errorsx.Wrap(err, errorsx.ReasonSynthProtocol)
		}
		if msg.Type != MsgTypeAudioOnly {
			continue
		}
		if len(msg.Payload) > 0 {
			s.emitAudio(requestID, msg.Payload)
		}
		if msg.Terminal() {
			s.emitDone(requestID)
			return nil
		}
	}
}

func (s *VolcEngineTTS) emitAudio(requestID string, pcm []byte) {
	meta := map[string]string{
		frames.MetaStreamID:  s.cfg.StreamID,
		frames.MetaSource:    "volcengine",
		frames.MetaRequestID: requestID,
		frames.MetaVoice:     s.cfg.VoiceType,
	}
	raw := append([]byte(nil), pcm...)
	f := frames.NewAudioFrame(s.cfg.StreamID, time.Now().UnixNano(), raw, s.cfg.SampleRate, 1, meta)
	select {
	case s.out <- f:
		s.record(metrics.EventSynthAudio, map[string]any{"bytes": len(raw)})
	default:
		s.logger.Warn("tts_output_buffer_full", slog.String("stream_id", s.cfg.StreamID))
	}
}

func (s *VolcEngineTTS) emitDone(requestID string) {
	cf := frames.NewControlFrame(s.cfg.StreamID, time.Now().UnixNano(), frames.ControlSynthDone, map[string]string{
		frames.MetaSource:    "volcengine",
		frames.MetaRequestID: requestID,
	})
	select {
	case s.out <- cf:
	default:
	}
}

func (s *VolcEngineTTS) record(name string, fields map[string]any) {
	s.obs.RecordEvent(metrics.MetricsEvent{
		Name:   name,
		Time:   time.Now(),
		Tags:   map[string]string{frames.MetaStreamID: s.cfg.StreamID, "component": "tts"},
		Fields: fields,
	})
}

var _ tts.StreamingTTS = (*VolcEngineTTS)(nil)
