// Package volcengine implements the binary WebSocket synthesis protocol (v1)
// and a streaming TTS adapter on top of it.
package volcengine

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
)

// Protocol constants, nibble-packed into the 4-byte frame header.
const (
	protocolVersion = 0b0001
	headerSizeUnits = 0b0001 // in 4-byte units

	msgTypeFullClient = 0b0001
	// MsgTypeAudioOnly carries one chunk of synthesized audio.
	MsgTypeAudioOnly = 0b1011
	// MsgTypeError carries a service-side failure for the request.
	MsgTypeError = 0b1111

	serializationJSON = 0b0001
	compressionGzip   = 0b0001
)

// RequestParams describes one synthesis request.
type RequestParams struct {
	AppID      string
	Cluster    string
	UID        string
	RequestID  string
	Text       string
	VoiceType  string
	SampleRate int
	SpeedRatio float64
}

// Message is one decoded response frame. A negative Sequence on an
// audio-only frame marks the terminal frame of the stream.
type Message struct {
	Type     byte
	Sequence int32
	Payload  []byte
}

// Terminal reports whether this frame ends the response stream.
func (m Message) Terminal() bool { return m.Sequence < 0 }

// ProtocolError is a decoded error-type frame.
type ProtocolError struct {
	Code    uint32
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("synthesis service error %d: %s", e.Code, e.Message)
}

type requestPayload struct {
	App     appSection     `json:"app"`
	User    userSection    `json:"user"`
	Audio   audioSection   `json:"audio"`
	Request requestSection `json:"request"`
}

type appSection struct {
	AppID   string `json:"appid"`
	Token   string `json:"token"`
	Cluster string `json:"cluster"`
}

type userSection struct {
	UID string `json:"uid"`
}

type audioSection struct {
	VoiceType  string  `json:"voice_type"`
	Encoding   string  `json:"encoding"`
	SpeedRatio float64 `json:"speed_ratio"`
	Rate       int     `json:"rate"`
}

type requestSection struct {
	ReqID     string `json:"reqid"`
	Text      string `json:"text"`
	Operation string `json:"operation"`
}

// EncodeRequest builds one full-client request frame: a 4-byte nibble-packed
// header, a 4-byte big-endian payload length, and the gzip-compressed JSON
// body. Authentication travels in the transport headers, not the body.
func EncodeRequest(p RequestParams) ([]byte, error) {
	if p.Cluster == "" {
		p.Cluster = "volcano_tts"
	}
	if p.UID == "" {
		p.UID = "swara_user"
	}
	if p.SampleRate <= 0 {
		p.SampleRate = 24000
	}
	if p.SpeedRatio <= 0 {
		p.SpeedRatio = 1.0
	}

	body, err := json.Marshal(requestPayload{
		App:     appSection{AppID: p.AppID, Token: "access_token", Cluster: p.Cluster},
		User:    userSection{UID: p.UID},
		Audio:   audioSection{VoiceType: p.VoiceType, Encoding: "pcm", SpeedRatio: p.SpeedRatio, Rate: p.SampleRate},
		Request: requestSection{ReqID: p.RequestID, Text: p.Text, Operation: "submit"},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var compressed bytes.Buffer
	gz := gzip.NewWriter(&compressed)
	if _, err := gz.Write(body); err != nil {
		return nil, fmt.Errorf("compress request: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("compress request: %w", err)
	}

	frame := make([]byte, 0, 8+compressed.Len())
	frame = append(frame,
		protocolVersion<<4|headerSizeUnits,
		msgTypeFullClient<<4|0x00,
		serializationJSON<<4|compressionGzip,
		0x00,
	)
	frame = binary.BigEndian.AppendUint32(frame, uint32(compressed.Len()))
	frame = append(frame, compressed.Bytes()...)
	return frame, nil
}

// DecodeResponse parses one response frame. Truncated or malformed frames
// decode to an empty payload; a declared length past the end of the buffer
// does the same, never an out-of-bounds read. Error-type frames come back as
// a *ProtocolError so callers can tell them apart from transport failures.
func DecodeResponse(data []byte) (Message, error) {
	if len(data) < 4 {
		return Message{}, nil
	}

	msgType := data[1] >> 4
	flags := data[1] & 0x0f
	compression := data[2] & 0x0f
	offset := int(data[0]&0x0f) * 4

	switch msgType {
	case MsgTypeAudioOnly:
		m := Message{Type: MsgTypeAudioOnly}
		if flags != 0 {
			if len(data) < offset+4 {
				return m, nil
			}
			m.Sequence = int32(binary.BigEndian.Uint32(data[offset : offset+4]))
			offset += 4
		}
		if len(data) < offset+4 {
			return m, nil
		}
		size := int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
		if size < 0 || len(data) < offset+size {
			return m, nil
		}
		payload := data[offset : offset+size]
		// Samples are 16-bit; an odd trailing byte is noise.
		if len(payload)%2 != 0 {
			payload = payload[:len(payload)-1]
		}
		m.Payload = payload
		return m, nil

	case MsgTypeError:
		perr := &ProtocolError{}
		if len(data) >= offset+4 {
			perr.Code = binary.BigEndian.Uint32(data[offset : offset+4])
			offset += 4
		}
		if len(data) >= offset+4 {
			size := int(binary.BigEndian.Uint32(data[offset : offset+4]))
			offset += 4
			if size >= 0 && len(data) >= offset+size {
				perr.Message = decodeErrorMessage(data[offset:offset+size], compression)
			}
		}
		return Message{Type: MsgTypeError}, perr

	default:
		return Message{Type: msgType}, nil
	}
}

func decodeErrorMessage(raw []byte, compression byte) string {
	if compression != compressionGzip {
		return string(raw)
	}
	gz, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return string(raw)
	}
	defer gz.Close()
	plain, err := io.ReadAll(gz)
	if err != nil {
		return string(raw)
	}
	return string(plain)
}
