package webcodecs

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// PassthroughEngineName is the registry name of the built-in pure-Go engine.
const PassthroughEngineName = "passthrough"

// Passthrough is a pure-Go engine that carries raw media through the codec
// pipeline without compressing it. Encoders pack frames and samples behind a
// small self-describing header; decoders unpack them. It is registered for
// every codec at init and serves as the reference engine in tests.
type Passthrough struct {
	// Delay holds this many outputs back inside the session, releasing them
	// on Flush, to model codecs with reordering latency.
	Delay int
}

func init() {
	p := Passthrough{}
	for _, codec := range []VideoCodec{VideoCodecVP8, VideoCodecVP9, VideoCodecH264, VideoCodecH265, VideoCodecAV1} {
		RegisterVideoEncoderEngine(codec, p.VideoEncoder())
		RegisterVideoDecoderEngine(codec, p.VideoDecoder())
	}
	for _, codec := range []AudioCodec{AudioCodecOpus, AudioCodecG711A, AudioCodecG711U, AudioCodecAAC, AudioCodecPCM} {
		RegisterAudioEncoderEngine(codec, p.AudioEncoder())
		RegisterAudioDecoderEngine(codec, p.AudioDecoder())
	}
}

// Raw chunk headers.
const (
	rawVideoHeaderSize = 8 // 'V', format, width u16, height u16, reserved u16
	rawAudioHeaderSize = 8 // 'A', format, channels u16, sample rate u32
)

var errMalformedChunk = errors.New("malformed passthrough chunk")

// VideoEncoder returns the video encoder engine.
func (p Passthrough) VideoEncoder() VideoEncoderEngine { return passthroughVideoEncoder{p} }

// VideoDecoder returns the video decoder engine.
func (p Passthrough) VideoDecoder() VideoDecoderEngine { return passthroughVideoDecoder{p} }

// AudioEncoder returns the audio encoder engine.
func (p Passthrough) AudioEncoder() AudioEncoderEngine { return passthroughAudioEncoder{p} }

// AudioDecoder returns the audio decoder engine.
func (p Passthrough) AudioDecoder() AudioDecoderEngine { return passthroughAudioDecoder{p} }

// delayLine holds outputs back until more than depth are queued.
type delayLine[O any] struct {
	depth int
	held  []O
}

func (d *delayLine[O]) push(o O) O {
	d.held = append(d.held, o)
	if len(d.held) <= d.depth {
		var zero O
		return zero
	}
	return d.pop()
}

func (d *delayLine[O]) pop() O {
	o := d.held[0]
	var zero O
	d.held[0] = zero
	d.held = d.held[1:]
	return o
}

func (d *delayLine[O]) drain() (O, error) {
	if len(d.held) == 0 {
		var zero O
		return zero, io.EOF
	}
	return d.pop(), nil
}

// --- Video ---

type passthroughVideoEncoder struct{ Passthrough }

func (passthroughVideoEncoder) Name() string { return PassthroughEngineName }

func (e passthroughVideoEncoder) Open(config VideoEncoderConfig) (Session[*VideoFrame, *EncodedVideoChunk], error) {
	return &videoEncodeSession{config: config, out: delayLine[*EncodedVideoChunk]{depth: e.Delay}}, nil
}

type videoEncodeSession struct {
	config VideoEncoderConfig
	frames int
	out    delayLine[*EncodedVideoChunk]
}

func (s *videoEncodeSession) Submit(frame *VideoFrame, scratch []byte) (*EncodedVideoChunk, error) {
	if frame == nil {
		return nil, errors.New("nil frame")
	}
	if frame.Format != s.config.Format {
		return nil, fmt.Errorf("frame format %s, configured %s", frame.Format, s.config.Format)
	}
	if len(scratch) < rawVideoHeaderSize {
		return nil, ErrBufferTooSmall
	}
	n, err := frame.Pack(scratch[rawVideoHeaderSize:])
	if err != nil {
		return nil, err
	}
	scratch[0] = 'V'
	scratch[1] = byte(frame.Format)
	binary.BigEndian.PutUint16(scratch[2:], uint16(frame.Width))
	binary.BigEndian.PutUint16(scratch[4:], uint16(frame.Height))
	binary.BigEndian.PutUint16(scratch[6:], 0)

	chunk := &EncodedVideoChunk{
		Type:      ChunkTypeDelta,
		Data:      append([]byte(nil), scratch[:rawVideoHeaderSize+n]...),
		Timestamp: frame.Timestamp,
		Duration:  frame.Duration,
	}
	if s.config.KeyframeInterval <= 0 || s.frames%s.config.KeyframeInterval == 0 {
		chunk.Type = ChunkTypeKey
	}
	s.frames++
	return s.out.push(chunk), nil
}

func (s *videoEncodeSession) Drain([]byte) (*EncodedVideoChunk, error) { return s.out.drain() }

func (s *videoEncodeSession) Close() error { return nil }

type passthroughVideoDecoder struct{ Passthrough }

func (passthroughVideoDecoder) Name() string { return PassthroughEngineName }

func (e passthroughVideoDecoder) Open(config VideoDecoderConfig) (Session[*EncodedVideoChunk, *VideoFrame], error) {
	return &videoDecodeSession{config: config, out: delayLine[*VideoFrame]{depth: e.Delay}}, nil
}

type videoDecodeSession struct {
	config VideoDecoderConfig
	out    delayLine[*VideoFrame]
}

func (s *videoDecodeSession) Submit(chunk *EncodedVideoChunk, _ []byte) (*VideoFrame, error) {
	if chunk == nil || len(chunk.Data) < rawVideoHeaderSize || chunk.Data[0] != 'V' {
		return nil, errMalformedChunk
	}
	format := PixelFormat(chunk.Data[1])
	width := int(binary.BigEndian.Uint16(chunk.Data[2:]))
	height := int(binary.BigEndian.Uint16(chunk.Data[4:]))
	if format != s.config.OutputFormat {
		return nil, fmt.Errorf("chunk carries %s, configured output %s", format, s.config.OutputFormat)
	}

	data := append([]byte(nil), chunk.Data[rawVideoHeaderSize:]...)
	frame, err := UnpackVideoFrame(data, format, width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errMalformedChunk, err)
	}
	frame.Timestamp = chunk.Timestamp
	frame.Duration = chunk.Duration
	return s.out.push(frame), nil
}

func (s *videoDecodeSession) Drain([]byte) (*VideoFrame, error) { return s.out.drain() }

func (s *videoDecodeSession) Close() error { return nil }

// --- Audio ---

type passthroughAudioEncoder struct{ Passthrough }

func (passthroughAudioEncoder) Name() string { return PassthroughEngineName }

func (e passthroughAudioEncoder) Open(config AudioEncoderConfig) (Session[*AudioData, *EncodedAudioChunk], error) {
	return &audioEncodeSession{config: config, out: delayLine[*EncodedAudioChunk]{depth: e.Delay}}, nil
}

type audioEncodeSession struct {
	config AudioEncoderConfig
	out    delayLine[*EncodedAudioChunk]
}

func (s *audioEncodeSession) Submit(data *AudioData, scratch []byte) (*EncodedAudioChunk, error) {
	if data == nil {
		return nil, errors.New("nil audio data")
	}
	if err := data.validate(); err != nil {
		return nil, err
	}
	if data.Format != s.config.Format || data.Channels != s.config.Channels || data.SampleRate != s.config.SampleRate {
		return nil, fmt.Errorf("audio %s/%dch/%dHz does not match configured %s/%dch/%dHz",
			data.Format, data.Channels, data.SampleRate, s.config.Format, s.config.Channels, s.config.SampleRate)
	}
	size := rawAudioHeaderSize + data.Size()
	if len(scratch) < size {
		return nil, ErrBufferTooSmall
	}
	scratch[0] = 'A'
	scratch[1] = byte(data.Format)
	binary.BigEndian.PutUint16(scratch[2:], uint16(data.Channels))
	binary.BigEndian.PutUint32(scratch[4:], uint32(data.SampleRate))
	copy(scratch[rawAudioHeaderSize:size], data.Data)

	return s.out.push(&EncodedAudioChunk{
		Type:      ChunkTypeKey,
		Data:      append([]byte(nil), scratch[:size]...),
		Timestamp: data.Timestamp,
		Duration:  data.Duration(),
	}), nil
}

func (s *audioEncodeSession) Drain([]byte) (*EncodedAudioChunk, error) { return s.out.drain() }

func (s *audioEncodeSession) Close() error { return nil }

type passthroughAudioDecoder struct{ Passthrough }

func (passthroughAudioDecoder) Name() string { return PassthroughEngineName }

func (e passthroughAudioDecoder) Open(config AudioDecoderConfig) (Session[*EncodedAudioChunk, *AudioData], error) {
	return &audioDecodeSession{config: config, out: delayLine[*AudioData]{depth: e.Delay}}, nil
}

type audioDecodeSession struct {
	config AudioDecoderConfig
	out    delayLine[*AudioData]
}

func (s *audioDecodeSession) Submit(chunk *EncodedAudioChunk, _ []byte) (*AudioData, error) {
	if chunk == nil || len(chunk.Data) < rawAudioHeaderSize || chunk.Data[0] != 'A' {
		return nil, errMalformedChunk
	}
	data := &AudioData{
		Format:     AudioFormat(chunk.Data[1]),
		Channels:   int(binary.BigEndian.Uint16(chunk.Data[2:])),
		SampleRate: int(binary.BigEndian.Uint32(chunk.Data[4:])),
		Data:       append([]byte(nil), chunk.Data[rawAudioHeaderSize:]...),
		Timestamp:  chunk.Timestamp,
	}
	if data.Format != s.config.OutputFormat {
		return nil, fmt.Errorf("chunk carries %s, configured output %s", data.Format, s.config.OutputFormat)
	}
	frameBytes := data.Channels * data.Format.BytesPerSample()
	if frameBytes == 0 || len(data.Data)%frameBytes != 0 {
		return nil, errMalformedChunk
	}
	data.Frames = len(data.Data) / frameBytes
	return s.out.push(data), nil
}

func (s *audioDecodeSession) Drain([]byte) (*AudioData, error) { return s.out.drain() }

func (s *audioDecodeSession) Close() error { return nil }
