package webcodecs

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

// SampleWriter receives whole encoded samples. *webrtc.TrackLocalStaticSample
// satisfies it.
type SampleWriter interface {
	WriteSample(sample media.Sample) error
}

// NewVideoTrack creates a local WebRTC track for codec.
func NewVideoTrack(codec VideoCodec, id, streamID string) (*webrtc.TrackLocalStaticSample, error) {
	if codec.MimeType() == "" {
		return nil, fmt.Errorf("%w: %s", ErrCodecNotSupported, codec)
	}
	return webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  codec.MimeType(),
		ClockRate: codec.ClockRate(),
	}, id, streamID)
}

// NewAudioTrack creates a local WebRTC track for codec.
func NewAudioTrack(codec AudioCodec, channels int, id, streamID string) (*webrtc.TrackLocalStaticSample, error) {
	if codec.MimeType() == "" {
		return nil, fmt.Errorf("%w: %s", ErrCodecNotSupported, codec)
	}
	return webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{
		MimeType:  codec.MimeType(),
		ClockRate: codec.ClockRate(),
		Channels:  uint16(channels),
	}, id, streamID)
}

// TrackSink forwards encoded chunks to a WebRTC track. Chunks without a
// duration reuse the last known one, or DefaultDuration. Safe for
// concurrent use.
type TrackSink struct {
	writer SampleWriter

	mu       sync.Mutex
	duration time.Duration
	samples  uint64
}

// DefaultDuration is assumed for the first chunk lacking a duration.
const DefaultDuration = 20 * time.Millisecond

// NewTrackSink creates a sink writing to w.
func NewTrackSink(w SampleWriter) *TrackSink {
	return &TrackSink{writer: w, duration: DefaultDuration}
}

// WriteVideoChunk writes one encoded video chunk as a sample.
func (s *TrackSink) WriteVideoChunk(chunk *EncodedVideoChunk) error {
	return s.write(chunk.Data, chunk.Timestamp, chunk.Duration)
}

// WriteAudioChunk writes one encoded audio chunk as a sample.
func (s *TrackSink) WriteAudioChunk(chunk *EncodedAudioChunk) error {
	return s.write(chunk.Data, chunk.Timestamp, chunk.Duration)
}

func (s *TrackSink) write(data []byte, timestamp, duration int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if duration > 0 {
		s.duration = time.Duration(duration)
	}
	err := s.writer.WriteSample(media.Sample{
		Data:      data,
		Timestamp: time.Unix(0, timestamp),
		Duration:  s.duration,
	})
	if err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	s.samples++
	return nil
}

// Samples returns the number of samples written.
func (s *TrackSink) Samples() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.samples
}
