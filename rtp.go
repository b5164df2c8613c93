package webcodecs

import (
	"fmt"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
)

// DefaultMTU is the default maximum RTP packet size.
const DefaultMTU = 1200

const rtpHeaderSize = 12

// PacketWriter receives packetized output. *webrtc.TrackLocalStaticRTP
// satisfies it.
type PacketWriter interface {
	WriteRTP(packet *rtp.Packet) error
}

// RTPSinkConfig configures an RTPSink.
type RTPSinkConfig struct {
	SSRC            uint32
	PayloadType     uint8
	MTU             int    // 0 = DefaultMTU
	TimestampOffset uint32 // Added to every RTP timestamp
}

// RTPSinkStats counts what a sink has written.
type RTPSinkStats struct {
	Chunks  uint64
	Packets uint64
	Bytes   uint64
}

// RTPSink packetizes encoded chunks delivered by an encoder's Output callback
// and writes the packets to a PacketWriter. It is safe for concurrent use.
type RTPSink struct {
	writer    PacketWriter
	payloader rtp.Payloader
	marker    bool // audio sets the marker on every packet
	clockRate uint32
	config    RTPSinkConfig

	mu        sync.Mutex
	sequencer rtp.Sequencer
	stats     RTPSinkStats
}

// NewVideoRTPSink creates a sink for chunks produced by a video encoder.
func NewVideoRTPSink(codec VideoCodec, w PacketWriter, config RTPSinkConfig) (*RTPSink, error) {
	var payloader rtp.Payloader
	switch codec {
	case VideoCodecVP8:
		payloader = &codecs.VP8Payloader{EnablePictureID: true}
	case VideoCodecVP9:
		// Flexible mode does not depend on parsing the frame header.
		payloader = &codecs.VP9Payloader{FlexibleMode: true}
	case VideoCodecH264:
		payloader = &codecs.H264Payloader{}
	case VideoCodecAV1:
		payloader = &codecs.AV1Payloader{}
	default:
		return nil, fmt.Errorf("%w: no RTP payloader for %s", ErrCodecNotSupported, codec)
	}
	return newRTPSink(w, payloader, false, codec.ClockRate(), config), nil
}

// NewAudioRTPSink creates a sink for chunks produced by an audio encoder.
func NewAudioRTPSink(codec AudioCodec, w PacketWriter, config RTPSinkConfig) (*RTPSink, error) {
	var payloader rtp.Payloader
	switch codec {
	case AudioCodecOpus:
		payloader = &codecs.OpusPayloader{}
	case AudioCodecG711A, AudioCodecG711U, AudioCodecPCM:
		payloader = &codecs.G711Payloader{}
	default:
		return nil, fmt.Errorf("%w: no RTP payloader for %s", ErrCodecNotSupported, codec)
	}
	return newRTPSink(w, payloader, true, codec.ClockRate(), config), nil
}

func newRTPSink(w PacketWriter, p rtp.Payloader, marker bool, clockRate uint32, config RTPSinkConfig) *RTPSink {
	if config.MTU <= rtpHeaderSize {
		config.MTU = DefaultMTU
	}
	return &RTPSink{
		writer:    w,
		payloader: p,
		marker:    marker,
		clockRate: clockRate,
		config:    config,
		sequencer: rtp.NewRandomSequencer(),
	}
}

// WriteVideoChunk packetizes and writes one encoded video chunk.
func (s *RTPSink) WriteVideoChunk(chunk *EncodedVideoChunk) error {
	return s.write(chunk.Data, chunk.Timestamp)
}

// WriteAudioChunk packetizes and writes one encoded audio chunk.
func (s *RTPSink) WriteAudioChunk(chunk *EncodedAudioChunk) error {
	return s.write(chunk.Data, chunk.Timestamp)
}

// Packetize splits data into RTP packets stamped with the RTP time of
// timestamp (nanoseconds). The last packet carries the marker bit.
func (s *RTPSink) Packetize(data []byte, timestamp int64) []*rtp.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.packetizeLocked(data, timestamp)
}

func (s *RTPSink) packetizeLocked(data []byte, timestamp int64) []*rtp.Packet {
	if len(data) == 0 {
		return nil
	}
	payloads := s.payloader.Payload(uint16(s.config.MTU-rtpHeaderSize), data)
	ts := s.rtpTimestamp(timestamp)

	packets := make([]*rtp.Packet, len(payloads))
	for i, payload := range payloads {
		packets[i] = &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         s.marker || i == len(payloads)-1,
				PayloadType:    s.config.PayloadType,
				SequenceNumber: s.sequencer.NextSequenceNumber(),
				Timestamp:      ts,
				SSRC:           s.config.SSRC,
			},
			Payload: payload,
		}
	}
	return packets
}

func (s *RTPSink) write(data []byte, timestamp int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	packets := s.packetizeLocked(data, timestamp)
	for _, p := range packets {
		if err := s.writer.WriteRTP(p); err != nil {
			return fmt.Errorf("write rtp: %w", err)
		}
		s.stats.Packets++
		s.stats.Bytes += uint64(len(p.Payload))
	}
	s.stats.Chunks++
	return nil
}

// rtpTimestamp converts nanoseconds to the codec clock with microsecond
// precision.
func (s *RTPSink) rtpTimestamp(ns int64) uint32 {
	if ns < 0 {
		ns = 0
	}
	us := uint64(ns) / 1000
	return uint32(us*uint64(s.clockRate)/1_000_000) + s.config.TimestampOffset
}

// Stats returns what the sink has written so far.
func (s *RTPSink) Stats() RTPSinkStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}
