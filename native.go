package webcodecs

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// NativeEngineName is the registry name of engines backed by libcodec_engine.
const NativeEngineName = "native"

// Return codes of codec_engine_submit and codec_engine_drain.
const (
	nativeEOF        = -1
	nativeWouldBlock = -2
	nativeError      = -3
	nativeTooSmall   = -4 // input not consumed; retried once with a larger buffer
)

// nativeFlagKey marks a keyframe in nativeInfo.Flags.
const nativeFlagKey = 1

// nativeInfo describes one input or output across the FFI boundary. It
// mirrors struct codec_engine_info:
//
//	typedef struct {
//	    int64_t  timestamp;   // nanoseconds
//	    int64_t  duration;    // nanoseconds
//	    uint32_t flags;
//	    uint32_t width;
//	    uint32_t height;
//	    uint32_t format;      // PixelFormat or AudioFormat
//	    uint32_t sample_rate;
//	    uint32_t channels;
//	    uint32_t frames;      // samples per channel
//	    uint32_t reserved;
//	} codec_engine_info;
type nativeInfo struct {
	Timestamp  int64
	Duration   int64
	Flags      uint32
	Width      uint32
	Height     uint32
	Format     uint32
	SampleRate uint32
	Channels   uint32
	Frames     uint32
	_          uint32
}

// nativeConfig is the msgpack document handed to codec_engine_open.
type nativeConfig struct {
	Kind             string  `msgpack:"kind"`
	Codec            string  `msgpack:"codec"`
	Width            int     `msgpack:"width,omitempty"`
	Height           int     `msgpack:"height,omitempty"`
	PixelFormat      string  `msgpack:"pixel_format,omitempty"`
	FPS              float64 `msgpack:"fps,omitempty"`
	Bitrate          int     `msgpack:"bitrate,omitempty"`
	BitrateMode      string  `msgpack:"bitrate_mode,omitempty"`
	LatencyMode      string  `msgpack:"latency_mode,omitempty"`
	KeyframeInterval int     `msgpack:"keyframe_interval,omitempty"`
	Threads          int     `msgpack:"threads,omitempty"`
	SampleRate       int     `msgpack:"sample_rate,omitempty"`
	Channels         int     `msgpack:"channels,omitempty"`
	SampleFormat     string  `msgpack:"sample_format,omitempty"`
	FrameSizeMs      int     `msgpack:"frame_size_ms,omitempty"`
	DTX              bool    `msgpack:"dtx,omitempty"`
	FEC              bool    `msgpack:"fec,omitempty"`
	Complexity       int     `msgpack:"complexity,omitempty"`
	Description      []byte  `msgpack:"description,omitempty"`
}

func marshalNativeConfig(kind Kind, config any) ([]byte, error) {
	doc := nativeConfig{Kind: kind.String()}
	switch c := config.(type) {
	case VideoEncoderConfig:
		doc.Codec = c.Codec.String()
		doc.Width, doc.Height = c.Width, c.Height
		doc.PixelFormat = c.Format.String()
		doc.FPS = c.FPS
		doc.Bitrate = c.BitrateBps
		doc.BitrateMode = c.BitrateMode.String()
		doc.LatencyMode = c.LatencyMode.String()
		doc.KeyframeInterval = c.KeyframeInterval
		doc.Threads = c.Threads
	case VideoDecoderConfig:
		doc.Codec = c.Codec.String()
		doc.Width, doc.Height = c.CodedWidth, c.CodedHeight
		doc.PixelFormat = c.OutputFormat.String()
		doc.Threads = c.Threads
		doc.Description = c.Description
	case AudioEncoderConfig:
		doc.Codec = c.Codec.String()
		doc.SampleRate, doc.Channels = c.SampleRate, c.Channels
		doc.SampleFormat = c.Format.String()
		doc.Bitrate = c.BitrateBps
		doc.FrameSizeMs = c.FrameSizeMs
		doc.DTX, doc.FEC = c.DTX, c.FEC
		doc.Complexity = c.Complexity
	case AudioDecoderConfig:
		doc.Codec = c.Codec.String()
		doc.SampleRate, doc.Channels = c.SampleRate, c.Channels
		doc.SampleFormat = c.OutputFormat.String()
		doc.Description = c.Description
	default:
		return nil, fmt.Errorf("native: unsupported config type %T", config)
	}
	return msgpack.Marshal(&doc)
}

func chunkTypeFromFlags(flags uint32) ChunkType {
	if flags&nativeFlagKey != 0 {
		return ChunkTypeKey
	}
	return ChunkTypeDelta
}

func flagsFromChunkType(t ChunkType) uint32 {
	if t == ChunkTypeKey {
		return nativeFlagKey
	}
	return 0
}
