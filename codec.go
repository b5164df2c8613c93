package webcodecs

// Kind identifies which of the four codec instance types a value belongs to.
type Kind uint8

const (
	KindVideoEncoder Kind = iota
	KindVideoDecoder
	KindAudioEncoder
	KindAudioDecoder
)

func (k Kind) String() string {
	switch k {
	case KindVideoEncoder:
		return "video-encoder"
	case KindVideoDecoder:
		return "video-decoder"
	case KindAudioEncoder:
		return "audio-encoder"
	case KindAudioDecoder:
		return "audio-decoder"
	default:
		return "unknown"
	}
}

// VideoCodec identifies the video codec type.
type VideoCodec int

const (
	VideoCodecUnknown VideoCodec = iota
	VideoCodecVP8
	VideoCodecVP9
	VideoCodecH264
	VideoCodecH265
	VideoCodecAV1
)

func (c VideoCodec) String() string {
	switch c {
	case VideoCodecVP8:
		return "VP8"
	case VideoCodecVP9:
		return "VP9"
	case VideoCodecH264:
		return "H264"
	case VideoCodecH265:
		return "H265"
	case VideoCodecAV1:
		return "AV1"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this codec.
func (c VideoCodec) MimeType() string {
	if c == VideoCodecUnknown || c > VideoCodecAV1 {
		return ""
	}
	return "video/" + c.String()
}

// ClockRate returns the RTP clock rate for this codec.
func (c VideoCodec) ClockRate() uint32 {
	return 90000
}

// AudioCodec identifies the audio codec type.
type AudioCodec int

const (
	AudioCodecUnknown AudioCodec = iota
	AudioCodecOpus
	AudioCodecG711A // A-law (PCMA)
	AudioCodecG711U // mu-law (PCMU)
	AudioCodecAAC
	AudioCodecPCM // uncompressed, mostly for tests and passthrough pipelines
)

func (c AudioCodec) String() string {
	switch c {
	case AudioCodecOpus:
		return "Opus"
	case AudioCodecG711A:
		return "PCMA"
	case AudioCodecG711U:
		return "PCMU"
	case AudioCodecAAC:
		return "AAC"
	case AudioCodecPCM:
		return "PCM"
	default:
		return "Unknown"
	}
}

// MimeType returns the MIME type for this codec.
func (c AudioCodec) MimeType() string {
	switch c {
	case AudioCodecOpus:
		return "audio/opus"
	case AudioCodecG711A:
		return "audio/PCMA"
	case AudioCodecG711U:
		return "audio/PCMU"
	case AudioCodecAAC:
		return "audio/AAC"
	case AudioCodecPCM:
		return "audio/L16"
	default:
		return ""
	}
}

// ClockRate returns the RTP clock rate for this codec.
func (c AudioCodec) ClockRate() uint32 {
	switch c {
	case AudioCodecG711A, AudioCodecG711U:
		return 8000
	default:
		return 48000
	}
}

// BitrateMode selects the encoder rate control strategy.
type BitrateMode int

const (
	BitrateModeVariable BitrateMode = iota
	BitrateModeConstant
	BitrateModeQuantizer
)

func (m BitrateMode) String() string {
	switch m {
	case BitrateModeVariable:
		return "variable"
	case BitrateModeConstant:
		return "constant"
	case BitrateModeQuantizer:
		return "quantizer"
	default:
		return "unknown"
	}
}

// LatencyMode trades compression efficiency for per-frame latency.
type LatencyMode int

const (
	LatencyModeQuality LatencyMode = iota
	LatencyModeRealtime
)

func (m LatencyMode) String() string {
	switch m {
	case LatencyModeQuality:
		return "quality"
	case LatencyModeRealtime:
		return "realtime"
	default:
		return "unknown"
	}
}
