package webcodecs

const (
	maxDimension      = 16384
	maxAudioChannels  = 8
	maxAudioFrameMs   = 120
	encodedHeadroom   = 4096
	defaultCodedWidth = 1920
	defaultCodedHigh  = 1080
)

// codecConfig is implemented by the four per-kind configuration structs.
type codecConfig interface {
	Validate() error
	codecName() string
	engineName() string
}

// VideoEncoderConfig configures a video encoder.
type VideoEncoderConfig struct {
	Codec  VideoCodec  // Codec type (VP8, VP9, H264, AV1)
	Engine string      // Registered engine name ("" = default for Codec)
	Format PixelFormat // Pixel format of submitted frames

	Width      int     // Frame width
	Height     int     // Frame height
	FPS        float64 // Target framerate (0 = unspecified)
	BitrateBps int     // Target bitrate in bits per second (0 = engine default)

	BitrateMode      BitrateMode
	LatencyMode      LatencyMode
	KeyframeInterval int // Frames between forced keyframes (0 = engine decides)
	Threads          int // Engine threads (0 = auto)
}

// DefaultVideoEncoderConfig returns a default encoder configuration.
func DefaultVideoEncoderConfig(codec VideoCodec, width, height int) VideoEncoderConfig {
	return VideoEncoderConfig{
		Codec:       codec,
		Format:      PixelFormatI420,
		Width:       width,
		Height:      height,
		FPS:         30,
		BitrateBps:  1_500_000,
		BitrateMode: BitrateModeVariable,
		LatencyMode: LatencyModeRealtime,
	}
}

// Validate checks the configuration eagerly.
func (c VideoEncoderConfig) Validate() error {
	if c.Codec == VideoCodecUnknown || c.Codec.MimeType() == "" {
		return &ConfigError{Field: "codec", Err: ErrCodecNotSupported}
	}
	if c.Format.PlaneCount() == 0 {
		return configErrorf("format", "unsupported pixel format %s", c.Format)
	}
	if err := validateDimensions("width", c.Width, "height", c.Height); err != nil {
		return err
	}
	if c.FPS < 0 {
		return configErrorf("fps", "must be >= 0, got %v", c.FPS)
	}
	if c.BitrateBps < 0 {
		return configErrorf("bitrate", "must be >= 0, got %d", c.BitrateBps)
	}
	if c.BitrateMode < BitrateModeVariable || c.BitrateMode > BitrateModeQuantizer {
		return configErrorf("bitrate_mode", "unknown mode %d", c.BitrateMode)
	}
	if c.LatencyMode < LatencyModeQuality || c.LatencyMode > LatencyModeRealtime {
		return configErrorf("latency_mode", "unknown mode %d", c.LatencyMode)
	}
	if c.KeyframeInterval < 0 {
		return configErrorf("keyframe_interval", "must be >= 0, got %d", c.KeyframeInterval)
	}
	if c.Threads < 0 {
		return configErrorf("threads", "must be >= 0, got %d", c.Threads)
	}
	return nil
}

func (c VideoEncoderConfig) codecName() string  { return c.Codec.String() }
func (c VideoEncoderConfig) engineName() string { return c.Engine }

// maxEncodedSize bounds one encoded access unit.
func (c VideoEncoderConfig) maxEncodedSize() int {
	return c.Format.FrameSize(c.Width, c.Height) + encodedHeadroom
}

// VideoDecoderConfig configures a video decoder.
type VideoDecoderConfig struct {
	Codec  VideoCodec
	Engine string

	// Coded size of the stream; zero values fall back to 1920x1080 for
	// scratch sizing and are otherwise left to the engine.
	CodedWidth   int
	CodedHeight  int
	OutputFormat PixelFormat
	Description  []byte // Out-of-band codec data (avcC, hvcC, ...)
	Threads      int
}

// DefaultVideoDecoderConfig returns a default decoder configuration.
func DefaultVideoDecoderConfig(codec VideoCodec) VideoDecoderConfig {
	return VideoDecoderConfig{Codec: codec, OutputFormat: PixelFormatI420}
}

// Validate checks the configuration eagerly.
func (c VideoDecoderConfig) Validate() error {
	if c.Codec == VideoCodecUnknown || c.Codec.MimeType() == "" {
		return &ConfigError{Field: "codec", Err: ErrCodecNotSupported}
	}
	if c.OutputFormat.PlaneCount() == 0 {
		return configErrorf("output_format", "unsupported pixel format %s", c.OutputFormat)
	}
	if c.CodedWidth != 0 || c.CodedHeight != 0 {
		if err := validateDimensions("coded_width", c.CodedWidth, "coded_height", c.CodedHeight); err != nil {
			return err
		}
	}
	if c.Threads < 0 {
		return configErrorf("threads", "must be >= 0, got %d", c.Threads)
	}
	return nil
}

func (c VideoDecoderConfig) codecName() string  { return c.Codec.String() }
func (c VideoDecoderConfig) engineName() string { return c.Engine }

func (c VideoDecoderConfig) codedSize() (int, int) {
	if c.CodedWidth == 0 || c.CodedHeight == 0 {
		return defaultCodedWidth, defaultCodedHigh
	}
	return c.CodedWidth, c.CodedHeight
}

// maxFrameSize bounds one decoded frame.
func (c VideoDecoderConfig) maxFrameSize() int {
	w, h := c.codedSize()
	return c.OutputFormat.FrameSize(w, h)
}

// AudioEncoderConfig configures an audio encoder.
type AudioEncoderConfig struct {
	Codec  AudioCodec
	Engine string
	Format AudioFormat // Sample format of submitted audio

	SampleRate  int // Sample rate (e.g., 48000)
	Channels    int // Number of channels
	BitrateBps  int // Target bitrate in bps (0 = engine default)
	FrameSizeMs int // Frame size in milliseconds (0 = engine default)

	// Opus-specific options
	DTX        bool // Enable discontinuous transmission
	FEC        bool // Enable forward error correction
	Complexity int  // Opus complexity (0-10)
}

// DefaultAudioEncoderConfig returns a default audio encoder configuration.
func DefaultAudioEncoderConfig(codec AudioCodec) AudioEncoderConfig {
	cfg := AudioEncoderConfig{
		Codec:       codec,
		Format:      AudioFormatS16,
		SampleRate:  48000,
		Channels:    2,
		BitrateBps:  64000,
		FrameSizeMs: 20,
		FEC:         true,
		Complexity:  10,
	}
	if codec == AudioCodecG711A || codec == AudioCodecG711U {
		cfg.SampleRate, cfg.Channels, cfg.BitrateBps = 8000, 1, 64000
	}
	return cfg
}

// Validate checks the configuration eagerly.
func (c AudioEncoderConfig) Validate() error {
	if err := validateAudio(c.Codec, c.Format, c.SampleRate, c.Channels); err != nil {
		return err
	}
	if c.BitrateBps < 0 {
		return configErrorf("bitrate", "must be >= 0, got %d", c.BitrateBps)
	}
	if c.FrameSizeMs < 0 || c.FrameSizeMs > maxAudioFrameMs {
		return configErrorf("frame_size_ms", "must be within 0-%d, got %d", maxAudioFrameMs, c.FrameSizeMs)
	}
	if c.Complexity < 0 || c.Complexity > 10 {
		return configErrorf("complexity", "must be within 0-10, got %d", c.Complexity)
	}
	return nil
}

func (c AudioEncoderConfig) codecName() string  { return c.Codec.String() }
func (c AudioEncoderConfig) engineName() string { return c.Engine }

func (c AudioEncoderConfig) maxPacketSize() int {
	return maxAudioBytes(c.SampleRate, c.Channels, c.Format) + encodedHeadroom
}

// AudioDecoderConfig configures an audio decoder.
type AudioDecoderConfig struct {
	Codec        AudioCodec
	Engine       string
	SampleRate   int
	Channels     int
	OutputFormat AudioFormat
	Description  []byte // Out-of-band codec data (e.g. AudioSpecificConfig)
}

// DefaultAudioDecoderConfig returns a default audio decoder configuration.
func DefaultAudioDecoderConfig(codec AudioCodec) AudioDecoderConfig {
	cfg := AudioDecoderConfig{Codec: codec, SampleRate: 48000, Channels: 2, OutputFormat: AudioFormatS16}
	if codec == AudioCodecG711A || codec == AudioCodecG711U {
		cfg.SampleRate, cfg.Channels = 8000, 1
	}
	return cfg
}

// Validate checks the configuration eagerly.
func (c AudioDecoderConfig) Validate() error {
	return validateAudio(c.Codec, c.OutputFormat, c.SampleRate, c.Channels)
}

func (c AudioDecoderConfig) codecName() string  { return c.Codec.String() }
func (c AudioDecoderConfig) engineName() string { return c.Engine }

func (c AudioDecoderConfig) maxFrameSize() int {
	return maxAudioBytes(c.SampleRate, c.Channels, c.OutputFormat)
}

func validateDimensions(wField string, w int, hField string, h int) error {
	if w <= 0 || w > maxDimension {
		return configErrorf(wField, "must be within 1-%d, got %d", maxDimension, w)
	}
	if h <= 0 || h > maxDimension {
		return configErrorf(hField, "must be within 1-%d, got %d", maxDimension, h)
	}
	return nil
}

func validateAudio(codec AudioCodec, format AudioFormat, sampleRate, channels int) error {
	if codec == AudioCodecUnknown || codec.MimeType() == "" {
		return &ConfigError{Field: "codec", Err: ErrCodecNotSupported}
	}
	if format.BytesPerSample() == 0 {
		return configErrorf("format", "unsupported sample format %s", format)
	}
	if sampleRate < 8000 || sampleRate > 384000 {
		return configErrorf("sample_rate", "must be within 8000-384000, got %d", sampleRate)
	}
	if channels <= 0 || channels > maxAudioChannels {
		return configErrorf("channels", "must be within 1-%d, got %d", maxAudioChannels, channels)
	}
	switch codec {
	case AudioCodecOpus:
		if channels > 2 {
			return configErrorf("channels", "Opus supports max 2 channels, got %d", channels)
		}
	case AudioCodecG711A, AudioCodecG711U:
		if sampleRate != 8000 || channels != 1 {
			return configErrorf("sample_rate", "%s requires 8000 Hz mono", codec)
		}
	}
	return nil
}

// maxAudioBytes is the size of the longest supported frame.
func maxAudioBytes(sampleRate, channels int, format AudioFormat) int {
	return sampleRate * maxAudioFrameMs / 1000 * channels * format.BytesPerSample()
}
