package webcodecs

// VideoEncoder turns raw VideoFrames into EncodedVideoChunks.
type VideoEncoder struct {
	*codec[VideoEncoderConfig, *VideoFrame, *EncodedVideoChunk]
}

// NewVideoEncoder creates an unconfigured video encoder.
func NewVideoEncoder(init Init[*EncodedVideoChunk]) *VideoEncoder {
	return &VideoEncoder{newCodec(KindVideoEncoder, videoEncoderEngines, videoEncoderScratch, init)}
}

// Encode queues frame and returns its sequence number. The frame must not be
// modified until its result is delivered.
func (e *VideoEncoder) Encode(frame *VideoFrame) (uint64, error) {
	return e.process("encode", frame)
}

func videoEncoderScratch(c VideoEncoderConfig, frame *VideoFrame) int {
	if frame == nil {
		return c.maxEncodedSize()
	}
	return max(frame.PackedSize()+encodedHeadroom, c.maxEncodedSize())
}

// VideoDecoder turns EncodedVideoChunks into raw VideoFrames.
type VideoDecoder struct {
	*codec[VideoDecoderConfig, *EncodedVideoChunk, *VideoFrame]
}

// NewVideoDecoder creates an unconfigured video decoder.
func NewVideoDecoder(init Init[*VideoFrame]) *VideoDecoder {
	return &VideoDecoder{newCodec(KindVideoDecoder, videoDecoderEngines, videoDecoderScratch, init)}
}

// Decode queues chunk and returns its sequence number.
func (d *VideoDecoder) Decode(chunk *EncodedVideoChunk) (uint64, error) {
	return d.process("decode", chunk)
}

func videoDecoderScratch(c VideoDecoderConfig, chunk *EncodedVideoChunk) int {
	if chunk == nil {
		return c.maxFrameSize()
	}
	return max(len(chunk.Data), c.maxFrameSize())
}

// AudioEncoder turns raw AudioData into EncodedAudioChunks.
type AudioEncoder struct {
	*codec[AudioEncoderConfig, *AudioData, *EncodedAudioChunk]
}

// NewAudioEncoder creates an unconfigured audio encoder.
func NewAudioEncoder(init Init[*EncodedAudioChunk]) *AudioEncoder {
	return &AudioEncoder{newCodec(KindAudioEncoder, audioEncoderEngines, audioEncoderScratch, init)}
}

// Encode queues data and returns its sequence number.
func (e *AudioEncoder) Encode(data *AudioData) (uint64, error) {
	return e.process("encode", data)
}

func audioEncoderScratch(c AudioEncoderConfig, data *AudioData) int {
	if data == nil {
		return c.maxPacketSize()
	}
	return max(data.Size()+encodedHeadroom, c.maxPacketSize())
}

// AudioDecoder turns EncodedAudioChunks into raw AudioData.
type AudioDecoder struct {
	*codec[AudioDecoderConfig, *EncodedAudioChunk, *AudioData]
}

// NewAudioDecoder creates an unconfigured audio decoder.
func NewAudioDecoder(init Init[*AudioData]) *AudioDecoder {
	return &AudioDecoder{newCodec(KindAudioDecoder, audioDecoderEngines, audioDecoderScratch, init)}
}

// Decode queues chunk and returns its sequence number.
func (d *AudioDecoder) Decode(chunk *EncodedAudioChunk) (uint64, error) {
	return d.process("decode", chunk)
}

func audioDecoderScratch(c AudioDecoderConfig, chunk *EncodedAudioChunk) int {
	if chunk == nil {
		return c.maxFrameSize()
	}
	return max(len(chunk.Data), c.maxFrameSize())
}

// --- Support queries ---

// IsVideoEncoderConfigSupported reports, without opening a session, why
// config cannot be used, or nil if it can.
func IsVideoEncoderConfigSupported(config VideoEncoderConfig) error {
	return configSupported(videoEncoderEngines, config)
}

// IsVideoDecoderConfigSupported is IsVideoEncoderConfigSupported for decoders.
func IsVideoDecoderConfigSupported(config VideoDecoderConfig) error {
	return configSupported(videoDecoderEngines, config)
}

// IsAudioEncoderConfigSupported is IsVideoEncoderConfigSupported for audio encoders.
func IsAudioEncoderConfigSupported(config AudioEncoderConfig) error {
	return configSupported(audioEncoderEngines, config)
}

// IsAudioDecoderConfigSupported is IsVideoEncoderConfigSupported for audio decoders.
func IsAudioDecoderConfigSupported(config AudioDecoderConfig) error {
	return configSupported(audioDecoderEngines, config)
}

func configSupported[C codecConfig, I any, O comparable](r *engineRegistry[C, I, O], config C) error {
	if err := config.Validate(); err != nil {
		return err
	}
	_, err := r.resolve(config)
	return err
}
