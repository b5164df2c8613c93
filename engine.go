package webcodecs

import (
	"fmt"
	"slices"
	"sync"
)

// Engine opens codec sessions for one instance kind. Implementations wrap
// an external codec library; the codec runtime never calls a Session from
// more than one goroutine at a time.
type Engine[C any, I any, O comparable] interface {
	// Name identifies the engine in the registry and in errors.
	Name() string

	// Open creates a session for config. Errors are reported to the caller
	// of Configure as a *ConfigError.
	Open(config C) (Session[I, O], error)
}

// Session is one live codec context.
type Session[I any, O comparable] interface {
	// Submit hands one input to the engine. It returns the zero O when the
	// engine buffered the input without producing output, and ErrWouldBlock
	// when the call must be repeated. scratch is only valid for the
	// duration of the call; outputs must not alias it. Returning
	// ErrBufferTooSmall without consuming the input makes the caller repeat
	// the call once with twice the scratch; a second ErrBufferTooSmall is
	// reported as the request's error.
	Submit(input I, scratch []byte) (O, error)

	// Drain returns the next buffered output, or io.EOF once the engine has
	// nothing left. scratch follows the same rules as for Submit.
	Drain(scratch []byte) (O, error)

	// Close releases the session. It is called exactly once.
	Close() error
}

// Engine aliases for the four instance kinds.
type (
	VideoEncoderEngine = Engine[VideoEncoderConfig, *VideoFrame, *EncodedVideoChunk]
	VideoDecoderEngine = Engine[VideoDecoderConfig, *EncodedVideoChunk, *VideoFrame]
	AudioEncoderEngine = Engine[AudioEncoderConfig, *AudioData, *EncodedAudioChunk]
	AudioDecoderEngine = Engine[AudioDecoderConfig, *EncodedAudioChunk, *AudioData]
)

// --- Registry ---

type engineRegistry[C codecConfig, I any, O comparable] struct {
	mu sync.RWMutex

	// codec -> engine name -> engine
	engines map[string]map[string]Engine[C, I, O]

	// Default engine name per codec
	defaults map[string]string
}

func newEngineRegistry[C codecConfig, I any, O comparable]() *engineRegistry[C, I, O] {
	return &engineRegistry[C, I, O]{
		engines:  make(map[string]map[string]Engine[C, I, O]),
		defaults: make(map[string]string),
	}
}

var (
	videoEncoderEngines = newEngineRegistry[VideoEncoderConfig, *VideoFrame, *EncodedVideoChunk]()
	videoDecoderEngines = newEngineRegistry[VideoDecoderConfig, *EncodedVideoChunk, *VideoFrame]()
	audioEncoderEngines = newEngineRegistry[AudioEncoderConfig, *AudioData, *EncodedAudioChunk]()
	audioDecoderEngines = newEngineRegistry[AudioDecoderConfig, *EncodedAudioChunk, *AudioData]()
)

// register adds e for codec. The first engine registered for a codec becomes
// its default.
func (r *engineRegistry[C, I, O]) register(codec string, e Engine[C, I, O]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engines[codec] == nil {
		r.engines[codec] = make(map[string]Engine[C, I, O])
	}
	r.engines[codec][e.Name()] = e
	if _, ok := r.defaults[codec]; !ok {
		r.defaults[codec] = e.Name()
	}
}

func (r *engineRegistry[C, I, O]) unregister(codec, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.engines[codec], name)
	if r.defaults[codec] != name {
		return
	}
	delete(r.defaults, codec)
	for other := range r.engines[codec] {
		r.defaults[codec] = other
		break
	}
}

func (r *engineRegistry[C, I, O]) setDefault(codec, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[codec] = name
}

func (r *engineRegistry[C, I, O]) names(codec string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]string, 0, len(r.engines[codec]))
	for name := range r.engines[codec] {
		result = append(result, name)
	}
	slices.Sort(result)
	return result
}

// resolve returns the engine selected by config.
func (r *engineRegistry[C, I, O]) resolve(config C) (Engine[C, I, O], error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	codec := config.codecName()
	engines := r.engines[codec]
	if len(engines) == 0 {
		return nil, &ConfigError{Field: "codec", Err: fmt.Errorf("%w: no engines for %s", ErrCodecNotSupported, codec)}
	}

	name := config.engineName()
	if name == "" {
		name = r.defaults[codec]
	}
	e, ok := engines[name]
	if !ok {
		return nil, &ConfigError{Field: "engine", Err: fmt.Errorf("%w: %q for %s", ErrEngineNotFound, name, codec)}
	}
	return e, nil
}

// RegisterVideoEncoderEngine makes e available for codec.
func RegisterVideoEncoderEngine(codec VideoCodec, e VideoEncoderEngine) {
	videoEncoderEngines.register(codec.String(), e)
}

// RegisterVideoDecoderEngine makes e available for codec.
func RegisterVideoDecoderEngine(codec VideoCodec, e VideoDecoderEngine) {
	videoDecoderEngines.register(codec.String(), e)
}

// RegisterAudioEncoderEngine makes e available for codec.
func RegisterAudioEncoderEngine(codec AudioCodec, e AudioEncoderEngine) {
	audioEncoderEngines.register(codec.String(), e)
}

// RegisterAudioDecoderEngine makes e available for codec.
func RegisterAudioDecoderEngine(codec AudioCodec, e AudioDecoderEngine) {
	audioDecoderEngines.register(codec.String(), e)
}

// SetDefaultVideoEncoderEngine selects the engine used when a config leaves Engine empty.
func SetDefaultVideoEncoderEngine(codec VideoCodec, name string) {
	videoEncoderEngines.setDefault(codec.String(), name)
}

// SetDefaultVideoDecoderEngine selects the engine used when a config leaves Engine empty.
func SetDefaultVideoDecoderEngine(codec VideoCodec, name string) {
	videoDecoderEngines.setDefault(codec.String(), name)
}

// SetDefaultAudioEncoderEngine selects the engine used when a config leaves Engine empty.
func SetDefaultAudioEncoderEngine(codec AudioCodec, name string) {
	audioEncoderEngines.setDefault(codec.String(), name)
}

// SetDefaultAudioDecoderEngine selects the engine used when a config leaves Engine empty.
func SetDefaultAudioDecoderEngine(codec AudioCodec, name string) {
	audioDecoderEngines.setDefault(codec.String(), name)
}

// VideoEncoderEngines returns the engine names registered for codec.
func VideoEncoderEngines(codec VideoCodec) []string { return videoEncoderEngines.names(codec.String()) }

// VideoDecoderEngines returns the engine names registered for codec.
func VideoDecoderEngines(codec VideoCodec) []string { return videoDecoderEngines.names(codec.String()) }

// AudioEncoderEngines returns the engine names registered for codec.
func AudioEncoderEngines(codec AudioCodec) []string { return audioEncoderEngines.names(codec.String()) }

// AudioDecoderEngines returns the engine names registered for codec.
func AudioDecoderEngines(codec AudioCodec) []string { return audioDecoderEngines.names(codec.String()) }
