//go:build (darwin || linux) && !nonative

// Native codec engine loaded from libcodec_engine at runtime via purego.
//
// libcodec_engine is a thin C wrapper around the platform codec libraries
// with a primitive-only API, so no cgo toolchain is needed to build.

package webcodecs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"unsafe"

	"github.com/ebitengine/purego"
)

var (
	nativeOnce    sync.Once
	nativeDefault *NativeEngine
	nativeInitErr error

	nativeLogOnce sync.Once
	nativeLogFn   uintptr
)

// libcodec_engine function pointers
type nativeLib struct {
	open           func(kind int32, config uintptr, configLen int32) uint64
	submit         func(handle uint64, in uintptr, inLen int32, info uintptr, out uintptr, outCap int32, outInfo uintptr) int32
	drain          func(handle uint64, out uintptr, outCap int32, outInfo uintptr) int32
	close          func(handle uint64)
	lastError      func() uintptr
	version        func() uintptr
	setLogCallback func(callback uintptr)
}

// NativeEngine is a codec engine backed by a loaded libcodec_engine. One
// library serves all four instance kinds.
type NativeEngine struct {
	path   string
	handle uintptr
	lib    nativeLib
}

// LoadNativeEngine loads libcodec_engine from path. An empty path searches
// CODEC_ENGINE_LIB_PATH, the executable and module build directories and the
// system library paths; that search happens once per process.
func LoadNativeEngine(path string) (*NativeEngine, error) {
	if path != "" {
		return openNativeEngine(path)
	}
	nativeOnce.Do(func() {
		nativeDefault, nativeInitErr = findNativeEngine()
	})
	return nativeDefault, nativeInitErr
}

func findNativeEngine() (*NativeEngine, error) {
	var lastErr error
	for _, path := range nativeLibPaths() {
		e, err := openNativeEngine(path)
		if err == nil {
			return e, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNativeUnavailable, lastErr)
	}
	return nil, fmt.Errorf("%w: libcodec_engine not found in any standard location", ErrNativeUnavailable)
}

func openNativeEngine(path string) (*NativeEngine, error) {
	handle, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	e := &NativeEngine{path: path, handle: handle}
	if err := e.loadSymbols(); err != nil {
		purego.Dlclose(handle)
		return nil, err
	}
	e.lib.setLogCallback(nativeLogCallback())
	return e, nil
}

func (e *NativeEngine) loadSymbols() error {
	symbols := []struct {
		fptr any
		name string
	}{
		{&e.lib.open, "codec_engine_open"},
		{&e.lib.submit, "codec_engine_submit"},
		{&e.lib.drain, "codec_engine_drain"},
		{&e.lib.close, "codec_engine_close"},
		{&e.lib.lastError, "codec_engine_last_error"},
		{&e.lib.version, "codec_engine_version"},
		{&e.lib.setLogCallback, "codec_engine_set_log_callback"},
	}
	for _, s := range symbols {
		// RegisterLibFunc panics on a missing symbol.
		if _, err := purego.Dlsym(e.handle, s.name); err != nil {
			return fmt.Errorf("%s: missing symbol %s: %w", e.path, s.name, err)
		}
		purego.RegisterLibFunc(s.fptr, e.handle, s.name)
	}
	return nil
}

// nativeLogCallback returns the C callback routing library log lines into
// EngineLog. Callbacks are a finite resource, so only one is ever created.
func nativeLogCallback() uintptr {
	nativeLogOnce.Do(func() {
		nativeLogFn = purego.NewCallback(func(level, msg uintptr) uintptr {
			LogEngine(LogLevel(level), NativeEngineName, goStringFromPtr(msg))
			return 0
		})
	})
	return nativeLogFn
}

func nativeLibPaths() []string {
	var paths []string

	libName := "libcodec_engine.so"
	if runtime.GOOS == "darwin" {
		libName = "libcodec_engine.dylib"
	}

	if envPath := os.Getenv("CODEC_ENGINE_LIB_PATH"); envPath != "" {
		paths = append(paths, envPath)
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, libName),
			filepath.Join(exeDir, "..", "lib", libName),
		)
	}

	if root := findModuleRoot(); root != "" {
		paths = append(paths,
			filepath.Join(root, "build", libName),
			filepath.Join(root, "build", "ffi", libName),
		)
	}

	switch runtime.GOOS {
	case "darwin":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/opt/homebrew/lib/"+libName,
		)
	case "linux":
		paths = append(paths,
			libName,
			"/usr/local/lib/"+libName,
			"/usr/lib/"+libName,
		)
	}
	return paths
}

// Path returns the file the library was loaded from.
func (e *NativeEngine) Path() string { return e.path }

// Version returns the library's version string.
func (e *NativeEngine) Version() string { return goStringFromPtr(e.lib.version()) }

// Register makes e available under NativeEngineName for every codec. It does
// not change the default engine.
func (e *NativeEngine) Register() {
	for _, codec := range []VideoCodec{VideoCodecVP8, VideoCodecVP9, VideoCodecH264, VideoCodecH265, VideoCodecAV1} {
		RegisterVideoEncoderEngine(codec, e.VideoEncoder())
		RegisterVideoDecoderEngine(codec, e.VideoDecoder())
	}
	for _, codec := range []AudioCodec{AudioCodecOpus, AudioCodecG711A, AudioCodecG711U, AudioCodecAAC, AudioCodecPCM} {
		RegisterAudioEncoderEngine(codec, e.AudioEncoder())
		RegisterAudioDecoderEngine(codec, e.AudioDecoder())
	}
}

// VideoEncoder returns the video encoder engine.
func (e *NativeEngine) VideoEncoder() VideoEncoderEngine { return nativeVideoEncoder{e} }

// VideoDecoder returns the video decoder engine.
func (e *NativeEngine) VideoDecoder() VideoDecoderEngine { return nativeVideoDecoder{e} }

// AudioEncoder returns the audio encoder engine.
func (e *NativeEngine) AudioEncoder() AudioEncoderEngine { return nativeAudioEncoder{e} }

// AudioDecoder returns the audio decoder engine.
func (e *NativeEngine) AudioDecoder() AudioDecoderEngine { return nativeAudioDecoder{e} }

func (e *NativeEngine) lastError() string {
	if msg := goStringFromPtr(e.lib.lastError()); msg != "" {
		return msg
	}
	return "unknown error"
}

func (e *NativeEngine) open(kind Kind, config any) (*nativeSession, error) {
	blob, err := marshalNativeConfig(kind, config)
	if err != nil {
		return nil, err
	}
	handle := e.lib.open(int32(kind), bytesPtr(blob), int32(len(blob)))
	runtime.KeepAlive(blob)
	if handle == 0 {
		return nil, &EngineError{Engine: NativeEngineName, Op: "open", Message: e.lastError()}
	}
	return &nativeSession{engine: e, handle: handle}, nil
}

// nativeSession owns one codec_engine handle.
type nativeSession struct {
	engine *NativeEngine
	handle uint64
	in     []byte // packing buffer for raw inputs
}

func (s *nativeSession) submit(in []byte, info *nativeInfo, out []byte, outInfo *nativeInfo) (int, error) {
	n := s.engine.lib.submit(s.handle,
		bytesPtr(in), int32(len(in)), uintptr(unsafe.Pointer(info)),
		bytesPtr(out), int32(len(out)), uintptr(unsafe.Pointer(outInfo)))
	runtime.KeepAlive(in)
	runtime.KeepAlive(out)
	runtime.KeepAlive(info)
	runtime.KeepAlive(outInfo)
	return s.result("submit", n)
}

func (s *nativeSession) drain(out []byte, outInfo *nativeInfo) (int, error) {
	n := s.engine.lib.drain(s.handle, bytesPtr(out), int32(len(out)), uintptr(unsafe.Pointer(outInfo)))
	runtime.KeepAlive(out)
	runtime.KeepAlive(outInfo)
	return s.result("drain", n)
}

func (s *nativeSession) result(op string, n int32) (int, error) {
	switch {
	case n >= 0:
		return int(n), nil
	case n == nativeEOF:
		return 0, io.EOF
	case n == nativeWouldBlock:
		return 0, ErrWouldBlock
	case n == nativeTooSmall:
		return 0, ErrBufferTooSmall
	default:
		return 0, &EngineError{Engine: NativeEngineName, Op: op, Code: int(n), Message: s.engine.lastError()}
	}
}

func (s *nativeSession) Close() error {
	if s.handle == 0 {
		return nil
	}
	s.engine.lib.close(s.handle)
	s.handle = 0
	return nil
}

// packing returns the reusable input buffer sized to n bytes.
func (s *nativeSession) packing(n int) []byte {
	if cap(s.in) < n {
		s.in = make([]byte, n)
	}
	return s.in[:n]
}

func bytesPtr(b []byte) uintptr {
	if len(b) == 0 {
		return 0
	}
	return uintptr(unsafe.Pointer(&b[0]))
}

// goStringFromPtr converts a NUL-terminated C string to a Go string.
func goStringFromPtr(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for *(*byte)(unsafe.Add(p, length)) != 0 {
		length++
		if length >= 4096 {
			break
		}
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// findModuleRoot walks up from the working directory to the directory
// containing go.mod.
func findModuleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

var errNilInput = errors.New("nil input")

// --- Typed engines ---

type nativeVideoEncoder struct{ e *NativeEngine }

func (nativeVideoEncoder) Name() string { return NativeEngineName }

func (n nativeVideoEncoder) Open(config VideoEncoderConfig) (Session[*VideoFrame, *EncodedVideoChunk], error) {
	s, err := n.e.open(KindVideoEncoder, config)
	if err != nil {
		return nil, err
	}
	return &nativeVideoEncodeSession{s}, nil
}

type nativeVideoEncodeSession struct{ *nativeSession }

func (s *nativeVideoEncodeSession) Submit(frame *VideoFrame, scratch []byte) (*EncodedVideoChunk, error) {
	if frame == nil {
		return nil, errNilInput
	}
	in := s.packing(frame.PackedSize())
	if _, err := frame.Pack(in); err != nil {
		return nil, err
	}
	info := nativeInfo{
		Timestamp: frame.Timestamp,
		Duration:  frame.Duration,
		Width:     uint32(frame.Width),
		Height:    uint32(frame.Height),
		Format:    uint32(frame.Format),
	}
	var outInfo nativeInfo
	n, err := s.submit(in, &info, scratch, &outInfo)
	if err != nil || n == 0 {
		return nil, err
	}
	return nativeVideoChunk(scratch[:n], &outInfo), nil
}

func (s *nativeVideoEncodeSession) Drain(scratch []byte) (*EncodedVideoChunk, error) {
	var outInfo nativeInfo
	n, err := s.drain(scratch, &outInfo)
	if err != nil {
		return nil, err
	}
	return nativeVideoChunk(scratch[:n], &outInfo), nil
}

func nativeVideoChunk(data []byte, info *nativeInfo) *EncodedVideoChunk {
	return &EncodedVideoChunk{
		Type:      chunkTypeFromFlags(info.Flags),
		Data:      append([]byte(nil), data...),
		Timestamp: info.Timestamp,
		Duration:  info.Duration,
	}
}

type nativeVideoDecoder struct{ e *NativeEngine }

func (nativeVideoDecoder) Name() string { return NativeEngineName }

func (n nativeVideoDecoder) Open(config VideoDecoderConfig) (Session[*EncodedVideoChunk, *VideoFrame], error) {
	s, err := n.e.open(KindVideoDecoder, config)
	if err != nil {
		return nil, err
	}
	return &nativeVideoDecodeSession{s}, nil
}

type nativeVideoDecodeSession struct{ *nativeSession }

func (s *nativeVideoDecodeSession) Submit(chunk *EncodedVideoChunk, scratch []byte) (*VideoFrame, error) {
	if chunk == nil {
		return nil, errNilInput
	}
	info := nativeInfo{
		Timestamp: chunk.Timestamp,
		Duration:  chunk.Duration,
		Flags:     flagsFromChunkType(chunk.Type),
	}
	var outInfo nativeInfo
	n, err := s.submit(chunk.Data, &info, scratch, &outInfo)
	if err != nil || n == 0 {
		return nil, err
	}
	return nativeVideoFrame(scratch[:n], &outInfo)
}

func (s *nativeVideoDecodeSession) Drain(scratch []byte) (*VideoFrame, error) {
	var outInfo nativeInfo
	n, err := s.drain(scratch, &outInfo)
	if err != nil {
		return nil, err
	}
	return nativeVideoFrame(scratch[:n], &outInfo)
}

func nativeVideoFrame(data []byte, info *nativeInfo) (*VideoFrame, error) {
	frame, err := UnpackVideoFrame(append([]byte(nil), data...),
		PixelFormat(info.Format), int(info.Width), int(info.Height))
	if err != nil {
		return nil, err
	}
	frame.Timestamp = info.Timestamp
	frame.Duration = info.Duration
	return frame, nil
}

type nativeAudioEncoder struct{ e *NativeEngine }

func (nativeAudioEncoder) Name() string { return NativeEngineName }

func (n nativeAudioEncoder) Open(config AudioEncoderConfig) (Session[*AudioData, *EncodedAudioChunk], error) {
	s, err := n.e.open(KindAudioEncoder, config)
	if err != nil {
		return nil, err
	}
	return &nativeAudioEncodeSession{s}, nil
}

type nativeAudioEncodeSession struct{ *nativeSession }

func (s *nativeAudioEncodeSession) Submit(data *AudioData, scratch []byte) (*EncodedAudioChunk, error) {
	if data == nil {
		return nil, errNilInput
	}
	if err := data.validate(); err != nil {
		return nil, err
	}
	info := nativeInfo{
		Timestamp:  data.Timestamp,
		Duration:   data.Duration(),
		Format:     uint32(data.Format),
		SampleRate: uint32(data.SampleRate),
		Channels:   uint32(data.Channels),
		Frames:     uint32(data.Frames),
	}
	var outInfo nativeInfo
	n, err := s.submit(data.Data[:data.Size()], &info, scratch, &outInfo)
	if err != nil || n == 0 {
		return nil, err
	}
	return nativeAudioChunk(scratch[:n], &outInfo), nil
}

func (s *nativeAudioEncodeSession) Drain(scratch []byte) (*EncodedAudioChunk, error) {
	var outInfo nativeInfo
	n, err := s.drain(scratch, &outInfo)
	if err != nil {
		return nil, err
	}
	return nativeAudioChunk(scratch[:n], &outInfo), nil
}

func nativeAudioChunk(data []byte, info *nativeInfo) *EncodedAudioChunk {
	return &EncodedAudioChunk{
		Type:      chunkTypeFromFlags(info.Flags),
		Data:      append([]byte(nil), data...),
		Timestamp: info.Timestamp,
		Duration:  info.Duration,
	}
}

type nativeAudioDecoder struct{ e *NativeEngine }

func (nativeAudioDecoder) Name() string { return NativeEngineName }

func (n nativeAudioDecoder) Open(config AudioDecoderConfig) (Session[*EncodedAudioChunk, *AudioData], error) {
	s, err := n.e.open(KindAudioDecoder, config)
	if err != nil {
		return nil, err
	}
	return &nativeAudioDecodeSession{s}, nil
}

type nativeAudioDecodeSession struct{ *nativeSession }

func (s *nativeAudioDecodeSession) Submit(chunk *EncodedAudioChunk, scratch []byte) (*AudioData, error) {
	if chunk == nil {
		return nil, errNilInput
	}
	info := nativeInfo{
		Timestamp: chunk.Timestamp,
		Duration:  chunk.Duration,
		Flags:     flagsFromChunkType(chunk.Type),
	}
	var outInfo nativeInfo
	n, err := s.submit(chunk.Data, &info, scratch, &outInfo)
	if err != nil || n == 0 {
		return nil, err
	}
	return nativeAudioData(scratch[:n], &outInfo), nil
}

func (s *nativeAudioDecodeSession) Drain(scratch []byte) (*AudioData, error) {
	var outInfo nativeInfo
	n, err := s.drain(scratch, &outInfo)
	if err != nil {
		return nil, err
	}
	return nativeAudioData(scratch[:n], &outInfo), nil
}

func nativeAudioData(data []byte, info *nativeInfo) *AudioData {
	return &AudioData{
		Data:       append([]byte(nil), data...),
		SampleRate: int(info.SampleRate),
		Channels:   int(info.Channels),
		Frames:     int(info.Frames),
		Format:     AudioFormat(info.Format),
		Timestamp:  info.Timestamp,
	}
}
