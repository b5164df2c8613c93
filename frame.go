// Raw and encoded media payloads carried through codec instances.
package webcodecs

import "fmt"

// PixelFormat represents video pixel formats.
type PixelFormat int

const (
	PixelFormatI420   PixelFormat = iota // YUV 4:2:0 planar (Y + U + V)
	PixelFormatNV12                      // YUV 4:2:0 semi-planar (Y + interleaved UV)
	PixelFormatRGBA32                    // Packed RGBA, 4 bytes per pixel
	PixelFormatBGRA32                    // Packed BGRA, 4 bytes per pixel
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	case PixelFormatRGBA32:
		return "RGBA32"
	case PixelFormatBGRA32:
		return "BGRA32"
	default:
		return "Unknown"
	}
}

// PlaneCount returns the number of planes for this pixel format.
func (p PixelFormat) PlaneCount() int {
	switch p {
	case PixelFormatI420:
		return 3
	case PixelFormatNV12:
		return 2
	case PixelFormatRGBA32, PixelFormatBGRA32:
		return 1
	default:
		return 0
	}
}

// FrameSize returns the tightly packed byte size of a width x height image.
func (p PixelFormat) FrameSize(width, height int) int {
	switch p {
	case PixelFormatI420, PixelFormatNV12:
		return I420Size(width, height)
	case PixelFormatRGBA32, PixelFormatBGRA32:
		return width * height * 4
	default:
		return 0
	}
}

// I420Size returns the total buffer size needed for an I420 frame.
func I420Size(width, height int) int {
	ySize := width * height
	uvSize := ((width + 1) / 2) * ((height + 1) / 2)
	return ySize + uvSize*2
}

// AudioFormat represents audio sample formats.
type AudioFormat int

const (
	AudioFormatS16 AudioFormat = iota // Signed 16-bit PCM, interleaved
	AudioFormatF32                    // 32-bit float, interleaved
)

func (a AudioFormat) String() string {
	switch a {
	case AudioFormatS16:
		return "S16"
	case AudioFormatF32:
		return "F32"
	default:
		return "Unknown"
	}
}

// BytesPerSample returns the number of bytes per sample for this format.
func (a AudioFormat) BytesPerSample() int {
	switch a {
	case AudioFormatS16:
		return 2
	case AudioFormatF32:
		return 4
	default:
		return 0
	}
}

// VideoFrame represents a raw video frame.
// The Data slices may point to memory owned by an engine; Clone before
// retaining a frame beyond the callback that delivered it.
type VideoFrame struct {
	Data      [][]byte    // Plane data (1-3 planes depending on format)
	Stride    []int       // Stride for each plane in bytes
	Width     int         // Frame width in pixels
	Height    int         // Frame height in pixels
	Format    PixelFormat // Pixel format
	Timestamp int64       // Presentation timestamp in nanoseconds
	Duration  int64       // Frame duration in nanoseconds (optional)
}

// Clone creates a deep copy of the video frame.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Data:      make([][]byte, len(f.Data)),
		Stride:    make([]int, len(f.Stride)),
		Width:     f.Width,
		Height:    f.Height,
		Format:    f.Format,
		Timestamp: f.Timestamp,
		Duration:  f.Duration,
	}
	copy(clone.Stride, f.Stride)
	for i, plane := range f.Data {
		if plane != nil {
			clone.Data[i] = append([]byte(nil), plane...)
		}
	}
	return clone
}

// planeGeometry returns the visible row width in bytes and row count of plane i.
func (f *VideoFrame) planeGeometry(i int) (rowBytes, rows int) {
	switch f.Format {
	case PixelFormatI420:
		if i == 0 {
			return f.Width, f.Height
		}
		return (f.Width + 1) / 2, (f.Height + 1) / 2
	case PixelFormatNV12:
		if i == 0 {
			return f.Width, f.Height
		}
		return ((f.Width + 1) / 2) * 2, (f.Height + 1) / 2
	case PixelFormatRGBA32, PixelFormatBGRA32:
		return f.Width * 4, f.Height
	default:
		return 0, 0
	}
}

// PackedSize returns the number of bytes Pack writes.
func (f *VideoFrame) PackedSize() int {
	return f.Format.FrameSize(f.Width, f.Height)
}

// Pack copies the visible area of every plane into dst without stride padding.
// It returns the number of bytes written.
func (f *VideoFrame) Pack(dst []byte) (int, error) {
	if err := f.validate(); err != nil {
		return 0, err
	}
	if len(dst) < f.PackedSize() {
		return 0, ErrBufferTooSmall
	}
	n := 0
	for i := 0; i < f.Format.PlaneCount(); i++ {
		rowBytes, rows := f.planeGeometry(i)
		stride := rowBytes
		if i < len(f.Stride) && f.Stride[i] > 0 {
			stride = f.Stride[i]
		}
		plane := f.Data[i]
		for r := 0; r < rows; r++ {
			n += copy(dst[n:n+rowBytes], plane[r*stride:r*stride+rowBytes])
		}
	}
	return n, nil
}

func (f *VideoFrame) validate() error {
	planes := f.Format.PlaneCount()
	if planes == 0 {
		return fmt.Errorf("unsupported pixel format %s", f.Format)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("invalid frame size %dx%d", f.Width, f.Height)
	}
	if len(f.Data) < planes {
		return fmt.Errorf("%s frame needs %d planes, got %d", f.Format, planes, len(f.Data))
	}
	for i := 0; i < planes; i++ {
		rowBytes, rows := f.planeGeometry(i)
		stride := rowBytes
		if i < len(f.Stride) && f.Stride[i] > 0 {
			stride = f.Stride[i]
		}
		if stride < rowBytes || len(f.Data[i]) < stride*(rows-1)+rowBytes {
			return fmt.Errorf("plane %d too small for %dx%d %s", i, f.Width, f.Height, f.Format)
		}
	}
	return nil
}

// UnpackVideoFrame builds a frame whose planes alias data, which must hold a
// tightly packed image as produced by Pack.
func UnpackVideoFrame(data []byte, format PixelFormat, width, height int) (*VideoFrame, error) {
	f := &VideoFrame{Width: width, Height: height, Format: format}
	if len(data) < format.FrameSize(width, height) || format.PlaneCount() == 0 {
		return nil, fmt.Errorf("%w: %d bytes for %dx%d %s", ErrBufferTooSmall, len(data), width, height, format)
	}
	off := 0
	for i := 0; i < format.PlaneCount(); i++ {
		rowBytes, rows := f.planeGeometry(i)
		f.Data = append(f.Data, data[off:off+rowBytes*rows])
		f.Stride = append(f.Stride, rowBytes)
		off += rowBytes * rows
	}
	return f, nil
}

// AudioData represents raw interleaved audio samples.
type AudioData struct {
	Data       []byte      // Interleaved sample data
	SampleRate int         // Sample rate (e.g., 48000)
	Channels   int         // Number of channels (1 = mono, 2 = stereo)
	Frames     int         // Number of samples per channel
	Format     AudioFormat // Sample format
	Timestamp  int64       // Presentation timestamp in nanoseconds
}

// Size returns the byte length implied by Frames, Channels and Format.
func (a *AudioData) Size() int {
	return a.Frames * a.Channels * a.Format.BytesPerSample()
}

// Duration returns the playback duration in nanoseconds.
func (a *AudioData) Duration() int64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return int64(a.Frames) * 1e9 / int64(a.SampleRate)
}

// Clone creates a deep copy of the audio data.
func (a *AudioData) Clone() *AudioData {
	clone := *a
	if a.Data != nil {
		clone.Data = append([]byte(nil), a.Data...)
	}
	return &clone
}

func (a *AudioData) validate() error {
	if a.Channels <= 0 || a.Frames < 0 || a.Format.BytesPerSample() == 0 {
		return fmt.Errorf("invalid audio data: %d channels, %d frames, format %s", a.Channels, a.Frames, a.Format)
	}
	if len(a.Data) < a.Size() {
		return fmt.Errorf("audio data holds %d bytes, need %d", len(a.Data), a.Size())
	}
	return nil
}

// ChunkType indicates whether an encoded chunk is a key or delta frame.
type ChunkType int

const (
	ChunkTypeKey   ChunkType = iota // Decodable on its own
	ChunkTypeDelta                  // Depends on previous chunks
)

func (t ChunkType) String() string {
	switch t {
	case ChunkTypeKey:
		return "key"
	case ChunkTypeDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// EncodedVideoChunk holds one encoded video access unit.
type EncodedVideoChunk struct {
	Type      ChunkType
	Data      []byte
	Timestamp int64 // nanoseconds
	Duration  int64 // nanoseconds
}

// IsKeyframe returns true if this is a keyframe.
func (c *EncodedVideoChunk) IsKeyframe() bool {
	return c.Type == ChunkTypeKey
}

// Clone creates a deep copy of the chunk.
func (c *EncodedVideoChunk) Clone() *EncodedVideoChunk {
	clone := *c
	if c.Data != nil {
		clone.Data = append([]byte(nil), c.Data...)
	}
	return &clone
}

// EncodedAudioChunk holds one encoded audio packet.
type EncodedAudioChunk struct {
	Type      ChunkType
	Data      []byte
	Timestamp int64 // nanoseconds
	Duration  int64 // nanoseconds
}

// Clone creates a deep copy of the chunk.
func (c *EncodedAudioChunk) Clone() *EncodedAudioChunk {
	clone := *c
	if c.Data != nil {
		clone.Data = append([]byte(nil), c.Data...)
	}
	return &clone
}
