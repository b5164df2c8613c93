package webcodecs

import (
	"bytes"
	"errors"
	"testing"
)

func TestI420Size(t *testing.T) {
	tests := []struct {
		width, height int
		want          int
	}{
		{640, 480, 640*480 + 2*320*240},
		{1920, 1080, 1920*1080 + 2*960*540},
		{3, 3, 9 + 2*4}, // odd sizes round chroma up
	}

	for _, tt := range tests {
		if got := I420Size(tt.width, tt.height); got != tt.want {
			t.Errorf("I420Size(%d, %d) = %d, want %d", tt.width, tt.height, got, tt.want)
		}
	}
}

func TestPixelFormat_PlaneCount(t *testing.T) {
	tests := []struct {
		format PixelFormat
		planes int
	}{
		{PixelFormatI420, 3},
		{PixelFormatNV12, 2},
		{PixelFormatRGBA32, 1},
		{PixelFormatBGRA32, 1},
		{PixelFormat(99), 0},
	}

	for _, tt := range tests {
		t.Run(tt.format.String(), func(t *testing.T) {
			if got := tt.format.PlaneCount(); got != tt.planes {
				t.Errorf("PlaneCount() = %d, want %d", got, tt.planes)
			}
		})
	}
}

func TestAudioFormat_BytesPerSample(t *testing.T) {
	if got := AudioFormatS16.BytesPerSample(); got != 2 {
		t.Errorf("S16 = %d, want 2", got)
	}
	if got := AudioFormatF32.BytesPerSample(); got != 4 {
		t.Errorf("F32 = %d, want 4", got)
	}
	if got := AudioFormat(7).BytesPerSample(); got != 0 {
		t.Errorf("unknown = %d, want 0", got)
	}
}

// testFrame returns an I420 frame whose planes carry stride padding.
func testFrame(width, height int, ts int64) *VideoFrame {
	cw, ch := (width+1)/2, (height+1)/2
	strides := []int{width + 16, cw + 8, cw + 8}
	rows := []int{height, ch, ch}
	f := &VideoFrame{Width: width, Height: height, Format: PixelFormatI420, Timestamp: ts, Stride: strides}
	for i := range 3 {
		plane := make([]byte, strides[i]*rows[i])
		for j := range plane {
			plane[j] = byte(i*50 + j%7)
		}
		f.Data = append(f.Data, plane)
	}
	return f
}

func TestVideoFrame_PackUnpack(t *testing.T) {
	f := testFrame(34, 18, 1000)

	buf := make([]byte, f.PackedSize())
	n, err := f.Pack(buf)
	if err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	if n != I420Size(34, 18) {
		t.Fatalf("Pack() wrote %d bytes, want %d", n, I420Size(34, 18))
	}

	out, err := UnpackVideoFrame(buf, PixelFormatI420, 34, 18)
	if err != nil {
		t.Fatalf("UnpackVideoFrame() error = %v", err)
	}
	for i := range 3 {
		rowBytes, rows := f.planeGeometry(i)
		for r := range rows {
			want := f.Data[i][r*f.Stride[i] : r*f.Stride[i]+rowBytes]
			got := out.Data[i][r*out.Stride[i] : r*out.Stride[i]+rowBytes]
			if !bytes.Equal(got, want) {
				t.Fatalf("plane %d row %d differs after round trip", i, r)
			}
		}
	}
}

func TestVideoFrame_PackErrors(t *testing.T) {
	f := testFrame(16, 16, 0)
	if _, err := f.Pack(make([]byte, 10)); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("Pack(short) error = %v, want ErrBufferTooSmall", err)
	}

	f.Data = f.Data[:2]
	if _, err := f.Pack(make([]byte, f.PackedSize())); err == nil {
		t.Error("Pack() with missing plane should fail")
	}

	if _, err := UnpackVideoFrame(make([]byte, 4), PixelFormatI420, 16, 16); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("UnpackVideoFrame(short) error = %v, want ErrBufferTooSmall", err)
	}
}

func TestVideoFrame_Clone(t *testing.T) {
	f := testFrame(8, 8, 42)
	clone := f.Clone()

	clone.Data[0][0] = 0xFF
	if f.Data[0][0] == 0xFF {
		t.Error("Clone shares plane memory with the original")
	}
	if clone.Timestamp != 42 || clone.Width != 8 {
		t.Errorf("Clone lost metadata: %+v", clone)
	}
}

func TestAudioData_SizeAndDuration(t *testing.T) {
	a := &AudioData{SampleRate: 48000, Channels: 2, Frames: 960, Format: AudioFormatS16}

	if got := a.Size(); got != 960*2*2 {
		t.Errorf("Size() = %d, want %d", got, 960*2*2)
	}
	if got := a.Duration(); got != 20_000_000 {
		t.Errorf("Duration() = %d, want 20ms", got)
	}
	if err := a.validate(); err == nil {
		t.Error("validate() should reject missing sample data")
	}

	a.Data = make([]byte, a.Size())
	if err := a.validate(); err != nil {
		t.Errorf("validate() error = %v", err)
	}
}

func TestEncodedChunk_Clone(t *testing.T) {
	c := &EncodedVideoChunk{Type: ChunkTypeKey, Data: []byte{1, 2, 3}, Timestamp: 7}
	clone := c.Clone()
	clone.Data[0] = 9
	if c.Data[0] != 1 {
		t.Error("Clone shares data with the original")
	}
	if !clone.IsKeyframe() {
		t.Error("Clone lost chunk type")
	}
}
