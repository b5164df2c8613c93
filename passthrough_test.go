package webcodecs

import (
	"bytes"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

func packed(t *testing.T, f *VideoFrame) []byte {
	t.Helper()
	buf := make([]byte, f.PackedSize())
	if _, err := f.Pack(buf); err != nil {
		t.Fatalf("Pack() error = %v", err)
	}
	return buf
}

func TestPassthrough_VideoRoundTrip(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Workers: 2})
	defer d.Close()

	var mu sync.Mutex
	var chunks []*EncodedVideoChunk
	var frames []*VideoFrame

	dec := NewVideoDecoder(Init[*VideoFrame]{
		Output: func(f *VideoFrame) {
			mu.Lock()
			frames = append(frames, f)
			mu.Unlock()
		},
		Error:      func(err error) { t.Errorf("decoder error: %v", err) },
		Dispatcher: d,
	})
	defer dec.Close()
	enc := NewVideoEncoder(Init[*EncodedVideoChunk]{
		Output: func(c *EncodedVideoChunk) {
			mu.Lock()
			chunks = append(chunks, c)
			mu.Unlock()
			if _, err := dec.Decode(c); err != nil {
				t.Errorf("Decode() error = %v", err)
			}
		},
		Error:      func(err error) { t.Errorf("encoder error: %v", err) },
		Dispatcher: d,
	})
	defer enc.Close()

	cfg := DefaultVideoEncoderConfig(VideoCodecVP8, 32, 18)
	cfg.Engine = PassthroughEngineName
	cfg.KeyframeInterval = 3
	if err := enc.Configure(cfg); err != nil {
		t.Fatalf("encoder Configure() error = %v", err)
	}
	dcfg := DefaultVideoDecoderConfig(VideoCodecVP8)
	dcfg.Engine = PassthroughEngineName
	if err := dec.Configure(dcfg); err != nil {
		t.Fatalf("decoder Configure() error = %v", err)
	}

	var sources []*VideoFrame
	for ts := range int64(6) {
		f := testFrame(32, 18, ts*33_000_000)
		sources = append(sources, f)
		if _, err := enc.Encode(f); err != nil {
			t.Fatalf("Encode() error = %v", err)
		}
	}
	ef, _ := enc.Flush()
	waitFlush(t, ef)
	df, _ := dec.Flush()
	waitFlush(t, df)

	mu.Lock()
	defer mu.Unlock()
	if len(chunks) != 6 || len(frames) != 6 {
		t.Fatalf("chunks = %d, frames = %d, want 6 each", len(chunks), len(frames))
	}
	for i, c := range chunks {
		wantKey := i%3 == 0
		if c.IsKeyframe() != wantKey {
			t.Errorf("chunk %d keyframe = %v, want %v", i, c.IsKeyframe(), wantKey)
		}
	}
	for i, f := range frames {
		src := sources[i]
		if f.Width != src.Width || f.Height != src.Height || f.Timestamp != src.Timestamp {
			t.Errorf("frame %d = %dx%d@%d, want %dx%d@%d", i, f.Width, f.Height, f.Timestamp, src.Width, src.Height, src.Timestamp)
		}
		if !bytes.Equal(packed(t, f), packed(t, src)) {
			t.Errorf("frame %d pixels differ", i)
		}
	}
}

func TestPassthrough_AudioRoundTrip(t *testing.T) {
	d := NewDispatcher(DispatcherConfig{Workers: 2})
	defer d.Close()

	out := make(chan *AudioData, 8)
	dec := NewAudioDecoder(Init[*AudioData]{
		Output:     func(a *AudioData) { out <- a },
		Error:      func(err error) { t.Errorf("decoder error: %v", err) },
		Dispatcher: d,
	})
	defer dec.Close()
	enc := NewAudioEncoder(Init[*EncodedAudioChunk]{
		Output: func(c *EncodedAudioChunk) {
			if _, err := dec.Decode(c); err != nil {
				t.Errorf("Decode() error = %v", err)
			}
		},
		Error:      func(err error) { t.Errorf("encoder error: %v", err) },
		Dispatcher: d,
	})
	defer enc.Close()

	cfg := DefaultAudioEncoderConfig(AudioCodecOpus)
	cfg.Engine = PassthroughEngineName
	if err := enc.Configure(cfg); err != nil {
		t.Fatalf("encoder Configure() error = %v", err)
	}
	dcfg := DefaultAudioDecoderConfig(AudioCodecOpus)
	dcfg.Engine = PassthroughEngineName
	if err := dec.Configure(dcfg); err != nil {
		t.Fatalf("decoder Configure() error = %v", err)
	}

	src := &AudioData{SampleRate: 48000, Channels: 2, Frames: 960, Format: AudioFormatS16, Timestamp: 20_000_000}
	src.Data = make([]byte, src.Size())
	for i := range src.Data {
		src.Data[i] = byte(i)
	}
	if _, err := enc.Encode(src); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	select {
	case got := <-out:
		if got.Frames != src.Frames || got.Channels != 2 || got.SampleRate != 48000 || got.Timestamp != src.Timestamp {
			t.Errorf("decoded = %d frames %dch %dHz @%d", got.Frames, got.Channels, got.SampleRate, got.Timestamp)
		}
		if !bytes.Equal(got.Data, src.Data) {
			t.Error("decoded samples differ")
		}
		if got.Duration() != 20_000_000 {
			t.Errorf("Duration() = %d, want 20ms", got.Duration())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no decoded audio")
	}
}

func TestPassthrough_DelayLine(t *testing.T) {
	cfg := DefaultVideoEncoderConfig(VideoCodecVP9, 16, 16)
	s, err := Passthrough{Delay: 2}.VideoEncoder().Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer s.Close()

	scratch := make([]byte, videoEncoderScratch(cfg, nil))
	var got []int64
	for ts := range int64(4) {
		c, err := s.Submit(testFrame(16, 16, ts), scratch)
		if err != nil {
			t.Fatalf("Submit(%d) error = %v", ts, err)
		}
		if c != nil {
			got = append(got, c.Timestamp)
		}
	}
	for {
		c, err := s.Drain(scratch)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Drain() error = %v", err)
		}
		got = append(got, c.Timestamp)
	}

	want := []int64{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("outputs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("outputs = %v, want %v", got, want)
			break
		}
	}
}

func TestPassthrough_Errors(t *testing.T) {
	enc, _ := Passthrough{}.VideoEncoder().Open(DefaultVideoEncoderConfig(VideoCodecVP8, 16, 16))
	dec, _ := Passthrough{}.VideoDecoder().Open(DefaultVideoDecoderConfig(VideoCodecVP8))
	adec, _ := Passthrough{}.AudioDecoder().Open(DefaultAudioDecoderConfig(AudioCodecOpus))

	nv12 := testFrame(16, 16, 0)
	nv12.Format = PixelFormatNV12

	tests := []struct {
		name string
		run  func() error
	}{
		{"format mismatch", func() error { _, err := enc.Submit(nv12, make([]byte, 1<<16)); return err }},
		{"small scratch", func() error { _, err := enc.Submit(testFrame(16, 16, 0), make([]byte, 4)); return err }},
		{"nil frame", func() error { _, err := enc.Submit(nil, make([]byte, 1<<16)); return err }},
		{"short video chunk", func() error {
			_, err := dec.Submit(&EncodedVideoChunk{Data: []byte{'V'}}, nil)
			return err
		}},
		{"audio chunk to video decoder", func() error {
			_, err := dec.Submit(&EncodedVideoChunk{Data: make([]byte, 16)}, nil)
			return err
		}},
		{"truncated audio", func() error {
			_, err := adec.Submit(&EncodedAudioChunk{Data: []byte{'A', byte(AudioFormatS16), 0, 2, 0, 0, 0xbb, 0x80, 1}}, nil)
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPassthrough_RegisteredForEveryCodec(t *testing.T) {
	for _, codec := range []VideoCodec{VideoCodecVP8, VideoCodecVP9, VideoCodecH264, VideoCodecH265, VideoCodecAV1} {
		cfg := DefaultVideoEncoderConfig(codec, 64, 64)
		cfg.Engine = PassthroughEngineName
		if err := IsVideoEncoderConfigSupported(cfg); err != nil {
			t.Errorf("%s encoder: %v", codec, err)
		}
		dcfg := DefaultVideoDecoderConfig(codec)
		dcfg.Engine = PassthroughEngineName
		if err := IsVideoDecoderConfigSupported(dcfg); err != nil {
			t.Errorf("%s decoder: %v", codec, err)
		}
	}
	for _, codec := range []AudioCodec{AudioCodecOpus, AudioCodecG711A, AudioCodecG711U, AudioCodecAAC, AudioCodecPCM} {
		cfg := DefaultAudioEncoderConfig(codec)
		cfg.Engine = PassthroughEngineName
		if err := IsAudioEncoderConfigSupported(cfg); err != nil {
			t.Errorf("%s encoder: %v", codec, err)
		}
		dcfg := DefaultAudioDecoderConfig(codec)
		dcfg.Engine = PassthroughEngineName
		if err := IsAudioDecoderConfigSupported(dcfg); err != nil {
			t.Errorf("%s decoder: %v", codec, err)
		}
	}
}
