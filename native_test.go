package webcodecs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestMarshalNativeConfig(t *testing.T) {
	venc := DefaultVideoEncoderConfig(VideoCodecH264, 1280, 720)
	venc.KeyframeInterval = 60
	aenc := DefaultAudioEncoderConfig(AudioCodecOpus)
	vdec := DefaultVideoDecoderConfig(VideoCodecAV1)
	vdec.Description = []byte{1, 2, 3}

	tests := []struct {
		name   string
		kind   Kind
		config any
		check  func(t *testing.T, doc nativeConfig)
	}{
		{"video encoder", KindVideoEncoder, venc, func(t *testing.T, doc nativeConfig) {
			if doc.Codec != "H264" || doc.Width != 1280 || doc.Height != 720 || doc.KeyframeInterval != 60 {
				t.Errorf("doc = %+v", doc)
			}
			if doc.BitrateMode != "variable" || doc.LatencyMode != "realtime" || doc.PixelFormat != venc.Format.String() {
				t.Errorf("modes = %s/%s/%s", doc.BitrateMode, doc.LatencyMode, doc.PixelFormat)
			}
		}},
		{"audio encoder", KindAudioEncoder, aenc, func(t *testing.T, doc nativeConfig) {
			if doc.Codec != "Opus" {
				t.Errorf("codec = %s", doc.Codec)
			}
			if doc.SampleRate != 48000 || doc.Channels != 2 || !doc.FEC || doc.Complexity != 10 {
				t.Errorf("doc = %+v", doc)
			}
		}},
		{"video decoder", KindVideoDecoder, vdec, func(t *testing.T, doc nativeConfig) {
			if doc.Codec != "AV1" || len(doc.Description) != 3 || doc.Width != 0 {
				t.Errorf("doc = %+v", doc)
			}
		}},
		{"audio decoder", KindAudioDecoder, DefaultAudioDecoderConfig(AudioCodecG711U), func(t *testing.T, doc nativeConfig) {
			if doc.SampleRate != 8000 || doc.Channels != 1 {
				t.Errorf("doc = %+v", doc)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := marshalNativeConfig(tt.kind, tt.config)
			if err != nil {
				t.Fatalf("marshalNativeConfig() error = %v", err)
			}
			var doc nativeConfig
			if err := msgpack.Unmarshal(data, &doc); err != nil {
				t.Fatalf("msgpack.Unmarshal() error = %v", err)
			}
			if doc.Kind != tt.kind.String() {
				t.Errorf("kind = %q, want %q", doc.Kind, tt.kind)
			}
			tt.check(t, doc)
		})
	}

	if _, err := marshalNativeConfig(KindVideoEncoder, "nope"); err == nil {
		t.Error("marshalNativeConfig(string) succeeded")
	}
}

func TestNativeChunkFlags(t *testing.T) {
	if chunkTypeFromFlags(flagsFromChunkType(ChunkTypeKey)) != ChunkTypeKey {
		t.Error("key flag lost")
	}
	if chunkTypeFromFlags(flagsFromChunkType(ChunkTypeDelta)) != ChunkTypeDelta {
		t.Error("delta became key")
	}
}

func TestLoadNativeEngine_BadPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "libcodec_engine.so")
	if err := os.WriteFile(path, []byte("not a library"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadNativeEngine(path); err == nil {
		t.Error("LoadNativeEngine(garbage) succeeded")
	}
}

func TestNativeEngine_RoundTrip(t *testing.T) {
	e, err := LoadNativeEngine("")
	if errors.Is(err, ErrNativeUnavailable) {
		t.Skip("libcodec_engine not available")
	}
	if err != nil {
		t.Fatalf("LoadNativeEngine() error = %v", err)
	}
	if e.Version() == "" {
		t.Error("empty engine version")
	}
	e.Register()

	d := NewDispatcher(DispatcherConfig{Workers: 2})
	defer d.Close()
	c := &collector{}
	enc := NewVideoEncoder(c.init(d, nil))
	defer enc.Close()

	cfg := DefaultVideoEncoderConfig(VideoCodecVP8, 16, 16)
	cfg.Engine = NativeEngineName
	if err := enc.Configure(cfg); err != nil {
		t.Skipf("native VP8 encoder unavailable: %v", err)
	}
	for ts := range int64(10) {
		mustEncode(t, enc, ts)
	}
	f, _ := enc.Flush()
	if err := waitFlush(t, f); err != nil {
		t.Fatalf("flush error = %v", err)
	}
	if len(c.got()) == 0 {
		t.Error("native encoder produced no output")
	}
	if errs := c.errorsSeen(); len(errs) != 0 {
		t.Errorf("errors = %v", errs)
	}
}
