// Package webcodecs is the asynchronous execution core behind a
// WebCodecs-style API: VideoEncoder, VideoDecoder, AudioEncoder and
// AudioDecoder instances that accept work synchronously from the caller, run
// the codec engine off the caller's goroutine and deliver results through
// callbacks in submission order.
//
// # Architecture
//
//	Encode/Decode -> control queue -> task sequence -> Dispatcher -> Session.Submit
//	                                                                    |
//	Output/Error/Dequeue callbacks <- result channel (reorders by sequence)
//
// Each instance owns one control loop goroutine. Configure, Reset and Close
// are handled on it only after the instance's in-flight engine calls have
// returned, so an engine session is never torn down while a worker is inside
// it. Process and Flush tasks run on a Dispatcher shared by all instances,
// one task per instance at a time. Scratch memory comes from a shared
// BufferPool.
//
// # Engines
//
// The codec work itself is done by an Engine registered per codec. The
// pure-Go Passthrough engine is registered for every codec at init. The
// native engine loads libcodec_engine via purego (no cgo); call
// LoadNativeEngine and Register, or enable it in a RuntimeConfig. Set
// CODEC_ENGINE_LIB_PATH to point at the library.
//
// # Build Tags
//
//   - nonative: leave out the purego native engine
//
// # Output
//
// RTPSink packetizes encoded chunks with pion/rtp payloaders; TrackSink
// writes them to a pion/webrtc TrackLocalStaticSample. PatternGenerator
// produces synthetic I420 frames for feeding encoders in tests and demos.
package webcodecs
