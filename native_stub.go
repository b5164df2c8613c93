//go:build !(darwin || linux) || nonative

package webcodecs

// NativeEngine is unavailable on this platform or build.
type NativeEngine struct{}

// LoadNativeEngine always fails with ErrNativeUnavailable.
func LoadNativeEngine(path string) (*NativeEngine, error) {
	return nil, ErrNativeUnavailable
}

// Path returns "".
func (e *NativeEngine) Path() string { return "" }

// Version returns "".
func (e *NativeEngine) Version() string { return "" }

// Register is a no-op.
func (e *NativeEngine) Register() {}
