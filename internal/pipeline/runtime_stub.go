//go:build !govips || !cgo

package pipeline

func Startup() error {
	return nil
}

func Shutdown() {}

// NewCodec returns the pure Go codec used when libvips is not compiled in.
func NewCodec() Codec {
	return stdCodec{}
}
