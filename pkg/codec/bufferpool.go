package codec

import (
	"bytes"
	"sync"
)

// Size classes for pooled encode buffers, picked from the pixel count of the
// surface being encoded.
const (
	smallBufferSize  = 64 * 1024
	mediumBufferSize = 512 * 1024
	largeBufferSize  = 5 * 1024 * 1024

	smallPixels  = 256 * 256
	mediumPixels = 1280 * 1280
)

// bufferPool keeps reusable encode buffers to reduce GC pressure across attempts
type bufferPool struct {
	small  sync.Pool
	medium sync.Pool
	large  sync.Pool
}

var globalBufferPool = &bufferPool{
	small:  sync.Pool{New: func() interface{} { return bytes.NewBuffer(make([]byte, 0, smallBufferSize)) }},
	medium: sync.Pool{New: func() interface{} { return bytes.NewBuffer(make([]byte, 0, mediumBufferSize)) }},
	large:  sync.Pool{New: func() interface{} { return bytes.NewBuffer(make([]byte, 0, largeBufferSize)) }},
}

// getBuffer returns an empty buffer sized for a surface of the given pixel count
func getBuffer(pixels int) *bytes.Buffer {
	var buf *bytes.Buffer
	switch {
	case pixels <= smallPixels:
		buf = globalBufferPool.small.Get().(*bytes.Buffer)
	case pixels <= mediumPixels:
		buf = globalBufferPool.medium.Get().(*bytes.Buffer)
	default:
		buf = globalBufferPool.large.Get().(*bytes.Buffer)
	}
	buf.Reset()
	return buf
}

// putBuffer returns a buffer to the pool matching its capacity.
// Buffers that grew past the large class are left to the GC.
func putBuffer(buf *bytes.Buffer) {
	buf.Reset()
	switch c := buf.Cap(); {
	case c < mediumBufferSize:
		globalBufferPool.small.Put(buf)
	case c < largeBufferSize:
		globalBufferPool.medium.Put(buf)
	case c <= 2*largeBufferSize:
		globalBufferPool.large.Put(buf)
	}
}
