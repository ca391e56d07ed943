package audio

// Chunker re-slices an arbitrary byte stream into fixed-size frames. Leftover
// bytes are buffered and prefixed onto the next write; nothing is dropped and
// no undersized frame is emitted except by Flush at stream end.
type Chunker struct {
	frameSize int
	buf       []byte
}

func NewChunker(frameSize int) *Chunker {
	return &Chunker{frameSize: frameSize}
}

// Push appends data and returns every complete frame now available.
func (c *Chunker) Push(data []byte) [][]byte {
	c.buf = append(c.buf, data...)

	var frames [][]byte
	for len(c.buf) >= c.frameSize {
		frame := make([]byte, c.frameSize)
		copy(frame, c.buf[:c.frameSize])
		frames = append(frames, frame)
		c.buf = c.buf[c.frameSize:]
	}
	return frames
}

// Flush returns the buffered remainder, if any, and resets the chunker.
func (c *Chunker) Flush() []byte {
	if len(c.buf) == 0 {
		return nil
	}
	rest := c.buf
	c.buf = nil
	return rest
}
