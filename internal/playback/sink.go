package playback

import (
	"bytes"
	"fmt"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
)

// outputRate is the rate the audio device is opened at. Streams with a
// different rate are resampled.
const outputRate = beep.SampleRate(44100)

// Sink is where decoded audio goes.
type Sink interface {
	// Play starts s, which is encoded in format f.
	Play(s beep.Streamer, f beep.Format) error
	// Lock and Unlock guard streamers that are being played.
	Lock()
	Unlock()
	// Close stops every stream.
	Close()
}

// Decoder turns the bytes of an audio file into a seekable stream.
type Decoder func(data []byte) (beep.StreamSeekCloser, beep.Format, error)

type readSeekCloser struct {
	*bytes.Reader
}

func (readSeekCloser) Close() error { return nil }

// DecodeMP3 decodes an in-memory mp3 file. The stream is seekable because
// the source is.
func DecodeMP3(data []byte) (beep.StreamSeekCloser, beep.Format, error) {
	s, f, err := mp3.Decode(readSeekCloser{bytes.NewReader(data)})
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode mp3: %w", err)
	}
	return s, f, nil
}
