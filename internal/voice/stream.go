package voice

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"

	"layeh.com/gopus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// stream is the control block for one Play call: a stop signal plus a pause
// gate the send loop blocks on.
type stream struct {
	stop       chan struct{}
	stopOnce   sync.Once
	finishOnce sync.Once

	mu     sync.Mutex
	cond   *sync.Cond
	paused bool
}

func newStream() *stream {
	st := &stream{stop: make(chan struct{})}
	st.cond = sync.NewCond(&st.mu)
	return st
}

func (st *stream) setPaused(v bool) {
	st.mu.Lock()
	st.paused = v
	st.mu.Unlock()
	st.cond.Broadcast()
}

func (st *stream) halt() {
	st.stopOnce.Do(func() { close(st.stop) })
	st.cond.Broadcast()
}

func (st *stream) halted() bool {
	select {
	case <-st.stop:
		return true
	default:
		return false
	}
}

// waitWhilePaused blocks until the stream is unpaused or halted. Returns
// false if the stream was halted.
func (st *stream) waitWhilePaused() bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	for st.paused && !st.halted() {
		st.cond.Wait()
	}
	return !st.halted()
}

// run decodes the stream URL through ffmpeg and pushes opus frames into the
// voice connection until EOF, error or halt. Returns nil on natural EOF and
// on forced stop.
func (t *Transport) run(c *connection, st *stream, streamURL string) error {
	cmd := exec.Command("ffmpeg",
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", streamURL,
		"-vn",
		"-af", "volume=0.25",
		"-f", "s16le",
		"-ar", fmt.Sprintf("%d", sampleRate),
		"-ac", fmt.Sprintf("%d", channels),
		"-loglevel", "warning",
		"pipe:1",
	)

	pcm, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe error: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("ffmpeg start error: %w", err)
	}
	defer func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	}()

	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("encoder error: %w", err)
	}

	if err := c.vc.Speaking(true); err != nil {
		t.log.Warn().Err(err).Str("guild", c.guildID).Msg("failed to set speaking state")
	}
	defer func() { _ = c.vc.Speaking(false) }()

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		if !st.waitWhilePaused() {
			return nil
		}
		select {
		case <-st.stop:
			return nil
		default:
		}

		if _, err := io.ReadFull(pcm, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("read error: %w", err)
		}

		for i := range intBuf {
			intBuf[i] = int16(binary.LittleEndian.Uint16(pcmBuf[i*2 : i*2+2]))
		}

		opus, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("encode error: %w", err)
		}

		select {
		case c.vc.OpusSend <- opus:
		case <-st.stop:
			return nil
		}
	}
}
