package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"steadymic/internal/domain"
	"steadymic/internal/ports"
)

const defaultProbeTimeout = 2 * time.Second

// DeviceProbe grants microphone access by opening the capture device briefly and
// reading one chunk. There is no separate permission prompt on Linux audio servers.
type DeviceProbe struct {
	Capture ports.AudioCapture
	Config  ports.AudioConfig
	Timeout time.Duration
	Logger  *slog.Logger
}

// RequestMicrophone reports false with a coded error when the device cannot be read.
func (p *DeviceProbe) RequestMicrophone(ctx context.Context) (bool, error) {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	session, err := p.Capture.Start(probeCtx, p.Config)
	if err != nil {
		logger.Warn("microphone probe failed", "device", p.Config.InputDevice, "error", err)
		return false, err
	}
	defer func() {
		if err := session.Stop(); err != nil {
			logger.Debug("microphone probe stop returned error", "error", err)
		}
	}()

	read := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		_, err := session.Read(buf)
		read <- err
	}()

	select {
	case err := <-read:
		if err != nil && !errors.Is(err, io.EOF) {
			return false, domain.NewCodedError(domain.CodeAudioCapture, fmt.Errorf("read probe audio: %w", err))
		}
		if errors.Is(err, io.EOF) {
			return false, domain.NewCodedError(domain.CodeAudioCapture, errors.New("capture device produced no audio"))
		}
		return true, nil
	case <-probeCtx.Done():
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, domain.NewCodedError(domain.CodeAudioCapture, errors.New("timed out waiting for microphone audio"))
	}
}
