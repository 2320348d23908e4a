// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package media

import (
	"context"
	"time"

	pionmedia "github.com/pion/webrtc/v4/pkg/media"

	"github.com/dragon-chat/dragon/lib/schema"
)

// SampleWriter receives encoded media samples. A
// *webrtc.TrackLocalStaticSample satisfies it.
type SampleWriter interface {
	WriteSample(sample pionmedia.Sample) error
}

// Source produces local media.
type Source interface {
	// Open starts producing samples of kind into writer until ctx is
	// cancelled. It returns once capture has started; an error means
	// the device is unavailable and nothing was started.
	Open(ctx context.Context, kind schema.TrackKind, writer SampleWriter) error
}

// opusSilence is a single 20ms Opus frame of silence (TOC byte for
// CELT fullband 20ms, followed by an empty payload marker).
var opusSilence = []byte{0xf8, 0xff, 0xfe}

const audioFrame = 20 * time.Millisecond

// SilentSource publishes Opus silence for audio and nothing for video
// or screen. Remote participants see the tracks as published but
// receive no picture.
type SilentSource struct{}

// Open implements Source.
func (SilentSource) Open(ctx context.Context, kind schema.TrackKind, writer SampleWriter) error {
	if kind != schema.TrackAudio {
		return nil
	}
	go func() {
		ticker := time.NewTicker(audioFrame)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := writer.WriteSample(pionmedia.Sample{Data: opusSilence, Duration: audioFrame}); err != nil {
					return
				}
			}
		}
	}()
	return nil
}
