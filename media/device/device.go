// Package device captures the local camera and microphone with
// pion/mediadevices and encodes them as VP8 and Opus.
package device

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	// Register the camera and microphone adapters.
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"

	"telecall/media"
)

// Source is a media.Source backed by the host's capture devices.
type Source struct {
	conf   media.Config
	logger *zap.Logger
}

// New creates a device source encoding with the bitrates of conf.
func New(conf media.Config, logger *zap.Logger) *Source {
	return &Source{
		conf:   conf,
		logger: logger.Named("device"),
	}
}

func (s *Source) codecSelector() (*mediadevices.CodecSelector, error) {
	vpxParams, err := vpx.NewVP8Params()
	if err != nil {
		return nil, fmt.Errorf("failed to create VP8 params: %w", err)
	}
	vpxParams.BitRate = s.conf.VideoBitRate
	vpxParams.KeyFrameInterval = 60
	vpxParams.RateControlEndUsage = vpx.RateControlVBR
	vpxParams.Deadline = 200 * time.Millisecond

	opusParams, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("failed to create Opus params: %w", err)
	}
	opusParams.BitRate = s.conf.AudioBitRate
	opusParams.Latency = opus.Latency20ms

	return mediadevices.NewCodecSelector(
		mediadevices.WithVideoEncoders(&vpxParams),
		mediadevices.WithAudioEncoders(&opusParams),
	), nil
}

// Open implements media.Source. Permission and missing-device failures
// are reported as *media.AccessError.
func (s *Source) Open(_ context.Context, c media.Constraints) ([]media.Capture, error) {
	selector, err := s.codecSelector()
	if err != nil {
		return nil, err
	}

	constraints := mediadevices.MediaStreamConstraints{Codec: selector}
	if c.Video {
		constraints.Video = func(mc *mediadevices.MediaTrackConstraints) {
			mc.Width = prop.Int(c.Width)
			mc.Height = prop.Int(c.Height)
			mc.FrameRate = prop.Float(c.FrameRate)
		}
	}
	if c.Audio {
		constraints.Audio = func(mc *mediadevices.MediaTrackConstraints) {
			mc.SampleRate = prop.Int(48000)
			mc.ChannelCount = prop.Int(1)
			mc.Latency = prop.Duration(20 * time.Millisecond)
		}
	}

	stream, err := mediadevices.GetUserMedia(constraints)
	if err != nil {
		return nil, &media.AccessError{Err: err}
	}

	var captures []media.Capture
	for _, track := range stream.GetTracks() {
		capture, err := s.newCapture(track)
		if err != nil {
			for _, c := range captures {
				_ = c.Close()
			}
			for _, t := range stream.GetTracks() {
				_ = t.Close()
			}
			return nil, &media.AccessError{Err: err}
		}
		captures = append(captures, capture)
	}
	if len(captures) == 0 {
		return nil, &media.AccessError{Err: media.ErrNoDevice}
	}
	return captures, nil
}

func (s *Source) newCapture(track mediadevices.Track) (*capture, error) {
	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8, ClockRate: 90000}
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: 48000, Channels: 2}
	}
	reader, err := track.NewRTPReader(codec.MimeType, rand.Uint32(), s.conf.MTU)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s rtp reader: %w", track.Kind(), err)
	}
	s.logger.Info("capture opened", zap.Stringer("kind", track.Kind()), zap.String("codec", codec.MimeType))
	return &capture{track: track, reader: reader, codec: codec}, nil
}

type capture struct {
	track  mediadevices.Track
	reader mediadevices.RTPReadCloser
	codec  webrtc.RTPCodecCapability
}

func (c *capture) Kind() webrtc.RTPCodecType        { return c.track.Kind() }
func (c *capture) Codec() webrtc.RTPCodecCapability { return c.codec }

func (c *capture) ReadRTP() ([]*rtp.Packet, error) {
	packets, _, err := c.reader.Read()
	return packets, err
}

func (c *capture) Close() error {
	return errors.Join(c.reader.Close(), c.track.Close())
}
