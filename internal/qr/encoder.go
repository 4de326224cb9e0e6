// Package qr encodes text as a scannable code image.
package qr

import (
	"fmt"
	"image/color"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/linkcard/linkcard/internal/card"
)

// Config controls the rendered code.
type Config struct {
	Size          int
	DisableBorder bool
	Foreground    color.Color
	Background    color.Color
	Level         qrcode.RecoveryLevel
}

// Encoder implements card.QREncoder. Encoding is a pure function of the
// input text and the fixed configuration.
type Encoder struct {
	cfg Config
}

// New builds an Encoder with sensible defaults.
func New(cfg Config) *Encoder {
	if cfg.Size <= 0 {
		cfg.Size = 256
	}
	if cfg.Foreground == nil {
		cfg.Foreground = color.Black
	}
	if cfg.Background == nil {
		cfg.Background = color.White
	}
	return &Encoder{cfg: cfg}
}

// Encode renders text as a PNG data URI.
func (e *Encoder) Encode(text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("empty text")
	}
	q, err := qrcode.New(text, e.cfg.Level)
	if err != nil {
		return "", fmt.Errorf("build qr code: %w", err)
	}
	q.ForegroundColor = e.cfg.Foreground
	q.BackgroundColor = e.cfg.Background
	q.DisableBorder = e.cfg.DisableBorder

	png, err := q.PNG(e.cfg.Size)
	if err != nil {
		return "", fmt.Errorf("render qr png: %w", err)
	}
	return card.DataURI("image/png", png), nil
}
