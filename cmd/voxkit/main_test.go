package main

import (
	"testing"

	"github.com/matryer/is"

	"github.com/voxkit/voxkit/internal/config"
)

func TestNewRecognizerAppliesDefaultLocale(t *testing.T) {
	is := is.New(t)
	r := newRecognizer(&config.Config{
		DefaultLocale:    "es-ES",
		LegacyServiceURL: "ws://127.0.0.1:1/stream",
	})
	is.Equal(r.GetLocale(), "es-ES")
}

func TestNewRecognizerIgnoresBadDefaultLocale(t *testing.T) {
	is := is.New(t)
	r := newRecognizer(&config.Config{
		DefaultLocale:    "zz-ZZ",
		LegacyServiceURL: "ws://127.0.0.1:1/stream",
	})
	// The bad locale is logged and skipped; the recognizer stays usable on
	// its built-in default.
	is.Equal(r.GetLocale(), "en-US")
}
