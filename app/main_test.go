package main

import (
	"os"
	"testing"
)

func TestMainHelpReturnsWithoutStarting(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"pressroom", "--help"}
	defer func() { os.Args = oldArgs }()

	// Must print usage and return instead of touching a nil config
	main()
}
