//go:build !espeak

package tts

import "errors"

const Available = false

func Say(string, string) error {
	return errors.New("speech output not compiled in (build with -tags espeak)")
}
