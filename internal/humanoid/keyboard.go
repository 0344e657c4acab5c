// File: internal/humanoid/keyboard.go
package humanoid

import (
	"context"
	"fmt"
	"time"
	"unicode"

	"go.uber.org/zap"
)

// backspace is the control character the Executor interprets as a delete.
const backspace = "\b"

// enter is the control character for the Enter key.
const enter = "\r"

// keyboardNeighbors maps each key to the keys physically adjacent on a
// QWERTY layout. Typos are drawn from a key's neighbors; a random wrong
// character from across the board would be its own tell.
var keyboardNeighbors = map[rune]string{
	'1': "2q", '2': "13wq", '3': "24we", '4': "35er", '5': "46rt", '6': "57ty",
	'7': "68yu", '8': "79ui", '9': "80io", '0': "9op",
	'q': "wa1s", 'w': "qase23", 'e': "wsdr34", 'r': "edft45", 't': "rfgy56",
	'y': "tghu67", 'u': "yhji78", 'i': "ujko89", 'o': "iklp90", 'p': "ol0",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiolm", 'l': "kop",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn", 'n': "bhjm", 'm': "njk",
	'.': ",l", ',': "m.", '@': "2", '-': "0p", '_': "-",
}

// Type emits text into the focused element with human keystroke cadence:
// jittered inter-key delays, occasional adjacent-key typos that get noticed
// and corrected, and occasional mid-string hesitation. The committed value
// always equals text exactly; only the transient keystroke sequence varies.
// Any dispatch failure degrades to plain fixed-delay typing of the
// remainder rather than failing the interaction.
func (s *Simulator) Type(ctx context.Context, text string) error {
	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.keyDelay(ctx); err != nil {
			return err
		}

		// Mid-string hesitation, as if re-reading what to type next.
		if i > 0 && s.randFloat() < s.cfg.HesitationRate {
			if err := s.Pause(ctx, 400*time.Millisecond, 1200*time.Millisecond); err != nil {
				return err
			}
		}

		if s.randFloat() < s.cfg.TypoRate {
			if done, err := s.typoAndCorrect(ctx, runes[i]); err != nil {
				s.logger.Debug("Typo simulation failed, falling back to plain typing", zap.Error(err))
				return s.typePlainFrom(ctx, runes, i)
			} else if done {
				continue
			}
		}

		if err := s.exec.SendKeys(ctx, string(runes[i])); err != nil {
			s.logger.Debug("Keystroke dispatch failed, falling back to plain typing", zap.Error(err))
			return s.typePlainFrom(ctx, runes, i)
		}
	}
	return nil
}

// TypePlain emits text with a flat jittered delay and no typo injection.
// Used for passwords: the value is transient and masked, so the extra
// theater buys nothing.
func (s *Simulator) TypePlain(ctx context.Context, text string) error {
	return s.typePlainFrom(ctx, []rune(text), 0)
}

// PressEnter sends the Enter key to the focused element.
func (s *Simulator) PressEnter(ctx context.Context) error {
	return s.exec.SendKeys(ctx, enter)
}

// typoAndCorrect emits a plausible neighbor of want, pauses as if noticing,
// deletes it, pauses again, then emits the right character. Returns done =
// false when the character has no neighbors (so the caller types it
// normally).
func (s *Simulator) typoAndCorrect(ctx context.Context, want rune) (done bool, err error) {
	lower := unicode.ToLower(want)
	neighbors, ok := keyboardNeighbors[lower]
	if !ok || len(neighbors) == 0 {
		return false, nil
	}

	typo := rune(neighbors[s.randIntn(len(neighbors))])
	if unicode.IsUpper(want) {
		typo = unicode.ToUpper(typo)
	}

	if err := s.exec.SendKeys(ctx, string(typo)); err != nil {
		return true, fmt.Errorf("typo keystroke: %w", err)
	}
	// Recognition pause: the eye catches the mistake.
	if err := s.Pause(ctx, 250*time.Millisecond, 700*time.Millisecond); err != nil {
		return true, err
	}
	if err := s.exec.SendKeys(ctx, backspace); err != nil {
		return true, fmt.Errorf("typo correction: %w", err)
	}
	if err := s.Pause(ctx, 120*time.Millisecond, 400*time.Millisecond); err != nil {
		return true, err
	}
	if err := s.exec.SendKeys(ctx, string(want)); err != nil {
		return true, fmt.Errorf("corrected keystroke: %w", err)
	}
	return true, nil
}

// typePlainFrom types runes[from:] with a fixed jittered per-key delay.
func (s *Simulator) typePlainFrom(ctx context.Context, runes []rune, from int) error {
	for i := from; i < len(runes); i++ {
		if err := s.keyDelay(ctx); err != nil {
			return err
		}
		if err := s.exec.SendKeys(ctx, string(runes[i])); err != nil {
			return fmt.Errorf("humanoid: keystroke dispatch failed: %w", err)
		}
	}
	return nil
}

// keyDelay sleeps the configured inter-keystroke interval.
func (s *Simulator) keyDelay(ctx context.Context) error {
	min := time.Duration(s.cfg.KeyDelayMinMs) * time.Millisecond
	max := time.Duration(s.cfg.KeyDelayMaxMs) * time.Millisecond
	return s.Pause(ctx, min, max)
}
