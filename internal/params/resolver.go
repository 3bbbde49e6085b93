package params

import (
	"fmt"
	"strconv"

	"github.com/FatStinkyPanda/talk2me-render/internal/core"
)

// Resolve merges a directive's inline flags with the asset's registered
// defaults and the category's global defaults, highest precedence first:
//
//	inline flag > per-asset default > global category default > hard fallback
//
// Each flag resolves independently: an inline volume does not force inline
// values for the fades. The descriptor may be nil for directives with no
// registered asset. Resolution is pure; the same inputs always produce the
// same Resolved value.
func Resolve(
	category Category,
	descriptor *core.AssetDescriptor,
	defaults core.AudioDefaults,
	flags map[string]string,
	directive string,
) (Resolved, []Warning, error) {
	categoryDefaults := defaultsFor(category, defaults)

	resolved := baseline(category, descriptor, categoryDefaults)

	for flag, value := range flags {
		applyErr := applyFlag(&resolved, category, flag, value, directive)
		if applyErr != nil {
			return Resolved{}, nil, applyErr
		}
	}

	warnings := clampRanges(&resolved, directive)

	return resolved, warnings, nil
}

// defaultsFor selects the global default block for a category.
func defaultsFor(category Category, defaults core.AudioDefaults) core.CategoryDefaults {
	switch category {
	case CategoryVoice:
		return defaults.Voice
	case CategorySfx:
		return defaults.Sfx
	case CategoryBackground:
		return defaults.Background
	default:
		return core.CategoryDefaults{}
	}
}

// baseline builds the pre-inline parameter set from the asset and global
// tiers. A zero global volume or duck level counts as unset and falls through
// to the hard fallback: a project that silences every event through its
// defaults is a misconfiguration, not an intent the resolver should honor.
func baseline(
	category Category,
	descriptor *core.AssetDescriptor,
	categoryDefaults core.CategoryDefaults,
) Resolved {
	resolved := Resolved{
		Volume:      FallbackVolume,
		FadeIn:      categoryDefaults.FadeIn,
		FadeOut:     categoryDefaults.FadeOut,
		StartAt:     0,
		EndAt:       0,
		HasEndAt:    false,
		Duration:    0,
		HasDuration: false,
		Loop:        categoryDefaults.Loop,
		PauseSpeech: categoryDefaults.PauseSpeech,
		DuckSpeech:  categoryDefaults.DuckSpeech,
		DuckLevel:   FallbackDuckLevel,
	}

	if categoryDefaults.Volume > 0 {
		resolved.Volume = categoryDefaults.Volume
	}

	if categoryDefaults.DuckLevel > 0 {
		resolved.DuckLevel = categoryDefaults.DuckLevel
	}

	if descriptor == nil {
		return resolved
	}

	if descriptor.DefaultVolume > 0 {
		resolved.Volume = descriptor.DefaultVolume
	}

	if descriptor.DefaultFadeIn > 0 {
		resolved.FadeIn = descriptor.DefaultFadeIn
	}

	if descriptor.DefaultFade > 0 {
		resolved.FadeOut = descriptor.DefaultFade
	}

	if category == CategoryBackground {
		resolved.Loop = descriptor.Loop

		if descriptor.DuckSpeech {
			resolved.DuckSpeech = true
		}

		if descriptor.DuckLevel > 0 {
			resolved.DuckLevel = descriptor.DuckLevel
		}
	}

	return resolved
}

// applyFlag coerces one inline flag into its typed field. Flags a category
// does not understand fail the resolve: silently ignoring them would hide
// author typos.
func applyFlag(resolved *Resolved, category Category, flag, value, directive string) error {
	switch flag {
	case FlagVolume:
		return assignFloat(&resolved.Volume, flag, value, directive)
	case FlagFadeIn:
		return assignFloat(&resolved.FadeIn, flag, value, directive)
	case FlagFadeOut:
		return assignFloat(&resolved.FadeOut, flag, value, directive)
	case FlagStartAt:
		return assignFloat(&resolved.StartAt, flag, value, directive)
	case FlagEndAt:
		if category != CategorySfx {
			return newUnknownFlagError(category, flag, value, directive)
		}

		resolved.HasEndAt = true

		return assignFloat(&resolved.EndAt, flag, value, directive)
	case FlagDuration:
		if category != CategorySfx {
			return newUnknownFlagError(category, flag, value, directive)
		}

		resolved.HasDuration = true

		return assignFloat(&resolved.Duration, flag, value, directive)
	case FlagLoop:
		if category != CategoryBackground {
			return newUnknownFlagError(category, flag, value, directive)
		}

		return assignBool(&resolved.Loop, flag, value, directive)
	case FlagPauseSpeech:
		if category != CategorySfx {
			return newUnknownFlagError(category, flag, value, directive)
		}

		return assignBool(&resolved.PauseSpeech, flag, value, directive)
	case FlagDuckSpeech:
		if category != CategoryBackground {
			return newUnknownFlagError(category, flag, value, directive)
		}

		return assignBool(&resolved.DuckSpeech, flag, value, directive)
	case FlagDuckLevel:
		if category != CategoryBackground {
			return newUnknownFlagError(category, flag, value, directive)
		}

		return assignFloat(&resolved.DuckLevel, flag, value, directive)
	default:
		return newUnknownFlagError(category, flag, value, directive)
	}
}

func assignFloat(target *float64, flag, value, directive string) error {
	parsed, parseErr := strconv.ParseFloat(value, 64)
	if parseErr != nil {
		return &ConfigError{
			Directive: directive,
			Flag:      flag,
			Value:     value,
			Reason:    "not a number",
		}
	}

	*target = parsed

	return nil
}

func assignBool(target *bool, flag, value, directive string) error {
	parsed, parseErr := strconv.ParseBool(value)
	if parseErr != nil {
		return &ConfigError{
			Directive: directive,
			Flag:      flag,
			Value:     value,
			Reason:    "not a boolean",
		}
	}

	*target = parsed

	return nil
}

func newUnknownFlagError(category Category, flag, value, directive string) error {
	return &ConfigError{
		Directive: directive,
		Flag:      flag,
		Value:     value,
		Reason:    fmt.Sprintf("not a valid flag for %s directives", category),
	}
}

// clampRanges enforces the soft numeric bounds. Violations clamp and warn
// instead of failing: a slightly-loud mix the author can hear beats a dead
// render.
func clampRanges(resolved *Resolved, directive string) []Warning {
	var warnings []Warning

	clampUnit := func(target *float64, flag string) {
		switch {
		case *target < 0:
			warnings = append(warnings, Warning{
				Directive: directive,
				Flag:      flag,
				Message:   fmt.Sprintf("value %.3f below 0, clamped to 0", *target),
			})
			*target = 0
		case *target > 1:
			warnings = append(warnings, Warning{
				Directive: directive,
				Flag:      flag,
				Message:   fmt.Sprintf("value %.3f above 1, clamped to 1", *target),
			})
			*target = 1
		}
	}

	clampNonNegative := func(target *float64, flag string) {
		if *target < 0 {
			warnings = append(warnings, Warning{
				Directive: directive,
				Flag:      flag,
				Message:   fmt.Sprintf("value %.3f below 0, clamped to 0", *target),
			})
			*target = 0
		}
	}

	clampUnit(&resolved.Volume, FlagVolume)
	clampUnit(&resolved.DuckLevel, FlagDuckLevel)
	clampNonNegative(&resolved.FadeIn, FlagFadeIn)
	clampNonNegative(&resolved.FadeOut, FlagFadeOut)
	clampNonNegative(&resolved.StartAt, FlagStartAt)

	if resolved.HasEndAt {
		clampNonNegative(&resolved.EndAt, FlagEndAt)
	}

	if resolved.HasDuration {
		clampNonNegative(&resolved.Duration, FlagDuration)
	}

	return warnings
}
