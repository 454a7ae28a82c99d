package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/prop"
)

func TestPropertyCLIPriority(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 25
	props := gopter.NewProperties(params)

	props.Property("CLI overrides file values", prop.ForAll(
		func(hardMs, graceMs, historySize int) bool {
			entries := map[string]string{
				KeyHardTimeout: fmt.Sprintf("%dms", hardMs),
				KeyGrace:       fmt.Sprintf("%dms", graceMs),
				KeyHistorySize: fmt.Sprintf("%d", historySize),
				KeyUIDisable:   "false",
			}

			overrideHard := time.Duration(hardMs+1) * time.Millisecond
			overrideGrace := time.Duration(graceMs+1) * time.Millisecond
			overrideHistory := historySize + 1
			overrideNoUI := true
			global, err := LoadOptions(entries, CLIOverrides{
				HardTimeout: &overrideHard,
				Grace:       &overrideGrace,
				HistorySize: &overrideHistory,
				UIDisable:   &overrideNoUI,
			})
			if err != nil {
				return false
			}

			return global.HardTimeout == overrideHard &&
				global.Grace == overrideGrace &&
				global.HistorySize == overrideHistory &&
				global.UIDisable == overrideNoUI
		},
		gopter.Gen(func(genParams *gopter.GenParameters) *gopter.GenResult {
			value := genParams.Rng.Intn(5000) + 1
			return gopter.NewGenResult(value, gopter.NoShrinker)
		}),
		gopter.Gen(func(genParams *gopter.GenParameters) *gopter.GenResult {
			value := genParams.Rng.Intn(1000) + 1
			return gopter.NewGenResult(value, gopter.NoShrinker)
		}),
		gopter.Gen(func(genParams *gopter.GenParameters) *gopter.GenResult {
			value := genParams.Rng.Intn(500) + 1
			return gopter.NewGenResult(value, gopter.NoShrinker)
		}),
	))

	props.TestingRun(t)
}

func TestPropertySettingsRoundTrip(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 50
	props := gopter.NewProperties(params)

	props.Property("saved settings load back unchanged", prop.ForAll(
		func(hostIdx int, intervalMs int) bool {
			s := Settings{
				Host:     PresetHosts[hostIdx],
				Interval: time.Duration(intervalMs) * time.Millisecond,
			}
			kv := NewMemoryKV(nil)
			if err := SaveSettings(kv, s); err != nil {
				return false
			}
			loaded, err := LoadSettings(kv)
			return err == nil && loaded == s
		},
		gopter.Gen(func(genParams *gopter.GenParameters) *gopter.GenResult {
			value := genParams.Rng.Intn(len(PresetHosts))
			return gopter.NewGenResult(value, gopter.NoShrinker)
		}),
		gopter.Gen(func(genParams *gopter.GenParameters) *gopter.GenResult {
			value := genParams.Rng.Intn(60000) + 100
			return gopter.NewGenResult(value, gopter.NoShrinker)
		}),
	))

	props.TestingRun(t)
}
