package transport

import (
	"fmt"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// mergeSettings overlays settings onto the typed config struct pointed to by
// cfg. The struct's current values act as the base layer, so keys absent
// from settings keep their values, and replaying the same settings is
// idempotent. Keys that no config field declares are dropped silently.
//
// Duration fields accept time.Duration values and Go duration strings such
// as "1500ms".
func mergeSettings(cfg any, settings map[string]any) error {
	if len(settings) == 0 {
		return nil
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(cfg, "koanf"), nil); err != nil {
		return fmt.Errorf("load current config: %w", err)
	}
	if err := k.Load(confmap.Provider(settings, "."), nil); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return fmt.Errorf("apply settings: %w", err)
	}
	return nil
}
