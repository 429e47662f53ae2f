package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/ini.v1"
)

// iniCodec decodes INI files into viper's nested map, one map per
// section. Keys in the default section stay at the top level. Section
// and key names are lower-cased the way viper expects.
type iniCodec struct{}

func (iniCodec) Decode(b []byte, v map[string]any) error {
	cfg, err := ini.Load(b)
	if err != nil {
		return err
	}
	for _, section := range cfg.Sections() {
		target := v
		if name := strings.ToLower(section.Name()); section.Name() != ini.DefaultSection {
			sub, ok := v[name].(map[string]any)
			if !ok {
				sub = map[string]any{}
				v[name] = sub
			}
			target = sub
		}
		for _, key := range section.Keys() {
			target[strings.ToLower(key.Name())] = key.String()
		}
	}
	return nil
}

func (iniCodec) Encode(v map[string]any) ([]byte, error) {
	cfg := ini.Empty()
	for name, value := range v {
		sub, ok := value.(map[string]any)
		if !ok {
			if _, err := cfg.Section(ini.DefaultSection).NewKey(name, toString(value)); err != nil {
				return nil, err
			}
			continue
		}
		section := cfg.Section(name)
		for k, val := range sub {
			if _, err := section.NewKey(k, toString(val)); err != nil {
				return nil, err
			}
		}
	}
	var b strings.Builder
	if _, err := cfg.WriteTo(&b); err != nil {
		return nil, err
	}
	return []byte(b.String()), nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return strings.TrimSpace(fmt.Sprint(v))
}

func newINIViper() (*viper.Viper, error) {
	registry := viper.NewCodecRegistry()
	if err := registry.RegisterCodec("ini", iniCodec{}); err != nil {
		return nil, err
	}
	return viper.NewWithOptions(viper.WithCodecRegistry(registry)), nil
}
