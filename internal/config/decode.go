package config

import (
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-errors/errors"
	"github.com/mitchellh/mapstructure"
)

func decodeLogLevel(src reflect.Type, dst reflect.Type, srcVal interface{}) (interface{}, error) {
	if src.Kind() != reflect.String {
		return srcVal, nil
	}
	if dst != reflect.TypeOf(slog.Level(0)) {
		return srcVal, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(srcVal.(string)))); err != nil {
		return nil, errors.Errorf("log_level: %w", err)
	}
	return level, nil
}

var decodeHooks = mapstructure.ComposeDecodeHookFunc(
	decodeLogLevel,
	mapstructure.StringToTimeDurationHookFunc(),
)
