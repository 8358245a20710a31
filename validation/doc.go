// Package validation checks configuration structs against their validate
// struct tags. Field names in messages use the mapstructure key, so an
// error reads the same as the setting it refers to.
//
//	type Config struct {
//	    Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
//	}
//	err := validation.Struct(cfg)
package validation
