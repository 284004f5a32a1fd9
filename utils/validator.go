package utils

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var (
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	tagPattern      = regexp.MustCompile(`^[\p{L}\p{N}_-]{1,50}$`)
	registerOnce    sync.Once
)

// RegisterValidators adds the custom binding tags used by request structs.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
			return usernamePattern.MatchString(fl.Field().String())
		})
		_ = v.RegisterValidation("tagname", func(fl validator.FieldLevel) bool {
			return ValidTagName(fl.Field().String())
		})
	})
}

// ValidTagName reports whether s is a usable tag name.
func ValidTagName(s string) bool {
	return tagPattern.MatchString(s)
}
