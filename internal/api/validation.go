package api

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/pageza/foodgram/backend/internal/service"
)

var registerOnce sync.Once

// RegisterValidators adds the custom rules to gin's validator and reports
// fields by their JSON names. Safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected binding validator engine")
			return
		}
		err = ConfigureValidator(v)
	})
	return err
}

// ConfigureValidator installs the username and slug rules on v
func ConfigureValidator(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return service.ValidUsername(fl.Field().String())
	}); err != nil {
		return err
	}
	return v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return service.ValidSlug(fl.Field().String())
	})
}
