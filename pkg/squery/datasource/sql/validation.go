package sql

import (
	"os"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTrans "github.com/go-playground/validator/v10/translations/en"
	zhTrans "github.com/go-playground/validator/v10/translations/zh"
)

var (
	validate     *validator.Validate
	translators  map[string]ut.Translator
	validateOnce sync.Once
)

func initValidator() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// Messages name the config key the user sets, not the Go field.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		if label := fld.Tag.Get("label"); label != "" {
			return label
		}

		return fld.Name
	})

	enLoc, zhLoc := en.New(), zh.New()
	uni := ut.New(enLoc, enLoc, zhLoc)

	enT, _ := uni.GetTranslator("en")
	_ = enTrans.RegisterDefaultTranslations(validate, enT)

	zhT, _ := uni.GetTranslator("zh")
	_ = zhTrans.RegisterDefaultTranslations(validate, zhT)

	translators = map[string]ut.Translator{"en": enT, "zh": zhT}
}

func getValidator() *validator.Validate {
	validateOnce.Do(initValidator)

	return validate
}

// translator picks the language of VALIDATION_LOCALE, English by default.
func translator() ut.Translator {
	validateOnce.Do(initValidator)

	if t, ok := translators[os.Getenv("VALIDATION_LOCALE")]; ok {
		return t
	}

	return translators["en"]
}

// ConfigError lists every invalid DBConfig field.
type ConfigError struct {
	Errors validator.ValidationErrors
}

func (e *ConfigError) Error() string {
	t := translator()
	msgs := make([]string, 0, len(e.Errors))

	for _, fe := range e.Errors {
		msgs = append(msgs, fe.Translate(t))
	}

	return strings.Join(msgs, "; ")
}

func (e *ConfigError) Unwrap() error {
	return e.Errors
}

func validateConfig(c *DBConfig) error {
	err := getValidator().Struct(c)
	if err == nil {
		return nil
	}

	if ve, ok := err.(validator.ValidationErrors); ok { //nolint:errorlint // Struct returns the type unwrapped.
		return &ConfigError{Errors: ve}
	}

	return err
}
