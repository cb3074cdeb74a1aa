package validation

import (
	"reflect"
	"regexp"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslation "github.com/go-playground/validator/v10/translations/en"
)

const (
	englishTranslatorCode = "en"

	// TagResourceName accepts names usable as compute and volume names.
	TagResourceName = "resource_name"
	// TagParamName accepts datastore configuration parameter keys.
	TagParamName = "param_name"
)

var (
	resourceNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)
	paramNamePattern    = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.-]{0,127}$`)
)

type IValidator interface {
	Validate(i interface{}) map[string]string
}

type validation struct {
	validator  *validator.Validate
	translator ut.Translator
}

func InitValidator() IValidator {
	v := validator.New()
	enLocale := en.New()
	universal := ut.New(enLocale, enLocale)
	translator, _ := universal.GetTranslator(englishTranslatorCode)

	_ = enTranslation.RegisterDefaultTranslations(v, translator)

	registerPattern(v, translator, TagResourceName, resourceNamePattern,
		"{0} must start with a letter or digit and contain only letters, digits, '.', '_' or '-'")
	registerPattern(v, translator, TagParamName, paramNamePattern,
		"{0} contains an invalid parameter name")

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		if jsonField := field.Tag.Get("json"); jsonField != "" {
			return jsonField
		}

		return field.Tag.Get("query")
	})

	return &validation{
		validator:  v,
		translator: translator,
	}
}

func registerPattern(v *validator.Validate, trans ut.Translator, tag string, re *regexp.Regexp, text string) {
	_ = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	})

	_ = v.RegisterTranslation(tag, trans,
		func(ut ut.Translator) error {
			return ut.Add(tag, text, true)
		},
		func(ut ut.Translator, fe validator.FieldError) string {
			msg, _ := ut.T(tag, fe.Field())
			return msg
		},
	)
}

func (v *validation) Validate(i interface{}) map[string]string {
	messages := make(map[string]string)
	if errors := v.validator.Struct(i); errors != nil {
		ves, ok := errors.(validator.ValidationErrors)
		if !ok {
			messages[""] = errors.Error()
			return messages
		}

		for _, err := range ves {
			messages[err.Field()] = err.Translate(v.translator)
		}
	}

	return messages
}
