package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/stemsi/exstem-proctor/internal/proctor"
)

var (
	// trans is the singleton English translator for validation errors.
	trans ut.Translator
	// messages validates WebSocket payloads, which use `validate` tags.
	messages *govalidator.Validate
	once     sync.Once
)

var focusEvents = map[proctor.FocusEvent]bool{
	proctor.FocusVisibilityHidden: true,
	proctor.FocusWindowBlur:       true,
	proctor.FocusFullscreenExit:   true,
	proctor.FocusEscapeKey:        true,
}

// Setup prepares the message validator and configures Gin's binding engine
// the same way. Safe to call more than once.
func Setup() {
	once.Do(func() {
		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")

		messages = govalidator.New(govalidator.WithRequiredStructEnabled())
		configure(messages)

		if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
			configure(v)
		}
	})
}

func configure(v *govalidator.Validate) {
	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("focus_event", func(fl govalidator.FieldLevel) bool {
		return focusEvents[proctor.FocusEvent(fl.Field().String())]
	})

	_ = en_translations.RegisterDefaultTranslations(v, trans)
	_ = v.RegisterTranslation("focus_event", trans,
		func(ut ut.Translator) error {
			return ut.Add("focus_event", "{0} is not a known focus event", true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			t, _ := ut.T("focus_event", fe.Field())
			return t
		},
	)
}

// TranslateErrors takes a validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	fields["detail"] = err.Error()
	return fields
}

// Struct validates a decoded WebSocket message.
// Returns nil on success or a translated field error map on failure.
func Struct(v interface{}) map[string]string {
	Setup()
	if err := messages.Struct(v); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
