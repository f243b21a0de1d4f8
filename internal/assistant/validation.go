package assistant

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// AskRequest is the body of POST /ai/ask.
type AskRequest struct {
	Query     string `json:"query" validate:"required,min=3,max=500"`
	UserType  string `json:"user_type,omitempty" validate:"omitempty,oneof=patient guest doctor admin"`
	SessionID string `json:"session_id,omitempty" validate:"max=128"`
}

// HistoryRequest selects a session transcript.
type HistoryRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
}

// DoctorSearchRequest is the query of GET /ai/doctors.
type DoctorSearchRequest struct {
	Query string `json:"q" validate:"required,min=2,max=100"`
}

// ValidationError carries field-level messages keyed by JSON field name.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if e == nil || len(e.Fields) == 0 {
		return "assistant: validation failed"
	}
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var parts []string
	for _, name := range names {
		parts = append(parts, strings.Join(e.Fields[name], "; "))
	}
	return "assistant: validation failed: " + strings.Join(parts, "; ")
}

// Message is the headline shown with a 422 response.
func (e *ValidationError) Message() string {
	return "The given data was invalid."
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string][]string{field: {message}}}
}

// requestValidator wraps go-playground/validator with English messages that
// name fields by their JSON tags.
type requestValidator struct {
	validate *validator.Validate
	trans    ut.Translator
}

func newRequestValidator() *requestValidator {
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)

	return &requestValidator{validate: validate, trans: trans}
}

// Struct validates s and returns a *ValidationError on failure.
func (v *requestValidator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("assistant: validate request: %w", err)
	}

	out := &ValidationError{Fields: make(map[string][]string, len(fieldErrs))}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = append(out.Fields[fe.Field()], fe.Translate(v.trans))
	}
	return out
}
