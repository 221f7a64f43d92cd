// Package validate checks entities before they are sent to the course API.
package validate

import (
	"errors"
	"net/url"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"golang.org/x/text/unicode/norm"
)

var (
	// custom validation tags & texts
	notBlankTag  = "notblank"
	notBlankText = "{0} is required"

	videoURLTag  = "videourl"
	videoURLText = "{0} must be an http(s) URL"

	oneCorrectTag  = "onecorrect"
	oneCorrectText = "mark at least one answer as correct"

	minAnswersText = "a question needs at least {1} answers"
)

// Error lists the fields that failed. Each failing field is considered touched so
// that its message can be rendered next to it.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Touched reports whether field failed validation.
func (e *Error) Touched(field string) bool {
	_, ok := e.Fields[field]
	return ok
}

// Message returns the message for field, if any.
func (e *Error) Message(field string) string {
	return e.Fields[field]
}

// AsError extracts a *Error from err.
func AsError(err error) (*Error, bool) {
	var ve *Error
	ok := errors.As(err, &ve)
	return ve, ok
}

// Validator wraps a configured go-playground validator with english messages.
type Validator struct {
	validate   *validator.Validate
	translator ut.Translator
}

// New builds a validator with the authoring rules registered.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(v, translator)

	// Use JSON tag names for errors instead of Go struct names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation(notBlankTag, notBlank)
	_ = v.RegisterValidation(videoURLTag, videoURL)
	v.RegisterStructValidation(questionStructValidation, Question{})

	out := &Validator{validate: v, translator: translator}
	out.registerTranslation(notBlankTag, notBlankText, false)
	out.registerTranslation(videoURLTag, videoURLText, false)
	out.registerTranslation(oneCorrectTag, oneCorrectText, false)
	out.registerTranslation("min", minAnswersText, true)
	return out
}

func (v *Validator) registerTranslation(tag, text string, override bool) {
	_ = v.validate.RegisterTranslation(
		tag, v.translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field(), fe.Param())
			return s
		},
	)
}

// Section input.
type Section struct {
	Title       string `json:"title" validate:"notblank"`
	Description string `json:"description"`
}

// Lecture input.
type Lecture struct {
	Title    string `json:"title" validate:"notblank"`
	Content  string `json:"content"`
	Duration int    `json:"duration" validate:"gte=1"`
	VideoURL string `json:"video_url" validate:"videourl"`
}

// Quiz input.
type Quiz struct {
	Title       string `json:"title" validate:"notblank"`
	Description string `json:"description"`
	Points      int    `json:"points" validate:"gte=0"`
	TimeLimit   int    `json:"time_limit" validate:"gte=0"`
}

// Question input.
type Question struct {
	Text    string   `json:"question_text" validate:"notblank"`
	Answers []Answer `json:"answers" validate:"min=2,dive"`
}

// Answer input.
type Answer struct {
	Text      string `json:"text" validate:"notblank"`
	IsCorrect bool   `json:"is_correct"`
}

// Struct validates one of the input types above.
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		key := strings.SplitN(fe.Namespace(), ".", 2)
		name := fe.Field()
		if len(key) == 2 {
			name = key[1]
		}
		if _, seen := fields[name]; !seen {
			fields[name] = fe.Translate(v.translator)
		}
	}
	return &Error{Fields: fields}
}

// Clean trims and NFC-normalizes user text before it is validated or sent.
func Clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func notBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

func videoURL(fl validator.FieldLevel) bool {
	u, err := url.Parse(strings.TrimSpace(fl.Field().String()))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// questionStructValidation requires at least one answer flagged correct.
func questionStructValidation(sl validator.StructLevel) {
	q := sl.Current().Interface().(Question)
	for _, a := range q.Answers {
		if a.IsCorrect {
			return
		}
	}
	sl.ReportError(q.Answers, "answers", "Answers", oneCorrectTag, "")
}
