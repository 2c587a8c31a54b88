package server

import (
	"errors"
	"reflect"
	"strings"

	"github.com/MarcoPoloResearchLab/remarks/internal/normalize"
	"github.com/go-playground/validator/v10"
)

type createCommentPayload struct {
	NormalizedKey string `json:"normalizedKey" validate:"required,max=200"`
	Brand         string `json:"brand" validate:"max=120"`
	Model         string `json:"model" validate:"max=120"`
	Type          string `json:"type" validate:"required,oneof=missing-data correction general"`
	Body          string `json:"body" validate:"required,min=5,max=2000"`
	AuthorName    string `json:"authorName" validate:"max=120"`
	AuthorEmail   string `json:"authorEmail" validate:"omitempty,max=254,email"`
	Website       string `json:"website"`
}

func (p *createCommentPayload) normalize() {
	p.NormalizedKey = normalize.Trimmed(p.NormalizedKey)
	p.Brand = normalize.Text(p.Brand)
	p.Model = normalize.Text(p.Model)
	p.Type = strings.ToLower(normalize.Trimmed(p.Type))
	p.Body = normalize.Text(p.Body)
	p.AuthorName = normalize.Text(p.AuthorName)
	p.AuthorEmail = normalize.Trimmed(p.AuthorEmail)
}

type editCommentPayload struct {
	Body string `json:"body" validate:"required,min=5,max=2000"`
}

func (p *editCommentPayload) normalize() {
	p.Body = normalize.Text(p.Body)
}

type commentStatusPayload struct {
	Status string `json:"status" validate:"required,oneof=pending visible hidden"`
}

func (p *commentStatusPayload) normalize() {
	p.Status = strings.ToLower(normalize.Trimmed(p.Status))
}

type claimPayload struct {
	UserID string `json:"userId" validate:"required,max=190"`
	Email  string `json:"email" validate:"required,max=254,email"`
}

// Claims match the stored email exactly, so only surrounding whitespace is removed.
func (p *claimPayload) normalize() {
	p.UserID = normalize.Trimmed(p.UserID)
	p.Email = normalize.Trimmed(p.Email)
}

type createFeedbackPayload struct {
	Category string `json:"category" validate:"required,oneof=bug feature content other"`
	Message  string `json:"message" validate:"required,min=5,max=3000"`
	Email    string `json:"email" validate:"omitempty,max=254,email"`
	PageURL  string `json:"pageUrl" validate:"omitempty,max=2048,url"`
	Website  string `json:"website"`
}

func (p *createFeedbackPayload) normalize() {
	p.Category = strings.ToLower(normalize.Trimmed(p.Category))
	p.Message = normalize.Text(p.Message)
	p.Email = normalize.Trimmed(p.Email)
	p.PageURL = normalize.Trimmed(p.PageURL)
}

type updateFeedbackPayload struct {
	Message *string `json:"message" validate:"omitempty,min=5,max=3000"`
	Status  *string `json:"status" validate:"omitempty,oneof=new triaged closed"`
}

func (p *updateFeedbackPayload) normalize() {
	if p.Message != nil {
		message := normalize.Text(*p.Message)
		p.Message = &message
	}
	if p.Status != nil {
		status := strings.ToLower(normalize.Trimmed(*p.Status))
		p.Status = &status
	}
}

type normalizer interface {
	normalize()
}

// payloadValidator checks normalized payloads and reports failures keyed by JSON field name.
type payloadValidator struct {
	validate *validator.Validate
}

func newPayloadValidator() *payloadValidator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &payloadValidator{validate: validate}
}

// check normalizes payload in place and validates it. A nil map means the payload is valid.
func (v *payloadValidator) check(payload normalizer) (map[string]string, error) {
	payload.normalize()
	err := v.validate.Struct(payload)
	if err == nil {
		return nil, nil
	}
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return nil, err
	}
	fields := make(map[string]string, len(validationErrors))
	for _, fieldError := range validationErrors {
		fields[fieldError.Field()] = describe(fieldError)
	}
	return fields, nil
}

func describe(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return "required"
	case "min":
		return "must be at least " + fieldError.Param() + " characters"
	case "max":
		return "must be at most " + fieldError.Param() + " characters"
	case "oneof":
		return "must be one of " + strings.ReplaceAll(fieldError.Param(), " ", ", ")
	case "email":
		return "must be a valid email address"
	case "url":
		return "must be a valid URL"
	default:
		return "invalid"
	}
}
