package models

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/ekaya-inc/grantgraph/pkg/apperrors"
	"github.com/ekaya-inc/grantgraph/pkg/llm"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("model_id", func(fl validator.FieldLevel) bool {
		return llm.ModelID(fl.Field().String()).Valid()
	})
	return v
}

// Normalize trims the question, canonicalizes the model identifier and applies
// defaultModel when none was given. It does not validate.
func (r *QueryRequest) Normalize(defaultModel llm.ModelID) {
	r.Question = strings.TrimSpace(r.Question)
	if strings.TrimSpace(string(r.Model)) == "" {
		r.Model = defaultModel
		return
	}
	if id, ok := llm.ParseModelID(string(r.Model)); ok {
		r.Model = id
	}
}

// Validate checks the request and returns a validation_failed *apperrors.Error
// with a caller-facing message, or nil.
func (r *QueryRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return apperrors.New(apperrors.KindValidation, "invalid request", err)
	}

	fe := verrs[0]
	return apperrors.New(apperrors.KindValidation, fieldMessage(fe), err)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.StructField() {
	case "Question":
		switch fe.Tag() {
		case "required":
			return "question is required"
		case "max":
			return fmt.Sprintf("question must be at most %s characters", fe.Param())
		}
	case "Model":
		switch fe.Tag() {
		case "required":
			return "model is required"
		case "model_id":
			return fmt.Sprintf("unknown model %q; supported models: %s", fe.Value(), supportedModels())
		}
	}
	return fmt.Sprintf("invalid value for %s", strings.ToLower(fe.StructField()))
}

func supportedModels() string {
	models := llm.Models()
	ids := make([]string, len(models))
	for i, m := range models {
		ids[i] = string(m.ID)
	}
	return strings.Join(ids, ", ")
}
