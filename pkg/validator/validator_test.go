package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
)

type samplePayload struct {
	Name     string `json:"name" validate:"required"`
	Contact  string `json:"contact" validate:"required,email"`
	Replicas int    `json:"replicas" validate:"gte=1"`
}

func TestValidateStructPasses(t *testing.T) {
	payload := samplePayload{
		Name:     "liver biopsy",
		Contact:  "curator@example.org",
		Replicas: 3,
	}

	if err := ValidateStruct(payload); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateStructReportsEveryFailingField(t *testing.T) {
	err := ValidateStruct(samplePayload{Contact: "not-an-email"})
	if err == nil {
		t.Fatal("expected validation error")
	}

	failures, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(failures) != 3 {
		t.Fatalf("expected 3 failures, got %d: %v", len(failures), failures)
	}

	byField := map[string]string{}
	for _, failure := range failures {
		byField[failure.Field] = failure.Tag
	}
	if byField["contact"] != "email" {
		t.Fatalf("contact failure = %q, want email", byField["contact"])
	}
	if byField["name"] != "required" {
		t.Fatalf("name failure = %q, want required", byField["name"])
	}
}

func TestRegisterValidationCustomRule(t *testing.T) {
	err := RegisterValidation("nodetype", func(fl validator.FieldLevel) bool {
		return fl.Field().String() != ""
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	type payload struct {
		Type string `validate:"nodetype"`
	}

	if err := ValidateStruct(payload{Type: "sample"}); err != nil {
		t.Fatalf("expected rule to pass, got %v", err)
	}
	if err := ValidateStruct(payload{}); err == nil {
		t.Fatal("expected rule to fail for empty value")
	}
}
