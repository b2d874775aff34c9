// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"atelier/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
// The closed strategy/field/source sets are enforced here so an unknown
// tag is a binding error at the API boundary, never a silent non-match
// deeper in the engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("match_strategy", validateMatchStrategy)
		_ = v.RegisterValidation("rule_field", validateRuleField)
		_ = v.RegisterValidation("assignment_source", validateAssignmentSource)
	}
}

func validateMatchStrategy(fl validator.FieldLevel) bool {
	return models.MatchStrategy(fl.Field().String()).Valid()
}

func validateRuleField(fl validator.FieldLevel) bool {
	return models.RuleField(fl.Field().String()).Valid()
}

func validateAssignmentSource(fl validator.FieldLevel) bool {
	return models.AssignmentSource(fl.Field().String()).Valid()
}
