package api

import (
	"net/http"

	"github.com/ashendes/order-service/internal/models"
	"github.com/go-playground/validator/v10"
)

// fieldRule is one constraint on a request field and the message reported
// when it is violated
type fieldRule struct {
	tag     string
	message string
}

var (
	orderLinesRules = []fieldRule{
		{tag: "required", message: "order lines must not be null"},
		{tag: "min=1", message: "order lines must not be empty"},
	}
	productIDNotNull = fieldRule{tag: "required", message: "product id must not be null"}
	productIDRules   = []fieldRule{
		{tag: "gt=0", message: "product id must be positive"},
	}
	quantityNotNull = fieldRule{tag: "required", message: "quantity must not be null"}
	quantityRules   = []fieldRule{
		{tag: "gt=0", message: "quantity must be positive"},
		{tag: "max=1000", message: "quantity must not exceed 1000"},
	}
)

// requestValidator checks create requests constraint by constraint so that
// every violated constraint is reported, not only the first one per field
type requestValidator struct {
	validate *validator.Validate
}

func newRequestValidator() *requestValidator {
	return &requestValidator{validate: validator.New()}
}

// Validate returns one error payload per violated constraint, ordered by
// field and then by constraint. A missing value only violates its not-null
// constraint.
func (v *requestValidator) Validate(req *models.CreateOrderRequest) []models.ErrorResponse {
	var violations []models.ErrorResponse

	violations = v.check(violations, req.OrderLines, orderLinesRules...)

	for _, line := range req.OrderLines {
		if line.ProductID == nil {
			violations = append(violations, violation(productIDNotNull))
		} else {
			violations = v.check(violations, *line.ProductID, productIDRules...)
		}

		if line.Quantity == nil {
			violations = append(violations, violation(quantityNotNull))
		} else {
			violations = v.check(violations, *line.Quantity, quantityRules...)
		}
	}

	return violations
}

func (v *requestValidator) check(violations []models.ErrorResponse, value interface{}, rules ...fieldRule) []models.ErrorResponse {
	for _, rule := range rules {
		if err := v.validate.Var(value, rule.tag); err != nil {
			violations = append(violations, violation(rule))
		}
	}
	return violations
}

func violation(rule fieldRule) models.ErrorResponse {
	return models.NewErrorResponse(http.StatusBadRequest, rule.message)
}
