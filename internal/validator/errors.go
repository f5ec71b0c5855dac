package validator

import (
	"fmt"

	"github.com/xomicsdatascience/pscs-api/internal/interaction"
)

// Failure codes carried by ValidationError.
const (
	CodeRequirementNotMet   = "requirement_not_met"
	CodeUnresolvedParameter = "unresolved_parameter"
	CodeUnconnectedInput    = "unconnected_input"
)

// ValidationError names one node that cannot run and why.
type ValidationError struct {
	NodeID string `json:"node_id"`
	Code   string `json:"code"`

	// Unmet is the node's requirement list when Code is requirement_not_met.
	Unmet            interaction.List `json:"unmet,omitzero"`
	UnmetDescription string           `json:"unmet_description,omitempty"`

	// Guarantees is the accumulated set the requirements were checked against.
	Guarantees interaction.GuaranteeSet `json:"guarantees"`

	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] node %s: %s", e.Code, e.NodeID, e.Message)
}

// Unwrap returns the underlying cause, such as an UnresolvedParameterError.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
