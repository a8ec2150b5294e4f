package handlers

import (
	"net/http"

	"github.com/dndsage/oracle/services"
	"github.com/dndsage/oracle/utils"
)

// HandleServiceError maps domain errors to HTTP responses. Handlers call
// this for any error coming back from the service layer.
func HandleServiceError(w http.ResponseWriter, err error) {
	switch {
	case services.IsValidationError(err):
		utils.WriteBadRequest(w, err.Error(), services.GetErrorDetails(err))
	case services.IsNotFoundError(err):
		utils.WriteNotFound(w, err.Error())
	case services.IsUnavailableError(err):
		utils.WriteServiceUnavailable(w, err.Error())
	case services.IsExternalError(err):
		utils.WriteBadGateway(w, err.Error(), services.GetErrorDetails(err))
	default:
		utils.WriteInternalServerError(w, "Internal server error")
	}
}

// HandleValidationError maps request body validation failures to a 400 with
// per-field messages.
func HandleValidationError(w http.ResponseWriter, err error) {
	if utils.IsValidationError(err) {
		fields := utils.GetValidationFields(err)
		details := make(map[string]interface{}, len(fields))
		for field, msg := range fields {
			details[field] = msg
		}
		utils.WriteBadRequest(w, "Validation failed", details)
		return
	}
	utils.WriteBadRequest(w, err.Error(), nil)
}
