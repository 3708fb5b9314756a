package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"djqueue-backend/internal/middleware"
	"djqueue-backend/internal/services"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = newValidator()

// newValidator reports fields by their JSON names
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// statusFor maps an error kind to its HTTP status
func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindNotAuthorized:
		return http.StatusForbidden
	case services.KindNotFound:
		return http.StatusNotFound
	case services.KindInvalidInput, services.KindInvalidTimeWindow:
		return http.StatusBadRequest
	case services.KindQueueClosed,
		services.KindAlreadyQueued,
		services.KindNotQueued,
		services.KindAlreadySelected,
		services.KindInvitationPending,
		services.KindNoPendingInvitation,
		services.KindDJNotQueued,
		services.KindNotSelectedDJ,
		services.KindDuplicateRating,
		services.KindRoleAlreadySet,
		services.KindInvalidTransition:
		return http.StatusConflict
	case services.KindTryAgain:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondServiceError logs err and sends the response matching its kind.
// Internal failures never leak their message.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error, action string) {
	kind := services.KindOf(err)
	status := statusFor(kind)
	userID := middleware.GetUserID(r.Context())

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Failed to " + action)
	} else {
		log.Debug().Err(err).Str("user_id", userID).Str("kind", string(kind)).Msg("Rejected " + action)
	}

	message := "Failed to " + action
	var e *services.Error
	if errors.As(err, &e) && kind != services.KindInternal {
		message = e.Message
	}
	respondJSON(w, status, ErrorResponse{Error: message, Kind: string(kind)})
}

// decodeBody decodes a JSON body into dst and runs its validate tags
func decodeBody(r *http.Request, dst interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("Invalid request body")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return errors.New(describeValidation(verrs))
		}
		return err
	}
	return nil
}

func describeValidation(verrs validator.ValidationErrors) string {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "min", "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max", "lte":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, "; ")
}

// requireCaller returns the authenticated caller or responds 401
func requireCaller(w http.ResponseWriter, r *http.Request) (services.Caller, bool) {
	c, ok := middleware.GetCaller(r.Context())
	if !ok {
		respondError(w, "Authentication required", http.StatusUnauthorized)
	}
	return c, ok
}
