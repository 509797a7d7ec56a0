package channel

import (
	"errors"
	"fmt"
)

// Outcome is the classification of one platform API call.
type Outcome string

const (
	OutcomeAccepted        Outcome = "accepted"
	OutcomeRateLimited     Outcome = "rate_limited"
	OutcomeTransient       Outcome = "transient"
	OutcomeAuthFailed      Outcome = "auth_failed"
	OutcomePermanentReject Outcome = "permanent_reject"
	OutcomeWindowExpired   Outcome = "window_expired"
	OutcomeUnresolved      Outcome = "unresolved"
)

// Retryable reports whether the call can be repeated without risking a
// duplicate delivery.
func (o Outcome) Retryable() bool {
	return o == OutcomeRateLimited || o == OutcomeTransient
}

// APIError is an error response returned by the Graph API.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Type       string `json:"type"`
	Code       int    `json:"code"`
	Subcode    int    `json:"error_subcode"`
	FBTraceID  string `json:"fbtrace_id"`
}

func (e *APIError) Error() string {
	if e.Subcode != 0 {
		return fmt.Sprintf("graph api error %d/%d (http %d): %s", e.Code, e.Subcode, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("graph api error %d (http %d): %s", e.Code, e.StatusCode, e.Message)
}

// Outcome classifies the error response.
func (e *APIError) Outcome() Outcome {
	switch e.Code {
	case 190:
		return OutcomeAuthFailed
	case 131047:
		// WhatsApp: more than 24 hours since the customer last replied
		return OutcomeWindowExpired
	case 10:
		if e.Subcode == 2018278 || e.Subcode == 2534022 {
			return OutcomeWindowExpired
		}
		return OutcomeAuthFailed
	case 4, 17, 32, 613, 80007, 130429, 131048, 131056:
		return OutcomeRateLimited
	case 2:
		return OutcomeTransient
	case 1:
		return OutcomeUnresolved
	case 100, 551, 131026, 131030, 131051:
		return OutcomePermanentReject
	}

	if e.Code >= 200 && e.Code <= 299 {
		// 1545041: recipient is not available right now
		if e.Subcode == 1545041 {
			return OutcomePermanentReject
		}
		return OutcomeAuthFailed
	}

	switch {
	case e.StatusCode == 429:
		return OutcomeRateLimited
	case e.StatusCode == 401:
		return OutcomeAuthFailed
	case e.StatusCode >= 500:
		return OutcomeUnresolved
	case e.StatusCode >= 400:
		return OutcomePermanentReject
	}
	return OutcomeUnresolved
}

// Expired distinguishes an expired token from a revoked or otherwise
// invalidated one. Only meaningful when Outcome is OutcomeAuthFailed.
func (e *APIError) Expired() bool {
	return e.Code == 190 && e.Subcode == 463
}

// TransportError wraps a failure below the HTTP response layer. Written
// records whether the request had been fully sent when it failed: once
// written, the platform may have accepted it.
type TransportError struct {
	Written bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Written {
		return fmt.Sprintf("graph api transport error after request was sent: %v", e.Err)
	}
	return fmt.Sprintf("graph api transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// OutcomeOf classifies any error returned by GraphClient.
func OutcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeAccepted
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Outcome()
	}

	var tErr *TransportError
	if errors.As(err, &tErr) {
		if tErr.Written {
			return OutcomeUnresolved
		}
		return OutcomeTransient
	}

	// request could not be built; nothing reached the platform
	return OutcomePermanentReject
}
