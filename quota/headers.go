package quota

import (
	"net/http"
	"strconv"
	"time"
)

// Response header names
const (
	HeaderLimit      = "X-RateLimit-Limit"
	HeaderRemaining  = "X-RateLimit-Remaining"
	HeaderReset      = "X-RateLimit-Reset"
	HeaderRetryAfter = "Retry-After"
)

// RejectionCode machine-readable error code of a rejection body
const RejectionCode = "RATE_LIMIT_EXCEEDED"

// RejectionBody JSON body returned with 429
type RejectionBody struct {
	Error      string    `json:"error"`
	Message    string    `json:"message"`
	RetryAfter int64     `json:"retryAfter"`
	Limit      int64     `json:"limit"`
	ResetAt    time.Time `json:"resetAt"`
}

// Headers rate limit headers of the decision
//
// Unlimited decisions report -1 for limit and remaining and carry no reset header.
func (d *Decision) Headers() http.Header {
	h := make(http.Header)
	setWindowHeaders(h, "", d.Limit, d.Remaining, d.ResetAt)

	if d.Minute != nil {
		setWindowHeaders(h, "-Minute", d.Minute.Limit, d.Minute.Remaining, d.Minute.ResetAt)
	}
	if d.Hour != nil {
		setWindowHeaders(h, "-Hour", d.Hour.Limit, d.Hour.Remaining, d.Hour.ResetAt)
	}

	if !d.Allowed {
		h.Set(HeaderRetryAfter, strconv.FormatInt(d.RetryAfterSeconds(), 10))
	}
	return h
}

// RejectionBody body of the 429 response
func (d *Decision) RejectionBody() RejectionBody {
	return RejectionBody{
		Error:      RejectionCode,
		Message:    ErrRateLimitExceeded.Message(),
		RetryAfter: d.RetryAfterSeconds(),
		Limit:      d.Limit,
		ResetAt:    d.ResetAt.UTC(),
	}
}

func setWindowHeaders(h http.Header, suffix string, limit, remaining int64, resetAt time.Time) {
	h.Set(HeaderLimit+suffix, strconv.FormatInt(limit, 10))
	h.Set(HeaderRemaining+suffix, strconv.FormatInt(remaining, 10))
	if limit != Unlimited && !resetAt.IsZero() {
		h.Set(HeaderReset+suffix, resetAt.UTC().Format(time.RFC3339))
	}
}
