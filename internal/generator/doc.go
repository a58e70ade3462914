// Package generator drives a chat model to produce the raw material of a
// retraction analysis: sub-problems, entities and reasoning chains.
//
// Model output is parsed with the retraction package parsers, so a reply
// that does not fit the expected JSON shape surfaces as
// retraction.ErrMalformedPayload and the caller may ask again. Requests are
// rate limited, and rate-limit or server errors are retried with
// exponential backoff.
package generator
