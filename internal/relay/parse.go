package relay

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ModelReply is the JSON object the model is asked to produce.
type ModelReply struct {
	Answer      string   `json:"answer"`
	ProductSKUs []string `json:"productSkus"`
	Suggestions []string `json:"suggestions"`
}

// ParseModelReply decodes raw strictly: the whole text, optionally wrapped in
// one Markdown code fence, must be a single JSON object with only the reply
// fields, a non-empty answer and string arrays. Any deviation wraps
// ErrMalformedUpstreamResponse. No attempt is made to locate an object
// inside surrounding prose.
func ParseModelReply(raw string) (ModelReply, error) {
	body := stripCodeFence(strings.TrimSpace(raw))
	if body == "" {
		return ModelReply{}, fmt.Errorf("%w: empty reply", ErrMalformedUpstreamResponse)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()

	var reply ModelReply
	if err := dec.Decode(&reply); err != nil {
		return ModelReply{}, fmt.Errorf("%w: %v", ErrMalformedUpstreamResponse, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return ModelReply{}, fmt.Errorf("%w: trailing data after JSON object", ErrMalformedUpstreamResponse)
	}
	if strings.TrimSpace(reply.Answer) == "" {
		return ModelReply{}, fmt.Errorf("%w: answer is empty", ErrMalformedUpstreamResponse)
	}
	return reply, nil
}

// stripCodeFence unwraps ```json ... ``` or ``` ... ```. Anything else is
// returned unchanged.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	rest := s[3:]
	nl := strings.IndexByte(rest, '\n')
	if nl < 0 {
		return s
	}
	if lang := strings.TrimSpace(rest[:nl]); lang != "" && !strings.EqualFold(lang, "json") {
		return s
	}
	inner := rest[nl+1:]
	if !strings.HasSuffix(inner, "```") {
		return s
	}
	return strings.TrimSpace(strings.TrimSuffix(inner, "```"))
}
