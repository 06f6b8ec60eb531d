package beacon

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// addToURL appends key=value to rawURL, escaping value.
func addToURL(rawURL, key, value string) string {
	sep := "?"
	switch {
	case strings.HasSuffix(rawURL, "?"), strings.HasSuffix(rawURL, "&"):
		sep = ""
	case strings.Contains(rawURL, "?"):
		sep = "&"
	}
	return rawURL + sep + key + "=" + url.QueryEscape(value)
}

// encodePayload returns endpoint with p JSON-encoded in the d parameter.
func encodePayload(endpoint string, p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode payload: %w", err)
	}
	return addToURL(endpoint, ParamData, string(data)), nil
}
