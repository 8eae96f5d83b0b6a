// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package service

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// TwilioSignatureHeader carries Twilio's request signature.
const TwilioSignatureHeader = "X-Twilio-Signature"

// TwilioSignature computes the signature Twilio sends for a form POST:
// base64(HMAC-SHA1(authToken, webhookURL + key1 + value1 + key2 + ...))
// with parameters sorted by key, and repeated values of a key sorted.
func TwilioSignature(authToken []byte, webhookURL string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for key := range form {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var payload strings.Builder
	payload.WriteString(webhookURL)
	for _, key := range keys {
		values := append([]string(nil), form[key]...)
		sort.Strings(values)
		for _, value := range values {
			payload.WriteString(key)
			payload.WriteString(value)
		}
	}

	mac := hmac.New(sha1.New, authToken)
	mac.Write([]byte(payload.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyTwilioSignature checks a X-Twilio-Signature value against the
// webhook URL and the decoded form parameters. webhookURL must be the
// exact public URL configured in Twilio, which may differ from the URL
// the request arrived on behind a reverse proxy.
//
// The error message never includes the expected signature.
func VerifyTwilioSignature(authToken []byte, webhookURL string, form url.Values, signature string) error {
	if len(authToken) == 0 {
		return errors.New("twilio signature: auth token is empty")
	}
	if signature == "" {
		return errors.New("twilio signature: signature is empty")
	}

	expected := TwilioSignature(authToken, webhookURL, form)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return errors.New("twilio signature: signature mismatch")
	}
	return nil
}
