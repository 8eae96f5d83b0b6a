// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/bureau-foundation/sms-bridge/messaging"
)

// Twilio webhook form fields carried into the room.
const (
	formFieldFrom = "From"
	formFieldTo   = "To"
	formFieldBody = "Body"
)

// InboundMessage is the part of a Twilio inbound-SMS webhook that the
// bridge relays. Values are taken verbatim: phone numbers are not
// normalized and the body may be empty.
type InboundMessage struct {
	From string
	To   string
	Body string
}

// DecodeInboundMessage extracts an InboundMessage from a parsed webhook
// form. Each of From, To, and Body must be present, but any of them may
// be empty. Other fields Twilio sends (MessageSid, AccountSid, media
// fields, and so on) are ignored.
func DecodeInboundMessage(form url.Values) (InboundMessage, error) {
	var missing []string
	for _, field := range []string{formFieldFrom, formFieldTo, formFieldBody} {
		if _, ok := form[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return InboundMessage{}, fmt.Errorf("webhook form is missing required fields: %s", strings.Join(missing, ", "))
	}
	return InboundMessage{
		From: form.Get(formFieldFrom),
		To:   form.Get(formFieldTo),
		Body: form.Get(formFieldBody),
	}, nil
}

// FormatBody renders the message as it appears in the room.
func (m InboundMessage) FormatBody() string {
	return fmt.Sprintf("FROM: %s\nTO: %s\n\n%s", m.From, m.To, m.Body)
}

// Content returns the m.text event content for the message.
func (m InboundMessage) Content() messaging.MessageContent {
	return messaging.NewTextMessage(m.FormatBody())
}
