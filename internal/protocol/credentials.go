package protocol

import (
	"bytes"
	"errors"
)

// CredentialSize is the fixed length of a credential payload.
const CredentialSize = 50

// Separator terminates both the SSID and the password inside a payload ("__--__").
var Separator = []byte{0x5F, 0x5F, 0x2D, 0x2D, 0x5F, 0x5F}

// ErrIncompleteCredentials is returned when a separator is missing or the SSID is empty.
var ErrIncompleteCredentials = errors.New("incomplete credentials payload")

// Credentials is a network name and password received from the client.
type Credentials struct {
	SSID     string
	Password string
}

// ParseCredentials splits payload into SSID and password.
//
// The layout is SSID + Separator + PASSWORD + Separator, followed by padding.
// When the second separator is missing the partial result is returned together
// with ErrIncompleteCredentials and must not be acted upon.
func ParseCredentials(payload []byte) (Credentials, error) {
	first := bytes.Index(payload, Separator)
	if first < 0 {
		return Credentials{SSID: string(payload)}, ErrIncompleteCredentials
	}
	creds := Credentials{SSID: string(payload[:first])}

	rest := payload[first+len(Separator):]
	second := bytes.Index(rest, Separator)
	if second < 0 {
		creds.Password = string(rest)
		return creds, ErrIncompleteCredentials
	}
	creds.Password = string(rest[:second])

	if creds.SSID == "" {
		return creds, ErrIncompleteCredentials
	}
	return creds, nil
}

// EncodeCredentials builds the padded payload a client sends after CmdPrepareCredentials.
func EncodeCredentials(c Credentials) ([]byte, error) {
	n := len(c.SSID) + len(c.Password) + 2*len(Separator)
	if n > CredentialSize {
		return nil, errors.New("credentials do not fit in payload")
	}
	out := make([]byte, 0, CredentialSize)
	out = append(out, c.SSID...)
	out = append(out, Separator...)
	out = append(out, c.Password...)
	out = append(out, Separator...)
	return append(out, make([]byte, CredentialSize-n)...), nil
}
