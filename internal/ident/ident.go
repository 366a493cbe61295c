// Package ident mints the short opaque identifiers used for users, rooms,
// chat messages, queue items and suggestions.
package ident

import (
	"crypto/rand"
)

const (
	alphabet = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idLength = 12
)

// New returns a fresh 12-character identifier. With 62^12 possible values,
// collisions within a process lifetime are negligible.
func New() string {
	buf := make([]byte, idLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken.
		panic("ident: reading random bytes: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf)
}
