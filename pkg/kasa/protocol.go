// Package kasa implements the TP-Link Smart Home protocol used by Kasa
// smart sockets and bulbs: an XOR autokey cipher over JSON commands, sent
// framed over TCP port 9999 or unframed over UDP broadcast for discovery.
package kasa

import "encoding/binary"

// initialKey is the fixed autokey seed defined by the protocol.
const initialKey byte = 171

// Encrypt applies the autokey XOR cipher to a plaintext command.
// Each ciphertext byte becomes the key for the next byte.
func Encrypt(plain []byte) []byte {
	out := make([]byte, len(plain))
	key := initialKey
	for i, b := range plain {
		out[i] = key ^ b
		key = out[i]
	}
	return out
}

// Decrypt reverses Encrypt. For each byte the ciphertext byte (not the
// plaintext) carries the key forward.
func Decrypt(cipher []byte) []byte {
	out := make([]byte, len(cipher))
	key := initialKey
	for i, b := range cipher {
		out[i] = key ^ b
		key = b
	}
	return out
}

// EncryptWithHeader encrypts a command for the TCP transport, which prefixes
// the ciphertext with its length as a 4-byte big-endian integer. UDP
// datagrams carry the bare ciphertext.
func EncryptWithHeader(plain []byte) []byte {
	cipher := Encrypt(plain)
	out := make([]byte, 4+len(cipher))
	binary.BigEndian.PutUint32(out[:4], uint32(len(cipher)))
	copy(out[4:], cipher)
	return out
}
