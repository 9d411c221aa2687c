// Package c32 implements Crockford base-32 check encoding of Stacks addresses and
// conversion to and from bitcoin base58check addresses.
package c32

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/mr-tron/base58"
)

const alphabet = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// Address version bytes.
const (
	VersionMainnetSingleSig byte = 22 // SP
	VersionMainnetMultiSig  byte = 20 // SM
	VersionTestnetSingleSig byte = 26 // ST
	VersionTestnetMultiSig  byte = 21 // SN
)

// Bitcoin base58check version bytes.
const (
	BitcoinMainnetP2PKH byte = 0
	BitcoinMainnetP2SH  byte = 5
	BitcoinTestnetP2PKH byte = 111
	BitcoinTestnetP2SH  byte = 196
)

var (
	ErrInvalidCharacter = errors.New("c32: invalid character")
	ErrInvalidChecksum  = errors.New("c32: checksum mismatch")
	ErrInvalidAddress   = errors.New("c32: invalid address")
)

var (
	toBitcoin = map[byte]byte{
		VersionMainnetSingleSig: BitcoinMainnetP2PKH,
		VersionMainnetMultiSig:  BitcoinMainnetP2SH,
		VersionTestnetSingleSig: BitcoinTestnetP2PKH,
		VersionTestnetMultiSig:  BitcoinTestnetP2SH,
	}
	toStacks = map[byte]byte{
		BitcoinMainnetP2PKH: VersionMainnetSingleSig,
		BitcoinMainnetP2SH:  VersionMainnetMultiSig,
		BitcoinTestnetP2PKH: VersionTestnetSingleSig,
		BitcoinTestnetP2SH:  VersionTestnetMultiSig,
	}
)

var thirtyTwo = big.NewInt(32)

// Encode returns the c32 encoding of data. Each leading zero byte becomes one '0'.
func Encode(data []byte) string {
	n := new(big.Int).SetBytes(data)
	mod := new(big.Int)

	var out []byte
	for n.Sign() > 0 {
		n.DivMod(n, thirtyTwo, mod)
		out = append(out, alphabet[mod.Int64()])
	}
	for _, b := range data {
		if b != 0 {
			break
		}
		out = append(out, '0')
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return string(out)
}

// Decode reverses Encode. Input is case-insensitive; O, L and I read as 0, 1 and 1.
func Decode(s string) ([]byte, error) {
	s = normalize(s)
	n := new(big.Int)
	for i := 0; i < len(s); i++ {
		idx := strings.IndexByte(alphabet, s[i])
		if idx < 0 {
			return nil, fmt.Errorf("%w %q", ErrInvalidCharacter, s[i])
		}
		n.Mul(n, thirtyTwo)
		n.Add(n, big.NewInt(int64(idx)))
	}

	zeros := len(s) - len(strings.TrimLeft(s, "0"))
	return append(make([]byte, zeros), n.Bytes()...), nil
}

func normalize(s string) string {
	s = strings.ToUpper(s)
	return strings.NewReplacer("O", "0", "L", "1", "I", "1").Replace(s)
}

func checksum(version byte, data []byte) []byte {
	payload := append([]byte{version}, data...)
	return chainhash.DoubleHashB(payload)[:4]
}

// CheckEncode returns the version character followed by c32(data || checksum).
func CheckEncode(version byte, data []byte) (string, error) {
	if int(version) >= len(alphabet) {
		return "", fmt.Errorf("%w: version %d out of range", ErrInvalidAddress, version)
	}
	body := append(append([]byte{}, data...), checksum(version, data)...)
	return string(alphabet[version]) + Encode(body), nil
}

// CheckDecode reverses CheckEncode and verifies the checksum.
func CheckDecode(s string) (byte, []byte, error) {
	s = normalize(s)
	if len(s) < 2 {
		return 0, nil, ErrInvalidAddress
	}
	version := strings.IndexByte(alphabet, s[0])
	if version < 0 {
		return 0, nil, fmt.Errorf("%w %q", ErrInvalidCharacter, s[0])
	}
	body, err := Decode(s[1:])
	if err != nil {
		return 0, nil, err
	}
	if len(body) < 4 {
		return 0, nil, ErrInvalidAddress
	}
	data, sum := body[:len(body)-4], body[len(body)-4:]
	if !bytes.Equal(sum, checksum(byte(version), data)) {
		return 0, nil, ErrInvalidChecksum
	}
	return byte(version), data, nil
}

// Address encodes a hash160 as an S-prefixed Stacks address.
func Address(version byte, hash160 []byte) (string, error) {
	enc, err := CheckEncode(version, hash160)
	if err != nil {
		return "", err
	}
	return "S" + enc, nil
}

// ParseAddress decodes an S-prefixed Stacks address.
func ParseAddress(addr string) (byte, []byte, error) {
	if len(addr) < 3 || (addr[0] != 'S' && addr[0] != 's') {
		return 0, nil, fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return CheckDecode(addr[1:])
}

// FromBase58 converts a bitcoin base58check address to a Stacks address. Known
// version bytes are mapped; others are kept as is.
func FromBase58(b58 string) (string, error) {
	raw, err := base58.Decode(b58)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	if len(raw) < 5 {
		return "", fmt.Errorf("%w: %q too short", ErrInvalidAddress, b58)
	}
	payload, sum := raw[:len(raw)-4], raw[len(raw)-4:]
	if !bytes.Equal(sum, chainhash.DoubleHashB(payload)[:4]) {
		return "", ErrInvalidChecksum
	}

	version := payload[0]
	if v, ok := toStacks[version]; ok {
		version = v
	}
	return Address(version, payload[1:])
}

// ToBase58 converts a Stacks address to a bitcoin base58check address.
func ToBase58(addr string) (string, error) {
	version, hash, err := ParseAddress(addr)
	if err != nil {
		return "", err
	}
	if v, ok := toBitcoin[version]; ok {
		version = v
	}
	payload := append([]byte{version}, hash...)
	return base58.Encode(append(payload, chainhash.DoubleHashB(payload)[:4]...)), nil
}
