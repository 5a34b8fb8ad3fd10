// Package signature provides helper functions for handling the blockchain
// hashing and signature needs.
package signature

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// fieldSeparator is placed between the encoded fields of a hash.
const fieldSeparator = "^"

// =============================================================================

// Hash returns a unique hex string for the set of fields. Each field is
// encoded to JSON and the encodings are sorted before hashing, so the same
// set of fields always produces the same hash no matter the order they are
// provided in.
func Hash(fields ...any) (string, error) {
	encoded := make([]string, len(fields))
	for i, field := range fields {
		data, err := json.Marshal(field)
		if err != nil {
			return "", fmt.Errorf("encoding field %d: %w", i, err)
		}
		encoded[i] = string(data)
	}

	sort.Strings(encoded)

	hash := sha256.Sum256([]byte(strings.Join(encoded, fieldSeparator)))
	return hex.EncodeToString(hash[:]), nil
}

// hexToBinary maps each hex character to its 4 bit representation.
var hexToBinary = map[rune]string{
	'0': "0000", '1': "0001", '2': "0010", '3': "0011",
	'4': "0100", '5': "0101", '6': "0110", '7': "0111",
	'8': "1000", '9': "1001", 'a': "1010", 'b': "1011",
	'c': "1100", 'd': "1101", 'e': "1110", 'f': "1111",
}

// HexToBinary converts a hex string into a string of 0's and 1's that is
// 4 times the length of the hex string.
func HexToBinary(hexStr string) (string, error) {
	var sb strings.Builder
	sb.Grow(len(hexStr) * 4)

	for _, c := range strings.ToLower(hexStr) {
		bits, exists := hexToBinary[c]
		if !exists {
			return "", fmt.Errorf("invalid hex character %q", c)
		}
		sb.WriteString(bits)
	}

	return sb.String(), nil
}

// =============================================================================

// Signature represents an ECDSA signature as its R and S values so it can
// be carried through JSON without losing precision.
type Signature struct {
	R *big.Int `json:"r"`
	S *big.Int `json:"s"`
}

// String implements the fmt.Stringer interface for logging.
func (sig Signature) String() string {
	b, err := sig.bytes()
	if err != nil {
		return "invalid"
	}
	return hexutil.Encode(b)
}

// bytes converts the R and S values into the 64 byte [R|S] format.
func (sig Signature) bytes() ([]byte, error) {
	if sig.R == nil || sig.S == nil {
		return nil, errors.New("missing signature values")
	}

	if sig.R.Sign() <= 0 || sig.S.Sign() <= 0 || sig.R.BitLen() > 256 || sig.S.BitLen() > 256 {
		return nil, errors.New("signature values out of range")
	}

	b := make([]byte, 64)
	sig.R.FillBytes(b[:32])
	sig.S.FillBytes(b[32:])

	return b, nil
}

// =============================================================================

// Sign uses the specified private key to sign the value.
func Sign(value any, privateKey *ecdsa.PrivateKey) (Signature, error) {

	// Prepare the data for signing.
	data, err := stamp(value)
	if err != nil {
		return Signature{}, err
	}

	// Sign the hash with the private key to produce a signature.
	sig, err := crypto.Sign(data, privateKey)
	if err != nil {
		return Signature{}, err
	}

	// Drop the recovery id, only the [R|S] values are kept.
	signature := Signature{
		R: new(big.Int).SetBytes(sig[:32]),
		S: new(big.Int).SetBytes(sig[32:64]),
	}

	return signature, nil
}

// Verify checks the signature was produced over the value by the private key
// belonging to the specified public key. A signature that doesn't match is
// reported as false. An error is only returned when the public key or value
// can't be decoded.
func Verify(publicKey string, value any, sig Signature) (bool, error) {
	pk, err := DecodePublicKey(publicKey)
	if err != nil {
		return false, err
	}

	data, err := stamp(value)
	if err != nil {
		return false, err
	}

	rs, err := sig.bytes()
	if err != nil {
		return false, nil
	}

	return crypto.VerifySignature(crypto.FromECDSAPub(pk), data, rs), nil
}

// EncodePublicKey returns the hex representation of the public key.
func EncodePublicKey(pk ecdsa.PublicKey) string {
	return hexutil.Encode(crypto.FromECDSAPub(&pk))
}

// DecodePublicKey converts the hex representation of a public key back
// into a public key.
func DecodePublicKey(publicKey string) (*ecdsa.PublicKey, error) {
	b, err := hexutil.Decode(publicKey)
	if err != nil {
		return nil, fmt.Errorf("decoding public key: %w", err)
	}

	pk, err := crypto.UnmarshalPubkey(b)
	if err != nil {
		return nil, fmt.Errorf("unmarshal public key: %w", err)
	}

	return pk, nil
}

// ToAddress returns the address for the specified public key.
func ToAddress(pk ecdsa.PublicKey) string {
	return crypto.PubkeyToAddress(pk).Hex()
}

// =============================================================================

// stamp returns a hash of 32 bytes that represents this value with
// the PowChain stamp embedded into the final hash.
func stamp(value any) ([]byte, error) {

	// Marshal the value. Maps are written with sorted keys so the
	// same value always produces the same bytes.
	v, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}

	// Hash the value into a 32 byte array. This will provide
	// a data length consistency with all values.
	txHash := crypto.Keccak256(v)

	// This stamp is used so signatures we produce when signing values
	// are always unique to the PowChain blockchain.
	stamp := []byte("\x19PowChain Signed Message:\n32")

	// Hash the stamp and txHash together in a final 32 byte array
	// that represents the value.
	return crypto.Keccak256(stamp, txHash), nil
}
