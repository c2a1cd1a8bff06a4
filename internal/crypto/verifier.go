// Package crypto provides caller authentication for the market API. Callers
// prove control of an address by signing the request body with an EIP-191
// personal-sign signature; the server recovers the address and uses it as
// the caller identity, the way a contract would use msg.sender. The package
// also manages encrypted key files for operator credentials.
package crypto

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// personalPrefix is the EIP-191 version 0x45 prefix.
const personalPrefix = "\x19Ethereum Signed Message:\n"

// personalHash returns the EIP-191 hash of msg, the digest wallets produce
// for personal_sign.
func personalHash(msg []byte) []byte {
	prefixed := fmt.Sprintf("%s%d%s", personalPrefix, len(msg), msg)
	return ethcrypto.Keccak256([]byte(prefixed))
}

// RecoverAddress recovers the signer address from a personal-sign signature
// over msg. The signature is 65 bytes hex (r || s || v), with v accepted as
// either 0/1 or the legacy 27/28.
func RecoverAddress(msg []byte, sigHex string) (common.Address, error) {
	sig, err := hex.DecodeString(strings.TrimPrefix(sigHex, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: signature is not valid hex: %w", err)
	}
	if len(sig) != 65 {
		return common.Address{}, fmt.Errorf("crypto: expected 65-byte signature, got %d bytes", len(sig))
	}

	// Normalize the recovery id.
	v := sig[64]
	if v == 27 || v == 28 {
		v -= 27
	}
	if v > 1 {
		return common.Address{}, fmt.Errorf("crypto: invalid recovery id %d", sig[64])
	}
	norm := make([]byte, 65)
	copy(norm, sig[:64])
	norm[64] = v

	pub, err := ethcrypto.SigToPub(personalHash(msg), norm)
	if err != nil {
		return common.Address{}, fmt.Errorf("crypto: recover public key: %w", err)
	}
	return ethcrypto.PubkeyToAddress(*pub), nil
}

// Signer produces personal-sign signatures. The server never signs; Signer
// exists for the seeding mode and tests that act as wallet-holding callers.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner creates a Signer from a hex-encoded private key (with or
// without 0x prefix).
func NewSigner(privateKeyHex string) (*Signer, error) {
	key, err := ethcrypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("crypto: parse private key: %w", err)
	}
	return &Signer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// GenerateSigner creates a Signer with a fresh random key.
func GenerateSigner() (*Signer, error) {
	key, err := ethcrypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("crypto: generate key: %w", err)
	}
	return &Signer{
		key:     key,
		address: ethcrypto.PubkeyToAddress(key.PublicKey),
	}, nil
}

// Address returns the signer's address.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignMessage returns the hex-encoded personal-sign signature over msg, with
// the legacy 27/28 recovery id wallets emit.
func (s *Signer) SignMessage(msg []byte) (string, error) {
	sig, err := ethcrypto.Sign(personalHash(msg), s.key)
	if err != nil {
		return "", fmt.Errorf("crypto: sign message: %w", err)
	}
	sig[64] += 27
	return "0x" + hex.EncodeToString(sig), nil
}
