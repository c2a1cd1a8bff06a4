package crypto

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// testKeyHex is a throwaway private key used only in tests.
const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestSignAndRecoverRoundTrip(t *testing.T) {
	require := require.New(t)

	signer, err := GenerateSigner()
	require.NoError(err)

	msg := []byte(`{"side":"yes","amount":"1000000000000000000"}`)
	sig, err := signer.SignMessage(msg)
	require.NoError(err)

	addr, err := RecoverAddress(msg, sig)
	require.NoError(err)
	require.Equal(signer.Address(), addr)
}

func TestNewSignerFromHex(t *testing.T) {
	require := require.New(t)

	plain, err := NewSigner(testKeyHex)
	require.NoError(err)
	prefixed, err := NewSigner("0x" + testKeyHex)
	require.NoError(err)
	require.Equal(plain.Address(), prefixed.Address())

	_, err = NewSigner("not a key")
	require.Error(err)
}

func TestRecoverTamperedMessage(t *testing.T) {
	require := require.New(t)

	signer, err := NewSigner(testKeyHex)
	require.NoError(err)

	sig, err := signer.SignMessage([]byte("original body"))
	require.NoError(err)

	// Recovery still succeeds but yields a different address, so the caller
	// identity no longer matches the signer.
	addr, err := RecoverAddress([]byte("tampered body"), sig)
	require.NoError(err)
	require.NotEqual(signer.Address(), addr)
}

func TestRecoverRejectsMalformedSignature(t *testing.T) {
	require := require.New(t)
	msg := []byte("body")

	_, err := RecoverAddress(msg, "not hex")
	require.Error(err)

	_, err = RecoverAddress(msg, "0xdeadbeef")
	require.Error(err)

	// Correct length but impossible recovery id.
	bad := make([]byte, 65)
	bad[64] = 9
	_, err = RecoverAddress(msg, "0x"+hex.EncodeToString(bad))
	require.Error(err)
}

func TestRecoverAcceptsBothRecoveryIDForms(t *testing.T) {
	require := require.New(t)

	signer, err := NewSigner(testKeyHex)
	require.NoError(err)

	msg := []byte("body")
	sig, err := signer.SignMessage(msg)
	require.NoError(err)

	// SignMessage emits the legacy 27/28 form; the normalized 0/1 form must
	// recover identically.
	raw, err := hex.DecodeString(sig[2:])
	require.NoError(err)
	raw[64] -= 27
	addr, err := RecoverAddress(msg, "0x"+hex.EncodeToString(raw))
	require.NoError(err)
	require.Equal(signer.Address(), addr)
}

func TestEncryptDecryptKeyRoundTrip(t *testing.T) {
	require := require.New(t)

	blob, err := EncryptKey("0x"+testKeyHex, "hunter2")
	require.NoError(err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(err)
	require.Equal(testKeyHex, got)

	_, err = DecryptKey(blob, "wrong")
	require.Error(err)

	_, err = EncryptKey("tooshort", "hunter2")
	require.Error(err)
	_, err = EncryptKey(testKeyHex, "")
	require.Error(err)
}

func TestLoadKeyResolutionOrder(t *testing.T) {
	require := require.New(t)

	// Raw key wins even when a file is also configured.
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0xabcd", EncryptedKeyPath: "/does/not/exist"})
	require.NoError(err)
	require.Equal("abcd", got)

	_, err = LoadKey(KeyConfig{RawPrivateKey: "zz"})
	require.Error(err)

	// Encrypted file path.
	blob, err := EncryptKey(testKeyHex, "pw")
	require.NoError(err)

	path := filepath.Join(t.TempDir(), "oracle.key.json")
	require.NoError(os.WriteFile(path, blob, 0o600))

	got, err = LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "pw"})
	require.NoError(err)
	require.Equal(testKeyHex, got)

	_, err = LoadKey(KeyConfig{})
	require.Error(err)
}
